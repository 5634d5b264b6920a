// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package enhance

import (
	"math"
)

// Reflects an out of bounds index into [0,n), mirroring at the outermost samples without repeating them:
// -1 maps to 1, n maps to n-2. Arbitrarily distant indices wrap with period 2(n-1).
func reflectIndex(i, n int) int {
	if n <= 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// Returns a (2r+1)x(2r+1) Gaussian kernel over pixel offsets, row-major, with weight exp(-(dx²+dy²)/(2σ²)).
// The kernel is not normalized, its center weight is 1
func SpatialKernel(radius int, sigma float64) []float64 {
	size := 2*radius + 1
	inv := 1 / (2 * sigma * sigma)
	kernel := make([]float64, size*size)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			w := 1.0
			if d2 != 0 {
				w = math.Exp(-d2 * inv)
			}
			kernel[(dy+radius)*size+dx+radius] = w
		}
	}
	return kernel
}

// Returns a copy of the band padded by radius pixels on every side, with reflected boundary values,
// and the width of the padded band
func ReflectPad(data []float32, width, radius int) (padded []float32, paddedWidth int) {
	height := len(data) / width
	paddedWidth = width + 2*radius
	paddedHeight := height + 2*radius
	padded = make([]float32, paddedWidth*paddedHeight)

	cols := make([]int, paddedWidth)
	for px := range cols {
		cols[px] = reflectIndex(px-radius, width)
	}
	for py := 0; py < paddedHeight; py++ {
		y := reflectIndex(py-radius, height)
		src := data[y*width : (y+1)*width]
		dest := padded[py*paddedWidth : (py+1)*paddedWidth]
		for px, x := range cols {
			dest[px] = src[x]
		}
	}
	return padded, paddedWidth
}

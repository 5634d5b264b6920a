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
	"fmt"
	"math"
)

const (
	DefaultSigmaSpatial   = 1.5
	DefaultSigmaIntensity = 0.1
	DefaultWindowSize     = 5
)

// Edge-preserving bilateral smoothing. Each output pixel is the average of its window,
// weighted by a spatial Gaussian on the offset and an intensity Gaussian on the value difference to the center.
type Bilateral struct {
	SigmaSpatial   float64 `json:"sigmaSpatial"`   // Standard deviation of the spatial kernel, in pixels
	SigmaIntensity float64 `json:"sigmaIntensity"` // Standard deviation of the intensity kernel, in normalized units
	WindowSize     int     `json:"windowSize"`     // Odd window edge length in pixels
}

var _ Engine = (*Bilateral)(nil)

func NewBilateral(sigmaSpatial, sigmaIntensity float64, windowSize int) *Bilateral {
	return &Bilateral{SigmaSpatial: sigmaSpatial, SigmaIntensity: sigmaIntensity, WindowSize: windowSize}
}

func NewBilateralDefault() *Bilateral {
	return NewBilateral(DefaultSigmaSpatial, DefaultSigmaIntensity, DefaultWindowSize)
}

func (b *Bilateral) Validate() error {
	if !(b.SigmaSpatial > 0) {
		return fmt.Errorf("%w: bilateral spatial sigma %g must be positive", ErrInvalidConfig, b.SigmaSpatial)
	}
	if !(b.SigmaIntensity > 0) {
		return fmt.Errorf("%w: bilateral intensity sigma %g must be positive", ErrInvalidConfig, b.SigmaIntensity)
	}
	if b.WindowSize <= 0 || b.WindowSize%2 == 0 {
		return fmt.Errorf("%w: bilateral window size %d must be odd and positive", ErrInvalidConfig, b.WindowSize)
	}
	return nil
}

func (b *Bilateral) String() string {
	return fmt.Sprintf("bilateral sigmaSpatial=%.3g sigmaIntensity=%.3g window=%d", b.SigmaSpatial, b.SigmaIntensity, b.WindowSize)
}

// Filters every pixel of the band. The band is reflect-padded by half the window size,
// and the spatial kernel is computed once and shared read-only by all rows.
func (b *Bilateral) Apply(res, data []float32, width int, maxThreads int) {
	height := len(data) / width
	radius := b.WindowSize / 2
	size := b.WindowSize
	kernel := SpatialKernel(radius, b.SigmaSpatial)
	padded, paddedWidth := ReflectPad(data, width, radius)
	sigmaI := b.SigmaIntensity
	invTwoSigmaISq := 1 / (2 * sigmaI * sigmaI)

	parallelRanges(height, maxThreads, func(lower, upper int) {
		for y := lower; y < upper; y++ {
			for x := 0; x < width; x++ {
				center := float64(data[y*width+x])
				sum, weightSum := 0.0, 0.0
				for ky := 0; ky < size; ky++ {
					row := padded[(y+ky)*paddedWidth+x : (y+ky)*paddedWidth+x+size]
					krow := kernel[ky*size : (ky+1)*size]
					for kx, n := range row {
						neighbor := float64(n)
						w := krow[kx]
						if d := neighbor - center; d != 0 {
							w *= math.Exp(-d * d * invTwoSigmaISq)
						}
						sum += w * neighbor
						weightSum += w
					}
				}
				if weightSum > 0 && !math.IsInf(weightSum, 0) && !math.IsInf(sum, 0) && !math.IsNaN(sum) {
					res[y*width+x] = float32(sum / weightSum)
				} else {
					res[y*width+x] = float32(center)
				}
			}
		}
	})
}

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
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/mlnoga/rasterenhance/internal/stats"
)

// Enhances a three-band image on its HCL luminance. All three bands share one normalization,
// so relative channel intensities survive. Hue and chroma are kept, and the enhanced luminance
// is converted back to RGB, clamped to the gamut
func (p *Pipeline) runHCL(bands [][]float32, width int) (out [][]float32, status []BandStatus, err error) {
	r, g, b := bands[0], bands[1], bands[2]
	min, max := commonMinMax(bands)
	status = []BandStatus{{Index: 0, Min: min, Max: max}, {Index: 1, Min: min, Max: max}, {Index: 2, Min: min, Max: max}}

	out = make([][]float32, 3)
	if !(max > min) {
		for i := range bands {
			out[i] = make([]float32, len(bands[i]))
			copy(out[i], bands[i])
			status[i].Skipped = true
		}
		return out, status, nil
	}

	n := len(r)
	scale := float64(max - min)
	hs, cs, ls := make([]float64, n), make([]float64, n), make([]float32, n)
	parallelRanges(n, p.MaxThreads, func(lower, upper int) {
		for i := lower; i < upper; i++ {
			col := colorful.Color{
				R: float64(r[i]-min) / scale,
				G: float64(g[i]-min) / scale,
				B: float64(b[i]-min) / scale,
			}
			h, c, l := col.Hcl()
			if l < 0 {
				l = 0
			} else if l > 1 {
				l = 1
			}
			hs[i], cs[i], ls[i] = h, c, float32(l)
		}
	})

	res := p.initialOutput(ls)
	p.Engine.Apply(res, ls, width, p.MaxThreads)

	for i := range out {
		out[i] = make([]float32, n)
	}
	parallelRanges(n, p.MaxThreads, func(lower, upper int) {
		for i := lower; i < upper; i++ {
			col := colorful.Hcl(hs[i], cs[i], float64(res[i])).Clamped()
			out[0][i] = float32(col.R*scale) + min
			out[1][i] = float32(col.G*scale) + min
			out[2][i] = float32(col.B*scale) + min
		}
	})
	return out, status, nil
}

func commonMinMax(bands [][]float32) (min, max float32) {
	min, max = stats.MinMax(bands[0])
	for _, b := range bands[1:] {
		bMin, bMax := stats.MinMax(b)
		if bMin < min {
			min = bMin
		}
		if bMax > max {
			max = bMax
		}
	}
	return min, max
}

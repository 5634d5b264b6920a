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
	"github.com/mlnoga/rasterenhance/internal/stats"
)

// Maps a band into [0,1] based on its minimum and maximum, returning a newly allocated band.
// NaN samples are missing data: they do not count towards the range and stay NaN.
// If the band is of uniform intensity or has no samples other than NaN, ok is false and norm is nil;
// callers must pass the band through unchanged.
func Normalize(data []float32) (norm []float32, min, max float32, ok bool) {
	min, max = stats.MinMax(data)
	if !(max > min) {
		return nil, min, max, false
	}
	scale := max - min
	norm = make([]float32, len(data))
	for i, d := range data {
		norm[i] = (d - min) / scale
	}
	return norm, min, max, true
}

// Maps a normalized band back to [min,max] in place. No clamping, so filter overshoot survives.
func Denormalize(norm []float32, min, max float32) {
	scale := max - min
	for i, v := range norm {
		norm[i] = v*scale + min
	}
}

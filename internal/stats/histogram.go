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

package stats

import (
	"gonum.org/v1/gonum/floats"
)

// Number of bins of a unit histogram
const UnitBins = 256

// Calculate histogram of data in [0,1] into UnitBins equal-width bins.
// The last bin is closed on the right, so a value of exactly 1 lands in bin UnitBins-1.
// Values outside [0,1] are ignored.
func UnitHistogram(data []float32, bins []float64) {
	for i := range bins {
		bins[i] = 0
	}
	for _, d := range data {
		if !(d >= 0 && d <= 1) {
			continue
		}
		index := int(float64(d) * UnitBins)
		if index >= UnitBins {
			index = UnitBins - 1
		}
		bins[index]++
	}
}

// Caps every bin at the given ceiling, and returns the total mass removed
func ClipHistogram(bins []float64, ceiling float64) (excess float64) {
	for i, b := range bins {
		if b > ceiling {
			excess += b - ceiling
			bins[i] = ceiling
		}
	}
	return excess
}

// Spreads the given mass uniformly across all bins, including bins that were never clipped
func RedistributeUniform(bins []float64, excess float64) {
	floats.AddConst(excess/float64(len(bins)), bins)
}

// Turns a histogram into its cumulative distribution normalized to end at 1, stored in cdf.
// Returns false if the histogram holds no mass; cdf then contains the raw zero sums.
func CumulativeMap(cdf, bins []float64) bool {
	floats.CumSum(cdf, bins)
	total := cdf[len(cdf)-1]
	if !(total > 0) {
		return false
	}
	for i := range cdf {
		cdf[i] /= total
	}
	return true
}

// Maps a value in [0,1] through the cumulative map by linear interpolation between left bin edges i/UnitBins.
// Values below the first edge or above the last edge clamp to the respective end of the map.
func InterpolateUnit(x float32, cdf []float64) float32 {
	n := len(cdf)
	pos := float64(x) * float64(n)
	if !(pos > 0) {
		return float32(cdf[0])
	}
	if pos >= float64(n-1) {
		return float32(cdf[n-1])
	}
	i := int(pos)
	frac := pos - float64(i)
	return float32(cdf[i] + frac*(cdf[i+1]-cdf[i]))
}

// Total mass of a histogram
func Mass(bins []float64) float64 {
	return floats.Sum(bins)
}

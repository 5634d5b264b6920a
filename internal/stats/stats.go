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
	"fmt"
	"math"
	"sort"

	"github.com/valyala/fastrand"
	"gonum.org/v1/gonum/stat"
)

// Number of samples drawn for the approximate median
const medianSamples = 64 * 1024

// Basic statistics on a single band
type Stats struct {
	min    float32 // Minimum
	max    float32 // Maximum
	mean   float32 // Mean (average)
	stdDev float32 // Standard deviation (norm 2, sigma)

	median    float32 // Sampled median, calculated on first use
	hasMedian bool
	data      []float32
}

// Calculate basic statistics for a band
func NewStats(data []float32) *Stats {
	s := &Stats{data: data}
	s.min, s.max = MinMax(data)
	if len(data) == 0 {
		return s
	}
	xs := make([]float64, len(data))
	for i, d := range data {
		xs[i] = float64(d)
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	s.mean, s.stdDev = float32(mean), float32(std)
	return s
}

func (s *Stats) Min() float32    { return s.min }
func (s *Stats) Max() float32    { return s.max }
func (s *Stats) Mean() float32   { return s.mean }
func (s *Stats) StdDev() float32 { return s.stdDev }

// True if the band holds a single value only
func (s *Stats) IsUniform() bool { return s.max == s.min }

func (s *Stats) Median() float32 {
	if !s.hasMedian {
		s.median = FastApproxMedian(s.data, medianSamples)
		s.hasMedian = true
	}
	return s.median
}

// Pretty print basic stats to string
func (s *Stats) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g StdDev %.6g Median %.6g",
		s.min, s.max, s.mean, s.stdDev, s.Median())
}

// Calculate minimum and maximum of given data. Returns zeros for empty data
func MinMax(data []float32) (min, max float32) {
	if len(data) == 0 {
		return 0, 0
	}
	min, max = float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, d := range data {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

// Calculates fast approximate median of the (presumably large) data by subsampling the given number of values
// and taking the median of that. Small inputs are evaluated exactly.
func FastApproxMedian(data []float32, numSamples int) float32 {
	if len(data) == 0 {
		return 0
	}
	var samples []float64
	if len(data) <= numSamples {
		samples = make([]float64, len(data))
		for i, d := range data {
			samples[i] = float64(d)
		}
	} else {
		samples = make([]float64, numSamples)
		max := uint32(len(data))
		rng := fastrand.RNG{}
		for i := range samples {
			samples[i] = float64(data[rng.Uint32n(max)])
		}
	}
	sort.Float64s(samples)
	return float32(stat.Quantile(0.5, stat.Empirical, samples, nil))
}

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
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestBilateralValidate(t *testing.T) {
	tcs := []struct {
		b     Bilateral
		valid bool
	}{
		{Bilateral{1.5, 0.1, 5}, true},
		{Bilateral{0.5, 10, 1}, true},
		{Bilateral{0, 0.1, 5}, false},
		{Bilateral{-1, 0.1, 5}, false},
		{Bilateral{1.5, 0, 5}, false},
		{Bilateral{1.5, 0.1, 4}, false},
		{Bilateral{1.5, 0.1, 0}, false},
		{Bilateral{1.5, 0.1, -3}, false},
	}
	for _, tc := range tcs {
		err := tc.b.Validate()
		if tc.valid && err != nil {
			t.Errorf("%v: unexpected error %v", tc.b, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%v: got %v; want ErrInvalidConfig", tc.b, err)
		}
	}
}

func TestBilateralFlatBand(t *testing.T) {
	width, height := 9, 7
	norm := make([]float32, width*height)
	for i := range norm {
		norm[i] = 0.25
	}
	res := make([]float32, len(norm))
	NewBilateralDefault().Apply(res, norm, width, 3)
	if diff := cmp.Diff(norm, res, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("flat band changed (-want +got):\n%s", diff)
	}
}

// Reference Gaussian blur with reflected boundaries and a normalized kernel
func gaussianBlurReference(data []float32, width, radius int, sigma float64) []float32 {
	height := len(data) / width
	size := 2*radius + 1
	kernel := SpatialKernel(radius, sigma)
	res := make([]float32, len(data))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sum, weightSum := 0.0, 0.0
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					w := kernel[(dy+radius)*size+dx+radius]
					v := float64(data[reflectIndex(y+dy, height)*width+reflectIndex(x+dx, width)])
					sum += w * v
					weightSum += w
				}
			}
			res[y*width+x] = float32(sum / weightSum)
		}
	}
	return res
}

func TestBilateralLargeIntensitySigmaIsGaussianBlur(t *testing.T) {
	width, height := 23, 17
	norm := randomBand(width*height, 1)
	res := make([]float32, len(norm))
	NewBilateral(1.5, 1e6, 5).Apply(res, norm, width, 4)

	want := gaussianBlurReference(norm, width, 2, 1.5)
	if diff := cmp.Diff(want, res, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
		t.Errorf("bilateral with huge intensity sigma differs from Gaussian blur (-want +got):\n%s", diff)
	}
}

func TestBilateralTinySigmaIsIdentity(t *testing.T) {
	width, height := 12, 10
	norm := make([]float32, width*height)
	for i := range norm {
		norm[i] = float32((i*7)%17) / 16 // coarse levels, so distinct neighbors differ by at least 1/16
	}

	tcs := []*Bilateral{
		NewBilateral(1e-3, 0.1, 5),
		NewBilateral(1.5, 1e-4, 5),
		NewBilateral(1e-3, 1e-4, 3),
	}
	for _, b := range tcs {
		res := make([]float32, len(norm))
		b.Apply(res, norm, width, 2)
		if diff := cmp.Diff(norm, res, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
			t.Errorf("%s not the identity (-want +got):\n%s", b, diff)
		}
	}
}

func TestBilateralOutlierDoesNotBleed(t *testing.T) {
	data := make([]float32, 25)
	data[12] = 1000
	out, status, err := NewPipeline(NewBilateral(1.5, 0.01, 5), 2).Run([][]float32{data}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if status[0].Skipped {
		t.Errorf("band with outlier reported as skipped")
	}
	if diff := cmp.Diff(data, out[0], cmpopts.EquateApprox(0, 1e-4)); diff != "" {
		t.Errorf("outlier bled into neighbors (-want +got):\n%s", diff)
	}
}

func TestBilateralSinglePixel(t *testing.T) {
	norm := []float32{0.5}
	res := make([]float32, 1)
	NewBilateralDefault().Apply(res, norm, 1, 1)
	if res[0] != 0.5 {
		t.Errorf("res=%f; want 0.5", res[0])
	}
}

func TestBilateralSmoothsNoise(t *testing.T) {
	width, height := 32, 32
	norm := randomBand(width*height, 1)
	res := make([]float32, len(norm))
	NewBilateral(2, 1, 7).Apply(res, norm, width, 4)

	variance := func(d []float32) float64 {
		mean := 0.0
		for _, v := range d {
			mean += float64(v)
		}
		mean /= float64(len(d))
		s := 0.0
		for _, v := range d {
			s += (float64(v) - mean) * (float64(v) - mean)
		}
		return s / float64(len(d))
	}
	if vIn, vOut := variance(norm), variance(res); !(vOut < vIn/2) {
		t.Errorf("variance %g after smoothing; want below half of %g", vOut, vIn)
	}
	for i, v := range res {
		if math.IsNaN(float64(v)) || v < 0 || v > 1 {
			t.Fatalf("res[%d]=%f outside [0,1]", i, v)
		}
	}
}

func TestBilateralThreadCountInvariant(t *testing.T) {
	width, height := 37, 29
	norm := randomBand(width*height, 1)
	b := NewBilateralDefault()

	single := make([]float32, len(norm))
	b.Apply(single, norm, width, 1)
	multi := make([]float32, len(norm))
	b.Apply(multi, norm, width, 8)

	if diff := cmp.Diff(single, multi); diff != "" {
		t.Errorf("single vs multi-threaded mismatch (-single +multi):\n%s", diff)
	}
}

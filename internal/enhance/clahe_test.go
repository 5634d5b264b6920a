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
	"github.com/valyala/fastrand"
)

func randomBand(n int, scale float32) []float32 {
	rng := fastrand.RNG{}
	data := make([]float32, n)
	for i := range data {
		data[i] = scale * float32(rng.Uint32n(1<<16)) / float32(1<<16)
	}
	return data
}

func TestCLAHEValidate(t *testing.T) {
	tcs := []struct {
		c     CLAHE
		valid bool
	}{
		{CLAHE{8, 2.0}, true},
		{CLAHE{1, 0.01}, true},
		{CLAHE{0, 2.0}, false},
		{CLAHE{-8, 2.0}, false},
		{CLAHE{8, 0}, false},
		{CLAHE{8, -1}, false},
		{CLAHE{8, math.NaN()}, false},
	}
	for _, tc := range tcs {
		err := tc.c.Validate()
		if tc.valid && err != nil {
			t.Errorf("%v: unexpected error %v", tc.c, err)
		}
		if !tc.valid && !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%v: got %v; want ErrInvalidConfig", tc.c, err)
		}
	}
}

func TestCLAHECeiling(t *testing.T) {
	clip := 0.3
	got := NewCLAHE(8, clip).Ceiling()
	if want := clip * 64 / 256; got != want {
		t.Errorf("Ceiling()=%v; want %v", got, want)
	}
	if narrowed := float64(float32(clip)) * 64 / 256; got == narrowed {
		t.Errorf("Ceiling()=%v computed from a float32 clip limit", got)
	}
}

func TestCLAHEConstantBand(t *testing.T) {
	data := make([]float32, 16*16)
	for i := range data {
		data[i] = 100
	}
	out, status, err := NewPipeline(NewCLAHEDefault(), 4).Run([][]float32{data}, 16)
	if err != nil {
		t.Fatal(err)
	}
	if !status[0].Skipped {
		t.Errorf("constant band not reported as skipped")
	}
	if diff := cmp.Diff(data, out[0]); diff != "" {
		t.Errorf("constant band changed (-want +got):\n%s", diff)
	}
}

// With a clip limit too high to ever clip, a single tile is plain histogram equalization
func TestCLAHEUnclippedSingleTile(t *testing.T) {
	epsilon := 1e-4
	data := make([]float32, 64)
	for i := range data {
		data[i] = float32(i)
	}
	out, status, err := NewPipeline(NewCLAHE(8, 1e6), 1).Run([][]float32{data}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if status[0].Skipped || status[0].Min != 0 || status[0].Max != 63 {
		t.Errorf("status=%+v; want processed with range [0,63]", status[0])
	}

	for k, got := range out[0] {
		want := float64(k+1) / 64 * 63
		if k == 63 {
			want = 63
		}
		if math.Abs(float64(got)-want) > epsilon {
			t.Errorf("out[%d]=%f; want %f", k, got, want)
		}
		if k > 0 && got < out[0][k-1] {
			t.Errorf("out[%d]=%f below out[%d]=%f", k, got, k-1, out[0][k-1])
		}
	}
}

// A flat tile inside a non-flat band is equalized like any other tile. Its single bin is clipped
// and the excess is spread over all bins, so the tile maps to the cumulative map at its value
// rather than to itself
func TestCLAHEFlatTileNextToRamp(t *testing.T) {
	width, height := 16, 8
	data := make([]float32, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < 8; x++ {
			data[y*width+x] = 50
			data[y*width+8+x] = float32(y*8+x) * 100 / 63
		}
	}
	out, status, err := NewPipeline(NewCLAHEDefault(), 2).Run([][]float32{data}, width)
	if err != nil {
		t.Fatal(err)
	}
	if status[0].Min != 0 || status[0].Max != 100 {
		t.Fatalf("status=%+v; want range [0,100]", status[0])
	}

	// ceiling 2*64/256=0.5; bin 128 holds all 64 samples, 63.5 excess over 256 bins
	perBin := 63.5 / 256
	want := (129*perBin + 0.5) / 64 * 100
	epsilon := 1e-3
	for y := 0; y < height; y++ {
		for x := 0; x < 8; x++ {
			if got := float64(out[0][y*width+x]); math.Abs(got-want) > epsilon {
				t.Errorf("flat tile out[%d,%d]=%f; want %f", x, y, got, want)
			}
		}
	}
}

func TestCLAHEOutputInUnitRange(t *testing.T) {
	width, height := 40, 24
	norm := randomBand(width*height, 1)
	for _, clip := range []float64{0.1, 1, 2, 4} {
		res := make([]float32, len(norm))
		NewCLAHE(8, clip).Apply(res, norm, width, 4)
		for i, v := range res {
			if v < 0 || v > 1 {
				t.Fatalf("clip=%g res[%d]=%f outside [0,1]", clip, i, v)
			}
		}
	}
}

func TestCLAHEEdgeFill(t *testing.T) {
	width, height := 10, 11
	data := make([]float32, width*height)
	for i := range data {
		data[i] = float32(i) + 5
	}
	min := data[0]
	epsilon := 1e-3

	for _, fill := range []EdgeFill{EdgeFillZero, EdgeFillKeep} {
		p := NewPipeline(NewCLAHE(4, 2.0), 2)
		p.EdgeFill = fill
		out, _, err := p.Run([][]float32{data}, width)
		if err != nil {
			t.Fatal(err)
		}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				if x < 8 && y < 8 {
					continue
				}
				i := y*width + x
				want := min
				if fill == EdgeFillKeep {
					want = data[i]
				}
				if math.Abs(float64(out[0][i]-want)) > epsilon {
					t.Errorf("fill=%s out[%d,%d]=%f; want %f", fill, x, y, out[0][i], want)
				}
			}
		}
	}
}

func TestCLAHEThreadCountInvariant(t *testing.T) {
	width, height := 64, 48
	norm := randomBand(width*height, 1)
	c := NewCLAHE(8, 2.0)

	single := make([]float32, len(norm))
	c.Apply(single, norm, width, 1)
	multi := make([]float32, len(norm))
	c.Apply(multi, norm, width, 8)

	if diff := cmp.Diff(single, multi); diff != "" {
		t.Errorf("single vs multi-threaded mismatch (-single +multi):\n%s", diff)
	}
}

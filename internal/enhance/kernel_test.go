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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReflectIndex(t *testing.T) {
	tcs := []struct {
		i, n, want int
	}{
		{0, 4, 0}, {3, 4, 3},
		{-1, 4, 1}, {-2, 4, 2}, {-3, 4, 3},
		{4, 4, 2}, {5, 4, 1}, {6, 4, 0}, {7, 4, 1},
		{-1, 2, 1}, {2, 2, 0},
		{-2, 1, 0}, {5, 1, 0},
	}
	for _, tc := range tcs {
		if got := reflectIndex(tc.i, tc.n); got != tc.want {
			t.Errorf("reflectIndex(%d,%d)=%d; want %d", tc.i, tc.n, got, tc.want)
		}
	}
}

func TestSpatialKernel(t *testing.T) {
	epsilon := 1e-12
	k := SpatialKernel(1, 1.0)
	e, c := math.Exp(-0.5), math.Exp(-1)
	want := []float64{c, e, c, e, 1, e, c, e, c}
	for i := range want {
		if math.Abs(k[i]-want[i]) > epsilon {
			t.Errorf("k[%d]=%g; want %g", i, k[i], want[i])
		}
	}
}

func TestReflectPad(t *testing.T) {
	data := []float32{
		1, 2, 3,
		4, 5, 6,
	}
	padded, pw := ReflectPad(data, 3, 1)
	if pw != 5 {
		t.Fatalf("paddedWidth=%d; want 5", pw)
	}
	want := []float32{
		5, 4, 5, 6, 5,
		2, 1, 2, 3, 2,
		5, 4, 5, 6, 5,
		2, 1, 2, 3, 2,
	}
	if diff := cmp.Diff(want, padded); diff != "" {
		t.Errorf("ReflectPad mismatch (-want +got):\n%s", diff)
	}
}

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

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandIndex(t *testing.T) {
	tcs := []struct {
		pattern string
		i       int
		want    string
	}{
		{"out%d.fits", 3, "out3.fits"}, {"%auto", 3, "%auto"}, {"", 1, ""}, {"out.fits", 0, "out.fits"},
	}
	for _, tc := range tcs {
		if got := expandIndex(tc.pattern, tc.i); got != tc.want {
			t.Errorf("expandIndex(%s, %d)=%s; want %s", tc.pattern, tc.i, got, tc.want)
		}
	}
}

func TestJobsFromFlags(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.fits", "b.fits"} {
		if err := os.WriteFile(filepath.Join(dir, n), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	pattern := filepath.Join(dir, "*.fits")

	cfg, err := jobsFromFlags("clahe", []string{pattern})
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.FinalizeConfiguration(); err != nil {
		t.Fatal(err)
	}
	if len(cfg.Jobs) != 2 || cfg.Jobs[1].Output != filepath.Join(dir, "b_clahe_clip2.0_tile8.fits") {
		t.Errorf("jobs=%+v", cfg.Jobs)
	}

	if _, err := jobsFromFlags("clahe", []string{filepath.Join(dir, "*.tif")}); err == nil {
		t.Errorf("empty match accepted")
	}

	saved := *out
	defer func() { *out = saved }()
	*out = "single.fits"
	if _, err := jobsFromFlags("bilateral", []string{pattern}); err == nil {
		t.Errorf("two inputs with a single output name accepted")
	}
}

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

package ops

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mlnoga/rasterenhance/internal/raster"
)

func TestFormatOf(t *testing.T) {
	tcs := []struct {
		name string
		want Format
	}{
		{"a.fits", FormatFITS}, {"a.FIT", FormatFITS}, {"a.fts.gz", FormatFITS},
		{"a.tif", FormatTIFF}, {"a.TIFF", FormatTIFF},
		{"a.jpg", FormatJPEG}, {"a.jpeg", FormatJPEG},
		{"a.png", FormatUnknown}, {"noext", FormatUnknown},
	}
	for _, tc := range tcs {
		if got := FormatOf(tc.name); got != tc.want {
			t.Errorf("FormatOf(%s)=%d; want %d", tc.name, got, tc.want)
		}
	}
}

func TestIsPathAllowed(t *testing.T) {
	tcs := map[string]bool{
		"a.fits": true, "sub/a.fits": true, "/etc/passwd": false, "../a.fits": false, "sub/../../a.fits": false,
	}
	for p, want := range tcs {
		if got := isPathAllowed(p); got != want {
			t.Errorf("isPathAllowed(%s)=%v; want %v", p, got, want)
		}
	}
}

func TestMaterializeAllJoinsErrors(t *testing.T) {
	img := raster.NewImageFromNaxisn([]int32{2, 2}, nil)
	errA, errB := errors.New("a failed"), errors.New("b failed")
	ins := []Promise{
		func() (*raster.Image, error) { return nil, errB },
		func() (*raster.Image, error) { return img, nil },
		func() (*raster.Image, error) { return nil, errA },
	}
	outs, err := MaterializeAll(ins, 2, false)
	if len(outs) != 1 || outs[0] != img {
		t.Errorf("got %d outputs; want the one successful image", len(outs))
	}
	if err == nil || err.Error() != "a failed\nb failed" {
		t.Errorf("err=%v; want joined message", err)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("joined error does not wrap its causes")
	}
}

func TestRemoveNils(t *testing.T) {
	a, b := imageWithID(1), imageWithID(2)
	got := RemoveNils([]*raster.Image{nil, a, nil, b})
	if len(got) != 2 || got[0] != a || got[1] != b {
		t.Errorf("got %v", got)
	}
}

func imageWithID(id int) *raster.Image {
	img := raster.NewImageFromNaxisn([]int32{1, 1}, []float32{float32(id)})
	img.ID = id
	return img
}

func TestSaveAndLoadFITS(t *testing.T) {
	dir := t.TempDir()
	c := &Context{Log: io.Discard, MaxThreads: 2}
	img := raster.NewImageFromNaxisn([]int32{3, 2}, []float32{1, 2, 3, 4, 5, 6})
	img.ID = 5
	img.Header.Strings["OBJECT"] = "M42"

	pattern := filepath.Join(dir, "out%d.fits")
	save := NewOpSave(pattern)
	seq := NewOpSequence(save)
	outs, err := seq.MakePromises([]Promise{func() (*raster.Image, error) { return img, nil }}, c)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := MaterializeAll(outs, 1, true); err != nil {
		t.Fatal(err)
	}

	load := NewOpLoad(9, filepath.Join(dir, "out5.fits"))
	outs, err = load.MakePromises(nil, c)
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := MaterializeAll(outs, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(img.Data, loaded[0].Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	if loaded[0].ID != 9 || loaded[0].Header.Strings["OBJECT"] != "M42" {
		t.Errorf("id=%d header=%v", loaded[0].ID, loaded[0].Header.Strings)
	}
}

func TestSaveAndLoadCompressedFITS(t *testing.T) {
	dir := t.TempDir()
	c := &Context{Log: io.Discard, MaxThreads: 1}
	img := raster.NewImageFromNaxisn([]int32{2, 2}, []float32{1, 2, 3, 4})
	fileName := filepath.Join(dir, "out.fits.gz")
	if _, err := NewOpSave(fileName).Apply(img, c); err != nil {
		t.Fatal(err)
	}
	loaded, err := NewOpLoad(1, fileName).Apply(nil, c)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(img.Data, loaded.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}

	for _, name := range []string{"out.tif.gz", "out.jpg.gzip"} {
		if _, err := NewOpSave(filepath.Join(dir, name)).Apply(img, c); err == nil {
			t.Errorf("%s: compressed non-FITS output accepted", name)
		}
	}
}

func TestSandboxRejectsAbsolutePaths(t *testing.T) {
	c := &Context{Log: io.Discard, MaxThreads: 1, Sandboxed: true}
	if _, err := NewOpLoad(0, "/etc/hosts").MakePromises(nil, c); err == nil {
		t.Errorf("absolute load path accepted in sandbox")
	}
	save := NewOpSave("../escape.fits")
	if _, err := save.Apply(imageWithID(1), c); err == nil {
		t.Errorf("parent directory save path accepted in sandbox")
	}
}

func TestSaveUnknownSuffix(t *testing.T) {
	c := &Context{Log: io.Discard, MaxThreads: 1}
	if _, err := NewOpSave(filepath.Join(t.TempDir(), "x.png")).Apply(imageWithID(1), c); err == nil {
		t.Errorf("unknown suffix accepted")
	}
}

func TestSequenceJSONRoundTrip(t *testing.T) {
	seq := NewOpSequence(NewOpLoadMany([]string{"*.fits"}), NewOpForEach(NewOpSave("out%d.fits")))
	bs, err := json.Marshal(seq)
	if err != nil {
		t.Fatal(err)
	}
	var back OpSequence
	if err := json.Unmarshal(bs, &back); err != nil {
		t.Fatal(err)
	}
	if len(back.Steps) != 2 {
		t.Fatalf("got %d steps; want 2", len(back.Steps))
	}
	forEach, ok := back.Steps[1].(*OpForEach)
	if !ok {
		t.Fatalf("step 1 is %T", back.Steps[1])
	}
	save, ok := forEach.Operation.(*OpSave)
	if !ok || save.FilePattern != "out%d.fits" || save.OpUnaryBase.Apply == nil {
		t.Errorf("embedded save=%+v", forEach.Operation)
	}
	if !bytes.Contains(bs, []byte(`"filePatterns":["*.fits"]`)) {
		t.Errorf("marshaled JSON %s lacks file patterns", bs)
	}
}

func TestOperatorTypes(t *testing.T) {
	want := []string{"forEach", "load", "loadMany", "save", "seq"}
	if diff := cmp.Diff(want, OperatorTypes()); diff != "" {
		t.Errorf("registered types mismatch (-want +got):\n%s", diff)
	}
}

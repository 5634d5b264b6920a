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

// Package raster reads and writes multi-band raster images. Pixel data is held band-planar as float32,
// and all metadata not needed for the pixel layout is carried through as an opaque header.
package raster

import (
	"fmt"
	"strings"
)

// A multi-band raster image.
// FITS standard here: https://fits.gsfc.nasa.gov/standard40/fits_standard40aa-le.pdf
// FITS primer here: https://fits.gsfc.nasa.gov/fits_primer.html
type Image struct {
	ID       int    // Sequential ID number, for log output
	FileName string // Original file name, if any, for log output

	Header Header // Metadata profile with all keys, values, comments, history entries etc. Carried through unchanged
	Bitpix int32  // Bits per sample of the source. Positive values are integral, negative floating
	Naxisn []int32 // Axis dimensions. Most quickly varying dimension first, i.e. width, height, bands
	Pixels int32   // Number of samples in the image. Product of Naxisn[]

	Data []float32 // The image data, one band after the other
}

// Creates an image initialized with empty header
func NewImage() *Image {
	return &Image{
		Header: NewHeader(),
	}
}

// Creates an image from given naxisn. Data is not copied, allocated if nil. naxisn is deep copied
func NewImageFromNaxisn(naxisn []int32, data []float32) *Image {
	numPixels := int32(1)
	for _, naxis := range naxisn {
		numPixels *= naxis
	}
	if data == nil {
		data = make([]float32, numPixels)
	}
	return &Image{
		Header: NewHeader(),
		Bitpix: -32,
		Naxisn: append([]int32(nil), naxisn...),
		Pixels: numPixels,
		Data:   data,
	}
}

// Creates an image with the metadata of the given one, and the given bands as data.
// The bands must have the shape of the source image. The header is deep copied
func NewImageFromBands(src *Image, bands [][]float32) *Image {
	data := make([]float32, 0, src.Pixels)
	for _, b := range bands {
		data = append(data, b...)
	}
	return &Image{
		ID:       src.ID,
		FileName: src.FileName,
		Header:   src.Header.Clone(),
		Bitpix:   src.Bitpix,
		Naxisn:   append([]int32(nil), src.Naxisn...),
		Pixels:   src.Pixels,
		Data:     data,
	}
}

func (f *Image) Width() int { return int(f.Naxisn[0]) }

func (f *Image) Height() int {
	if len(f.Naxisn) < 2 {
		return 1
	}
	return int(f.Naxisn[1])
}

// Number of bands. Axes beyond the third are folded into the band count
func (f *Image) NumBands() int {
	n := 1
	for _, naxis := range f.Naxisn[min(2, len(f.Naxisn)):] {
		n *= int(naxis)
	}
	return n
}

// Returns the bands as subslices of the image data, without copying
func (f *Image) Bands() [][]float32 {
	size := f.Width() * f.Height()
	bands := make([][]float32, f.NumBands())
	for i := range bands {
		bands[i] = f.Data[i*size : (i+1)*size]
	}
	return bands
}

func (f *Image) DimensionsToString() string {
	b := strings.Builder{}
	for i, naxis := range f.Naxisn {
		if i > 0 {
			fmt.Fprintf(&b, "x%d", naxis)
		} else {
			fmt.Fprintf(&b, "%d", naxis)
		}
	}
	return b.String()
}

// Checks that the axes describe a non-empty image, and the data matches them
func (f *Image) Validate() error {
	if len(f.Naxisn) == 0 {
		return fmt.Errorf("%d: image has no axes", f.ID)
	}
	pixels := int32(1)
	for i, naxis := range f.Naxisn {
		if naxis <= 0 {
			return fmt.Errorf("%d: axis %d has invalid size %d", f.ID, i+1, naxis)
		}
		pixels *= naxis
	}
	if pixels != f.Pixels || int(pixels) != len(f.Data) {
		return fmt.Errorf("%d: dimensions %s do not match %d data values", f.ID, f.DimensionsToString(), len(f.Data))
	}
	return nil
}

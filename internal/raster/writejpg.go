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

package raster

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"os"

	"golang.org/x/image/draw"
)

// Write an 8-bit JPG preview of the image, mapping [min,max] with the given gamma.
// If previewWidth is positive and below the image width, the preview is downscaled to it
func (f *Image) WriteJPGToFile(fileName string, min, max, gamma float32, quality, previewWidth int) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := f.WriteJPG(writer, min, max, gamma, quality, previewWidth); err != nil {
		return err
	}
	return writer.Flush()
}

// Write an 8-bit JPG preview of the image, see WriteJPGToFile
func (f *Image) WriteJPG(writer io.Writer, min, max, gamma float32, quality, previewWidth int) error {
	if max <= min {
		return fmt.Errorf("%d: invalid export range [%g,%g]", f.ID, min, max)
	}
	img := f.toImage8(newUnitMapper(min, max, gamma))
	if previewWidth > 0 && previewWidth < f.Width() {
		img = scaleToWidth(img, previewWidth)
	}
	return jpeg.Encode(writer, img, &jpeg.Options{Quality: quality})
}

// Converts to an 8-bit Go image. Three-band images become RGB, all others grayscale from the first band
func (f *Image) toImage8(m unitMapper) draw.Image {
	width, height := f.Width(), f.Height()
	rect := image.Rect(0, 0, width, height)
	bands := f.Bands()

	if len(bands) == 3 {
		rgb := image.NewRGBA(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				rgb.SetRGBA(x, y, color.RGBA{
					R: uint8(m.unit(bands[0][i]) * 255),
					G: uint8(m.unit(bands[1][i]) * 255),
					B: uint8(m.unit(bands[2][i]) * 255),
					A: 255,
				})
			}
		}
		return rgb
	}

	gray := image.NewGray(rect)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gray.SetGray(x, y, color.Gray{Y: uint8(m.unit(bands[0][y*width+x]) * 255)})
		}
	}
	return gray
}

// Scales an image to the given width, keeping the aspect ratio
func scaleToWidth(src draw.Image, width int) draw.Image {
	b := src.Bounds()
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	rect := image.Rect(0, 0, width, height)

	var dst draw.Image
	if _, isGray := src.(*image.Gray); isGray {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, src, b, draw.Src, nil)
	return dst
}

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
	"io"
	"math"
	"os"

	"golang.org/x/image/tiff"
)

// Write an image to 16-bit TIFF, mapping [min,max] to the full sample range with the given gamma.
// Three-band images are written as RGB, all others as grayscale from the first band
func (f *Image) WriteTIFF16ToFile(fileName string, min, max, gamma float32) error {
	file, err := os.Create(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if err := f.WriteTIFF16(writer, min, max, gamma); err != nil {
		return err
	}
	return writer.Flush()
}

// Write an image to 16-bit TIFF, mapping [min,max] to the full sample range with the given gamma.
func (f *Image) WriteTIFF16(writer io.Writer, min, max, gamma float32) error {
	if max <= min {
		return fmt.Errorf("%d: invalid export range [%g,%g]", f.ID, min, max)
	}
	width, height := f.Width(), f.Height()
	rect := image.Rect(0, 0, width, height)
	bands := f.Bands()
	m := newUnitMapper(min, max, gamma)

	var img image.Image
	if len(bands) == 3 {
		rgb := image.NewRGBA64(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := y*width + x
				rgb.SetRGBA64(x, y, color.RGBA64{
					R: uint16(m.unit(bands[0][i]) * 65535),
					G: uint16(m.unit(bands[1][i]) * 65535),
					B: uint16(m.unit(bands[2][i]) * 65535),
					A: 65535,
				})
			}
		}
		img = rgb
	} else {
		gray := image.NewGray16(rect)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				gray.SetGray16(x, y, color.Gray16{Y: uint16(m.unit(bands[0][y*width+x]) * 65535)})
			}
		}
		img = gray
	}
	return tiff.Encode(writer, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// Read a color or grayscale TIFF image. Samples keep their integer range, i.e. [0,255] for 8-bit
// and [0,65535] for 16-bit images
func (f *Image) ReadTIFF(reader io.Reader) error {
	t, err := tiff.Decode(reader)
	if err != nil {
		return fmt.Errorf("%d: %w", f.ID, err)
	}

	width, height := t.Bounds().Dx(), t.Bounds().Dy()
	bitpix, channels := colorModelToBitpixAndChannels(t.ColorModel())
	if channels == 0 {
		return fmt.Errorf("%d: unsupported TIFF color model", f.ID)
	}
	scale := float32(1)
	if bitpix == 8 {
		scale = 1.0 / 257 // color.Color values are 16-bit
	}

	f.Header = NewHeader()
	f.Bitpix = bitpix
	f.Naxisn = []int32{int32(width), int32(height), channels}
	if channels == 1 {
		f.Naxisn = f.Naxisn[:2]
	}
	f.Pixels = int32(width) * int32(height) * channels
	f.Data = make([]float32, f.Pixels)
	size := width * height

	minX, minY := t.Bounds().Min.X, t.Bounds().Min.Y
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := t.At(minX+x, minY+y)
			i := y*width + x
			if channels == 1 {
				f.Data[i] = float32(color.Gray16Model.Convert(c).(color.Gray16).Y) * scale
			} else {
				nc := color.NRGBA64Model.Convert(c).(color.NRGBA64)
				f.Data[i] = float32(nc.R) * scale
				f.Data[i+size] = float32(nc.G) * scale
				f.Data[i+2*size] = float32(nc.B) * scale
			}
		}
	}
	return nil
}

func colorModelToBitpixAndChannels(m color.Model) (bitpix, channels int32) {
	switch m {
	case color.RGBAModel, color.NRGBAModel:
		return 8, 3
	case color.RGBA64Model, color.NRGBA64Model:
		return 16, 3
	case color.AlphaModel, color.GrayModel:
		return 8, 1
	case color.Alpha16Model, color.Gray16Model:
		return 16, 1
	default:
		return 0, 0
	}
}

// Maps values from [min,max] into [0,1] with gamma, clamping outliers and replacing NaNs with zeros
type unitMapper struct {
	min, scale float32
	gammaInv   float64
}

func newUnitMapper(min, max, gamma float32) unitMapper {
	return unitMapper{min: min, scale: 1 / (max - min), gammaInv: float64(1 / gamma)}
}

func (m unitMapper) unit(v float32) float32 {
	v = (v - m.min) * m.scale
	if math.IsNaN(float64(v)) || v < 0 {
		return 0
	}
	if v > 1 {
		v = 1
	}
	if m.gammaInv != 1.0 {
		v = float32(math.Pow(float64(v), m.gammaInv))
	}
	return v
}

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
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"strconv"
	"strings"
)

// Reads the image from the file with the given name, choosing the format by suffix
func NewImageFromFile(fileName string, id int, logWriter io.Writer) (i *Image, err error) {
	i = NewImage()
	i.ID = id
	return i, i.ReadFile(fileName, logWriter)
}

// Read image data from the file with the given name. Reads TIFF if a .tif or .tiff suffix is present,
// and FITS otherwise. Decompresses gzip if .gz or .gzip suffix is present.
func (f *Image) ReadFile(fileName string, logWriter io.Writer) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	var r io.Reader = bufio.NewReader(file)
	f.FileName = fileName

	switch strings.ToLower(path.Ext(fileName)) {
	case ".tif", ".tiff":
		return f.ReadTIFF(r)
	case ".gz", ".gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("%d: %w", f.ID, err)
		}
		defer gz.Close()
		r = gz
	}
	return f.Read(r, logWriter)
}

func (f *Image) popHeaderInt32(key string) (res int32, err error) {
	if val, ok := f.Header.Ints[key]; ok {
		delete(f.Header.Ints, key)
		return val, nil
	}
	return 0, fmt.Errorf("%d: FITS header does not contain key %s", f.ID, key)
}

func (f *Image) popHeaderInt32OrFloat(key string) (res float32, ok bool) {
	if val, ok := f.Header.Ints[key]; ok {
		delete(f.Header.Ints, key)
		return float32(val), true
	} else if val, ok := f.Header.Floats[key]; ok {
		delete(f.Header.Floats, key)
		return val, true
	}
	return 0, false
}

// Reads a FITS primary header and data unit. Keys describing the data layout are consumed,
// all other keys stay in the header
func (f *Image) Read(r io.Reader, logWriter io.Writer) (err error) {
	f.Header = NewHeader()
	if err = f.Header.read(r, f.ID, logWriter); err != nil {
		return err
	}

	// check mandatory fields as per standard
	if !f.Header.Bools["SIMPLE"] {
		return fmt.Errorf("%d: Not a valid FITS file; SIMPLE=T missing in header", f.ID)
	}
	delete(f.Header.Bools, "SIMPLE")
	delete(f.Header.Bools, "EXTEND")

	if f.Bitpix, err = f.popHeaderInt32("BITPIX"); err != nil {
		return err
	}
	var naxis int32
	if naxis, err = f.popHeaderInt32("NAXIS"); err != nil {
		return err
	}
	if naxis <= 0 {
		return fmt.Errorf("%d: FITS file has no image data, NAXIS=%d", f.ID, naxis)
	}
	f.Naxisn = make([]int32, naxis)
	f.Pixels = int32(1)
	for i := int32(1); i <= naxis; i++ {
		name := "NAXIS" + strconv.FormatInt(int64(i), 10)
		var nai int32
		if nai, err = f.popHeaderInt32(name); err != nil {
			return err
		}
		f.Naxisn[i-1] = nai
		f.Pixels *= nai
	}

	bzero, ok := f.popHeaderInt32OrFloat("BZERO")
	if !ok {
		bzero = 0
	}
	bscale, ok := f.popHeaderInt32OrFloat("BSCALE")
	if !ok {
		bscale = 1
	}
	return f.readData(r, float64(bzero), float64(bscale), logWriter)
}

// Decodes one big-endian sample of the given FITS data type
type sampleDecoder func(b []byte) float64

func decoderFor(bitpix int32) (bytesPerValue int, dec sampleDecoder, lossy bool, err error) {
	switch bitpix {
	case 8:
		return 1, func(b []byte) float64 { return float64(b[0]) }, false, nil
	case 16:
		return 2, func(b []byte) float64 { return float64(int16(binary.BigEndian.Uint16(b))) }, false, nil
	case 32:
		return 4, func(b []byte) float64 { return float64(int32(binary.BigEndian.Uint32(b))) }, true, nil
	case 64:
		return 8, func(b []byte) float64 { return float64(int64(binary.BigEndian.Uint64(b))) }, true, nil
	case -32:
		return 4, func(b []byte) float64 { return float64(math.Float32frombits(binary.BigEndian.Uint32(b))) }, false, nil
	case -64:
		return 8, func(b []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(b)) }, true, nil
	}
	return 0, nil, false, fmt.Errorf("unknown BITPIX value %d", bitpix)
}

const bufLen int = 16 * 1024 // input buffer length for reading from file

// Batched read of image data, converting from network byte order to float32 and applying bzero and bscale
func (f *Image) readData(r io.Reader, bzero, bscale float64, logWriter io.Writer) error {
	bytesPerValue, dec, lossy, err := decoderFor(f.Bitpix)
	if err != nil {
		return fmt.Errorf("%d: %w", f.ID, err)
	}
	if lossy {
		fmt.Fprintf(logWriter, "%d: Warning: loss of precision converting BITPIX %d to float32 values\n", f.ID, f.Bitpix)
	}

	f.Data = make([]float32, int(f.Pixels))
	buf := make([]byte, bufLen)
	for dataIndex := 0; dataIndex < len(f.Data); {
		bytesToRead := (len(f.Data) - dataIndex) * bytesPerValue
		if bytesToRead > bufLen {
			bytesToRead = bufLen
		}
		if _, err := io.ReadFull(r, buf[:bytesToRead]); err != nil {
			return fmt.Errorf("%d: reading FITS data: %w", f.ID, err)
		}
		for i := 0; i < bytesToRead; i += bytesPerValue {
			f.Data[dataIndex] = float32(dec(buf[i:i+bytesPerValue])*bscale + bzero)
			dataIndex++
		}
	}
	return nil
}

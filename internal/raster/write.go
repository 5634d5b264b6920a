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

// Writes an image to a FITS file with given filename. Compresses with gzip if a .gz or .gzip suffix is present.
// Creates/overwrites the file if necessary
func (f *Image) WriteFile(fileName string) error {
	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	switch strings.ToLower(path.Ext(fileName)) {
	case ".gz", ".gzip":
		gz := gzip.NewWriter(writer)
		if err := f.Write(gz); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return err
		}
	default:
		if err := f.Write(writer); err != nil {
			return err
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// Writes an image as FITS with 32-bit floating point samples. All non-structural header keys are carried over
func (f *Image) Write(w io.Writer) error {
	// Build header in string buffer
	sb := strings.Builder{}
	writeBool(&sb, "SIMPLE", true, "FITS standard 4.0")
	writeInt32(&sb, "BITPIX", -32, "32-bit floating point")
	writeInt32(&sb, "NAXIS", int32(len(f.Naxisn)), "[1] Number of axis")
	for i := 0; i < len(f.Naxisn); i++ {
		writeInt32(&sb, fmt.Sprintf("NAXIS%d", i+1), f.Naxisn[i], "[1] Axis size")
	}
	f.Header.write(&sb)
	writeCard(&sb, "END")

	// Pad current header block with spaces if necessary
	if bytesInHeaderBlock := sb.Len() % fitsBlockSize; bytesInHeaderBlock > 0 {
		sb.WriteString(strings.Repeat(" ", fitsBlockSize-bytesInHeaderBlock))
	}
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	// Write payload data, replacing NaNs with zeros for compatibility
	if err := writeFloat32Array(w, f.Data, true); err != nil {
		return err
	}

	// Pad data block with zeros if necessary
	if bytesInDataBlock := (len(f.Data) * 4) % fitsBlockSize; bytesInDataBlock > 0 {
		if _, err := w.Write(make([]byte, fitsBlockSize-bytesInDataBlock)); err != nil {
			return err
		}
	}
	return nil
}

// Writes a header card, padded or truncated to the line size
func writeCard(w io.Writer, card string) {
	if len(card) > HeaderLineSize {
		card = card[:HeaderLineSize]
	}
	fmt.Fprintf(w, "%-80s", card)
}

func keyValueCard(key, value, comment string) string {
	if len(key) > 8 {
		key = key[0:8]
	}
	card := fmt.Sprintf("%-8s= %20s", key, value)
	if comment != "" {
		card += " / " + comment
	}
	return card
}

// Writes a FITS header boolean value
func writeBool(w io.Writer, key string, value bool, comment string) {
	v := "F"
	if value {
		v = "T"
	}
	writeCard(w, keyValueCard(key, v, comment))
}

// Writes a FITS header int32 value
func writeInt32(w io.Writer, key string, value int32, comment string) {
	writeCard(w, keyValueCard(key, strconv.FormatInt(int64(value), 10), comment))
}

// Writes a FITS header float32 value. Always carries a decimal point, so it reads back as a float
func writeFloat32(w io.Writer, key string, value float32, comment string) {
	writeCard(w, keyValueCard(key, formatFloat(value), comment))
}

func formatFloat(value float32) string {
	s := strconv.FormatFloat(float64(value), 'G', -1, 32)
	if strings.Contains(s, ".") {
		return s
	}
	if e := strings.IndexByte(s, 'E'); e >= 0 {
		return s[:e] + ".0" + s[e:]
	}
	return s + ".0"
}

// Writes a FITS header string value. Quotes are dropped, and values longer than a single card are truncated
func writeString(w io.Writer, key, value, comment string) {
	if len(key) > 8 {
		key = key[0:8]
	}
	value = strings.ReplaceAll(value, "'", "")
	if len(value) > HeaderLineSize-12 {
		value = value[:HeaderLineSize-12]
	}
	card := fmt.Sprintf("%-8s= '%-8s'", key, value)
	if comment != "" {
		card += " / " + comment
	}
	writeCard(w, card)
}

// Writes a FITS header date value, unquoted as read
func writeDate(w io.Writer, key, value string) {
	if len(key) > 8 {
		key = key[0:8]
	}
	writeCard(w, fmt.Sprintf("%-8s= %s", key, value))
}

// Writes FITS binary body data in network byte order.
// Optionally replaces NaNs with zeros for compatibility with other software
func writeFloat32Array(w io.Writer, data []float32, replaceNaNs bool) error {
	buf := make([]byte, bufLen)

	for block := 0; block < len(data); block += (bufLen >> 2) {
		size := len(data) - block
		if size > (bufLen >> 2) {
			size = (bufLen >> 2)
		}

		for offset := 0; offset < size; offset++ {
			d := data[block+offset]
			if replaceNaNs && math.IsNaN(float64(d)) {
				d = 0
			}
			binary.BigEndian.PutUint32(buf[offset<<2:], math.Float32bits(d))
		}
		if _, err := w.Write(buf[:(size << 2)]); err != nil {
			return err
		}
	}
	return nil
}

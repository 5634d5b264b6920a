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

// Package enhance implements spatially adaptive enhancement of raster bands:
// tiled contrast-limited adaptive histogram equalization and the bilateral filter,
// and a pipeline applying either of them independently to every band of an image.
package enhance

import (
	"errors"
)

// Returned, wrapped, for every rejected filter or pipeline configuration
var ErrInvalidConfig = errors.New("invalid configuration")

// An enhancement engine working on a single band normalized to [0,1].
type Engine interface {
	// Checks the parameters. Must be called, and succeed, before Apply
	Validate() error

	// Processes the normalized band data of given width, writing into res. res has the same
	// length as data. Uses up to maxThreads goroutines
	Apply(res, data []float32, width int, maxThreads int)

	// Short human-readable description for log output
	String() string
}

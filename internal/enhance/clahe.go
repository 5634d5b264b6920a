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
	"fmt"
	"math"

	"github.com/mlnoga/rasterenhance/internal/stats"
)

const (
	DefaultTileSize  = 8
	DefaultClipLimit = 2.0
)

// Tiled contrast-limited adaptive histogram equalization.
// Each tile is equalized with its own clipped histogram; there is no interpolation between tiles.
type CLAHE struct {
	TileSize  int     `json:"tileSize"`  // Edge length of the square tiles in pixels
	ClipLimit float64 `json:"clipLimit"` // Bin ceiling as a multiple of the mean bin count of a full tile
}

var _ Engine = (*CLAHE)(nil)

func NewCLAHE(tileSize int, clipLimit float64) *CLAHE {
	return &CLAHE{TileSize: tileSize, ClipLimit: clipLimit}
}

func NewCLAHEDefault() *CLAHE { return NewCLAHE(DefaultTileSize, DefaultClipLimit) }

func (c *CLAHE) Validate() error {
	if c.TileSize <= 0 {
		return fmt.Errorf("%w: CLAHE tile size %d must be positive", ErrInvalidConfig, c.TileSize)
	}
	if !(c.ClipLimit > 0) {
		return fmt.Errorf("%w: CLAHE clip limit %g must be positive", ErrInvalidConfig, c.ClipLimit)
	}
	return nil
}

func (c *CLAHE) String() string {
	return fmt.Sprintf("CLAHE tile=%d clip=%.3g", c.TileSize, c.ClipLimit)
}

// Per-bin ceiling. Uses the nominal tile area, which is also applied to any edge tile
func (c *CLAHE) Ceiling() float64 {
	return c.ClipLimit * float64(c.TileSize*c.TileSize) / stats.UnitBins
}

// Number of tile rows and columns. The grid truncates, trailing rows and columns are not covered
func (c *CLAHE) Grid(width, height int) (tileRows, tileCols int) {
	return height / c.TileSize, width / c.TileSize
}

// Equalizes every tile of the grid. Pixels of res outside the grid are left untouched
func (c *CLAHE) Apply(res, data []float32, width int, maxThreads int) {
	height := len(data) / width
	tileRows, tileCols := c.Grid(width, height)
	ceiling := c.Ceiling()

	parallelRanges(tileRows*tileCols, maxThreads, func(lower, upper int) {
		tile := make([]float32, 0, c.TileSize*c.TileSize)
		bins := make([]float64, stats.UnitBins)
		cdf := make([]float64, stats.UnitBins)
		for t := lower; t < upper; t++ {
			c.equalizeTile(res, data, width, t/tileCols, t%tileCols, ceiling, tile, bins, cdf)
		}
	})
}

// Equalizes the tile at the given grid position. tile, bins and cdf are scratchpads
func (c *CLAHE) equalizeTile(res, data []float32, width, tileRow, tileCol int, ceiling float64, tile []float32, bins, cdf []float64) {
	height := len(data) / width
	rowStart, colStart := tileRow*c.TileSize, tileCol*c.TileSize
	rowEnd, colEnd := rowStart+c.TileSize, colStart+c.TileSize
	if rowEnd > height {
		rowEnd = height
	}
	if colEnd > width {
		colEnd = width
	}

	tile = tile[:0]
	for y := rowStart; y < rowEnd; y++ {
		tile = append(tile, data[y*width+colStart:y*width+colEnd]...)
	}

	stats.UnitHistogram(tile, bins)
	excess := stats.ClipHistogram(bins, ceiling)
	stats.RedistributeUniform(bins, excess)
	haveMass := stats.CumulativeMap(cdf, bins)

	i := 0
	for y := rowStart; y < rowEnd; y++ {
		for x := colStart; x < colEnd; x++ {
			v := tile[i]
			if haveMass && !math.IsNaN(float64(v)) { // NaN is missing data, kept as is
				v = stats.InterpolateUnit(v, cdf)
			}
			res[y*width+x] = v
			i++
		}
	}
}

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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mlnoga/rasterenhance/internal/ops"
	"github.com/mlnoga/rasterenhance/internal/raster"
	"github.com/mlnoga/rasterenhance/internal/stats"
)

// Logs per-band statistics. Takes one input, produces the unchanged input as output
type OpStats struct {
	ops.OpUnaryBase
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpStatsDefault() }) } // register the operator for JSON decoding

func NewOpStatsDefault() *OpStats { return NewOpStats(true) }

func NewOpStats(active bool) *OpStats {
	op := OpStats{
		OpUnaryBase: ops.OpUnaryBase{OpBase: ops.OpBase{Type: "stats", Active: active}},
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpStats) UnmarshalJSON(data []byte) error {
	type defaults OpStats
	def := defaults(*NewOpStatsDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpStats(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

// Returns statistics for every band of the image
func BandStats(f *raster.Image) []*stats.Stats {
	bands := f.Bands()
	res := make([]*stats.Stats, len(bands))
	for i, b := range bands {
		res[i] = stats.NewStats(b)
	}
	return res
}

func (op *OpStats) Apply(f *raster.Image, c *ops.Context) (result *raster.Image, err error) {
	sb := strings.Builder{}
	for i, s := range BandStats(f) {
		uniform := ""
		if s.IsUniform() {
			uniform = " (uniform)"
		}
		fmt.Fprintf(&sb, "%d: Band %d: %v%s\n", f.ID, i, s, uniform)
	}
	fmt.Fprint(c.Log, sb.String()) // one write, so lines of concurrent images do not interleave
	return f, nil
}

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

// Package enhance provides operators applying the band enhancement pipeline to raster images
package enhance

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	en "github.com/mlnoga/rasterenhance/internal/enhance"
	"github.com/mlnoga/rasterenhance/internal/ops"
	"github.com/mlnoga/rasterenhance/internal/raster"
)

// An enhancement operator which can derive an output file name from its parameters
type Suffixer interface {
	ops.Operator
	OutputSuffix() string
	Validate() error
}

// Options shared by all enhancement operators
type PipelineOptions struct {
	EdgeFill  string `json:"edgeFill"`  // zero or keep
	ColorMode string `json:"colorMode"` // bands or hcl
}

func (po *PipelineOptions) newPipeline(engine en.Engine, c *ops.Context) (*en.Pipeline, error) {
	edgeFill, err := en.ParseEdgeFill(po.EdgeFill)
	if err != nil {
		return nil, err
	}
	colorMode, err := en.ParseColorMode(po.ColorMode)
	if err != nil {
		return nil, err
	}
	p := &en.Pipeline{
		Engine:    engine,
		EdgeFill:  edgeFill,
		ColorMode: colorMode,
	}
	if c != nil {
		p.MaxThreads, p.MemoryMB = c.MaxThreads, c.MemoryMB
	}
	return p, p.Validate()
}

// Runs the pipeline on all bands of the image, logging skipped bands. Returns a new image
// with the metadata of the source and a history entry describing the step
func applyPipeline(f *raster.Image, p *en.Pipeline, c *ops.Context) (*raster.Image, error) {
	fmt.Fprintf(c.Log, "%d: Applying %s to %d bands with edge fill %s and color mode %s\n",
		f.ID, p.Engine, f.NumBands(), p.EdgeFill, p.ColorMode)

	out, status, err := p.Run(f.Bands(), f.Width())
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	for _, s := range status {
		if s.Skipped {
			fmt.Fprintf(c.Log, "%d: Warning: band %d is of uniform intensity %.4g, skipping\n", f.ID, s.Index, s.Min)
		}
	}

	res := raster.NewImageFromBands(f, out)
	res.Header.History = append(res.Header.History, "rasterenhance: "+p.Engine.String())
	return res, nil
}

// Formats a parameter for file names: integral values keep one decimal, e.g. 2.0, others use
// the shortest representation, e.g. 0.1
func FormatParam(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Derives an output file name by appending the suffix to the base name of the input.
// Keeps the input extension, dropping any compression suffix
func AutoName(input, suffix string) string {
	lower := strings.ToLower(input)
	for _, gz := range []string{".gz", ".gzip"} {
		if strings.HasSuffix(lower, gz) {
			input = input[:len(input)-len(gz)]
			break
		}
	}
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + suffix + ext
}

// Tiled contrast-limited adaptive histogram equalization. Takes one input, produces one output
type OpCLAHE struct {
	ops.OpUnaryBase
	TileSize  int     `json:"tileSize"`
	ClipLimit float64 `json:"clipLimit"`
	PipelineOptions
}

var _ Suffixer = (*OpCLAHE)(nil)

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpCLAHEDefault() }) } // register the operator for JSON decoding

func NewOpCLAHEDefault() *OpCLAHE { return NewOpCLAHE(en.DefaultTileSize, en.DefaultClipLimit) }

func NewOpCLAHE(tileSize int, clipLimit float64) *OpCLAHE {
	op := OpCLAHE{
		OpUnaryBase:     ops.OpUnaryBase{OpBase: ops.OpBase{Type: "clahe", Active: true}},
		TileSize:        tileSize,
		ClipLimit:       clipLimit,
		PipelineOptions: PipelineOptions{EdgeFill: string(en.EdgeFillZero), ColorMode: string(en.ColorModeBands)},
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpCLAHE) UnmarshalJSON(data []byte) error {
	type defaults OpCLAHE
	def := defaults(*NewOpCLAHEDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpCLAHE(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpCLAHE) pipeline(c *ops.Context) (*en.Pipeline, error) {
	return op.newPipeline(en.NewCLAHE(op.TileSize, op.ClipLimit), c)
}

// Checks the parameters without processing anything
func (op *OpCLAHE) Validate() error {
	_, err := op.pipeline(nil)
	return err
}

func (op *OpCLAHE) OutputSuffix() string {
	return fmt.Sprintf("_clahe_clip%s_tile%d", FormatParam(op.ClipLimit), op.TileSize)
}

func (op *OpCLAHE) Apply(f *raster.Image, c *ops.Context) (result *raster.Image, err error) {
	p, err := op.pipeline(c)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	return applyPipeline(f, p, c)
}

// Edge-preserving bilateral smoothing. Takes one input, produces one output
type OpBilateral struct {
	ops.OpUnaryBase
	SigmaSpatial   float64 `json:"sigmaSpatial"`
	SigmaIntensity float64 `json:"sigmaIntensity"`
	WindowSize     int     `json:"windowSize"`
	PipelineOptions
}

var _ Suffixer = (*OpBilateral)(nil)

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpBilateralDefault() }) } // register the operator for JSON decoding

func NewOpBilateralDefault() *OpBilateral {
	return NewOpBilateral(en.DefaultSigmaSpatial, en.DefaultSigmaIntensity, en.DefaultWindowSize)
}

func NewOpBilateral(sigmaSpatial, sigmaIntensity float64, windowSize int) *OpBilateral {
	op := OpBilateral{
		OpUnaryBase:     ops.OpUnaryBase{OpBase: ops.OpBase{Type: "bilateral", Active: true}},
		SigmaSpatial:    sigmaSpatial,
		SigmaIntensity:  sigmaIntensity,
		WindowSize:      windowSize,
		PipelineOptions: PipelineOptions{EdgeFill: string(en.EdgeFillZero), ColorMode: string(en.ColorModeBands)},
	}
	op.OpUnaryBase.Apply = op.Apply // assign class method to superclass abstract method
	return &op
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpBilateral) UnmarshalJSON(data []byte) error {
	type defaults OpBilateral
	def := defaults(*NewOpBilateralDefault())
	if err := json.Unmarshal(data, &def); err != nil {
		return err
	}
	*op = OpBilateral(def)
	op.OpUnaryBase.Apply = op.Apply // make method receiver point to op, not def
	return nil
}

func (op *OpBilateral) pipeline(c *ops.Context) (*en.Pipeline, error) {
	return op.newPipeline(en.NewBilateral(op.SigmaSpatial, op.SigmaIntensity, op.WindowSize), c)
}

// Checks the parameters without processing anything
func (op *OpBilateral) Validate() error {
	_, err := op.pipeline(nil)
	return err
}

func (op *OpBilateral) OutputSuffix() string {
	return fmt.Sprintf("_bilateral_ss%s_si%s", FormatParam(op.SigmaSpatial), FormatParam(op.SigmaIntensity))
}

func (op *OpBilateral) Apply(f *raster.Image, c *ops.Context) (result *raster.Image, err error) {
	p, err := op.pipeline(c)
	if err != nil {
		return nil, fmt.Errorf("%d: %w", f.ID, err)
	}
	return applyPipeline(f, p, c)
}

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
	"strings"

	"golang.org/x/sync/errgroup"
)

// Policy for pixels the engine does not write, i.e. those outside the CLAHE tile grid
type EdgeFill string

const (
	EdgeFillZero EdgeFill = "zero" // start from zero in the normalized domain, so uncovered pixels become the band minimum
	EdgeFillKeep EdgeFill = "keep" // uncovered pixels keep their input values
)

func ParseEdgeFill(s string) (EdgeFill, error) {
	switch e := EdgeFill(strings.ToLower(s)); e {
	case "":
		return EdgeFillZero, nil
	case EdgeFillZero, EdgeFillKeep:
		return e, nil
	}
	return "", fmt.Errorf("%w: unknown edge fill '%s', expecting zero or keep", ErrInvalidConfig, s)
}

// How the bands of an image are fed to the engine
type ColorMode string

const (
	ColorModeBands ColorMode = "bands" // every band independently
	ColorModeHCL   ColorMode = "hcl"   // three bands as RGB, engine applied to HCL luminance only
)

func ParseColorMode(s string) (ColorMode, error) {
	switch m := ColorMode(strings.ToLower(s)); m {
	case "":
		return ColorModeBands, nil
	case ColorModeBands, ColorModeHCL:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown color mode '%s', expecting bands or hcl", ErrInvalidConfig, s)
}

// Outcome for one band of a pipeline run
type BandStatus struct {
	Index   int     `json:"index"`
	Skipped bool    `json:"skipped"` // band was of uniform intensity and passed through unchanged
	Min     float32 `json:"min"`
	Max     float32 `json:"max"`
}

// Applies one engine independently to every band of an image
type Pipeline struct {
	Engine     Engine
	EdgeFill   EdgeFill
	ColorMode  ColorMode
	MaxThreads int // upper bound on goroutines; <=1 runs single-threaded
	MemoryMB   int // memory limit bounding concurrently processed bands; <=0 for unbounded
}

func NewPipeline(engine Engine, maxThreads int) *Pipeline {
	return &Pipeline{Engine: engine, EdgeFill: EdgeFillZero, ColorMode: ColorModeBands, MaxThreads: maxThreads}
}

// Checks the pipeline configuration, including the engine parameters
func (p *Pipeline) Validate() error {
	if p.Engine == nil {
		return fmt.Errorf("%w: no enhancement engine configured", ErrInvalidConfig)
	}
	if err := p.Engine.Validate(); err != nil {
		return err
	}
	if _, err := ParseEdgeFill(string(p.EdgeFill)); err != nil {
		return err
	}
	if _, err := ParseColorMode(string(p.ColorMode)); err != nil {
		return err
	}
	return nil
}

// Enhances all bands of the given width. Returns newly allocated output bands of equal shape in input order,
// and one status per band. The input is not modified. Configuration and shape errors are reported before
// any processing takes place.
func (p *Pipeline) Run(bands [][]float32, width int) (out [][]float32, status []BandStatus, err error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if err := checkShape(bands, width); err != nil {
		return nil, nil, err
	}
	if mode, _ := ParseColorMode(string(p.ColorMode)); mode == ColorModeHCL {
		if len(bands) != 3 {
			return nil, nil, fmt.Errorf("%w: color mode hcl requires 3 bands, have %d", ErrInvalidConfig, len(bands))
		}
		return p.runHCL(bands, width)
	}

	out = make([][]float32, len(bands))
	status = make([]BandStatus, len(bands))
	bandLimit, engineThreads := p.fanOut(len(bands), len(bands[0]))

	g := new(errgroup.Group)
	g.SetLimit(bandLimit)
	for i := range bands {
		i := i
		g.Go(func() error {
			out[i], status[i] = p.runBand(bands[i], width, engineThreads)
			status[i].Index = i
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return out, status, nil
}

// Normalizes a single band, applies the engine and maps the result back to the original range.
// Bands of uniform intensity are copied through
func (p *Pipeline) runBand(data []float32, width, maxThreads int) ([]float32, BandStatus) {
	norm, min, max, ok := Normalize(data)
	if !ok {
		res := make([]float32, len(data))
		copy(res, data)
		return res, BandStatus{Skipped: true, Min: min, Max: max}
	}

	res := p.initialOutput(norm)
	p.Engine.Apply(res, norm, width, maxThreads)
	Denormalize(res, min, max)
	return res, BandStatus{Min: min, Max: max}
}

// Allocates the normalized output buffer according to the edge fill policy
func (p *Pipeline) initialOutput(norm []float32) []float32 {
	res := make([]float32, len(norm))
	if p.EdgeFill == EdgeFillKeep {
		copy(res, norm)
	}
	return res
}

// Determines how many bands run concurrently, and how many threads each band's engine gets.
// Each band in flight holds about three float32 copies of its data
func (p *Pipeline) fanOut(numBands, bandLen int) (bandLimit, engineThreads int) {
	bandLimit = p.MaxThreads
	if bandLimit < 1 {
		bandLimit = 1
	}
	if bandLimit > numBands {
		bandLimit = numBands
	}
	if p.MemoryMB > 0 && bandLen > 0 {
		perBand := int64(bandLen) * 4 * 3
		fit := int(int64(p.MemoryMB) * 1024 * 1024 / 2 / perBand) // stay within half the limit
		if fit < 1 {
			fit = 1
		}
		if bandLimit > fit {
			bandLimit = fit
		}
	}
	engineThreads = p.MaxThreads / bandLimit
	if engineThreads < 1 {
		engineThreads = 1
	}
	return bandLimit, engineThreads
}

func checkShape(bands [][]float32, width int) error {
	if len(bands) == 0 {
		return fmt.Errorf("no bands given")
	}
	if width <= 0 {
		return fmt.Errorf("invalid band width %d", width)
	}
	n := len(bands[0])
	if n == 0 || n%width != 0 {
		return fmt.Errorf("band length %d is not a positive multiple of width %d", n, width)
	}
	for i, b := range bands {
		if len(b) != n {
			return fmt.Errorf("band %d has length %d, expected %d", i, len(b), n)
		}
	}
	return nil
}

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

// Package config reads YAML job files. Every job is one independent enhancement of one input
// with its own filter configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	en "github.com/mlnoga/rasterenhance/internal/enhance"
	"github.com/mlnoga/rasterenhance/internal/ops"
	"github.com/mlnoga/rasterenhance/internal/ops/enhance"
)

// Placeholder for output names derived from the input and the filter parameters
const AutoName = "%auto"

// A single enhancement request
type Job struct {
	Name   string `yaml:"name"`
	Filter string `yaml:"filter"` // clahe or bilateral
	Input  string `yaml:"input"`
	Output string `yaml:"output"` // %auto derives the name from input and parameters
	JPG    string `yaml:"jpg"`    // optional JPEG preview, %auto replaces the output suffix with .jpg

	PreviewWidth int `yaml:"previewWidth"`

	TileSize  int     `yaml:"tileSize"`
	ClipLimit float64 `yaml:"clipLimit"`

	SigmaSpatial   float64 `yaml:"sigmaSpatial"`
	SigmaIntensity float64 `yaml:"sigmaIntensity"`
	WindowSize     int     `yaml:"windowSize"`

	EdgeFill  string `yaml:"edgeFill"`
	ColorMode string `yaml:"colorMode"`

	op enhance.Suffixer // built by FinalizeConfiguration
}

func NewJobDefault() Job {
	return Job{
		Output:         AutoName,
		TileSize:       en.DefaultTileSize,
		ClipLimit:      en.DefaultClipLimit,
		SigmaSpatial:   en.DefaultSigmaSpatial,
		SigmaIntensity: en.DefaultSigmaIntensity,
		WindowSize:     en.DefaultWindowSize,
		EdgeFill:       string(en.EdgeFillZero),
		ColorMode:      string(en.ColorModeBands),
	}
}

// Unmarshal a job from YAML with default values for missing entries
func (j *Job) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type defaults Job
	def := defaults(NewJobDefault())
	if err := unmarshal(&def); err != nil {
		return err
	}
	*j = Job(def)
	return nil
}

// A job file
type Configuration struct {
	Threads int   `yaml:"threads"` // 0 uses the default from the execution context
	Jobs    []Job `yaml:"jobs"`
}

func NewConfigurationFromYaml(b []byte) (*Configuration, error) {
	c := &Configuration{}
	if err := yaml.UnmarshalStrict(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Reads a job file. Call FinalizeConfiguration before running it
func LoadConfiguration(fileName string) (*Configuration, error) {
	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	c, err := NewConfigurationFromYaml(b)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fileName, err)
	}
	return c, nil
}

func (c *Configuration) AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("# cannot marshal configuration: %v\n", err)
	}
	return string(b)
}

// Builds the operator for every job, resolves automatic names and validates all parameters.
// Fails on the first invalid job, so nothing is processed for a broken job file
func (c *Configuration) FinalizeConfiguration() error {
	if len(c.Jobs) == 0 {
		return fmt.Errorf("%w: no jobs configured", en.ErrInvalidConfig)
	}
	for i := range c.Jobs {
		if err := c.Jobs[i].finalize(i); err != nil {
			return err
		}
	}
	return nil
}

func (j *Job) finalize(index int) error {
	if j.Name == "" {
		j.Name = fmt.Sprintf("job%d", index)
	}
	if j.Input == "" {
		return fmt.Errorf("%s: %w: missing input", j.Name, en.ErrInvalidConfig)
	}

	switch strings.ToLower(j.Filter) {
	case "clahe":
		op := enhance.NewOpCLAHE(j.TileSize, j.ClipLimit)
		op.EdgeFill, op.ColorMode = j.EdgeFill, j.ColorMode
		j.op = op
	case "bilateral":
		op := enhance.NewOpBilateral(j.SigmaSpatial, j.SigmaIntensity, j.WindowSize)
		op.EdgeFill, op.ColorMode = j.EdgeFill, j.ColorMode
		j.op = op
	default:
		return fmt.Errorf("%s: %w: unknown filter '%s', expecting clahe or bilateral", j.Name, en.ErrInvalidConfig, j.Filter)
	}
	if err := j.op.Validate(); err != nil {
		return fmt.Errorf("%s: %w", j.Name, err)
	}

	if j.Output == AutoName || j.Output == "" {
		j.Output = enhance.AutoName(j.Input, j.op.OutputSuffix())
	}
	if j.JPG == AutoName {
		j.JPG = strings.TrimSuffix(j.Output, filepath.Ext(j.Output)) + ".jpg"
	}
	return nil
}

// Returns the operator sequence for a finalized job: load, enhance, save and optional preview
func (j *Job) Sequence() *ops.OpSequence {
	seq := ops.NewOpSequence(ops.NewOpLoad(0, j.Input), j.op, ops.NewOpSave(j.Output))
	if j.JPG != "" {
		preview := ops.NewOpSave(j.JPG)
		preview.PreviewWidth = j.PreviewWidth
		seq.Append(preview)
	}
	return seq
}

// Runs every job of a finalized configuration independently, logging success or failure and the
// elapsed time per job. Returns the number of failed jobs
func (c *Configuration) Run(ctx *ops.Context) (failed int) {
	if c.Threads > 0 {
		ctx.MaxThreads = c.Threads
	}
	for i := range c.Jobs {
		j := &c.Jobs[i]
		start := time.Now()
		err := j.run(ctx)
		elapsed := time.Since(start)
		if err != nil {
			failed++
			fmt.Fprintf(ctx.Log, "%s: ERROR after %v: %s\n", j.Name, elapsed, err.Error())
		} else {
			fmt.Fprintf(ctx.Log, "%s: SUCCESS after %v, wrote %s\n", j.Name, elapsed, j.Output)
		}
	}
	return failed
}

func (j *Job) run(ctx *ops.Context) error {
	if j.op == nil {
		return fmt.Errorf("%w: job not finalized", en.ErrInvalidConfig)
	}
	fmt.Fprintf(ctx.Log, "%s: %s %s -> %s\n", j.Name, j.op.GetType(), j.Input, j.Output)
	promises, err := j.Sequence().MakePromises(nil, ctx)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	return err
}

// Writes a summary of the configuration
func (c *Configuration) Describe(w io.Writer) {
	fmt.Fprintf(w, "Running %d jobs:\n%s\n", len(c.Jobs), c.AsYaml())
}

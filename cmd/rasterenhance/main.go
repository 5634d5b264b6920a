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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	nl "github.com/mlnoga/rasterenhance/internal"
	"github.com/mlnoga/rasterenhance/internal/config"
	"github.com/mlnoga/rasterenhance/internal/ops"
	"github.com/mlnoga/rasterenhance/internal/ops/enhance"
	"github.com/mlnoga/rasterenhance/internal/rest"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out = flag.String("out", config.AutoName, "save output to `file`. `%auto` appends the filter parameters to the input name, %d expands to the input index")
var jpg = flag.String("jpg", "", "save 8bit preview of output as JPEG to `file`. `%auto` replaces suffix of output file with .jpg")
var log = flag.String("log", config.AutoName, "save log output to `file`. `%auto` replaces suffix of output file with .log")
var previewWidth = flag.Int("previewWidth", 0, "scale JPEG preview to this width in pixels, 0=full size")

var threads = flag.Int("threads", 0, "number of worker threads, 0=number of physical cores")

var tileSize = flag.Int("tileSize", 8, "CLAHE tile edge length in pixels")
var clipLimit = flag.Float64("clipLimit", 2.0, "CLAHE clip limit as multiple of the average bin count")

var sigmaSpatial = flag.Float64("sigmaSpatial", 1.5, "bilateral spatial sigma in pixels")
var sigmaIntensity = flag.Float64("sigmaIntensity", 0.1, "bilateral intensity sigma in normalized units")
var windowSize = flag.Int("windowSize", 5, "bilateral window edge length in pixels, odd")

var edgeFill = flag.String("edgeFill", "zero", "CLAHE pixels outside the tile grid: zero or keep")
var colorMode = flag.String("colorMode", "bands", "process bands independently (bands), or the luminance of a 3-band image (hcl)")

var configFile = flag.String("config", "", "run jobs from YAML `file`")

var addr = flag.String("addr", ":8080", "listen address for the REST server")
var chroot = flag.String("chroot", "", "REST server: change filesystem root to `dir` (requires root)")
var setuid = flag.Int("setuid", -1, "REST server: change user id after chroot, -1=keep")

func main() {
	start := time.Now()
	flag.Usage = func() {
		fmt.Fprintf(os.Stdout, `rasterenhance Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (clahe|bilateral|stats|run|serve|legal|version) (img0.fits ... imgn.fits)

Commands:
  clahe     Apply contrast-limited adaptive histogram equalization to each input
  bilateral Apply edge-preserving bilateral smoothing to each input
  stats     Show input image statistics
  run       Run the jobs from the YAML file given with -config or as argument
  serve     Serve the REST API
  legal     Show license and attribution information
  version   Show version information

Flags:
`, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		flag.Usage()
		return
	}

	// Build and validate jobs before anything is written
	var cfg *config.Configuration
	var err error
	switch args[0] {
	case "clahe", "bilateral":
		cfg, err = jobsFromFlags(args[0], args[1:])
	case "run":
		fileName := *configFile
		if fileName == "" && len(args) > 1 {
			fileName = args[1]
		}
		if fileName == "" {
			err = fmt.Errorf("no job file given")
			break
		}
		cfg, err = config.LoadConfiguration(fileName)
	}
	if err == nil && cfg != nil {
		err = cfg.FinalizeConfiguration()
	}
	if err != nil {
		fmt.Fprintf(os.Stdout, "Error: %s\n", err.Error())
		os.Exit(-1)
	}

	// Initialize logging to file in addition to stdout, if selected
	if *log == config.AutoName {
		*log = ""
		if cfg != nil && len(cfg.Jobs) == 1 {
			*log = strings.TrimSuffix(cfg.Jobs[0].Output, filepath.Ext(cfg.Jobs[0].Output)) + ".log"
		}
	}
	if *log != "" {
		if err := nl.LogAlsoToFile(*log); err != nil {
			nl.LogFatalf("Unable to open logfile '%s'\n", *log)
		}
	}

	// Enable CPU profiling if flagged
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			nl.LogFatal("Could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			nl.LogFatal("Could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}

	c := ops.NewContext(nl.LogWriter())
	if *threads > 0 {
		c.MaxThreads = *threads
	}
	nl.LogPrintf("Using %d threads on %s with %d MiB of memory\n", c.MaxThreads, c.CPU, c.MemoryMB)

	// run actions
	switch args[0] {
	case "clahe", "bilateral", "run":
		cfg.Describe(nl.LogWriter())
		if failed := cfg.Run(c); failed > 0 {
			err = fmt.Errorf("%d of %d jobs failed", failed, len(cfg.Jobs))
		}

	case "stats":
		err = cmdStats(args[1:], c)

	case "serve":
		if err = rest.MakeSandbox(*chroot, *setuid, nl.LogWriter()); err == nil {
			err = rest.Serve(*addr, c)
		}

	case "legal":
		nl.LogPrint(legal)

	case "version":
		nl.LogPrintf("Version %s\n", version)

	case "help", "?":
		flag.Usage()

	default:
		nl.LogPrintf("Unknown command '%s'\n\n", args[0])
		flag.Usage()
		return
	}

	nl.LogPrintf("\nDone after %v\n", time.Since(start))

	// Store memory profile if flagged
	if *memprofile != "" {
		f, errProf := os.Create(*memprofile)
		if errProf != nil {
			nl.LogFatal("Could not create memory profile: ", errProf)
		}
		defer f.Close()
		runtime.GC() // get up-to-date statistics
		if errProf := pprof.Lookup("allocs").WriteTo(f, 0); errProf != nil {
			nl.LogFatal("Could not write allocation profile: ", errProf)
		}
	}

	if err != nil {
		nl.LogFatalf("Error: %s\n", err.Error())
	}
	nl.LogSync()
}

// Turns the filter flags into one job per input file
func jobsFromFlags(filter string, patterns []string) (*config.Configuration, error) {
	var inputs []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, matches...)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input files match %v", patterns)
	}
	if len(inputs) > 1 && *out != config.AutoName && !strings.Contains(*out, "%d") {
		return nil, fmt.Errorf("%d inputs would all be written to %s, use %%auto or a %%d pattern", len(inputs), *out)
	}

	cfg := &config.Configuration{Threads: *threads}
	for i, input := range inputs {
		j := config.NewJobDefault()
		j.Name = filepath.Base(input)
		j.Filter, j.Input = filter, input
		j.Output, j.JPG = expandIndex(*out, i), expandIndex(*jpg, i)
		j.PreviewWidth = *previewWidth
		j.TileSize, j.ClipLimit = *tileSize, *clipLimit
		j.SigmaSpatial, j.SigmaIntensity, j.WindowSize = *sigmaSpatial, *sigmaIntensity, *windowSize
		j.EdgeFill, j.ColorMode = *edgeFill, *colorMode
		cfg.Jobs = append(cfg.Jobs, j)
	}
	return cfg, nil
}

func expandIndex(pattern string, i int) string {
	if strings.Contains(pattern, "%d") {
		return fmt.Sprintf(pattern, i)
	}
	return pattern
}

// Logs per-band statistics of all inputs
func cmdStats(patterns []string, c *ops.Context) error {
	seq := ops.NewOpSequence(ops.NewOpLoadMany(patterns), enhance.NewOpStatsDefault())
	m, err := json.MarshalIndent(seq, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Log, "Computing statistics with these settings:\n%s\n", string(m))
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

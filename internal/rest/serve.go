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

package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mlnoga/rasterenhance/internal/ops"
	_ "github.com/mlnoga/rasterenhance/internal/ops/enhance" // register enhancement operators
)

const requestIDHeader = "X-Request-ID"

// Serves the REST API on the given address until the listener fails
func Serve(addr string, c *ops.Context) error {
	return NewRouter(c).Run(addr)
}

// Returns the API routes. Every request runs in a sandboxed copy of the given context
func NewRouter(c *ops.Context) *gin.Engine {
	r := gin.Default()
	r.Use(requestID)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.GET("/operators", getOperators)
			v1.POST("/enhance", func(g *gin.Context) { postEnhance(g, c) })
		}
	}
	return r
}

// Tags every request with an ID, reusing one supplied by the client
func requestID(g *gin.Context) {
	id := g.GetHeader(requestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	g.Set(requestIDHeader, id)
	g.Header(requestIDHeader, id)
	g.Next()
}

func getPing(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func getOperators(g *gin.Context) {
	g.JSON(http.StatusOK, gin.H{
		"operators": ops.OperatorTypes(),
	})
}

type postEnhanceArgs struct {
	FilePatterns []string          `json:"filePatterns"`
	Steps        []json.RawMessage `json:"steps"`
}

// Decodes the request into a sequence loading all matching files and applying the steps to each.
// Rejects invalid parameters before any file is touched
func (args *postEnhanceArgs) sequence() (*ops.OpSequence, error) {
	if len(args.FilePatterns) == 0 {
		return nil, fmt.Errorf("no file patterns given")
	}
	if len(args.Steps) == 0 {
		return nil, fmt.Errorf("no steps given")
	}
	seq := ops.NewOpSequence(ops.NewOpLoadMany(args.FilePatterns))
	for _, raw := range args.Steps {
		step, err := ops.UnmarshalOperator(raw)
		if err != nil {
			return nil, err
		}
		if err := validate(step); err != nil {
			return nil, fmt.Errorf("%s: %w", step.GetType(), err)
		}
		seq.Append(step)
	}
	return seq, nil
}

// Validates an operator and any operators nested inside it
func validate(op ops.Operator) error {
	switch o := op.(type) {
	case *ops.OpSequence:
		for _, step := range o.Steps {
			if err := validate(step); err != nil {
				return err
			}
		}
	case *ops.OpForEach:
		if o.Operation != nil {
			return validate(o.Operation)
		}
	case interface{ Validate() error }:
		return o.Validate()
	}
	return nil
}

func postEnhance(g *gin.Context, base *ops.Context) {
	var args postEnhanceArgs
	if err := g.ShouldBindJSON(&args); err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	seq, err := args.sequence()
	if err != nil {
		g.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	header := g.Writer.Header()
	header.Set("Content-Type", "text/plain")
	g.Writer.WriteHeader(http.StatusOK)

	logWriter := &flushWriter{w: g.Writer}
	c := *base
	c.Log, c.Sandboxed = logWriter, true
	fmt.Fprintf(logWriter, "Request %s\n", g.GetString(requestIDHeader))

	start := time.Now()
	if err := run(seq, &c); err != nil {
		fmt.Fprintf(logWriter, "ERROR after %v: %s\n", time.Since(start), err.Error())
		return
	}
	fmt.Fprintf(logWriter, "SUCCESS after %v\n", time.Since(start))
}

func run(seq *ops.OpSequence, c *ops.Context) error {
	promises, err := seq.MakePromises(nil, c)
	if err != nil {
		return err
	}
	_, err = ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

// Serializes concurrent log output onto a streaming response
type flushWriter struct {
	mu sync.Mutex
	w  gin.ResponseWriter
}

var _ io.Writer = (*flushWriter)(nil)

func (fw *flushWriter) Write(p []byte) (n int, err error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	n, err = fw.w.Write(p)
	fw.w.Flush()
	return n, err
}

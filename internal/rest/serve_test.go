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
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mlnoga/rasterenhance/internal/ops"
	"github.com/mlnoga/rasterenhance/internal/raster"
)

func init() { gin.SetMode(gin.TestMode) }

func do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := NewRouter(&ops.Context{Log: io.Discard, MaxThreads: 2})
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	w := do(t, http.MethodGet, "/api/v1/ping", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "pong") {
		t.Errorf("code=%d body=%s", w.Code, w.Body.String())
	}
	if _, err := uuid.Parse(w.Header().Get(requestIDHeader)); err != nil {
		t.Errorf("missing request ID: %v", err)
	}
}

func TestOperators(t *testing.T) {
	w := do(t, http.MethodGet, "/api/v1/operators", "")
	var res struct{ Operators []string }
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, o := range res.Operators {
		found[o] = true
	}
	for _, want := range []string{"clahe", "bilateral", "stats", "save"} {
		if !found[want] {
			t.Errorf("operator %s not listed in %v", want, res.Operators)
		}
	}
}

func TestEnhanceRejectsBadRequests(t *testing.T) {
	tcs := []string{
		`not json`,
		`{"filePatterns":[],"steps":[{"type":"clahe"}]}`,
		`{"filePatterns":["*.fits"],"steps":[]}`,
		`{"filePatterns":["*.fits"],"steps":[{"type":"sharpen"}]}`,
		`{"filePatterns":["*.fits"],"steps":[{"type":"clahe","tileSize":0}]}`,
		`{"filePatterns":["*.fits"],"steps":[{"type":"forEach","operation":{"type":"bilateral","windowSize":2}}]}`,
	}
	for i, tc := range tcs {
		w := do(t, http.MethodPost, "/api/v1/enhance", tc)
		if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "error") {
			t.Errorf("case %d: code=%d body=%s", i, w.Code, w.Body.String())
		}
	}
}

func TestEnhanceSandboxed(t *testing.T) {
	w := do(t, http.MethodPost, "/api/v1/enhance", `{"filePatterns":["/etc/*"],"steps":[{"type":"stats"}]}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ERROR") {
		t.Errorf("code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestEnhance(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	img := raster.NewImageFromNaxisn([]int32{8, 8}, nil)
	for i := range img.Data {
		img.Data[i] = float32(i)
	}
	if err := img.WriteFile("in.fits"); err != nil {
		t.Fatal(err)
	}

	w := do(t, http.MethodPost, "/api/v1/enhance",
		`{"filePatterns":["*.fits"],"steps":[{"type":"clahe"},{"type":"save","filePattern":"out%d.fits"}]}`)
	body := w.Body.String()
	if w.Code != http.StatusOK || !strings.Contains(body, "SUCCESS") || !strings.Contains(body, "Request ") {
		t.Errorf("code=%d body=%s", w.Code, body)
	}
	if _, err := os.Stat("out0.fits"); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

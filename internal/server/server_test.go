package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/store"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/workbook"
)

func newTestServer(t *testing.T, st *store.Store) (*Server, *workbook.Workbook) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	wb := workbook.New()
	_, err := wb.AddSheet("Sheet1")
	require.NoError(t, err)
	return New(wb, st, nil), wb
}

func request(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func api(path string) string {
	return "/api/" + ApiVersion + path
}

func TestHealthcheck(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := request(t, s, http.MethodGet, "/healthcheck", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "health", w.Body.String())
}

func TestSetAndGetCell(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := request(t, s, http.MethodPost, api("/sheets/Sheet1/cells/A1"), gin.H{"value": "21"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"value": "21", "result": 21.0, "display": "21"}, decode(t, w))

	w = request(t, s, http.MethodPost, api("/sheets/Sheet1/cells/A2"), gin.H{"value": "=A1*2", "format": "n2"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, map[string]any{"value": "=A1*2", "result": 42.0, "display": "42.00"}, decode(t, w))

	w = request(t, s, http.MethodGet, api("/sheets/sheet1/cells/a2"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 42.0, decode(t, w)["result"])

	w = request(t, s, http.MethodPost, api("/sheets/Sheet1/cells/A3"), gin.H{"value": "=SQRT(-1)"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, decode(t, w)["result"], "Error: ")

	w = request(t, s, http.MethodGet, api("/sheets/Sheet1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Sheet1", body["name"])
	assert.Len(t, body["cells"], 3)

	// an empty value clears the cell
	w = request(t, s, http.MethodPost, api("/sheets/Sheet1/cells/A3"), gin.H{"value": ""})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Nil(t, decode(t, w)["result"])
}

func TestSetCellCreatesSheet(t *testing.T) {
	s, wb := newTestServer(t, nil)
	w := request(t, s, http.MethodPost, api("/sheets/Extra/cells/B2"), gin.H{"value": "hi"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"Sheet1", "Extra"}, wb.SheetNames())

	w = request(t, s, http.MethodGet, api("/sheets"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"Sheet1", "Extra"}, decode(t, w)["sheets"])
}

func TestFailedWriteKeepsSheetsUnchanged(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "cells.db"), nil)
	require.NoError(t, err)
	s, wb := newTestServer(t, st)
	require.NoError(t, st.Close())

	w := request(t, s, http.MethodPost, api("/sheets/Fresh/cells/A1"), gin.H{"value": "1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	assert.Contains(t, decode(t, w)["error"], "persisting Fresh!A1")
	assert.Equal(t, []string{"Sheet1"}, wb.SheetNames())

	w = request(t, s, http.MethodPost, api("/sheets/Fresh/cells/1A"), gin.H{"value": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []string{"Sheet1"}, wb.SheetNames())

	// existing sheets are never removed by a failed write
	w = request(t, s, http.MethodPost, api("/sheets/Sheet1/cells/A1"), gin.H{"value": "1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, []string{"Sheet1"}, wb.SheetNames())
	input, err := wb.Input("Sheet1", "A1")
	require.NoError(t, err)
	assert.Empty(t, input)
}

func TestRequestErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing value", http.MethodPost, api("/sheets/Sheet1/cells/A1"), gin.H{}, http.StatusBadRequest},
		{"bad address", http.MethodPost, api("/sheets/Sheet1/cells/1A"), gin.H{"value": "1"}, http.StatusBadRequest},
		{"address past the sheet", http.MethodGet, api("/sheets/Sheet1/cells/XFE1"), nil, http.StatusUnprocessableEntity},
		{"unknown sheet", http.MethodGet, api("/sheets/Nope"), nil, http.StatusNotFound},
		{"unknown sheet cell", http.MethodGet, api("/sheets/Nope/cells/A1"), nil, http.StatusNotFound},
		{"duplicate sheet", http.MethodPost, api("/sheets"), gin.H{"name": "sheet1"}, http.StatusConflict},
		{"bad op", http.MethodPost, api("/sheets/Sheet1/rows/shuffle"), gin.H{"index": 0, "count": 1}, http.StatusBadRequest},
		{"zero count", http.MethodPost, api("/sheets/Sheet1/rows/insert"), gin.H{"index": 0, "count": 0}, http.StatusBadRequest},
		{"missing formula", http.MethodPost, api("/evaluate"), gin.H{}, http.StatusBadRequest},
		{"evaluate unknown sheet", http.MethodPost, api("/evaluate"), gin.H{"formula": "=1", "sheet": "Nope"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := request(t, s, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Contains(t, decode(t, w), "error")
		})
	}
}

func TestEvaluate(t *testing.T) {
	s, wb := newTestServer(t, nil)
	require.NoError(t, wb.Set("", "A1", "0.25"))

	w := request(t, s, http.MethodPost, api("/evaluate"), gin.H{"formula": "A1*2", "format": "p0"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"result": 0.5, "display": "50%"}, decode(t, w))

	w = request(t, s, http.MethodPost, api("/evaluate"), gin.H{"formula": "=UPPER(\"abc\")&\"!\""})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ABC!", decode(t, w)["result"])

	w = request(t, s, http.MethodPost, api("/evaluate"), gin.H{"formula": "=SUM("})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["result"], "Error: ")
}

func TestStructuralEdits(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "cells.db"), nil)
	require.NoError(t, err)
	defer st.Close()

	s, _ := newTestServer(t, st)
	for address, input := range map[string]string{"A1": "1", "A2": "2", "B1": "x"} {
		w := request(t, s, http.MethodPost, api("/sheets/Sheet1/cells/"+address), gin.H{"value": input})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := request(t, s, http.MethodPost, api("/sheets/Sheet1/rows/insert"), gin.H{"index": 1, "count": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cells := decode(t, w)["cells"].(map[string]any)
	assert.Contains(t, cells, "A4")
	assert.NotContains(t, cells, "A2")

	w = request(t, s, http.MethodPost, api("/sheets/Sheet1/columns/delete"), gin.H{"index": 0, "count": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cells = decode(t, w)["cells"].(map[string]any)
	assert.Equal(t, []string{"A1"}, keys(cells))

	w = request(t, s, http.MethodPost, api("/sheets/Sheet1/rows/delete"), gin.H{"index": 0, "count": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["cells"])

	// the store follows the structural edits
	restored := workbook.New()
	require.NoError(t, st.Restore(restored))
	sheet, ok := restored.Sheet("Sheet1")
	require.True(t, ok)
	assert.Equal(t, 0, sheet.Len())
}

func TestWritesReachTheStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "cells.db"), nil)
	require.NoError(t, err)
	defer st.Close()

	s, _ := newTestServer(t, st)
	w := request(t, s, http.MethodPost, api("/sheets/Data/cells/C3"), gin.H{"value": "=2^10"})
	require.Equal(t, http.StatusCreated, w.Code)

	restored := workbook.New()
	require.NoError(t, st.Restore(restored))
	value, err := restored.Get("Data", "C3")
	require.NoError(t, err)
	assert.Equal(t, 1024.0, formula.Unwrap(value))
}

func TestRequestLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	wb := workbook.New()
	s := New(wb, nil, zap.New(core))

	request(t, s, http.MethodGet, "/healthcheck", nil)
	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/healthcheck", entries[0].ContextMap()["path"])
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
}

func TestJSONValue(t *testing.T) {
	sheet, _ := workbook.New().AddSheet("S")
	assert.Equal(t, "S!A1:B2", jsonValue(&formula.RangeReference{Sheet: sheet, Range: formula.NewCellRange(0, 0, 1, 1)}))
	assert.Equal(t, 1.5, jsonValue(formula.FormattedValue{Value: 1.5, Format: "n2"}))
	assert.Nil(t, jsonValue(nil))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Package server exposes a workbook over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vogtb/go-spreadsheet/packages/formula"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/store"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/workbook"
)

const ApiVersion = "v1"

// Server serves one workbook. the engine is single-threaded, so every
// request holds mu for its whole duration.
type Server struct {
	mu     sync.Mutex
	wb     *workbook.Workbook
	store  *store.Store
	logger *zap.Logger
	router *gin.Engine
}

// New builds the router. st may be nil, in which case cells live in memory
// only.
func New(wb *workbook.Workbook, st *store.Store, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{wb: wb, store: st, logger: logger}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthcheck", func(c *gin.Context) {
		c.String(http.StatusOK, "health")
	})

	api := router.Group("/api/" + ApiVersion)
	api.POST("/evaluate", s.evaluateAction)
	api.GET("/sheets", s.listSheetsAction)
	api.POST("/sheets", s.addSheetAction)
	api.GET("/sheets/:sheet", s.getSheetAction)
	api.GET("/sheets/:sheet/cells/:cell", s.getCellAction)
	api.POST("/sheets/:sheet/cells/:cell", s.setCellAction)
	api.POST("/sheets/:sheet/rows/:op", s.structuralAction(true))
	api.POST("/sheets/:sheet/columns/:op", s.structuralAction(false))
	return router
}

// Handler returns the HTTP handler, e.g. for httptest
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// errorStatus maps workbook error codes to HTTP statuses
func errorStatus(err error) int {
	switch workbook.CodeOf(err) {
	case workbook.InvalidArgument:
		return http.StatusBadRequest
	case workbook.NotFound:
		return http.StatusNotFound
	case workbook.AlreadyExists:
		return http.StatusConflict
	case workbook.FailedPrecondition:
		return http.StatusPreconditionFailed
	case workbook.OutOfRange, workbook.ResourceExhausted:
		return http.StatusUnprocessableEntity
	case workbook.Unimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(err error) error {
	return workbook.NewApplicationError(workbook.InvalidArgument, err.Error())
}

// jsonValue makes an engine result JSON friendly
func jsonValue(value formula.Primitive) any {
	switch v := formula.Unwrap(value).(type) {
	case *formula.RangeReference:
		return v.String()
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return formula.ToString(v)
		}
		return v
	default:
		return v
	}
}

// Cell is the JSON shape of one cell: its raw input, evaluated result, and
// display text
type Cell struct {
	Value   string `json:"value"`
	Result  any    `json:"result"`
	Display string `json:"display"`
}

type SheetResponse struct {
	Name  string          `json:"name"`
	Cells map[string]Cell `json:"cells"`
}

type cellParams struct {
	Sheet string `uri:"sheet" binding:"required"`
	Cell  string `uri:"cell" binding:"required"`
}

type sheetParams struct {
	Sheet string `uri:"sheet" binding:"required"`
}

type structuralParams struct {
	Sheet string `uri:"sheet" binding:"required"`
	Op    string `uri:"op" binding:"required,oneof=insert delete"`
}

type EvaluateRequest struct {
	Formula string `json:"formula" binding:"required"`
	Sheet   string `json:"sheet"`
	Format  string `json:"format"`
}

type SetCellRequest struct {
	Value  *string `json:"value" binding:"required"`
	Format *string `json:"format"`
}

type AddSheetRequest struct {
	Name string `json:"name" binding:"required"`
}

type StructuralRequest struct {
	Index int `json:"index" binding:"min=0"`
	Count int `json:"count" binding:"required,min=1"`
}

func (s *Server) cell(sheet, address string) (Cell, error) {
	input, err := s.wb.Input(sheet, address)
	if err != nil {
		return Cell{}, err
	}
	value, err := s.wb.Get(sheet, address)
	if err != nil {
		return Cell{}, err
	}
	return Cell{Value: input, Result: jsonValue(value), Display: formula.FormatValue(value, "")}, nil
}

func (s *Server) sheet(name string) (SheetResponse, error) {
	sheet, ok := s.wb.Sheet(name)
	if !ok {
		return SheetResponse{}, workbook.NewApplicationError(workbook.NotFound, fmt.Sprintf("sheet %s not found", name))
	}
	response := SheetResponse{Name: sheet.Name(), Cells: make(map[string]Cell, sheet.Len())}
	for _, c := range sheet.Cells() {
		cell, err := s.cell(sheet.Name(), c.Address())
		if err != nil {
			return SheetResponse{}, err
		}
		response.Cells[c.Address()] = cell
	}
	return response, nil
}

func (s *Server) evaluateAction(c *gin.Context) {
	var request EvaluateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.fail(c, badRequest(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	value, err := s.wb.Evaluate(request.Sheet, request.Formula)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":  jsonValue(value),
		"display": formula.FormatValue(value, request.Format),
	})
}

func (s *Server) listSheetsAction(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"sheets": s.wb.SheetNames()})
}

func (s *Server) addSheetAction(c *gin.Context) {
	var request AddSheetRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		s.fail(c, badRequest(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.wb.AddSheet(request.Name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, SheetResponse{Name: request.Name, Cells: map[string]Cell{}})
}

func (s *Server) getSheetAction(c *gin.Context) {
	var params sheetParams
	if err := c.ShouldBindUri(&params); err != nil {
		s.fail(c, badRequest(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	response, err := s.sheet(params.Sheet)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) getCellAction(c *gin.Context) {
	var params cellParams
	if err := c.ShouldBindUri(&params); err != nil {
		s.fail(c, badRequest(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	response, err := s.cell(params.Sheet, params.Cell)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) setCellAction(c *gin.Context) {
	var params cellParams
	var request SetCellRequest
	err := c.ShouldBindUri(&params)
	if err == nil {
		err = c.ShouldBindJSON(&request)
	}
	if err != nil {
		s.fail(c, badRequest(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// a sheet created for this write is removed again if the write fails
	created := false
	abort := func(err error) {
		if created {
			_ = s.wb.RemoveSheet(params.Sheet)
		}
		s.fail(c, err)
	}
	if _, exists := s.wb.Sheet(params.Sheet); !exists {
		if _, err := s.wb.AddSheet(params.Sheet); err != nil {
			s.fail(c, err)
			return
		}
		created = true
	}
	// resolve first so that a bad address never reaches the store
	if _, err := s.wb.Input(params.Sheet, params.Cell); err != nil {
		abort(err)
		return
	}
	if s.store != nil {
		if err := s.store.Put(params.Sheet, params.Cell, *request.Value); err != nil {
			abort(fmt.Errorf("persisting %s!%s: %w", params.Sheet, params.Cell, err))
			return
		}
	}
	if err := s.wb.Set(params.Sheet, params.Cell, *request.Value); err != nil {
		abort(err)
		return
	}
	if request.Format != nil {
		if err := s.wb.SetFormat(params.Sheet, params.Cell, *request.Format); err != nil {
			s.fail(c, err)
			return
		}
	}

	response, err := s.cell(params.Sheet, params.Cell)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (s *Server) structuralAction(rows bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var params structuralParams
		var request StructuralRequest
		err := c.ShouldBindUri(&params)
		if err == nil {
			err = c.ShouldBindJSON(&request)
		}
		if err != nil {
			s.fail(c, badRequest(err))
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		edit := map[[2]bool]func(string, int, int) error{
			{true, true}:   s.wb.InsertRows,
			{true, false}:  s.wb.DeleteRows,
			{false, true}:  s.wb.InsertColumns,
			{false, false}: s.wb.DeleteColumns,
		}[[2]bool{rows, params.Op == "insert"}]
		if err := edit(params.Sheet, request.Index, request.Count); err != nil {
			s.fail(c, err)
			return
		}
		if s.store != nil {
			if err := s.store.SaveSheet(s.wb, params.Sheet); err != nil {
				s.fail(c, fmt.Errorf("persisting %s: %w", params.Sheet, err))
				return
			}
		}

		response, err := s.sheet(params.Sheet)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, response)
	}
}

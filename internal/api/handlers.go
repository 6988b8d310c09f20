package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roach88/cohort/internal/ir"
	"github.com/roach88/cohort/internal/queryir"
	"github.com/roach88/cohort/internal/querysql"
)

const requestIDHeader = "X-Request-ID"

// Handlers serves the compile endpoints.
type Handlers struct {
	compiler *querysql.Compiler
	logger   *slog.Logger
}

// NewHandlers creates the handlers for a compiler.
func NewHandlers(c *querysql.Compiler, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{compiler: c, logger: logger}
}

// CompileQuery holds the query string options of the compile endpoint.
type CompileQuery struct {
	Dialect string `form:"dialect" binding:"omitempty,oneof=sqlite postgres"`
	Params  bool   `form:"params"`
}

// HandleCompile handles POST /v1/compile.
//
// The body is a wire request. ?dialect= and ?params=true select the
// dialect and parameterized output.
func (h *Handlers) HandleCompile(c *gin.Context) {
	start := time.Now()
	logger := h.requestLogger(c, "HandleCompile")

	var q CompileQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.fail(c, logger, "compile", start, ir.Errorf(ir.ErrCodeInvalidRequest, "query string: %v", err))
		return
	}

	req, err := h.decode(c)
	if err != nil {
		h.fail(c, logger, "compile", start, err)
		return
	}

	dialect, err := querysql.DialectByName(q.Dialect)
	if err != nil {
		h.fail(c, logger, "compile", start, err)
		return
	}
	mode := querysql.ModeLiteral
	if q.Params {
		mode = querysql.ModeParameterized
	}

	res, err := h.compiler.CompileRequest(req, mode, dialect)
	if err != nil {
		h.fail(c, logger, "compile", start, err)
		return
	}
	fp, err := req.Fingerprint()
	if err != nil {
		h.fail(c, logger, "compile", start, err)
		return
	}

	compileDuration.WithLabelValues("compile").Observe(time.Since(start).Seconds())
	compileRequests.WithLabelValues("compile", "ok").Inc()
	logger.Info("compiled request",
		"fingerprint", fp,
		"dialect", dialect.Name,
		"tables", len(req.Query.Tables()),
		"duration", time.Since(start))

	c.JSON(http.StatusOK, CompileResponse{
		SQL:         res.SQL,
		Args:        res.Args,
		Fingerprint: fp,
		Dialect:     dialect.Name,
	})
}

// HandleValidate handles POST /v1/validate. A request that compiles is
// answered with the tree warnings; one that does not gets the compile error
// with the warnings attached.
func (h *Handlers) HandleValidate(c *gin.Context) {
	start := time.Now()
	logger := h.requestLogger(c, "HandleValidate")

	req, err := h.decode(c)
	if err != nil {
		h.fail(c, logger, "validate", start, err)
		return
	}
	vr := queryir.Validate(req, h.compiler.Graph())
	if _, err := h.compiler.CompileRequest(req, querysql.ModeLiteral, querysql.SQLite); err != nil {
		h.fail(c, logger, "validate", start, err, vr.Warnings...)
		return
	}
	fp, err := req.Fingerprint()
	if err != nil {
		h.fail(c, logger, "validate", start, err)
		return
	}

	compileDuration.WithLabelValues("validate").Observe(time.Since(start).Seconds())
	compileRequests.WithLabelValues("validate", "ok").Inc()
	logger.Info("validated request", "fingerprint", fp, "warnings", len(vr.Warnings))

	c.JSON(http.StatusOK, ValidateResponse{
		Clean:       vr.Clean,
		Warnings:    vr.Warnings,
		Fingerprint: fp,
	})
}

// HandleTables handles GET /v1/tables.
func (h *Handlers) HandleTables(c *gin.Context) {
	g := h.compiler.Graph()
	resp := TablesResponse{Root: g.Root(), Contexts: []string{}}
	for _, ctx := range g.Contexts() {
		resp.Contexts = append(resp.Contexts, string(ctx))
	}
	for _, t := range g.Tables() {
		info := TableInfo{Name: t.Name}
		for _, l := range t.Parents {
			info.Parents = append(info.Parents, LinkInfo{
				Parent:       l.Parent,
				ParentColumn: l.ParentColumn,
				LocalColumn:  l.LocalColumn,
				Context:      string(l.Context),
			})
		}
		resp.Tables = append(resp.Tables, info)
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status: "healthy",
		Tables: len(h.compiler.Graph().Tables()),
	})
}

func (h *Handlers) decode(c *gin.Context) (*queryir.Request, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, ir.Errorf(ir.ErrCodeInvalidRequest, "read body: %v", err)
	}
	return queryir.DecodeRequest(body, queryir.FormatJSON)
}

// fail writes the error response. Malformed requests are 400, requests
// that decode but cannot be compiled are 422.
func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, endpoint string, start time.Time, err error, warnings ...string) {
	compileDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	var cerr *ir.CompileError
	if !errors.As(err, &cerr) {
		logger.Error("request failed", "error", err)
		compileRequests.WithLabelValues(endpoint, "error").Inc()
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{Code: "INTERNAL", Message: err.Error()}})
		return
	}

	status := http.StatusUnprocessableEntity
	if cerr.Code == ir.ErrCodeInvalidRequest {
		status = http.StatusBadRequest
	}
	compileRequests.WithLabelValues(endpoint, "rejected").Inc()
	compileErrors.WithLabelValues(string(cerr.Code)).Inc()
	logger.Warn("request rejected", "code", cerr.Code, "path", cerr.Path, "error", cerr.Message)

	c.JSON(status, ErrorResponse{Error: ErrorBody{
		Code:     string(cerr.Code),
		Message:  cerr.Message,
		Table:    cerr.Table,
		Path:     cerr.Path,
		Warnings: warnings,
	}})
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return h.logger.With("request_id", c.GetString("request_id"), "handler", handler)
}

// requestID tags every request with the caller's X-Request-ID or a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Package api exposes the compiler over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/cohort/internal/querysql"
)

// RegisterRoutes registers the /v1 compile endpoints on rg.
//
//	POST /v1/compile  - compile a wire request to SQL
//	POST /v1/validate - compile-check a request and list tree warnings
//	GET  /v1/tables   - schema graph tables and parent links
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	rg.POST("/compile", h.HandleCompile)
	rg.POST("/validate", h.HandleValidate)
	rg.GET("/tables", h.HandleTables)
}

// NewRouter builds the full engine: /v1 routes, /healthz and /metrics.
func NewRouter(c *querysql.Compiler, logger *slog.Logger) *gin.Engine {
	h := NewHandlers(c, logger)

	router := gin.New()
	router.Use(gin.Recovery(), requestID())
	RegisterRoutes(router.Group("/v1"), h)
	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"github.com/united-manufacturing-hub/faultrecovery/pkg/constants"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/models"
	"github.com/united-manufacturing-hub/faultrecovery/pkg/safejson"
)

// Recoverer runs a recovery and reports it. The error is only set when the
// run never started. *recovery.Supervisor implements it.
type Recoverer interface {
	Run(ctx context.Context, kind models.ErrorKind) (models.RecoveryReport, error)
}

// Server exposes recovery runs over HTTP and remembers recent reports for
// ReportRetention.
type Server struct {
	recoverer Recoverer
	reports   *expiremap.ExpireMap[string, models.RecoveryReport]
	router    *gin.Engine
	server    *http.Server
	logger    *zap.SugaredLogger
	port      int
}

func NewServer(recoverer Recoverer, port int, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Server{
		recoverer: recoverer,
		reports:   expiremap.NewEx[string, models.RecoveryReport](constants.ReportCullInterval, constants.ReportRetention),
		logger:    logger,
		port:      port,
	}
	s.router = s.newRouter()
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: a recovery may block for its full retry budget
	}

	return s
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.POST("/recover/:kind", s.handleRecover)
	v1.GET("/recoveries", s.handleListRecoveries)
	v1.GET("/recoveries/:id", s.handleGetRecovery)

	return router
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	s.logger.Infow("Starting recovery API", "port", s.port)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping recovery API")

	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.logger.Debugw("API request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// respond encodes body with safejson so reports look the same as on the CLI.
func (s *Server) respond(c *gin.Context, status int, body any) {
	encoded, err := safejson.Marshal(body)
	if err != nil {
		s.logger.Errorf("Failed to encode response: %s", err)
		c.Status(http.StatusInternalServerError)

		return
	}

	c.Data(status, "application/json; charset=utf-8", encoded)
}

func (s *Server) handleHealth(c *gin.Context) {
	s.respond(c, http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleRecover(c *gin.Context) {
	kind := models.ParseErrorKind(c.Param("kind"))

	report, err := s.recoverer.Run(c.Request.Context(), kind)
	if err != nil {
		s.respond(c, http.StatusServiceUnavailable, gin.H{"error": fmt.Sprintf("recovery not completed: %s", err)})

		return
	}

	s.reports.Set(report.ID, report)
	s.respond(c, http.StatusOK, report)
}

func (s *Server) handleGetRecovery(c *gin.Context) {
	report, ok := s.reports.Load(c.Param("id"))
	if !ok {
		s.respond(c, http.StatusNotFound, gin.H{"error": "no such recovery"})

		return
	}

	s.respond(c, http.StatusOK, *report)
}

func (s *Server) handleListRecoveries(c *gin.Context) {
	reports := make([]models.RecoveryReport, 0, s.reports.Length())
	s.reports.Range(func(_ string, report models.RecoveryReport) bool {
		reports = append(reports, report)

		return true
	})

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].StartedAt.Before(reports[j].StartedAt)
	})

	s.respond(c, http.StatusOK, reports)
}

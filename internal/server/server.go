// Package server implements the HTTP surface: a thin gin layer over the Job
// Manager and Recovery Service, grounded on the teacher's internal/server
// (Server struct, NewServer/Start/Stop, setupRoutes route grouping) narrowed
// to this pipeline's batch/job/diagnostics routes instead of the teacher's
// auth/video/author surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"video-pipeline/internal/config"
	"video-pipeline/internal/export"
	"video-pipeline/internal/pipeline"
	"video-pipeline/internal/recovery"
	"video-pipeline/internal/store"
)

// Server is the API server: a gin router wrapping the Job Manager and
// Recovery Service.
type Server struct {
	cfg        *config.Config
	manager    *pipeline.Manager
	recovery   *recovery.Service
	store      *store.Store
	httpServer *http.Server
	log        zerolog.Logger
}

// New builds a Server over the given Job Manager, Recovery Service and
// Store, using cfg for address and dev-mode error detail.
func New(cfg *config.Config, manager *pipeline.Manager, recoverySvc *recovery.Service, st *store.Store, log zerolog.Logger) *Server {
	if cfg.Server.DevMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, manager: manager, recovery: recoverySvc, store: st, log: log}
}

// Start builds the router and begins serving in the background. It returns
// once the listener goroutine has been launched; serve errors are logged,
// not returned, matching the teacher's fire-and-forget ListenAndServe.
func (s *Server) Start() error {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())

	s.setupRoutes(router)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		s.log.Info().Str("addr", s.httpServer.Addr).Msg("starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server, waiting up to 30 seconds for
// in-flight requests to finish.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.log.Info().Msg("stopping API server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("error shutting down API server")
		return err
	}
	return nil
}

func (s *Server) setupRoutes(router *gin.Engine) {
	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/videoconverter")
	{
		api.POST("/to-mp3", s.submitBatch)
		api.GET("/status/:jobId", s.getJobStatus)
		api.GET("/batch-status/:batchId", s.getBatchStatus)
		api.GET("/jobs", s.listJobs)
		api.POST("/recovery/force", s.forceRecovery)
		api.GET("/diagnostics", s.diagnostics)
		api.POST("/batch/:batchId/export", s.exportBatch)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

type submitBatchRequest struct {
	VideoUrls []string `json:"videoUrls" binding:"required"`
}

func (s *Server) submitBatch(c *gin.Context) {
	var req submitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.manager.EnqueueBatch(c.Request.Context(), req.VideoUrls)
	if err != nil {
		s.respondError(c, err)
		return
	}

	jobs := make([]gin.H, len(result.Jobs))
	for i, j := range result.Jobs {
		jobs[i] = gin.H{"jobId": j.JobID, "statusUrl": j.StatusURL}
	}
	c.JSON(http.StatusOK, gin.H{
		"batchId":       result.BatchID,
		"jobs":          jobs,
		"batchStatusUrl": "/api/videoconverter/batch-status/" + result.BatchID,
	})
}

func (s *Server) getJobStatus(c *gin.Context) {
	job, err := s.manager.GetJob(c.Param("jobId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) getBatchStatus(c *gin.Context) {
	batch, err := s.manager.GetBatch(c.Param("batchId"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (s *Server) listJobs(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	take, _ := strconv.Atoi(c.DefaultQuery("take", "20"))

	jobs, err := s.manager.ListJobs(skip, take)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) forceRecovery(c *gin.Context) {
	recovered, err := s.recovery.ForceRecovery(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"recoveredCount": recovered,
		"timestamp":      time.Now().Unix(),
	})
}

func (s *Server) diagnostics(c *gin.Context) {
	counts, err := s.store.GetQueueStatistics(24)
	if err != nil {
		s.respondError(c, err)
		return
	}
	stale, err := s.store.GetStaleJobs(time.Now().Add(-15 * time.Minute))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"statusCounts":  counts,
		"staleJobCount": len(stale),
		"timestamp":     time.Now().Unix(),
	})
}

func (s *Server) exportBatch(c *gin.Context) {
	batchID := c.Param("batchId")
	format := c.DefaultQuery("format", "xlsx")
	if format != "xlsx" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported export format: " + format})
		return
	}

	batch, err := s.manager.GetBatch(batchID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	file, err := export.BatchToXLSX(batch)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=batch-%s.xlsx", batchID))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", file)
}

// respondError maps a domain error to a sanitized HTTP response per the
// error-handling design: invalid input is a 400 with its message, not-found
// is a bare 404, and everything else is a 500 whose detail is only included
// in dev mode.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		s.log.Error().Err(err).Msg("internal server error")
		if s.cfg.Server.DevMode {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
	}
}

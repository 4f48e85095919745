// Package server exposes the document validation and visual verification
// endpoints over HTTP.
package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"docverify/internal/archive"
	"docverify/internal/audit"
	"docverify/internal/compare"
	"docverify/internal/embed"
	"docverify/internal/logger"
	"docverify/internal/ocr"
)

// Dependencies are the process-wide services constructed once at startup and
// used read-only by every request.
type Dependencies struct {
	OCR        ocr.Service
	Comparator *compare.Comparator
	General    embed.Embedder
	Face       embed.Embedder
	Audit      audit.Store
	Archive    archive.Store
}

// Server wires the HTTP routes onto the injected services.
type Server struct {
	engine *gin.Engine
	deps   Dependencies
	secret string
	log    zerolog.Logger
}

// New builds the router. A non-empty secretKey enables bearer authentication
// on the two processing endpoints.
func New(secretKey string, deps Dependencies) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		engine: engine,
		deps:   deps,
		secret: secretKey,
		log:    logger.WithComponent("http"),
	}

	engine.Use(s.requestLogger())
	engine.GET("/", s.handleRoot)

	authed := engine.Group("/")
	if secretKey != "" {
		authed.Use(s.requireSecret())
	}
	authed.POST("/validate-document", recoverTo("error"), s.handleValidateDocument)
	authed.POST("/verify", recoverTo("detail"), s.handleVerify)

	return s
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "OCR Service is running"})
}

// recoverTo converts a panic into the endpoint's error envelope, exposing the
// failure's message and nothing else.
func recoverTo(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{key: fmt.Sprint(r)})
			}
		}()
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		s.log.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request completed")
	}
}

func (s *Server) requireSecret() gin.HandlerFunc {
	expected := "Bearer " + s.secret
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != expected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// embedder selects the backend for the request's mode; one mode covers both
// the reference and the source embedding.
func (s *Server) embedder(m embed.Mode) embed.Embedder {
	if m == embed.ModeFace {
		return s.deps.Face
	}
	return s.deps.General
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// requestLog returns a logger carrying the id assigned by requestLogger, so
// handler-side entries correlate with the access log line.
func requestLog(c *gin.Context) zerolog.Logger {
	return logger.WithRequestID(c.GetString("request_id"))
}

// record writes the audit entry and archives the upload when those sinks are
// configured. Both are best-effort.
func (s *Server) record(c *gin.Context, endpoint, filename, mode, outcome string, contentType string, data []byte) {
	ctx := c.Request.Context()
	id := uuid.New()
	log := requestLog(c)

	if err := s.deps.Audit.Insert(ctx, audit.Entry{
		ID:       id,
		Endpoint: endpoint,
		Filename: filename,
		Mode:     mode,
		Outcome:  outcome,
	}); err != nil {
		log.Warn().Err(err).Str("endpoint", endpoint).Msg("audit insert failed")
	}

	if data != nil {
		key := endpoint + "/" + id.String()
		if err := s.deps.Archive.Put(ctx, key, contentType, data); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("upload archival failed")
		}
	}
}

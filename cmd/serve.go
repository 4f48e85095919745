package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"docverify/internal/archive"
	"docverify/internal/audit"
	"docverify/internal/compare"
	"docverify/internal/config"
	"docverify/internal/embed"
	"docverify/internal/logger"
	"docverify/internal/ocr"
	"docverify/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the document validation and verification HTTP server",
	Long: `Start the HTTP server exposing:

  POST /validate-document  OCR an uploaded image/PDF and compare the extracted
                           text against a caller-supplied expected-data record.
  POST /verify             Compare a reference image against a source image or
                           video using general or face embeddings.

Model weights and external clients are loaded once at startup and shared
read-only across requests.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - OCR credentials
  GENERAL_MODEL_PATH - ONNX general image encoder
  FACE_MODEL_PATH    - ONNX face encoder
  FACE_CASCADE_PATH  - Haar cascade for face detection

Optional:
  OPENAI_API_KEY - enables discrepancy analysis on comparison results
  DATABASE_URL   - enables the request audit trail
  ARCHIVE_BUCKET - enables upload archival to object storage`,
	Example: `  # Start with defaults (listens on :8000)
  docverify serve

  # Custom listen address
  LISTEN_ADDR=:9090 docverify serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, cleanup, err := buildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.New(cfg.SecretKey, deps).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// buildDependencies constructs every process-wide service exactly once. The
// returned cleanup releases them in reverse order.
func buildDependencies(ctx context.Context, cfg *config.Config) (server.Dependencies, func(), error) {
	log := logger.WithComponent("serve")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var ocrService ocr.Service
	var err error
	switch cfg.OCRBackend {
	case config.OCRBackendDocumentAI:
		ocrService, err = ocr.NewDocumentAIService(ctx, ocr.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
		}, cfg.OCRLang, cfg.OCRLang2)
	default:
		ocrService, err = ocr.NewGoogleVisionService(ctx, cfg.OCRLang, cfg.OCRLang2)
	}
	if err != nil {
		cleanup()
		return server.Dependencies{}, nil, fmt.Errorf("failed to create OCR service: %w", err)
	}
	if closer, ok := ocrService.(interface{ Close() error }); ok {
		closers = append(closers, func() { _ = closer.Close() })
	}

	var analyzer compare.Analyzer
	if cfg.EnrichmentEnabled() {
		analyzer = compare.NewOpenAIAnalyzer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		log.Info().Str("model", cfg.OpenAIModel).Msg("comparison enrichment enabled")
	} else {
		log.Info().Msg("no OpenAI key configured, comparison enrichment disabled")
	}

	general, err := embed.NewGeneralEmbedder(cfg.GeneralModelPath)
	if err != nil {
		cleanup()
		return server.Dependencies{}, nil, err
	}
	closers = append(closers, func() { _ = general.Close() })

	face, err := embed.NewFaceEmbedder(cfg.FaceModelPath, cfg.FaceCascadePath)
	if err != nil {
		cleanup()
		return server.Dependencies{}, nil, err
	}
	closers = append(closers, func() { _ = face.Close() })

	var auditStore audit.Store = audit.NopStore{}
	if cfg.AuditEnabled() {
		store, err := audit.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			cleanup()
			return server.Dependencies{}, nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		closers = append(closers, store.Close)
		auditStore = store
	}

	var archiveStore archive.Store = archive.NopStore{}
	if cfg.ArchiveEnabled() {
		archiveStore = archive.Connect(archive.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			Region:    cfg.ArchiveRegion,
			Bucket:    cfg.ArchiveBucket,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
		})
		log.Info().Str("bucket", cfg.ArchiveBucket).Msg("upload archival enabled")
	}

	return server.Dependencies{
		OCR:        ocrService,
		Comparator: compare.New(analyzer),
		General:    general,
		Face:       face,
		Audit:      auditStore,
		Archive:    archiveStore,
	}, cleanup, nil
}

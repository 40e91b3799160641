package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/statement-converter/internal/api/handlers"
	"github.com/dvloznov/statement-converter/internal/api/middleware"
	"github.com/dvloznov/statement-converter/internal/config"
	"github.com/dvloznov/statement-converter/internal/convert"
	"github.com/dvloznov/statement-converter/internal/export"
	"github.com/dvloznov/statement-converter/internal/extract"
	"github.com/dvloznov/statement-converter/internal/jobs"
	"github.com/dvloznov/statement-converter/internal/jobs/inmemory"
	"github.com/dvloznov/statement-converter/internal/logger"
	"github.com/dvloznov/statement-converter/internal/metrics"
	"github.com/dvloznov/statement-converter/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	ctx := logger.WithContext(context.Background(), log)

	m := metrics.New()

	client, err := convert.NewClient(ctx, convert.Config{
		APIKey:  cfg.Gemini.APIKey,
		Model:   cfg.Gemini.Model,
		Timeout: cfg.Gemini.Timeout,
	}, convert.WithRecorder(m))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create conversion client")
	}

	// Optional cloud export
	var uploader handlers.Uploader
	if cfg.Export.Bucket != "" {
		sink, err := export.NewGCSSink(ctx, cfg.Export.Bucket)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.Export.Bucket).Msg("Failed to create export sink")
		}
		defer sink.Close()
		uploader = sink
	} else {
		log.Warn().Msg("No EXPORT_BUCKET configured - cloud exports are disabled")
	}

	// One worker keeps a single model call in flight per process.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore,
		inmemory.WithWorkers(1),
		inmemory.WithErrorMessage(session.UserMessage),
	)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, jobs.ConvertHandler(client, m)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Statements:    handlers.NewStatementsHandler(extract.NewPDFExtractor(), jobQueue, cfg.Server.MaxUploadBytes, m),
		Jobs:          handlers.NewJobsHandler(jobStore, jobQueue),
		View:          handlers.NewViewHandler(jobStore, uploader),
		UploadLimiter: middleware.PerMinute(cfg.Server.UploadsPerMinute),
		Metrics:       m.Handler(),
		Requests:      m,
		Log:           log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("model", client.Model()).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// In-flight conversions get the shutdown window to finish.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}

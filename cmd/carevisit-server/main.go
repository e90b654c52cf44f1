package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carevisit/carevisit/internal/clients/openai"
	"github.com/carevisit/carevisit/internal/clients/resend"
	"github.com/carevisit/carevisit/internal/clients/vapi"
	"github.com/carevisit/carevisit/internal/config"
	"github.com/carevisit/carevisit/internal/domain/call"
	"github.com/carevisit/carevisit/internal/domain/caregiver"
	"github.com/carevisit/carevisit/internal/domain/recording"
	"github.com/carevisit/carevisit/internal/domain/report"
	"github.com/carevisit/carevisit/internal/domain/transcript"
	"github.com/carevisit/carevisit/internal/platform/auth"
	"github.com/carevisit/carevisit/internal/platform/blobstore"
	"github.com/carevisit/carevisit/internal/platform/db"
	"github.com/carevisit/carevisit/internal/platform/jobs"
	"github.com/carevisit/carevisit/internal/platform/middleware"
	"github.com/carevisit/carevisit/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carevisit-server",
		Short: "CareVisit telehealth companion API server",
	}

	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	blobs, err := blobstore.NewFilesystemStore(cfg.BlobDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.BlobDir).Msg("failed to open blob store")
	}

	// Background job pool. Every pipeline stage runs through it so the
	// server can drain in-flight work on shutdown.
	runner := jobs.NewRunner(cfg.JobWorkers, cfg.JobQueueSize, logger)
	runnerCtx, runnerCancel := context.WithCancel(ctx)
	defer runnerCancel()
	runner.Start(runnerCtx)

	// Websocket hub for per-entity status events.
	hub := websocket.NewHub()

	// External service clients.
	sttClient := openai.NewClient(openai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	}, logger)
	vapiClient := vapi.NewClient(vapi.Config{
		BaseURL:       cfg.VapiBaseURL,
		PhoneNumberID: cfg.VapiPhoneNumberID,
		PrivateAPIKey: cfg.VapiPrivateAPIKey,
		WorkflowID:    cfg.VapiWorkflowID,
	}, logger)
	resendClient := resend.NewClient(resend.Config{
		APIKey:    cfg.ResendAPIKey,
		FromEmail: cfg.ResendFromEmail,
	}, logger)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// The webhook group carries no user auth: the call provider signs in
	// with nothing but the payload, and the reconciler treats it as
	// untrusted input.
	webhooks := e.Group("/api")

	api := e.Group("/api")
	if cfg.IsDev() {
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   cfg.AuthIssuer,
			Audience: cfg.AuthAudience,
			JWKSURL:  cfg.AuthJWKSURL,
		}))
	}

	// -- Domain wiring --

	transcriptRepo := transcript.NewRepoPG(pool)
	transcriptSvc := transcript.NewService(transcriptRepo, blobs, sttClient, sttClient, runner, hub, logger)
	transcriptHandler := transcript.NewHandler(transcriptSvc)
	transcriptHandler.RegisterRoutes(api)

	recordingRepo := recording.NewRepoPG(pool)
	recordingSvc := recording.NewService(recordingRepo, blobs, runner, hub, logger)
	recordingSvc.SetTranscriptPipeline(transcriptSvc)
	recordingHandler := recording.NewHandler(recordingSvc)
	recordingHandler.RegisterRoutes(api)

	reportRepo := report.NewRepoPG(pool)
	reportSvc := report.NewService(reportRepo, sttClient, transcriptSvc, resendClient, runner, hub, logger)
	transcriptSvc.SetReportTrigger(reportSvc)
	reportHandler := report.NewHandler(reportSvc)
	reportHandler.RegisterRoutes(api)

	callRepo := call.NewRepoPG(pool)
	callSvc := call.NewService(callRepo, vapiClient, runner, hub, logger)
	callHandler := call.NewHandler(callSvc)
	callHandler.RegisterRoutes(api)
	callHandler.RegisterWebhookRoutes(webhooks)

	caregiverRepo := caregiver.NewRepoPG(pool)
	caregiverSvc := caregiver.NewService(caregiverRepo, logger)
	caregiverHandler := caregiver.NewHandler(caregiverSvc)
	caregiverHandler.RegisterRoutes(api)

	wsHandler := websocket.NewWebSocketHandler(hub)
	wsHandler.RegisterRoutes(api)

	// Start server
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("job runner drain failed")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidetector/aidetector/internal/config"
	"github.com/aidetector/aidetector/internal/handler"
	"github.com/aidetector/aidetector/internal/middleware"
	"github.com/aidetector/aidetector/internal/service"
	"github.com/aidetector/aidetector/pkg/logger"
)

// shutdownGrace is how long in-flight requests get after a stop signal.
const shutdownGrace = 15 * time.Second

// multipartOverhead is the body allowance on top of the file limit for
// boundaries and part headers.
const multipartOverhead = 1 << 20

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection HTTP API",
	Long:  "Serve POST /api/detect and the supporting endpoints until interrupted.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP port (default 8080)")
	serveCmd.Flags().String("env", "", "Environment: development|staging|production")
	serveCmd.Flags().Int64("max-upload-size", 0, "Maximum upload size in bytes")
	serveCmd.Flags().Duration("request-timeout", 0, "Wall-clock limit per request")
	serveCmd.Flags().Int("rate-limit", 0, "Requests per minute per client IP (0 disables)")
	serveCmd.Flags().StringSlice("allowed-origins", nil, "CORS origins")

	v.BindPFlag(config.KeyPort, serveCmd.Flags().Lookup("port"))
	v.BindPFlag(config.KeyEnvironment, serveCmd.Flags().Lookup("env"))
	v.BindPFlag(config.KeyMaxUploadSize, serveCmd.Flags().Lookup("max-upload-size"))
	v.BindPFlag(config.KeyRequestTimeout, serveCmd.Flags().Lookup("request-timeout"))
	v.BindPFlag(config.KeyRateLimit, serveCmd.Flags().Lookup("rate-limit"))
	v.BindPFlag(config.KeyAllowedOrigins, serveCmd.Flags().Lookup("allowed-origins"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newServerHandler(ctx, cfg, log),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting",
			"addr", srv.Addr,
			"env", cfg.Environment,
			"max_upload_size", cfg.MaxUploadSize,
			"rate_limit", cfg.RateLimitPerMinute,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// newServerHandler assembles routes and middleware. ctx bounds background
// work such as the rate limiter's sweeper.
func newServerHandler(ctx context.Context, cfg *config.Config, log *logger.Logger) http.Handler {
	detector := service.NewDetector(service.DetectorConfig{Seed: cfg.SamplingSeed}, log)

	h := handler.New(handler.Config{
		Detector:      detector,
		Logger:        log,
		MaxUploadSize: cfg.MaxUploadSize,
		Version:       version,
	})

	chain := middleware.Chain(
		middleware.RequestID(),
		middleware.Logging(log),
		middleware.Recovery(log),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(ctx, cfg.RateLimitPerMinute),
		middleware.MaxBodySize(cfg.MaxUploadSize+multipartOverhead),
		middleware.Timeout(cfg.RequestTimeout),
	)
	return chain(h.Routes())
}

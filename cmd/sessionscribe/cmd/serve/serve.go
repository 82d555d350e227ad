package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sessionscribe/internal/api/server"
	v1routes "sessionscribe/internal/api/v1/routes"
	"sessionscribe/internal/app"
)

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload and transcription API server",
	Long: `Start the upload and transcription API server.

- Accepts chunked audio uploads and stores them in blob storage
- Finalize reassembles chunks and transcribes through the configured provider
- Exposes /health and /metrics alongside the /api/v1 surface`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func run(ctx context.Context) error {
	application, err := app.New(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	cfg := application.Config

	container := &v1routes.ServiceContainer{
		UploadService: application.Service,
		SweepService:  application.Sweeper,
		CronSecret:    cfg.CronSecret,
	}

	// Finalize blocks until transcription finishes, so the write timeout
	// must outlast the operation bound.
	srv := server.NewServer(server.Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.FinalizeTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
		Environment:  cfg.Environment,
	}, container, application.Registry, application.Logger)

	if err := srv.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	application.Logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

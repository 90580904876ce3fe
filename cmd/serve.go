package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the Face Recognizer HTTP API.

The API exposes identification, enrollment, deletion and statistics under
/api/v1, the legacy endpoints (/identify, /add-person, /add-person-multiple,
/database-stats, /delete-person/{name}, /health) and Prometheus metrics on
/metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies --host and --port on top of the WEB_* settings.
func resolveServeHostPort(cmd *cobra.Command, a *app) {
	if port := mustGetInt(cmd, "port"); port != 0 {
		a.cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		a.cfg.Web.Host = host
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	resolveServeHostPort(cmd, a)

	if err := a.extractor.Ping(ctx); err != nil {
		a.logger.Warn("embedding server is not reachable yet", zap.String("url", a.cfg.Extractor.URL), zap.Error(err))
	}
	if a.backup != nil {
		if err := a.backup.EnsureBucket(ctx); err != nil {
			a.logger.Warn("backup bucket unavailable, backups will fail", zap.Error(err))
		}
	}

	st := a.service.GetStatistics()
	a.logger.Info("identity store loaded",
		zap.String("location", a.store.Location()),
		zap.Int("people", st.IdentityCount),
		zap.Int("embeddings", st.TotalEmbeddings),
	)

	server := web.NewServer(a.cfg, a.service, a.extractor, a.logger)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("error during shutdown", zap.Error(err))
		}
	}()

	fmt.Printf("Starting Face Recognizer API on http://%s:%d\n", a.cfg.Web.Host, a.cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	<-shutdownDone
	return nil
}

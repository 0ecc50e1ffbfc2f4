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

	"github.com/abhisek/hangeul/internal/fixture"
	"github.com/abhisek/hangeul/internal/logging"
)

const shutdownTimeout = 5 * time.Second

var fixtureServerCmd = &cobra.Command{
	Use:   "fixture-server",
	Short: "Serve sample assessments over the backend API for local use",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		contentPath, _ := cmd.Flags().GetString("content")
		token, _ := cmd.Flags().GetString("token")
		minVersion, _ := cmd.Flags().GetString("min-version")
		latency, _ := cmd.Flags().GetDuration("latency")
		level, _ := cmd.Flags().GetString("log-level")

		logger, closeLog, err := logging.New(logging.Options{Level: level})
		if err != nil {
			return err
		}
		defer closeLog()

		content, err := fixture.Sample()
		if contentPath != "" {
			content, err = fixture.LoadContent(contentPath)
		}
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr: addr,
			Handler: fixture.NewServer(fixture.Options{
				Content:          content,
				BasePath:         "/api",
				Token:            token,
				MinClientVersion: minVersion,
				Latency:          latency,
				Logger:           logger,
			}).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()
		logger.Info("fixture server listening",
			"addr", addr,
			"assessments", len(content.Assessments),
			"auth", token != "")
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s/api (Ctrl+C to stop)\n", displayAddr(addr))

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("fixture server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func init() {
	fixtureServerCmd.Flags().String("addr", ":8089", "Listen address")
	fixtureServerCmd.Flags().String("content", "", "YAML content file (default: built-in sample)")
	fixtureServerCmd.Flags().String("token", "", "Require this bearer token")
	fixtureServerCmd.Flags().String("min-version", "", "Advertise a minimum client version")
	fixtureServerCmd.Flags().Duration("latency", 0, "Delay every response")
	fixtureServerCmd.Flags().String("log-level", "info", "Log level")
}

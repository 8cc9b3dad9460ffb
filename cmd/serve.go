package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/maneifest/internal/constants"
	"github.com/kozaktomas/maneifest/internal/segmentation"
	"github.com/kozaktomas/maneifest/internal/web"
	"github.com/kozaktomas/maneifest/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Maneifest HTTP API.
The capture UI posts detected face boxes to alignment sessions and uploads
captured photos to build edit masks.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	var segmenter handlers.Segmenter
	if cfg.Segmenter.URL != "" {
		segmenter = segmentation.NewClient(cfg.Segmenter.URL)
		log.WithField("url", cfg.Segmenter.URL).Info("segmentation enabled")
	} else {
		log.Info("no SEGMENTER_URL set, masks use the fallback gradient")
	}

	server := web.NewServer(cfg, segmenter, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("error during shutdown")
		}
	}()

	fmt.Printf("Maneifest API on http://%s:%d (Ctrl+C to stop)\n", cfg.Web.Host, cfg.Web.Port)
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

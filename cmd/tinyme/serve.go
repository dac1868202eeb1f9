package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tinyme-go/internal/compressor"
	"tinyme-go/internal/fileaccess"
	"tinyme-go/internal/jobs"
	"tinyme-go/internal/web"
)

var port int

// serveCmd starts the web interface server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start web interface server",
	Long: `Starts an HTTP API for adding images, choosing presets and options,
and running compressions. Job updates are pushed to websocket clients on /ws.

The port defaults to server.port from the config (8080).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")
}

// runServe starts the web server and handles graceful shutdown.
func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("port") {
		port = cfg.Server.Port
	}

	log := setupLogger(cfg, true)
	files := fileaccess.NewLocal(cfg.SupportedExtensions)
	backend := compressor.NewImagingBackend(cfg.BackendSettings(), log)

	var sessionOpts []jobs.Option
	if cfg.Previews.Enabled {
		sessionOpts = append(sessionOpts, jobs.WithPreviews(files))
	}
	session := jobs.NewSession(backend, log, sessionOpts...)
	session.Start(context.Background())
	defer session.Close()

	server := web.NewServer(cfg, session, files, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	fmt.Printf("TinyMe API listening on http://localhost:%d\n", port)
	fmt.Printf("Press Ctrl+C to stop the server\n\n")

	<-sigChan
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Println("Server stopped gracefully")
	return nil
}

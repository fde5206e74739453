package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/OdielDomanie/clipper-bot/internal/app"
	"github.com/OdielDomanie/clipper-bot/internal/config"
	"github.com/OdielDomanie/clipper-bot/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clipperd service",
	Long: `Start the clipperd service.

The service resumes its persisted channel registrations, watches them for
live broadcasts, keeps rolling captures, and serves finished clips over
HTTP at /clips.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8300, "Port to listen on")
	serveCmd.Flags().String("database", "clipper.db", "Database file path")
	serveCmd.Flags().String("download-dir", "downloads", "Directory for live captures")
	serveCmd.Flags().String("clip-dir", "clips", "Directory for finished clips")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.path", serveCmd.Flags().Lookup("database"))
	mustBindPFlag("storage.download_dir", serveCmd.Flags().Lookup("download-dir"))
	mustBindPFlag("storage.clip_dir", serveCmd.Flags().Lookup("clip-dir"))
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Unmarshal(viper.GetViper())
	if err != nil {
		return err
	}
	logger := slog.Default()

	application, err := app.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting clipperd",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)
	return application.Run(ctx)
}

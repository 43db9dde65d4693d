package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keagan/shotlist/internal/api"
	"github.com/keagan/shotlist/internal/config"
	"github.com/keagan/shotlist/internal/editor"
	"github.com/keagan/shotlist/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	serveAddr string
	serveLast bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [video]",
	Short: "Serve the shot editor over HTTP",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		ed, err := newEditor(cfg, editor.Options{Thumbnails: cfg.Export.Thumbnails})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		switch {
		case len(args) == 1:
			if _, err := ed.Open(ctx, args[0], editor.OpenOptions{}); err != nil {
				return err
			}
		case serveLast:
			if _, err := ed.OpenLast(ctx); err != nil && !errors.Is(err, session.ErrNotFound) {
				return err
			}
		}

		srv := api.NewServer(api.ServerConfig{
			Addr:      cfg.Server.Addr,
			Editor:    ed,
			Export:    cfg.Export,
			Logger:    log.Logger,
			StartTime: time.Now(),
		})

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "shotlist.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveLast, "last", false, "reopen the most recently opened video")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

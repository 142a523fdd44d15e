package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/todmy/tarmac/internal/api"
	"github.com/todmy/tarmac/internal/auth"
	"github.com/todmy/tarmac/internal/compare"
	"github.com/todmy/tarmac/internal/storage"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from config or PORT)")

	return cmd
}

func (a *app) runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return err
	}
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}

	var repo storage.Repository
	if cfg.Storage.DSN != "" {
		repo, err = storage.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return err
		}
		defer repo.Close()
	} else {
		a.logger.Warn("no storage DSN configured; report routes are disabled")
	}

	authService := auth.NewJWTService(auth.Config{
		APIKeyHash:    cfg.Server.APIKeyHash,
		SecretKey:     cfg.Server.JWTSecret,
		TokenDuration: ttl,
	})
	if !authService.Enabled() {
		a.logger.Warn("no API key hash configured; authentication is disabled")
	}

	server := api.NewServer(api.ServerConfig{
		Compare: compare.NewService(compare.Config{
			Epsilon:         cfg.Delta.Epsilon,
			MinLeafFraction: cfg.Explain.MinLeafFraction,
			Seed:            cfg.Explain.Seed,
			MaxDepth:        cfg.Explain.MaxDepth,
		}, a.logger),
		Repository:     repo,
		Auth:           authService,
		Logger:         a.logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: timeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	})

	a.logger.Info("starting tarmac server", zap.String("port", cfg.Server.Port))
	return server.Run(ctx, ":"+cfg.Server.Port)
}

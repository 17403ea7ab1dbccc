package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cuttracker/infrastructure/audit"
	"cuttracker/infrastructure/broadcast"
	"cuttracker/infrastructure/cache"
	"cuttracker/infrastructure/config"
	httpserver "cuttracker/infrastructure/http"
	"cuttracker/infrastructure/rbac"
	"cuttracker/infrastructure/sqlite"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Apply migrations and run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			slog.SetDefault(cfg.Logger())

			db, err := openAndMigrate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			hub := broadcast.NewHub(broadcast.Options{
				BufferSize:   cfg.Hub.BufferSize,
				WriteTimeout: cfg.Hub.WriteTimeout,
				PingInterval: cfg.Hub.PingInterval,
			})
			rbacCache := cache.NewRbacRolesCache()
			server := httpserver.NewServer(cfg.Addr, db, cache.NewUserSessionCache(), cache.NewUserCache(), rbac.New(rbacCache), rbacCache, audit.NewService(), hub, httpserver.Options{
				SessionTTL:      cfg.SessionTTL,
				ShutdownTimeout: cfg.ShutdownTimeout,
			})
			if err := server.Start(); err != nil {
				return fmt.Errorf("start server: %w", err)
			}
			slog.Info("cuttracker listening", slog.String("addr", cfg.Addr), slog.String("db", cfg.SQLitePath))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go server.RunSessionJanitor(ctx, 10*time.Minute)
			<-ctx.Done()

			if err := server.Stop(); err != nil {
				slog.Error("graceful shutdown failed", slog.Any("err", err))
			}
			return nil
		},
	}
}

func openAndMigrate(ctx context.Context, cfg config.Config) (*sqlite.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := sqlite.OpenDBWithOptions(cfg.SQLitePath, sqlite.Options{
		BusyTimeout:  cfg.BusyTimeout,
		ReadPoolSize: cfg.ReadPoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if cfg.MigrationsDir != "" {
		err = sqlite.ApplyMigrations(ctx, db, cfg.MigrationsDir)
	} else {
		err = sqlite.ApplyEmbeddedMigrations(ctx, db)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return db, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	idb "water_billing_service/internal/infra/database"
	"water_billing_service/internal/infra/httpapi"
	"water_billing_service/internal/infra/logger"
	"water_billing_service/internal/infra/scheduler"
	"water_billing_service/internal/infra/telegram"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, status check scheduler and ops bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(noScheduler)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the notification status check on a schedule")

	return cmd
}

func runServe(noScheduler bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s, err := buildServices(cfg, true)
	if err != nil {
		return err
	}
	defer s.db.Close()

	if cfg.MigrationsRun {
		if err := idb.RunMigrations(s.db); err != nil {
			return err
		}
		logger.Log.Info("Database migrations applied.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var statusScheduler *scheduler.StatusCheckScheduler
	if !noScheduler {
		statusScheduler = scheduler.NewStatusCheckScheduler(s.statuses, logger.Component("scheduler"), cfg.CronSpecStatusCheck, 30*time.Minute)
		if err := statusScheduler.Start(); err != nil {
			return err
		}
	}

	if s.bot != nil {
		botLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(s.bot, cfg, botLogger)
		telegram.RegisterAdminHandlers(ctx, s.bot, s.admin, cfg.AdminTelegramID, botLogger)
		telegram.RegisterEventCallbackHandlers(ctx, s.bot, s.admin)
		go s.bot.Start()
		logger.Log.Info("Ops bot started.")
	}

	api := httpapi.NewServer(s.imports, s.notices, s.statuses, s.db, s.metrics.Handler(), logger.Component("http"))
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Log.Infof("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	logger.Log.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	if statusScheduler != nil {
		statusScheduler.Stop()
	}
	if s.bot != nil {
		s.bot.Stop()
	}
	logger.Log.Info("Application shut down gracefully.")
	return nil
}

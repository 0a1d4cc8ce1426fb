package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"RelayMessenger/internal/adminui"
	"RelayMessenger/internal/auth"
	"RelayMessenger/internal/config"
	"RelayMessenger/internal/httpapi"
	"RelayMessenger/internal/notifications"
	"RelayMessenger/internal/service"
	"RelayMessenger/internal/store/postgres"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	hasher, err := cfg.Hasher()
	if err != nil {
		logger.Error("password hasher", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := httpapi.RouterOpts{
		Logger:          logger,
		IsProd:          cfg.IsProd(),
		Registry:        reg,
		LoginRatePerMin: cfg.LoginRatePerMin,
		CORSOrigins:     cfg.CORSOrigins,
	}

	if cfg.DBDSN != "" {
		if cfg.AutoMigrate {
			if err := postgres.Migrate(cfg.DBDSN, logger); err != nil {
				logger.Error("db migrate failed", "err", err)
				os.Exit(1)
			}
		}

		pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		users := postgres.NewUsersStore(pgPool)
		sessions := postgres.NewSessionsStore(pgPool)
		messages := postgres.NewMessagesStore(pgPool)
		activity := postgres.NewActivityStore(pgPool)
		devices := postgres.NewDeviceTokensStore(pgPool)

		notificationSvc := &service.NotificationService{
			Tokens: devices,
			Logger: logger,
		}
		var notifier service.NewMessageNotifier
		if cfg.PushEnabled() {
			sender, err := notifications.NewFCMSender(context.Background(), cfg.FCMProjectID, cfg.FCMCredentials)
			if err != nil {
				logger.Error("fcm sender init failed", "err", err)
				os.Exit(1)
			}
			notificationSvc.Sender = sender
			notifier = notificationSvc
			logger.Info("push notifications enabled")
		}

		opts.Auth = &service.AuthService{
			Users:      users,
			Sessions:   sessions,
			Hasher:     hasher,
			SessionTTL: cfg.SessionTTL,
			Logger:     logger,
		}
		opts.Messages = &service.MessageService{
			Messages: messages,
			Users:    users,
			Notifier: notifier,
			Logger:   logger,
		}
		opts.Users = &service.UsersService{Store: users}
		opts.Activity = &service.ActivityService{Store: activity, Logger: logger}
		opts.Notifications = notificationSvc
		opts.DBPing = pgPool.Ping

		if cfg.AdminEnabled() {
			opts.Admin = adminui.New(adminui.Opts{
				Logger:          logger,
				Auth:            opts.Auth,
				Admin:           &service.AdminService{Users: users, Activity: activity},
				Activity:        opts.Activity,
				CookieCodec:     auth.NewCookieCodec([]byte(cfg.CookieSecret)),
				CookieSecure:    cfg.CookieSecure(),
				SessionTTL:      cfg.SessionTTL,
				AdminUsernames:  cfg.AdminUsernames,
				LoginRatePerMin: cfg.LoginRatePerMin,
			})
			logger.Info("admin console enabled", "admins", len(cfg.AdminUsernames))
		}
	} else {
		logger.Warn("APP_DB_DSN not set: only /health and /metrics are served")
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(opts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("shutdown", "err", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"atkinsieve/internal/auth"
	"atkinsieve/internal/config"
	"atkinsieve/internal/database"
	"atkinsieve/internal/handlers"
	"atkinsieve/internal/logging"
	"atkinsieve/internal/middleware"
	"atkinsieve/internal/services"
	"atkinsieve/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "КРИТИЧЕСКАЯ ОШИБКА: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// --- 1. Конфигурация ---
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	// Сообщения библиотек, пишущих через slog, попадают в тот же поток.
	slog.SetDefault(logger.Slog())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CookieSecret == config.DefaultCookieSecret {
		logger.Warn(ctx, "COOKIE_SECRET не задан, используется значение для разработки")
	}

	// --- 2. Зависимости ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("ошибка инициализации базы данных: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error(context.Background(), "ошибка закрытия базы данных", "error", err)
		}
	}()
	logger.Info(ctx, "база данных готова", "path", cfg.DBPath)

	hasher, err := auth.NewHasher(cfg.PasswordHasher)
	if err != nil {
		return err
	}

	registry := session.New()
	defer registry.Close()

	creds, err := services.NewCredentialStore(db, hasher, registry, logger, cfg.StoreTimeout)
	if err != nil {
		return err
	}
	search := services.NewSearchService(cfg.SieveMaxN2, cfg.SieveTimeout, logger)
	history := services.NewHistoryService(db, search.MaxN2(), cfg.StoreTimeout, logger)

	// --- 3. HTTP ---
	gin.SetMode(cfg.GinMode)
	router, err := handlers.NewRouter(
		handlers.New(creds, search, history, logger),
		middleware.NewRequestGate(registry, logger),
		handlers.RouterConfig{
			CookieSecret:   cfg.CookieSecret,
			SecureCookie:   cfg.CookieSecure,
			TrustedProxies: cfg.TrustedProxies,
		},
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Запись ответа может ждать окончания вычисления.
		WriteTimeout: cfg.SieveTimeout + 10*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "сервер запускается", "addr", cfg.ListenAddr, "hasher", cfg.PasswordHasher)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// --- 4. Остановка ---
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("не удалось запустить сервер: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "получен сигнал остановки, завершаем работу")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка остановки сервера: %w", err)
	}
	logger.Info(context.Background(), "сервер остановлен")
	return nil
}

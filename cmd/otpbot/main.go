// Package main запускает Telegram-бота аренды номеров для получения OTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-cleanhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/otp-rental-bot/internal/bot"
	"github.com/mmeshcher/otp-rental-bot/internal/config"
	"github.com/mmeshcher/otp-rental-bot/internal/handler"
	"github.com/mmeshcher/otp-rental-bot/internal/middleware"
	"github.com/mmeshcher/otp-rental-bot/internal/provider"
	"github.com/mmeshcher/otp-rental-bot/internal/repository"
	"github.com/mmeshcher/otp-rental-bot/internal/service"
)

const (
	shutdownTimeout   = 5 * time.Second
	telegramTimeout   = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var proxyURL *url.URL
	if cfg.UseProxy {
		proxyURL, err = url.Parse(cfg.ProxyURL)
		if err != nil {
			sugar.Fatalw("invalid proxy url", "error", err.Error())
		}
	}

	providerOpts := []provider.Option{
		provider.WithCountry(cfg.Country),
		provider.WithLogger(logger.Named("provider")),
	}
	if proxyURL != nil {
		providerOpts = append(providerOpts, provider.WithProxy(proxyURL))
	}
	client, err := provider.NewClient(cfg.ProviderURL, cfg.APIToken, providerOpts...)
	if err != nil {
		sugar.Fatalw("provider client initialization error", "error", err.Error())
	}

	if err := tgbotapi.SetLogger(zap.NewStdLog(logger.Named("telegram"))); err != nil {
		sugar.Warnw("set telegram logger", "error", err.Error())
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, telegramHTTPClient(proxyURL))
	if err != nil {
		sugar.Fatalw("telegram bot initialization error", "error", err.Error())
	}
	sugar.Infow("telegram bot authorized", "username", api.Self.UserName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	store := repository.NewOrderStore()
	registry := repository.NewPollRegistry()

	supervisor := service.NewSupervisor(ctx, client, store, registry, bot.NewNotifier(api), logger.Named("poller"), service.PollerConfig{
		Interval:           cfg.PollInterval,
		MaxAttempts:        cfg.PollAttempts,
		NotifyOnExhaustion: cfg.NotifyOnExhaustion,
	})
	svc := service.NewService(client, store, registry, supervisor, cfg.AdminID, logger)
	b := bot.New(api, svc, logger.Named("bot"))

	h := handler.NewHandler(svc, b, logger, middleware.NewWebhookAuth(cfg.BotToken), cfg.UsePolling)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting http server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Получение обновлений: long polling или регистрация webhook
	g.Go(func() error {
		if cfg.UsePolling {
			return b.RunPolling(ctx)
		}
		if err := b.SetupWebhook(cfg.WebhookURL, cfg.BotToken); err != nil {
			return fmt.Errorf("webhook setup error: %w", err)
		}
		sugar.Info("webhook mode started")
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	err = g.Wait()
	supervisor.Wait()
	sugar.Infow("polling tasks stopped", "active", registry.Count())

	if err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}

// telegramHTTPClient возвращает клиент для Bot API. Таймаут больше таймаута long polling.
func telegramHTTPClient(proxy *url.URL) *http.Client {
	client := cleanhttp.DefaultPooledClient()
	client.Timeout = telegramTimeout
	if proxy != nil {
		if transport, ok := client.Transport.(*http.Transport); ok {
			transport.Proxy = http.ProxyURL(proxy)
		}
	}
	return client
}

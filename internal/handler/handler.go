// Package handler содержит HTTP-обработчики входящих обновлений и страниц состояния бота.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/otp-rental-bot/internal/middleware"
	"github.com/mmeshcher/otp-rental-bot/internal/model"
)

const (
	botName    = "OKVIP Bot"
	botVersion = "1.0"

	// updateTimeout ограничивает обработку одного обновления из webhook.
	updateTimeout = 60 * time.Second
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Stats() model.Stats
}

// UpdateHandler обрабатывает обновления Telegram.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// Handler реализует HTTP-обработчики сервиса бота.
type Handler struct {
	service     Service
	updates     UpdateHandler
	logger      *zap.Logger
	webhookAuth *middleware.WebhookAuth
	polling     bool
	now         func() time.Time
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// В режиме polling входящие webhook-запросы подтверждаются, но не обрабатываются.
func NewHandler(s Service, updates UpdateHandler, logger *zap.Logger, auth *middleware.WebhookAuth, polling bool) *Handler {
	return &Handler{
		service:     s,
		updates:     updates,
		logger:      logger,
		webhookAuth: auth,
		polling:     polling,
		now:         time.Now,
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	model.Stats
	Bot     string `json:"bot"`
	Version string `json:"version"`
}

// Home отдаёт HTML-страницу состояния.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	stats := h.service.Stats()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<h1>🤖 %s</h1>
<p>✅ Bot is running</p>
<p>Active checks: %d</p>
<p>Total users: %d</p>
</body>
</html>
`, botName, botName, stats.ActivePolls, stats.Users)
}

// Health отдаёт состояние сервиса в JSON.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Stats:     h.service.Stats(),
		Bot:       botName,
		Version:   botVersion,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("encode health response", zap.Error(err))
	}
}

// Webhook принимает обновление Telegram и всегда отвечает 200 OK,
// чтобы Telegram не повторял доставку.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.polling {
		writeOK(w)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("decode update failed", zap.Error(err))
		writeOK(w)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), updateTimeout)
	defer cancel()

	h.updates.HandleUpdate(ctx, update)
	writeOK(w)
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

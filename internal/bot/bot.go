// Package bot реализует Telegram-интерфейс сервиса аренды номеров.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
	"github.com/mmeshcher/otp-rental-bot/internal/service"
	"github.com/mmeshcher/otp-rental-bot/internal/validation"
)

const (
	ordersLimit         = 10
	pollingTimeout      = 30
	pollingWorkers      = 10
	webhookMaxConnCount = 40
)

// Sender отправляет запросы в Telegram Bot API. Реализуется *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// API объединяет отправку сообщений и получение обновлений long polling.
type API interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// RentalService определяет контракт бизнес-логики, используемой ботом.
type RentalService interface {
	Rent(ctx context.Context, owner int64, serviceKey, networkCode string) (*model.Order, error)
	Orders(owner int64, limit int) []model.Order
	Balance(ctx context.Context, requester int64) (*model.Balance, error)
}

// Bot обрабатывает команды и callback-запросы пользователей.
type Bot struct {
	api     API
	service RentalService
	logger  *zap.Logger
}

// New создаёт обработчик обновлений Telegram.
func New(api API, svc RentalService, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		api:     api,
		service: svc,
		logger:  logger,
	}
}

// HandleUpdate обрабатывает одно обновление Telegram.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.send(newHTMLMessage(chatID, welcomeText, mainKeyboard()))
			b.logger.Info("user started bot", zap.Int64("owner", chatID))
		case "balance":
			b.replyBalance(ctx, msg)
		}
		return
	}

	switch strings.TrimSpace(msg.Text) {
	case buttonOKVIP1, "OKVIP1":
		b.sendNetworkChoice(chatID, "okvip1")
	case buttonOKVIP2, "OKVIP2":
		b.sendNetworkChoice(chatID, "okvip2")
	case buttonOrders:
		b.send(newHTMLReply(msg, ordersText(b.service.Orders(chatID, ordersLimit))))
	case buttonHelp:
		b.send(newHTMLReply(msg, helpText))
	}
}

func (b *Bot) sendNetworkChoice(chatID int64, serviceKey string) {
	svc, ok := model.LookupService(serviceKey)
	if !ok {
		return
	}
	b.send(newHTMLMessage(chatID, chooseNetworkText(svc), networkKeyboard(serviceKey)))
}

func (b *Bot) replyBalance(ctx context.Context, msg *tgbotapi.Message) {
	balance, err := b.service.Balance(ctx, msg.Chat.ID)
	switch {
	case errors.Is(err, service.ErrForbidden):
		b.send(newHTMLReply(msg, forbiddenText))
	case err != nil:
		b.logger.Error("get balance failed", zap.Error(err))
		b.send(newHTMLReply(msg, balanceFailedText))
	default:
		b.send(newHTMLReply(msg, balanceText(balance.Amount)))
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if !validation.IsRentCallback(cq.Data) {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, textProcessing)); err != nil {
		b.logger.Debug("answer callback failed", zap.Error(err))
	}
	if cq.Message == nil || cq.Message.Chat == nil {
		return
	}

	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	svc, network, err := validation.ParseRentCallback(cq.Data)
	if err != nil {
		b.logger.Warn("invalid rent callback", zap.Int64("owner", chatID), zap.String("data", cq.Data))
		return
	}

	b.send(newHTMLEdit(chatID, messageID, searchingText(svc, network)))

	order, err := b.service.Rent(ctx, chatID, svc.Key, network.Code)
	if err != nil {
		b.send(newHTMLEdit(chatID, messageID, rentFailedText(svc.Label, network.Label, failureReason(err))))
		return
	}

	b.send(newHTMLEdit(chatID, messageID, rentSuccessText(*order)))
}

// RunPolling получает обновления через long polling до отмены ctx.
// Перед возвратом дожидается обработки уже полученных обновлений.
func (b *Bot) RunPolling(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollingTimeout
	updates := b.api.GetUpdatesChan(u)

	// Обновления обрабатываются параллельно, чтобы долгая аренда одного
	// пользователя не задерживала ответы остальным.
	var g errgroup.Group
	g.SetLimit(pollingWorkers)

	b.logger.Info("polling mode started", zap.Int("workers", pollingWorkers))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return g.Wait()
		case update, ok := <-updates:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				b.HandleUpdate(ctx, update)
				return nil
			})
		}
	}
}

// SetupWebhook регистрирует адрес webhook вида <baseURL>/<token>.
func (b *Bot) SetupWebhook(baseURL, token string) error {
	if baseURL == "" {
		return errors.New("webhook url is empty")
	}
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	wh, err := tgbotapi.NewWebhook(strings.TrimRight(baseURL, "/") + "/" + token)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	wh.DropPendingUpdates = true
	wh.MaxConnections = webhookMaxConnCount

	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	b.logger.Info("webhook set", zap.String("url", strings.TrimRight(baseURL, "/")+"/***"))
	return nil
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.logger.Warn("telegram send failed", zap.Error(err))
	}
}

func newHTMLMessage(chatID int64, text string, markup interface{}) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return msg
}

func newHTMLReply(to *tgbotapi.Message, text string) tgbotapi.MessageConfig {
	msg := newHTMLMessage(to.Chat.ID, text, nil)
	msg.ReplyToMessageID = to.MessageID
	return msg
}

func newHTMLEdit(chatID int64, messageID int, text string) tgbotapi.EditMessageTextConfig {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	return edit
}

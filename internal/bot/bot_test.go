package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
	"github.com/mmeshcher/otp-rental-bot/internal/provider"
	"github.com/mmeshcher/otp-rental-bot/internal/service"
)

// fakeAPI запоминает всё, что бот отправил в Telegram.
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) sentMessages() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...)
}

// MockRentalService - мок бизнес-логики
type MockRentalService struct {
	mock.Mock
}

func (m *MockRentalService) Rent(ctx context.Context, owner int64, serviceKey, networkCode string) (*model.Order, error) {
	args := m.Called(ctx, owner, serviceKey, networkCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockRentalService) Orders(owner int64, limit int) []model.Order {
	args := m.Called(owner, limit)
	return args.Get(0).([]model.Order)
}

func (m *MockRentalService) Balance(ctx context.Context, requester int64) (*model.Balance, error) {
	args := m.Called(ctx, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Balance), args.Error(1)
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 7,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}}
}

func commandUpdate(chatID int64, command string) tgbotapi.Update {
	u := textUpdate(chatID, "/"+command)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}}
	return u
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		Data: data,
		Message: &tgbotapi.Message{
			MessageID: 99,
			Chat:      &tgbotapi.Chat{ID: chatID},
		},
	}}
}

func TestHandleUpdate_Start(t *testing.T) {
	api := newFakeAPI()
	b := New(api, new(MockRentalService), nil)

	b.HandleUpdate(context.Background(), commandUpdate(42, "start"))

	sent := api.sentMessages()
	require.Len(t, sent, 1)
	msg, ok := sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Equal(t, welcomeText, msg.Text)

	kb, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, kb.ResizeKeyboard)
	require.Len(t, kb.Keyboard, 2)
	assert.Equal(t, buttonOKVIP1, kb.Keyboard[0][0].Text)
	assert.Equal(t, buttonHelp, kb.Keyboard[1][1].Text)
}

func TestHandleUpdate_ServiceButtons(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		service string
	}{
		{name: "okvip1 button", text: buttonOKVIP1, service: "okvip1"},
		{name: "okvip1 plain", text: "OKVIP1", service: "okvip1"},
		{name: "okvip2 button", text: buttonOKVIP2, service: "okvip2"},
		{name: "okvip2 plain", text: "OKVIP2", service: "okvip2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			b := New(api, new(MockRentalService), nil)

			b.HandleUpdate(context.Background(), textUpdate(42, tt.text))

			sent := api.sentMessages()
			require.Len(t, sent, 1)
			msg := sent[0].(tgbotapi.MessageConfig)

			kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
			require.True(t, ok)
			require.Len(t, kb.InlineKeyboard, len(model.Networks))
			first := kb.InlineKeyboard[0][0]
			require.NotNil(t, first.CallbackData)
			assert.Equal(t, "rent_"+tt.service+"_any", *first.CallbackData)
		})
	}
}

func TestHandleUpdate_OrdersAndHelp(t *testing.T) {
	svc := new(MockRentalService)
	svc.On("Orders", int64(42), ordersLimit).Return([]model.Order{{
		ID:           "1",
		PhoneNumber:  "0981234567",
		ServiceLabel: "OKVIP",
		NetworkLabel: "🔴 VIETTEL",
		Status:       model.OrderStatusCompleted,
		OTPCode:      "482913",
		CreatedAt:    time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
	}})

	api := newFakeAPI()
	b := New(api, svc, nil)

	b.HandleUpdate(context.Background(), textUpdate(42, buttonOrders))
	b.HandleUpdate(context.Background(), textUpdate(42, buttonHelp))

	sent := api.sentMessages()
	require.Len(t, sent, 2)

	orders := sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, orders.Text, "482913")
	assert.Contains(t, orders.Text, "Đã nhận OTP")
	assert.Equal(t, 7, orders.ReplyToMessageID)

	assert.Equal(t, helpText, sent[1].(tgbotapi.MessageConfig).Text)
	svc.AssertExpectations(t)
}

func TestHandleUpdate_UnknownTextIgnored(t *testing.T) {
	api := newFakeAPI()
	b := New(api, new(MockRentalService), nil)

	b.HandleUpdate(context.Background(), textUpdate(42, "hello"))
	b.HandleUpdate(context.Background(), tgbotapi.Update{})

	assert.Empty(t, api.sentMessages())
}

func TestHandleUpdate_Balance(t *testing.T) {
	tests := []struct {
		name     string
		balance  *model.Balance
		err      error
		wantText string
	}{
		{
			name:     "admin",
			balance:  &model.Balance{Amount: decimal.RequireFromString("12345.6")},
			wantText: "12,345.60",
		},
		{
			name:     "forbidden",
			err:      service.ErrForbidden,
			wantText: forbiddenText,
		},
		{
			name:     "provider failure",
			err:      provider.ErrTransport,
			wantText: balanceFailedText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRentalService)
			if tt.balance != nil {
				svc.On("Balance", mock.Anything, int64(42)).Return(tt.balance, nil)
			} else {
				svc.On("Balance", mock.Anything, int64(42)).Return(nil, tt.err)
			}

			api := newFakeAPI()
			b := New(api, svc, nil)
			b.HandleUpdate(context.Background(), commandUpdate(42, "balance"))

			sent := api.sentMessages()
			require.Len(t, sent, 1)
			assert.Contains(t, sent[0].(tgbotapi.MessageConfig).Text, tt.wantText)
		})
	}
}

func TestHandleCallback_RentSuccess(t *testing.T) {
	svc := new(MockRentalService)
	svc.On("Rent", mock.Anything, int64(42), "okvip1", "VIETTEL").Return(&model.Order{
		ID:           "555",
		Owner:        42,
		PhoneNumber:  "0981234567",
		ServiceLabel: "OKVIP",
		NetworkLabel: "🔴 VIETTEL",
		Status:       model.OrderStatusWaiting,
	}, nil)

	api := newFakeAPI()
	b := New(api, svc, nil)

	b.HandleUpdate(context.Background(), callbackUpdate(42, "rent_okvip1_VIETTEL"))

	require.Len(t, api.requests, 1)
	answer, ok := api.requests[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb-1", answer.CallbackQueryID)

	sent := api.sentMessages()
	require.Len(t, sent, 2)

	searching := sent[0].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, 99, searching.MessageID)
	assert.Contains(t, searching.Text, "Đang tìm số")

	result := sent[1].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, int64(42), result.ChatID)
	assert.Contains(t, result.Text, "<code>0981234567</code>")
	assert.Contains(t, result.Text, "<code>555</code>")
	svc.AssertExpectations(t)
}

func TestHandleCallback_RentFailure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
	}{
		{
			name:       "insufficient balance",
			err:        &provider.Error{Reason: provider.ReasonInsufficientBalance, Code: -2},
			wantReason: "Số dư không đủ",
		},
		{
			name:       "provider message",
			err:        &provider.Error{Reason: provider.ReasonUnknown, Code: -9, Message: "maintenance"},
			wantReason: "maintenance",
		},
		{
			name:       "transport",
			err:        errors.Join(errors.New("create order"), provider.ErrTransport),
			wantReason: "Không kết nối được máy chủ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRentalService)
			svc.On("Rent", mock.Anything, int64(42), "okvip2", "any").Return(nil, tt.err)

			api := newFakeAPI()
			b := New(api, svc, nil)
			b.HandleUpdate(context.Background(), callbackUpdate(42, "rent_okvip2_any"))

			sent := api.sentMessages()
			require.Len(t, sent, 2)
			text := sent[1].(tgbotapi.EditMessageTextConfig).Text
			assert.Contains(t, text, "THUÊ SỐ THẤT BẠI")
			assert.Contains(t, text, tt.wantReason)
		})
	}
}

func TestHandleCallback_InvalidData(t *testing.T) {
	svc := new(MockRentalService)
	api := newFakeAPI()
	b := New(api, svc, nil)

	b.HandleUpdate(context.Background(), callbackUpdate(42, "rent_okvip9_VIETTEL"))
	b.HandleUpdate(context.Background(), callbackUpdate(42, "other"))

	assert.Empty(t, api.sentMessages())
	assert.Len(t, api.requests, 1)
	svc.AssertNotCalled(t, "Rent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRunPolling(t *testing.T) {
	api := newFakeAPI()
	b := New(api, new(MockRentalService), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.RunPolling(ctx) }()

	api.updates <- commandUpdate(42, "start")
	require.Eventually(t, func() bool { return len(api.sentMessages()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunPolling did not stop")
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
	del, ok := api.requests[0].(tgbotapi.DeleteWebhookConfig)
	require.True(t, ok)
	assert.True(t, del.DropPendingUpdates)
}

func TestRunPolling_SlowRentDoesNotBlockOtherUsers(t *testing.T) {
	release := make(chan struct{})
	svc := new(MockRentalService)
	svc.On("Rent", mock.Anything, int64(1), "okvip1", "VIETTEL").
		Run(func(mock.Arguments) { <-release }).
		Return(&model.Order{ID: "555", Owner: 1, PhoneNumber: "0981234567"}, nil)

	api := newFakeAPI()
	b := New(api, svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.RunPolling(ctx) }()

	api.updates <- callbackUpdate(1, "rent_okvip1_VIETTEL")
	api.updates <- commandUpdate(2, "start")

	welcomed := func() bool {
		for _, c := range api.sentMessages() {
			if msg, ok := c.(tgbotapi.MessageConfig); ok && msg.ChatID == 2 && msg.Text == welcomeText {
				return true
			}
		}
		return false
	}
	require.Eventually(t, welcomed, time.Second, 5*time.Millisecond)

	close(release)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunPolling did not stop")
	}

	// RunPolling дожидается начатой аренды перед возвратом.
	var rentResult bool
	for _, c := range api.sentMessages() {
		if edit, ok := c.(tgbotapi.EditMessageTextConfig); ok && strings.Contains(edit.Text, "<code>555</code>") {
			rentResult = true
		}
	}
	assert.True(t, rentResult)
	svc.AssertExpectations(t)
}

func TestSetupWebhook(t *testing.T) {
	api := newFakeAPI()
	b := New(api, new(MockRentalService), nil)

	require.NoError(t, b.SetupWebhook("https://bot.example.com/", "123:abc"))

	require.Len(t, api.requests, 2)
	wh, ok := api.requests[1].(tgbotapi.WebhookConfig)
	require.True(t, ok)
	assert.Equal(t, "https://bot.example.com/123:abc", wh.URL.String())
	assert.True(t, wh.DropPendingUpdates)
	assert.Equal(t, webhookMaxConnCount, wh.MaxConnections)

	assert.Error(t, b.SetupWebhook("", "123:abc"))
}

func TestNotifier(t *testing.T) {
	api := newFakeAPI()
	n := NewNotifier(api)
	n.now = func() time.Time { return time.Date(2026, 10, 19, 10, 30, 15, 0, time.UTC) }

	order := model.Order{
		ID:           "555",
		Owner:        42,
		PhoneNumber:  "0981234567",
		ServiceLabel: "OKVIP",
		NetworkLabel: "🔴 VIETTEL",
		OTPCode:      "482913",
	}

	require.NoError(t, n.OTPReceived(context.Background(), order, true))
	require.NoError(t, n.OrderExpired(context.Background(), order))

	sent := api.sentMessages()
	require.Len(t, sent, 2)

	otp := sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), otp.ChatID)
	assert.Contains(t, otp.Text, "<code>482913</code>")
	assert.Contains(t, otp.Text, "10:30:15")
	assert.Contains(t, otp.Text, "Nhận qua cuộc gọi")

	assert.Contains(t, sent[1].(tgbotapi.MessageConfig).Text, "HẾT THỜI GIAN CHỜ OTP")

	api.sendErr = errors.New("blocked by user")
	assert.Error(t, n.OTPReceived(context.Background(), order, false))
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "0", want: "0.00"},
		{in: "999.999", want: "1,000.00"},
		{in: "1234567.5", want: "1,234,567.50"},
		{in: "-4200", want: "-4,200.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMoney(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestMessagesEscapeHTML(t *testing.T) {
	text := rentFailedText("OKVIP", "<b>x</b>", "a & b")
	assert.Contains(t, text, "&lt;b&gt;x&lt;/b&gt;")
	assert.Contains(t, text, "a &amp; b")
}

package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
)

// Notifier отправляет пользователю итог ожидания OTP.
type Notifier struct {
	sender Sender
	now    func() time.Time
}

// NewNotifier создаёт отправителя уведомлений о заказах.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{
		sender: sender,
		now:    time.Now,
	}
}

// OTPReceived сообщает пользователю полученный код.
func (n *Notifier) OTPReceived(ctx context.Context, order model.Order, viaVoice bool) error {
	msg := newHTMLMessage(order.Owner, otpReceivedText(order, viaVoice, n.now()), nil)
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("send otp message: %w", err)
	}
	return nil
}

// OrderExpired сообщает пользователю, что время ожидания кода истекло.
func (n *Notifier) OrderExpired(ctx context.Context, order model.Order) error {
	msg := newHTMLMessage(order.Owner, orderExpiredText(order), nil)
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("send timeout message: %w", err)
	}
	return nil
}

package provider

import (
	"errors"
	"fmt"
)

// ErrTransport возвращается при сетевой или HTTP-ошибке после исчерпания повторов.
var ErrTransport = errors.New("provider transport error")

// Reason классифицирует ошибку, которую провайдер вернул в корректном ответе.
type Reason string

const (
	ReasonInsufficientBalance Reason = "insufficient_balance"
	ReasonPoolExhausted       Reason = "pool_exhausted"
	ReasonServiceUnavailable  Reason = "service_unavailable"
	ReasonRateLimited         Reason = "rate_limited"
	ReasonUnknown             Reason = "unknown"
)

// Error описывает ошибку, сообщённую провайдером в поле status_code.
type Error struct {
	Reason  Reason
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error %s (status_code %d): %s", e.Reason, e.Code, e.Message)
	}
	return fmt.Sprintf("provider error %s (status_code %d)", e.Reason, e.Code)
}

// reasonFromCode переводит status_code создания заказа в причину отказа.
func reasonFromCode(code int) Reason {
	switch code {
	case -2:
		return ReasonInsufficientBalance
	case -3:
		return ReasonPoolExhausted
	case -4:
		return ReasonServiceUnavailable
	case 429:
		return ReasonRateLimited
	default:
		return ReasonUnknown
	}
}

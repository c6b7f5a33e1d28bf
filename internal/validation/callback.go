// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"strings"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
)

const (
	rentPrefix = "rent"
	separator  = "_"

	// maxCallbackData ограничение Telegram на длину callback_data в байтах.
	maxCallbackData = 64
)

// ErrInvalidCallback возвращается для callback_data, которую бот не формировал.
var ErrInvalidCallback = errors.New("invalid callback data")

// RentCallbackData формирует callback_data кнопки выбора оператора.
func RentCallbackData(serviceKey, networkCode string) string {
	return strings.Join([]string{rentPrefix, serviceKey, networkCode}, separator)
}

// IsRentCallback сообщает, относится ли callback_data к аренде номера.
func IsRentCallback(data string) bool {
	return strings.HasPrefix(data, rentPrefix+separator)
}

// ParseRentCallback разбирает callback_data вида rent_<service>_<network>
// и проверяет, что услуга и оператор есть в каталоге.
func ParseRentCallback(data string) (model.Service, model.Network, error) {
	if len(data) > maxCallbackData || !IsRentCallback(data) {
		return model.Service{}, model.Network{}, ErrInvalidCallback
	}

	parts := strings.Split(data, separator)
	if len(parts) != 3 {
		return model.Service{}, model.Network{}, ErrInvalidCallback
	}

	svc, ok := model.LookupService(parts[1])
	if !ok {
		return model.Service{}, model.Network{}, ErrInvalidCallback
	}
	network, ok := model.LookupNetwork(parts[2])
	if !ok {
		return model.Service{}, model.Network{}, ErrInvalidCallback
	}
	return svc, network, nil
}

// Package model содержит доменные сущности бота аренды номеров.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус заказа на аренду номера.
type OrderStatus string

const (
	OrderStatusWaiting   OrderStatus = "waiting"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusTimeout   OrderStatus = "timeout"
)

// IsTerminal сообщает, что статус больше не может измениться.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusTimeout
}

// Order описывает одну сессию аренды номера у провайдера.
type Order struct {
	ID           string
	Owner        int64
	PhoneNumber  string
	ServiceLabel string
	NetworkLabel string
	Status       OrderStatus
	OTPCode      string
	CreatedAt    time.Time
}

// Balance содержит баланс аккаунта у провайдера.
type Balance struct {
	Amount decimal.Decimal `json:"balance"`
}

// Stats содержит счётчики для страницы состояния и health-check.
type Stats struct {
	ActivePolls int `json:"active_checks"`
	Users       int `json:"total_users"`
}

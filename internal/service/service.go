// Package service реализует жизненный цикл заказов на аренду номеров и ожидание OTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
	"github.com/mmeshcher/otp-rental-bot/internal/provider"
)

var (
	// ErrUnknownService возвращается для ключа услуги, которого нет в каталоге.
	ErrUnknownService = errors.New("unknown service")
	// ErrUnknownNetwork возвращается для кода оператора, которого нет в каталоге.
	ErrUnknownNetwork = errors.New("unknown network")
	// ErrForbidden возвращается, если пользователь не может запрашивать баланс.
	ErrForbidden = errors.New("forbidden")
)

// RentalClient описывает операции провайдера аренды номеров.
type RentalClient interface {
	StatusChecker
	GetBalance(ctx context.Context) (*model.Balance, error)
	CreateOrder(ctx context.Context, serviceID, network string) (*provider.CreatedOrder, error)
}

// OrderStore описывает хранилище заказов.
type OrderStore interface {
	Put(owner int64, order model.Order) error
	UpdateStatus(owner int64, orderID string, status model.OrderStatus, otpCode string) error
	Get(owner int64, orderID string) (model.Order, error)
	ListRecent(owner int64, limit int) []model.Order
	UserCount() int
}

// PollRegistry описывает реестр активных опросов.
type PollRegistry interface {
	TryAcquire(owner int64, orderID string) bool
	Release(owner int64, orderID string)
	Count() int
}

// Poller запускает фоновый опрос заказа.
type Poller interface {
	Launch(order model.Order)
}

// Service координирует аренду номеров: создаёт заказ, сохраняет его и запускает опрос.
type Service struct {
	client   RentalClient
	store    OrderStore
	registry PollRegistry
	poller   Poller
	adminID  int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewService создаёт новый сервис аренды.
func NewService(client RentalClient, store OrderStore, registry PollRegistry, poller Poller, adminID int64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client:   client,
		store:    store,
		registry: registry,
		poller:   poller,
		adminID:  adminID,
		logger:   logger,
		now:      time.Now,
	}
}

// Rent арендует номер для пользователя и запускает ожидание кода.
// Возвращает сразу после создания заказа, не дожидаясь OTP.
func (s *Service) Rent(ctx context.Context, owner int64, serviceKey, networkCode string) (*model.Order, error) {
	svc, ok := model.LookupService(serviceKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, serviceKey)
	}
	network, ok := model.LookupNetwork(networkCode)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, networkCode)
	}

	created, err := s.client.CreateOrder(ctx, svc.ID, network.Code)
	if err != nil {
		s.logger.Warn("create order failed",
			zap.Int64("owner", owner),
			zap.String("service", svc.Key),
			zap.String("network", network.Code),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create order: %w", err)
	}

	order := model.Order{
		ID:           created.ID,
		Owner:        owner,
		PhoneNumber:  created.PhoneNumber,
		ServiceLabel: svc.Label,
		NetworkLabel: network.Label,
		Status:       model.OrderStatusWaiting,
		CreatedAt:    s.now(),
	}
	if err := s.store.Put(owner, order); err != nil {
		s.logger.Error("store order failed", zap.Int64("owner", owner), zap.String("order", order.ID), zap.Error(err))
		return nil, fmt.Errorf("store order: %w", err)
	}

	s.poller.Launch(order)

	s.logger.Info("order created",
		zap.Int64("owner", owner),
		zap.String("order", order.ID),
		zap.String("phone", order.PhoneNumber),
		zap.String("service", svc.Key),
		zap.String("network", network.Code),
		zap.String("balance", created.Balance.String()),
	)
	return &order, nil
}

// Orders возвращает последние заказы пользователя, начиная с самого нового.
func (s *Service) Orders(owner int64, limit int) []model.Order {
	return s.store.ListRecent(owner, limit)
}

// Balance возвращает баланс аккаунта провайдера. Доступно только администратору.
func (s *Service) Balance(ctx context.Context, requester int64) (*model.Balance, error) {
	if s.adminID == 0 || requester != s.adminID {
		return nil, ErrForbidden
	}
	b, err := s.client.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

// Stats возвращает число активных опросов и пользователей с заказами.
func (s *Service) Stats() model.Stats {
	return model.Stats{
		ActivePolls: s.registry.Count(),
		Users:       s.store.UserCount(),
	}
}

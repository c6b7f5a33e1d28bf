package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
	"github.com/mmeshcher/otp-rental-bot/internal/provider"
	"github.com/mmeshcher/otp-rental-bot/internal/repository"
)

const (
	// DefaultPollInterval интервал между проверками статуса заказа.
	DefaultPollInterval = 3 * time.Second
	// DefaultPollAttempts максимальное число проверок одного заказа.
	DefaultPollAttempts = 120
)

// StatusChecker проверяет статус заказа у провайдера.
type StatusChecker interface {
	CheckStatus(ctx context.Context, orderID string) (*provider.SessionStatus, error)
}

// Notifier доставляет пользователю итог ожидания кода.
type Notifier interface {
	OTPReceived(ctx context.Context, order model.Order, viaVoice bool) error
	OrderExpired(ctx context.Context, order model.Order) error
}

// Outcome описывает, чем закончился опрос заказа.
type Outcome int

const (
	// OutcomeSkipped опрос этого заказа уже выполняется другой задачей.
	OutcomeSkipped Outcome = iota
	OutcomeDelivered
	OutcomeExpired
	// OutcomeExhausted попытки закончились без окончательного ответа провайдера.
	OutcomeExhausted
	OutcomeCancelled
	// OutcomeFailed задача завершилась паникой.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeExpired:
		return "expired"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PollerConfig задаёт параметры опроса.
type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	// NotifyOnExhaustion переводит заказ в timeout и уведомляет пользователя,
	// когда попытки закончились без ответа провайдера.
	NotifyOnExhaustion bool
}

// Supervisor опрашивает провайдера по созданным заказам до получения кода или истечения срока.
type Supervisor struct {
	client   StatusChecker
	store    OrderStore
	registry PollRegistry
	notifier Notifier
	logger   *zap.Logger
	cfg      PollerConfig

	baseCtx context.Context
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

// NewSupervisor создаёт супервизор опроса. Задачи, запущенные через Launch, отменяются вместе с ctx.
func NewSupervisor(
	ctx context.Context,
	client StatusChecker,
	store OrderStore,
	registry PollRegistry,
	notifier Notifier,
	logger *zap.Logger,
	cfg PollerConfig,
) *Supervisor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultPollAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Supervisor{
		client:   client,
		store:    store,
		registry: registry,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		baseCtx:  ctx,
	}
}

// Launch запускает опрос заказа в отдельной горутине и не ждёт его завершения.
// После отмены базового контекста или вызова Wait новые задачи не запускаются.
func (s *Supervisor) Launch(order model.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.baseCtx.Err() != nil {
		s.logger.Warn("polling not started, supervisor is stopping",
			zap.Int64("owner", order.Owner),
			zap.String("order", order.ID),
		)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Poll(s.baseCtx, order)
	}()
}

// Wait блокируется до завершения всех запущенных задач опроса.
// После вызова Wait супервизор больше не принимает новые задачи.
func (s *Supervisor) Wait() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()
}

// Poll синхронно опрашивает провайдера по заказу.
// Ключ заказа в реестре освобождается на любом пути выхода.
func (s *Supervisor) Poll(ctx context.Context, order model.Order) (outcome Outcome) {
	if !s.registry.TryAcquire(order.Owner, order.ID) {
		return OutcomeSkipped
	}
	defer s.registry.Release(order.Owner, order.ID)

	log := s.logger.With(
		zap.String("task", uuid.NewString()),
		zap.Int64("owner", order.Owner),
		zap.String("order", order.ID),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("polling task panic recovered", zap.Any("panic", r))
			outcome = OutcomeFailed
		}
	}()

	log.Info("polling started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("max_attempts", s.cfg.MaxAttempts),
	)

	// Пауза отсчитывается от конца предыдущей проверки, а не от её начала.
	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
		if ctx.Err() != nil {
			log.Info("polling cancelled", zap.Int("attempt", attempt))
			return OutcomeCancelled
		}

		status, err := s.client.CheckStatus(ctx, order.ID)
		timer.Reset(s.cfg.Interval)
		if err != nil {
			log.Debug("status check failed", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		switch status.State {
		case provider.SessionDelivered:
			s.deliver(ctx, log, order, status)
			return OutcomeDelivered
		case provider.SessionExpired:
			s.expire(ctx, log, order)
			return OutcomeExpired
		}
	}

	log.Warn("polling attempts exhausted", zap.Int("attempts", s.cfg.MaxAttempts))
	if s.cfg.NotifyOnExhaustion {
		s.expire(ctx, log, order)
	}
	return OutcomeExhausted
}

func (s *Supervisor) deliver(ctx context.Context, log *zap.Logger, order model.Order, status *provider.SessionStatus) {
	if !s.finish(log, order, model.OrderStatusCompleted, status.Code) {
		return
	}
	order.Status = model.OrderStatusCompleted
	order.OTPCode = status.Code

	log.Info("otp received", zap.Bool("via_voice", status.ViaVoice))
	if err := s.notifier.OTPReceived(ctx, order, status.ViaVoice); err != nil {
		log.Error("send otp notification failed", zap.Error(err))
	}
}

func (s *Supervisor) expire(ctx context.Context, log *zap.Logger, order model.Order) {
	if !s.finish(log, order, model.OrderStatusTimeout, "") {
		return
	}
	order.Status = model.OrderStatusTimeout

	log.Info("order expired")
	if err := s.notifier.OrderExpired(ctx, order); err != nil {
		log.Error("send timeout notification failed", zap.Error(err))
	}
}

// finish сохраняет окончательный статус. false означает, что заказ уже завершён и уведомлять не нужно.
func (s *Supervisor) finish(log *zap.Logger, order model.Order, status model.OrderStatus, code string) bool {
	err := s.store.UpdateStatus(order.Owner, order.ID, status, code)
	switch {
	case err == nil:
		return true
	case errors.Is(err, repository.ErrOrderFinished):
		log.Warn("order already finished, notification skipped", zap.String("status", string(status)))
		return false
	default:
		log.Error("update order status failed", zap.String("status", string(status)), zap.Error(err))
		return true
	}
}

// Package repository содержит in-memory хранилища заказов и активных опросов.
package repository

import (
	"errors"
	"sync"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
)

var (
	// ErrOrderNotFound возвращается, если у пользователя нет заказа с таким идентификатором.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists возвращается при повторном сохранении заказа с тем же идентификатором.
	ErrOrderExists = errors.New("order already exists")
	// ErrOrderFinished возвращается при попытке изменить завершённый заказ.
	ErrOrderFinished = errors.New("order already finished")
	// ErrInvalidTransition возвращается при попытке вернуть заказ в статус ожидания.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// orderEntry хранит одну запись заказа под собственной блокировкой.
type orderEntry struct {
	mu    sync.Mutex
	order model.Order
}

func (e *orderEntry) snapshot() model.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order
}

// userOrders хранит заказы одного пользователя в порядке создания.
type userOrders struct {
	mu    sync.RWMutex
	byID  map[string]*orderEntry
	order []*orderEntry
}

// OrderStore хранит заказы пользователей в памяти процесса.
// Каждая запись блокируется отдельно, поэтому обновления разных заказов не мешают друг другу.
type OrderStore struct {
	mu    sync.RWMutex
	users map[int64]*userOrders
}

// NewOrderStore создаёт пустое хранилище заказов.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		users: make(map[int64]*userOrders),
	}
}

func (s *OrderStore) bucket(owner int64, create bool) *userOrders {
	s.mu.RLock()
	b, ok := s.users[owner]
	s.mu.RUnlock()
	if ok || !create {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok = s.users[owner]; ok {
		return b
	}
	b = &userOrders{byID: make(map[string]*orderEntry)}
	s.users[owner] = b
	return b
}

// Put сохраняет новый заказ пользователя.
func (s *OrderStore) Put(owner int64, order model.Order) error {
	order.Owner = owner
	if order.Status == "" {
		order.Status = model.OrderStatusWaiting
	}

	b := s.bucket(owner, true)
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byID[order.ID]; ok {
		return ErrOrderExists
	}
	e := &orderEntry{order: order}
	b.byID[order.ID] = e
	b.order = append(b.order, e)
	return nil
}

// UpdateStatus переводит заказ в завершённый статус. Переход выполняется не более одного раза.
func (s *OrderStore) UpdateStatus(owner int64, orderID string, status model.OrderStatus, otpCode string) error {
	if !status.IsTerminal() {
		return ErrInvalidTransition
	}

	e, err := s.entry(owner, orderID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.order.Status.IsTerminal() {
		return ErrOrderFinished
	}
	e.order.Status = status
	if status == model.OrderStatusCompleted {
		e.order.OTPCode = otpCode
	}
	return nil
}

// Get возвращает копию заказа пользователя.
func (s *OrderStore) Get(owner int64, orderID string) (model.Order, error) {
	e, err := s.entry(owner, orderID)
	if err != nil {
		return model.Order{}, err
	}
	return e.snapshot(), nil
}

// ListRecent возвращает до limit последних заказов пользователя, начиная с самого нового.
func (s *OrderStore) ListRecent(owner int64, limit int) []model.Order {
	b := s.bucket(owner, false)
	if b == nil || limit <= 0 {
		return nil
	}

	b.mu.RLock()
	n := len(b.order)
	if limit > n {
		limit = n
	}
	entries := make([]*orderEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		entries = append(entries, b.order[i])
	}
	b.mu.RUnlock()

	res := make([]model.Order, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.snapshot())
	}
	return res
}

// UserCount возвращает число пользователей, у которых есть хотя бы один заказ.
func (s *OrderStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *OrderStore) entry(owner int64, orderID string) (*orderEntry, error) {
	b := s.bucket(owner, false)
	if b == nil {
		return nil, ErrOrderNotFound
	}

	b.mu.RLock()
	e, ok := b.byID[orderID]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrOrderNotFound
	}
	return e, nil
}

package repository

import (
	"sync"
	"sync/atomic"
)

type pollKey struct {
	owner   int64
	orderID string
}

// PollRegistry хранит ключи заказов, по которым сейчас идёт опрос.
type PollRegistry struct {
	active sync.Map
	count  atomic.Int64
}

// NewPollRegistry создаёт пустой реестр активных опросов.
func NewPollRegistry() *PollRegistry {
	return &PollRegistry{}
}

// TryAcquire атомарно занимает ключ заказа. Возвращает false, если опрос уже идёт.
func (r *PollRegistry) TryAcquire(owner int64, orderID string) bool {
	if _, loaded := r.active.LoadOrStore(pollKey{owner: owner, orderID: orderID}, struct{}{}); loaded {
		return false
	}
	r.count.Add(1)
	return true
}

// Release освобождает ключ заказа. Повторный вызов ничего не делает.
func (r *PollRegistry) Release(owner int64, orderID string) {
	if _, loaded := r.active.LoadAndDelete(pollKey{owner: owner, orderID: orderID}); loaded {
		r.count.Add(-1)
	}
}

// Active сообщает, идёт ли опрос по заказу.
func (r *PollRegistry) Active(owner int64, orderID string) bool {
	_, ok := r.active.Load(pollKey{owner: owner, orderID: orderID})
	return ok
}

// Count возвращает число активных опросов.
func (r *PollRegistry) Count() int {
	return int(r.count.Load())
}

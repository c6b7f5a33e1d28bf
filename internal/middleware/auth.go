// Package middleware содержит HTTP middleware сервиса бота.
package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// TokenParam имя параметра маршрута с токеном бота.
const TokenParam = "token"

// WebhookAuth пропускает только запросы, в пути которых указан токен бота.
type WebhookAuth struct {
	tokenMAC []byte
	key      []byte
}

// NewWebhookAuth создаёт проверку пути webhook для указанного токена.
func NewWebhookAuth(token string) *WebhookAuth {
	key := []byte("webhook-path")
	return &WebhookAuth{
		tokenMAC: sign(key, token),
		key:      key,
	}
}

// Middleware сравнивает параметр {token} маршрута с токеном бота.
// При несовпадении отвечает 404, чтобы не раскрывать существование маршрута.
func (a *WebhookAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := chi.URLParam(r, TokenParam)
		if got == "" || !hmac.Equal(sign(a.key, got), a.tokenMAC) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sign приводит значения к одной длине, чтобы сравнение не зависело от длины токена.
func sign(key []byte, value string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

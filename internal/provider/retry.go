package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// checkRetry повторяет запрос при ошибках соединения и статусах 429/500/502/503/504.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true, nil
	}
	return false, nil
}

// zapLeveledLogger передаёт журнал retryablehttp в zap, скрывая токен API.
type zapLeveledLogger struct {
	sugar *zap.SugaredLogger
	token string
}

var _ retryablehttp.LeveledLogger = zapLeveledLogger{}

func (l zapLeveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, l.redact(keysAndValues)...)
}

func (l zapLeveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, l.redact(keysAndValues)...)
}

func (l zapLeveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, l.redact(keysAndValues)...)
}

func (l zapLeveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, l.redact(keysAndValues)...)
}

func (l zapLeveledLogger) redact(keysAndValues []interface{}) []interface{} {
	out := make([]interface{}, len(keysAndValues))
	for i, v := range keysAndValues {
		if i%2 == 0 {
			out[i] = v
			continue
		}
		out[i] = redactToken(fmt.Sprint(v), l.token)
	}
	return out
}

func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "***")
}

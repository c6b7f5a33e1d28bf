// Package provider предоставляет клиент REST API провайдера аренды номеров.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/otp-rental-bot/internal/model"
)

const (
	// DefaultBaseURL адрес API провайдера по умолчанию.
	DefaultBaseURL = "https://api.viotp.com"
	// DefaultCountry страна, в которой арендуются номера.
	DefaultCountry = "vn"

	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
	requestTimeout = 15 * time.Second
	statusOK       = 200
)

// SessionState описывает состояние ожидания кода по заказу.
type SessionState int

const (
	SessionWaiting SessionState = iota
	SessionDelivered
	SessionExpired
)

// CreatedOrder описывает ответ провайдера на создание заказа.
type CreatedOrder struct {
	ID          string
	PhoneNumber string
	Balance     decimal.Decimal
}

// SessionStatus описывает ответ провайдера на проверку заказа.
type SessionStatus struct {
	State    SessionState
	Code     string
	ViaVoice bool
}

// Client инкапсулирует HTTP-взаимодействие с провайдером аренды номеров.
type Client struct {
	baseURL    *url.URL
	token      string
	country    string
	httpClient *retryablehttp.Client
}

type options struct {
	country  string
	proxy    *url.URL
	logger   *zap.Logger
	retryMax int
	waitMin  time.Duration
	waitMax  time.Duration
	timeout  time.Duration
}

// Option настраивает Client.
type Option func(*options)

// WithCountry задаёт страну, в которой запрашиваются номера.
func WithCountry(country string) Option {
	return func(o *options) { o.country = country }
}

// WithProxy направляет запросы к провайдеру через прокси.
func WithProxy(proxy *url.URL) Option {
	return func(o *options) { o.proxy = proxy }
}

// WithLogger задаёт логгер для повторов запросов.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRetryWait задаёт границы экспоненциальной задержки между повторами.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(o *options) {
		o.waitMin = minWait
		o.waitMax = maxWait
	}
}

// WithTimeout задаёт таймаут одной попытки запроса.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) { o.timeout = timeout }
}

// NewClient создаёт клиент провайдера с указанным адресом API и токеном.
func NewClient(baseURL, token string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse provider url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("provider url must be absolute")
	}
	if token == "" {
		return nil, fmt.Errorf("provider token is empty")
	}

	o := options{
		country:  DefaultCountry,
		logger:   zap.NewNop(),
		retryMax: 2,
		waitMin:  time.Second,
		waitMax:  4 * time.Second,
		timeout:  requestTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	transport := cleanhttp.DefaultPooledTransport()
	if o.proxy != nil {
		transport.Proxy = http.ProxyURL(o.proxy)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: transport,
		Timeout:   o.timeout,
	}
	rc.RetryMax = o.retryMax
	rc.RetryWaitMin = o.waitMin
	rc.RetryWaitMax = o.waitMax
	rc.CheckRetry = checkRetry
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.Logger = zapLeveledLogger{sugar: o.logger.Sugar(), token: token}

	return &Client{
		baseURL:    parsed,
		token:      token,
		country:    o.country,
		httpClient: rc,
	}, nil
}

type envelope struct {
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type balanceData struct {
	Balance decimal.Decimal `json:"balance"`
}

type orderData struct {
	RequestID   flexString      `json:"request_id"`
	PhoneNumber flexString      `json:"phone_number"`
	Balance     decimal.Decimal `json:"balance"`
}

type sessionData struct {
	Status  int        `json:"Status"`
	Code    flexString `json:"Code"`
	IsSound flexBool   `json:"IsSound"`
}

// GetBalance запрашивает баланс аккаунта.
func (c *Client) GetBalance(ctx context.Context) (*model.Balance, error) {
	env, err := c.get(ctx, "users/balance", url.Values{})
	if err != nil {
		return nil, err
	}
	if env.StatusCode != statusOK {
		return nil, &Error{Reason: ReasonUnknown, Code: env.StatusCode, Message: env.Message}
	}

	var data balanceData
	if err := decodeData(env.Data, &data); err != nil {
		return nil, err
	}
	return &model.Balance{Amount: data.Balance}, nil
}

// CreateOrder арендует номер для услуги. Пустой network или "any" оставляет выбор оператора провайдеру.
func (c *Client) CreateOrder(ctx context.Context, serviceID, network string) (*CreatedOrder, error) {
	params := url.Values{}
	params.Set("serviceId", serviceID)
	params.Set("country", c.country)
	if network != "" && network != model.NetworkAny {
		params.Set("network", network)
	}

	env, err := c.get(ctx, "request/getv2", params)
	if err != nil {
		return nil, err
	}
	if env.StatusCode != statusOK {
		return nil, &Error{Reason: reasonFromCode(env.StatusCode), Code: env.StatusCode, Message: env.Message}
	}

	var data orderData
	if err := decodeData(env.Data, &data); err != nil {
		return nil, err
	}
	if data.RequestID == "" {
		return nil, &Error{Reason: ReasonUnknown, Code: env.StatusCode, Message: "empty request_id"}
	}

	return &CreatedOrder{
		ID:          string(data.RequestID),
		PhoneNumber: string(data.PhoneNumber),
		Balance:     data.Balance,
	}, nil
}

// CheckStatus проверяет, пришёл ли код по заказу.
// Ошибка означает неудачную проверку, а не окончание заказа.
func (c *Client) CheckStatus(ctx context.Context, orderID string) (*SessionStatus, error) {
	params := url.Values{}
	params.Set("requestId", orderID)

	env, err := c.get(ctx, "session/getv2", params)
	if err != nil {
		return nil, err
	}
	if env.StatusCode != statusOK {
		return nil, &Error{Reason: ReasonUnknown, Code: env.StatusCode, Message: env.Message}
	}

	var data sessionData
	if err := decodeData(env.Data, &data); err != nil {
		return nil, err
	}

	switch data.Status {
	case 0:
		return &SessionStatus{State: SessionWaiting}, nil
	case 1:
		if data.Code == "" {
			return &SessionStatus{State: SessionWaiting}, nil
		}
		return &SessionStatus{
			State:    SessionDelivered,
			Code:     string(data.Code),
			ViaVoice: bool(data.IsSound),
		}, nil
	case 2:
		return &SessionStatus{State: SessionExpired}, nil
	default:
		return nil, fmt.Errorf("unexpected session status %d", data.Status)
	}
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*envelope, error) {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, endpoint)
	params.Set("token", c.token)
	u.RawQuery = params.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrTransport, endpoint, redactToken(err.Error(), c.token))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: unexpected status %d", ErrTransport, endpoint, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %s: decode response: %v", ErrTransport, endpoint, err)
	}
	return &env, nil
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrTransport, err)
	}
	return nil
}

// flexString принимает строку или число.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

// flexBool принимает true/false как булево значение или строку.
type flexBool bool

func (v *flexBool) UnmarshalJSON(b []byte) error {
	*v = flexBool(strings.EqualFold(strings.Trim(string(b), `"`), "true"))
	return nil
}

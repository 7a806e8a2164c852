package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"SessionPulse/internal/errs"
	"SessionPulse/internal/metrics"
	"SessionPulse/internal/models"
)

const (
	defaultBaseURL = "https://api.resend.com"
	userAgent      = "SessionPulse/1.0"
)

// ProviderError is a non-retryable response from the provider API.
type ProviderError struct {
	StatusCode int
	Name       string
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned %d %s: %s", e.StatusCode, e.Name, e.Message)
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	From    string

	// Timeout applies to each HTTP attempt.
	Timeout time.Duration
	// MaxRetries bounds retries of transport-level failures (network, 429, 5xx).
	MaxRetries int
	// RetryWait is the initial backoff between retries.
	RetryWait time.Duration

	Limiter    *rate.Limiter
	HTTPClient *http.Client
	Log        *zap.Logger
}

// ProviderClient talks to a delayed-delivery email API (Resend-compatible):
// scheduled submission, send-time update and cancellation. Every call waits
// on the shared rate limiter, runs under a per-attempt timeout and a circuit
// breaker, and retries transient failures with exponential backoff.
type ProviderClient struct {
	cfg     ProviderConfig
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*http.Response]
	log     *zap.Logger
}

func NewProviderClient(cfg ProviderConfig) *ProviderClient {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}

	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "email-provider",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return &ProviderClient{
		cfg:     cfg,
		baseURL: baseURL,
		client:  client,
		limiter: limiter,
		breaker: breaker,
		log:     log,
	}
}

type providerTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type submitRequest struct {
	From        string        `json:"from"`
	To          []string      `json:"to"`
	Subject     string        `json:"subject"`
	HTML        string        `json:"html"`
	ScheduledAt string        `json:"scheduled_at,omitempty"`
	Tags        []providerTag `json:"tags,omitempty"`
}

type submitResponse struct {
	ID string `json:"id"`
}

type updateRequest struct {
	ScheduledAt string `json:"scheduled_at"`
}

type errorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Submit hands msg to the provider for delivery at sendAt. A zero sendAt
// sends immediately.
func (c *ProviderClient) Submit(ctx context.Context, msg models.RenderedEmail, to models.Recipient, sendAt time.Time) (string, error) {
	req := submitRequest{
		From:    c.cfg.From,
		To:      []string{formatAddress(to)},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Tags:    buildTags(msg.Tags),
	}
	if !sendAt.IsZero() {
		req.ScheduledAt = sendAt.UTC().Format(time.RFC3339)
	}

	headers := map[string]string{}
	if key := msg.Tags[models.TagIdempotency]; key != "" {
		headers["Idempotency-Key"] = key
	}

	body, err := c.do(ctx, "submit", http.MethodPost, "/emails", req, headers)
	if err != nil {
		return "", err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode provider submit response: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("provider accepted message without an id")
	}
	return resp.ID, nil
}

// UpdateTime moves a scheduled message to sendAt.
func (c *ProviderClient) UpdateTime(ctx context.Context, providerID string, sendAt time.Time) error {
	path := "/emails/" + url.PathEscape(providerID)
	_, err := c.do(ctx, "update", http.MethodPatch, path, updateRequest{ScheduledAt: sendAt.UTC().Format(time.RFC3339)}, nil)
	return mapFinal(err)
}

// Cancel stops a scheduled message. Messages that were already sent or
// cancelled report errs.ErrAlreadyFinal.
func (c *ProviderClient) Cancel(ctx context.Context, providerID string) error {
	path := "/emails/" + url.PathEscape(providerID) + "/cancel"
	_, err := c.do(ctx, "cancel", http.MethodPost, path, nil, nil)
	return mapFinal(err)
}

func (c *ProviderClient) do(ctx context.Context, op, method, path string, payload any, headers map[string]string) ([]byte, error) {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode provider %s request: %w", op, err)
		}
	}

	start := time.Now()
	var body []byte

	// Retries draw from the limiter like first attempts.
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(fmt.Errorf("provider rate limiter: %w", err))
		}
		b, err := c.attempt(ctx, method, path, raw, headers)
		if err != nil {
			c.log.Debug("provider attempt failed", zap.String("operation", op), zap.Error(err))
			return err
		}
		body = b
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryWait
	b.MaxInterval = 5 * time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(c.cfg.MaxRetries, 0))), ctx)

	err := backoff.Retry(operation, policy)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ProviderRequests.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", op, err)
	}
	return body, nil
}

// attempt performs one HTTP exchange. Transient failures are returned as
// plain errors so the backoff retries them; everything else is permanent.
func (c *ProviderClient) attempt(ctx context.Context, method, path string, raw []byte, headers map[string]string) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if raw != nil {
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("User-Agent", userAgent)
	if raw != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if resp != nil {
		defer resp.Body.Close()
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, backoff.Permanent(err)
	}
	if err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	var apiErr errorResponse
	_ = json.Unmarshal(body, &apiErr)
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return nil, backoff.Permanent(&ProviderError{
		StatusCode: resp.StatusCode,
		Name:       apiErr.Name,
		Message:    apiErr.Message,
	})
}

// mapFinal turns provider refusals on already-sent or already-cancelled
// messages into errs.ErrAlreadyFinal.
func mapFinal(err error) error {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return err
	}
	if pe.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", errs.ErrAlreadyFinal, pe.Message)
	}
	switch pe.StatusCode {
	case http.StatusBadRequest, http.StatusConflict, http.StatusUnprocessableEntity:
		msg := strings.ToLower(pe.Message)
		if strings.Contains(msg, "already") || strings.Contains(msg, "cannot be cancel") || strings.Contains(msg, "not scheduled") {
			return fmt.Errorf("%w: %s", errs.ErrAlreadyFinal, pe.Message)
		}
	}
	return err
}

func buildTags(tags map[string]string) []providerTag {
	if len(tags) == 0 {
		return nil
	}
	names := make([]string, 0, len(tags))
	for name := range tags {
		if name == models.TagIdempotency {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]providerTag, 0, len(names))
	for _, name := range names {
		out = append(out, providerTag{Name: name, Value: tags[name]})
	}
	return out
}

func formatAddress(to models.Recipient) string {
	if to.Name == "" {
		return to.Email
	}
	return (&mail.Address{Name: to.Name, Address: to.Email}).String()
}

package panelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pratik-mahalle/panelbot/internal/pkg/clock"
	"github.com/pratik-mahalle/panelbot/internal/pkg/logger"
	"github.com/pratik-mahalle/panelbot/internal/pkg/metrics"
)

// TransportConfig tunes the HTTP layer shared by every panel adapter
type TransportConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	RequestsPerSec float64
	Burst          int
	HTTPClient     *http.Client
}

// StatusError is returned for non-retryable or exhausted HTTP failures
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("panel responded %d: %s", e.Code, strings.TrimSpace(body))
}

// Transport issues panel HTTP requests with rate limiting and retries
type Transport struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	clock      clock.Clock
	logger     *logger.Logger
}

// NewTransport creates a transport
func NewTransport(cfg TransportConfig, clk clock.Clock, log *logger.Logger) *Transport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Transport{
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		clock:      clk,
		logger:     log.Component("panel_transport"),
	}
}

// request describes one logical call. Exactly one of form and body may be set.
type request struct {
	panel  string
	method string
	url    string
	token  string
	query  url.Values
	form   url.Values
	body   interface{}
}

// retryable reports whether an HTTP status is worth another attempt
func retryable(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoffFor returns the sleep before the given retry attempt (1-based)
func (t *Transport) backoffFor(attempt int) time.Duration {
	return time.Duration(float64(t.backoff) * math.Pow(1.5, float64(attempt-1)))
}

// Do performs the request, decoding a JSON response into out when non-nil.
func (t *Transport) Do(ctx context.Context, req request, out interface{}) error {
	payload, contentType, err := encodeBody(req)
	if err != nil {
		return err
	}

	target := req.url
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			delay := t.backoffFor(attempt)
			metrics.RecordPanelRetry(req.panel)
			t.logger.WithFields(map[string]interface{}{
				"method":  req.method,
				"url":     req.url,
				"attempt": attempt + 1,
				"delay":   delay.String(),
			}).WarnWithErr(lastErr, "Retrying panel request")
			if err := t.clock.Sleep(ctx, delay); err != nil {
				return err
			}
		}

		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}

		status, body, err := t.send(ctx, req, target, payload, contentType)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		if status >= 400 {
			lastErr = &StatusError{Code: status, Body: string(body)}
			if retryable(status) {
				continue
			}
			return lastErr
		}

		if out != nil && len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to parse panel response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("panel request failed after %d attempts: %w", t.maxRetries+1, lastErr)
}

func (t *Transport) send(ctx context.Context, req request, target string, payload []byte, contentType string) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordPanelRequest(req.panel, req.method, 0, time.Since(start))
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	metrics.RecordPanelRequest(req.panel, req.method, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

func encodeBody(req request) ([]byte, string, error) {
	switch {
	case req.form != nil:
		return []byte(req.form.Encode()), "application/x-www-form-urlencoded", nil
	case req.body != nil:
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		cleaned, err := dropNulls(data)
		if err != nil {
			return nil, "", err
		}
		return cleaned, "application/json", nil
	default:
		return nil, "", nil
	}
}

// dropNulls removes null object fields and null list items, recursively
func dropNulls(data []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to normalize request body: %w", err)
	}
	return json.Marshal(prune(v))
}

func prune(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		for k, val := range x {
			if val == nil {
				delete(x, k)
				continue
			}
			x[k] = prune(val)
		}
		return x
	case []interface{}:
		out := make([]interface{}, 0, len(x))
		for _, val := range x {
			if val != nil {
				out = append(out, prune(val))
			}
		}
		return out
	default:
		return v
	}
}

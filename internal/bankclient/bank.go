// Package bankclient wraps the outbound call to the bank simulator with
// the timeouts, retry, and circuit-breaker policy a payment gateway needs
// so it never reports "declined" when the bank's true answer is unknown.
package bankclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Request is the open bag sent to the bank: amount, currency,
// card_number, expiry_date ("MM/YYYY"), cvv, plus anything a future
// processor wants to add.
type Request map[string]any

// Response is the open bag the bank returns. Authorized, Indeterminate,
// AuthorizationCode and ErrorMessage are the fields callers consume;
// anything else the bank sends rides along unused.
type Response map[string]any

func (r Response) Bool(key string) (bool, bool) {
	v, ok := r[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (r Response) String(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

type Config struct {
	URL                     string
	ConnectTimeout          time.Duration
	ReadTimeout             time.Duration
	RetryCount              int
	BreakerFailureThreshold uint32
	BreakerWindow           time.Duration
	BreakerOpenTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:          2 * time.Second,
		ReadTimeout:             5 * time.Second,
		RetryCount:              3,
		BreakerFailureThreshold: 5,
		BreakerWindow:           30 * time.Second,
		BreakerOpenTimeout:      10 * time.Second,
	}
}

// Client calls the bank simulator. It never returns a transport error to
// its caller: retries exhausted or the breaker open both synthesize an
// indeterminate Response instead.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		DialContext: dialer.DialContext,
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "bank-simulator",
		MaxRequests: 1,
		Interval:    cfg.BreakerWindow,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("bank circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.ConnectTimeout + cfg.ReadTimeout,
			Transport: transport,
		},
		breaker: breaker,
		logger:  logger,
	}
}

// Process sends req to the bank and classifies the outcome. It never
// returns a non-nil error for a transport/5xx failure: that failure is
// folded into the fallback Response instead (authorized=false,
// indeterminate=true). An error return means something is wrong with the
// caller's request shape (e.g. it can't be marshalled), not with the bank.
func (c *Client) Process(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal bank request: %w", err)
	}

	result, err := c.breaker.Execute(func() (any, error) {
		return c.callWithRetry(ctx, body)
	})
	if err != nil {
		c.logger.Warn("bank call failed after retries or breaker open, falling back to indeterminate",
			zap.Error(err))
		return fallback(err), nil
	}
	return result.(Response), nil
}

func (c *Client) callWithRetry(ctx context.Context, body []byte) (Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryCount; attempt++ {
		resp, err := c.call(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		c.logger.Warn("bank simulator call failed, will retry",
			zap.Int("attempt", attempt), zap.Int("max_attempts", c.cfg.RetryCount), zap.Error(err))

		if attempt < c.cfg.RetryCount {
			backoff := time.Duration(attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func (c *Client) call(ctx context.Context, body []byte) (Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build bank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call bank simulator: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		return nil, fmt.Errorf("bank simulator returned status %d", httpResp.StatusCode)
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode bank response: %w", err)
	}
	return resp, nil
}

func fallback(cause error) Response {
	return Response{
		"authorized":    false,
		"indeterminate": true,
		"error_message": cause.Error(),
	}
}

package integrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrProtocolViolation ответ сервиса не содержит ни area, ни error или не разбирается
var ErrProtocolViolation = errors.New("integrator protocol violation")

// Request тело запроса к сервису интегрирования
type Request struct {
	Expression string  `json:"expression"`
	LowerLimit float64 `json:"lower_limit"`
	UpperLimit float64 `json:"upper_limit"`
}

// Response ответ сервиса: либо area, либо error
type Response struct {
	Area  *float64 `json:"area"`
	Error *string  `json:"error"`
}

// TransportError вызов не состоялся: сеть, не-2xx статус, отмена, открытый предохранитель
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("integrator transport error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("integrator transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type Config struct {
	URL     string
	Timeout time.Duration // 0 - без таймаута

	// Параметры предохранителя
	BreakerName        string
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
	BreakerMinRequests uint32
	BreakerFailureRate float64

	// OnAvailabilityChange вызывается при смене состояния предохранителя
	OnAvailabilityChange func(available bool)
}

func DefaultConfig(url string) Config {
	return Config{
		URL:                url,
		BreakerName:        "integrator",
		BreakerMaxRequests: 5,
		BreakerInterval:    30 * time.Second,
		BreakerTimeout:     30 * time.Second,
		BreakerMinRequests: 5,
		BreakerFailureRate: 0.8,
	}
}

// Client HTTP клиент удаленного сервиса интегрирования
type Client struct {
	url     string
	timeout time.Duration
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		url:     cfg.URL,
		timeout: cfg.Timeout,
		http:    httpClient,
		logger:  logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerFailureRate
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
			if cfg.OnAvailabilityChange != nil {
				cfg.OnAvailabilityChange(to != gobreaker.StateOpen)
			}
		},
		// Отмена устаревшего раунда не говорит о здоровье сервиса
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return c
}

// Integrate выполняет один запрос. Доменная ошибка возвращается в Response.Error
// с nil error, транспортные сбои как *TransportError, кривой ответ как ErrProtocolViolation.
func (c *Client) Integrate(ctx context.Context, req Request) (Response, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = &TransportError{Err: err}
		}
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("integrator call failed", zap.String("expression", req.Expression), zap.Error(err))
		}
		return Response{}, err
	}
	return res.(Response), nil
}

func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return Response{}, &TransportError{StatusCode: resp.StatusCode}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	if out.Area == nil && out.Error == nil {
		return Response{}, ErrProtocolViolation
	}

	c.logger.Debug("integrator call settled",
		zap.String("expression", req.Expression), zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

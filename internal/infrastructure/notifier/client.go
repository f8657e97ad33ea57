package notifier

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/logging"
	"github.com/ScotianOG/the-soless-system-sub002/internal/platform/resilience"
	"github.com/ScotianOG/the-soless-system-sub002/internal/usecase"
)

var errNotifierTransient = crerr.New("reward notifier transient failure")

const (
	pathTierReward = "/events/tier-reward"
	pathRankReward = "/events/rank-reward"
)

type Config struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	Workers        int
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client delivers settlement events to the notification sink. Delivery
// runs on a worker pool so settlement never waits on the sink, and a
// circuit breaker sheds load when the sink is down.
type Client struct {
	client         *http.Client
	baseURL        string
	token          string
	pool           *ants.Pool
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	logger         *logging.Logger
}

func NewClient(cfg Config, logger *logging.Logger) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}
	if logger == nil {
		logger = logging.Default()
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, crerr.New("notifier base url is required")
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, crerr.Wrap(err, "create notifier worker pool")
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		client:         &http.Client{Timeout: timeout},
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		pool:           pool,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		logger:         logger,
	}, nil
}

// Close drains the worker pool.
func (c *Client) Close() {
	c.pool.Release()
}

func (c *Client) NotifyTierReward(ctx context.Context, event usecase.TierRewardEvent) error {
	return c.enqueue(ctx, pathTierReward, event)
}

func (c *Client) NotifyRankReward(ctx context.Context, event usecase.RankRewardEvent) error {
	return c.enqueue(ctx, pathRankReward, event)
}

func (c *Client) enqueue(ctx context.Context, path string, payload any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "notifier circuit breaker rejected event", "state", string(c.breaker.State()))
			return crerr.Wrap(err, "reward notifier is temporarily unavailable")
		}
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		return crerr.Wrap(err, "marshal reward event")
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("notifier.path", path),
			attribute.Int("notifier.payload_bytes", len(body)),
		)
	}

	// Handed off to the pool: the caller's context may end before the
	// event is posted, so delivery runs under its own deadline.
	if err := c.pool.Submit(func() {
		c.post(path, body)
	}); err != nil {
		return crerr.Wrap(err, "enqueue reward event")
	}
	return nil
}

func (c *Client) post(path string, body []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), c.client.Timeout)
	defer cancel()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	_, _ = buf.Write(body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(buf.String()))
	if err != nil {
		c.logger.Error("build notifier request", "path", path, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.recordFailure()
		c.logger.Warn("reward event delivery failed", "path", path, "error", err)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		c.recordFailure()
		c.logger.Warn("reward event rejected by sink",
			"path", path,
			"status", resp.StatusCode,
			"error", crerr.Wrapf(errNotifierTransient, "status %d", resp.StatusCode),
		)
		return
	}

	if c.circuitEnabled {
		c.breaker.RecordSuccess()
	}
}

func (c *Client) recordFailure() {
	if c.circuitEnabled {
		c.breaker.RecordFailure()
	}
}

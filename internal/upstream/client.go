package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/junctionhq/junction/gateway/internal/domain/protocol"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/config"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/resilience"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/tracing"
	"go.uber.org/zap"
)

// Upstream target names used for breakers and metrics labels.
const (
	TargetWorkflow   = "workflow"
	TargetCapability = "capability"
)

// Client is the shared outbound HTTP client for upstream calls. Every
// call is a single POST bounded by the configured per-call timeout:
// no retries, because workflow triggers are not idempotent-safe, and
// a breaker per target fails fast when an engine is down.
type Client struct {
	http     *resty.Client
	breakers *resilience.Group
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	workflowURL   string
	capabilityURL string
	timeout       time.Duration
}

// NewClient builds the upstream client from config.
func NewClient(cfg config.UpstreamConfig, logger *logging.Logger, metrics *monitoring.Metrics) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.CallTimeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "junction-gateway/1.0").
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	breakers := resilience.NewGroup(resilience.Config{
		TripThreshold: 5,
		OpenTimeout:   30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("upstream breaker state change",
				zap.String("target", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		http:          httpClient,
		breakers:      breakers,
		logger:        logger,
		metrics:       metrics,
		workflowURL:   cfg.WorkflowURL,
		capabilityURL: cfg.CapabilityURL,
		timeout:       cfg.CallTimeout,
	}
}

// Timeout returns the per-call timeout bound.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// BreakerStates reports breaker state per target for the stats API.
func (c *Client) BreakerStates() map[string]string {
	return c.breakers.States()
}

// post performs exactly one outbound POST. The response body is
// returned verbatim as JSON; failures come back as UpstreamError.
func (c *Client) post(ctx context.Context, target, url string, body interface{}) (json.RawMessage, error) {
	timer := monitoring.NewTimer(c.metrics, target)

	// One correlation ID per outbound call so engine logs can be
	// matched to gateway spans.
	headers := map[string]string{"X-Request-ID": uuid.NewString()}
	tracing.InjectTraceContext(ctx, headers)

	var resp *resty.Response
	err := c.breakers.Execute(target, func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		r, err := c.http.R().
			SetContext(callCtx).
			SetHeaders(headers).
			SetBody(body).
			Post(url)
		if err != nil {
			return err
		}
		if r.IsError() {
			return fmt.Errorf("%s returned %s%s", target, r.Status(), bodyExcerpt(r.Body()))
		}
		resp = r
		return nil
	})
	if err != nil {
		timer.Stop("error")
		return nil, c.upstreamError(target, err)
	}

	timer.Stop("success")
	return rawResult(resp.Body()), nil
}

// upstreamError wraps a transport failure with a client-facing detail.
func (c *Client) upstreamError(target string, err error) *protocol.UpstreamError {
	detail := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		detail = fmt.Sprintf("%s call timed out after %s", target, c.timeout)
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		detail = fmt.Sprintf("%s unavailable: circuit open", target)
	}
	return &protocol.UpstreamError{Target: target, Detail: detail, Cause: err}
}

// rawResult normalizes a response body into valid JSON so the result
// envelope always encodes. Non-JSON bodies become JSON strings.
func rawResult(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return json.RawMessage("null")
	}
	if sonic.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, err := sonic.Marshal(string(trimmed))
	if err != nil {
		return json.RawMessage("null")
	}
	return quoted
}

// bodyExcerpt trims an error body for the detail message.
func bodyExcerpt(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	const max = 200
	if len(trimmed) > max {
		trimmed = trimmed[:max]
	}
	return ": " + string(trimmed)
}

package phpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	apperrors "github.com/wms-platform/pharmacy-inventory/pkg/errors"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
	"github.com/wms-platform/pharmacy-inventory/pkg/metrics"
	"github.com/wms-platform/pharmacy-inventory/pkg/resilience"
	"github.com/wms-platform/pharmacy-inventory/pkg/tracing"
)

// PHP endpoints, relative to the base URL
const (
	EndpointPurchaseOrders  = "purchase_orders.php"
	EndpointProducts        = "products.php"
	EndpointUpdateReceived  = "update_received_qty.php"
	EndpointReceiveItem     = "receive_item.php"
	EndpointReturnItem      = "return_item.php"
	EndpointStockAdjustment = "stock_adjustment.php"
)

const maxResponseBytes = 16 << 20

// Config holds the PHP API client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Breaker *resilience.CircuitBreakerConfig
}

// DefaultConfig returns default client configuration
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL: baseURL,
		Timeout: 8 * time.Second,
		Breaker: resilience.DefaultCircuitBreakerConfig("php-api"),
	}
}

// Client talks to the PHP inventory API. Every response is decoded from
// the {success, data, message} envelope and normalized before it leaves
// this package. Calls are never retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *logging.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// NewClient creates a new Client. m may be nil.
func NewClient(config *Config, logger *logging.Logger, m *metrics.Metrics) *Client {
	breakerConfig := config.Breaker
	if breakerConfig == nil {
		breakerConfig = resilience.DefaultCircuitBreakerConfig("php-api")
	}
	breakerConfig.IsSuccessful = func(err error) bool {
		// success=false means the backend answered
		return err == nil || apperrors.HasCode(err, apperrors.CodeApplicationError)
	}
	if m != nil {
		breakerConfig.OnStateChange = func(name string, _, to gobreaker.State) {
			m.SetCircuitBreakerState(name, resilience.StateValue(to))
		}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewCircuitBreaker(breakerConfig, logger.Logger),
		logger:     logger.WithComponent("php-api-client"),
		metrics:    m,
		tracer:     otel.Tracer("php-api-client"),
	}
}

// BreakerStatus returns the circuit breaker counters
func (c *Client) BreakerStatus() resilience.CircuitBreakerStatus {
	return c.breaker.Status()
}

// ListPurchaseOrders fetches every purchase order with its lines
func (c *Client) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrderHeader, error) {
	var dtos []purchaseOrderDTO
	if err := c.call(ctx, http.MethodGet, EndpointPurchaseOrders, nil, &dtos); err != nil {
		return nil, err
	}
	return normalizePurchaseOrders(dtos, c.logger.WithContext(ctx)), nil
}

// ListProducts fetches every product with its stock and earliest expiration
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var dtos []productDTO
	if err := c.call(ctx, http.MethodGet, EndpointProducts, nil, &dtos); err != nil {
		return nil, err
	}
	return normalizeProducts(dtos), nil
}

// UpdateReceivedQuantity sets the received quantity of a line
func (c *Client) UpdateReceivedQuantity(ctx context.Context, update domain.ReceivedQuantityUpdate) error {
	return c.call(ctx, http.MethodPost, EndpointUpdateReceived, map[string]any{
		"purchase_header_id": update.PurchaseOrderID,
		"purchase_dtl_id":    update.LineID,
		"received_qty":       update.ReceivedQty,
	}, nil)
}

// ReceiveLine books a complete line into stock
func (c *Client) ReceiveLine(ctx context.Context, purchaseOrderID, lineID string) error {
	return c.call(ctx, http.MethodPost, EndpointReceiveItem, map[string]any{
		"purchase_header_id": purchaseOrderID,
		"purchase_dtl_id":    lineID,
	}, nil)
}

// ReturnLine returns a complete line to the supplier
func (c *Client) ReturnLine(ctx context.Context, purchaseOrderID, lineID, reason string) error {
	return c.call(ctx, http.MethodPost, EndpointReturnItem, map[string]any{
		"purchase_header_id": purchaseOrderID,
		"purchase_dtl_id":    lineID,
		"reason":             reason,
	}, nil)
}

// SubmitStockAdjustment records a manual stock adjustment
func (c *Client) SubmitStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) error {
	return c.call(ctx, http.MethodPost, EndpointStockAdjustment, map[string]any{
		"product_id":      adjustment.ProductID,
		"quantity_change": adjustment.QuantityChange,
		"adjustment_type": string(adjustment.Type),
		"reason":          adjustment.Reason,
		"adjusted_by":     adjustment.AdjustedBy,
	}, nil)
}

// call performs one request through the breaker, with a client span,
// metrics and an upstream log line.
func (c *Client) call(ctx context.Context, method, endpoint string, body any, out any) error {
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "php "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(tracing.UpstreamSpanAttributes(method, endpoint)...),
	)
	defer span.End()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, method, endpoint, body, out)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		err = apperrors.ErrNetworkFailure(endpoint).Wrap(err)
	}

	duration := time.Since(start)
	outcome := "success"
	if err != nil {
		outcome = apperrors.FromError(err).Code
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("upstream.outcome", outcome))

	if c.metrics != nil {
		c.metrics.RecordUpstreamCall(endpoint, outcome, duration)
	}
	c.logger.UpstreamCall(ctx, endpoint, duration, err)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.ErrInternal("failed to encode request").Wrap(err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, reader)
	if err != nil {
		return apperrors.ErrInternal("failed to create request").Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	if correlationID := logging.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}
	tracing.InjectTraceContext(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(endpoint, err)
	}

	return decodeEnvelope(endpoint, resp.StatusCode, raw, out)
}

// transportError maps a failed round trip to TIMEOUT when a deadline
// expired and to NETWORK_FAILURE otherwise.
func transportError(endpoint string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.ErrTimeout(endpoint).Wrap(err)
	}
	return apperrors.ErrNetworkFailure(endpoint).Wrap(err)
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// decodeEnvelope classifies a response body. A body that is not a JSON
// object with a success field is malformed, unless the status is 5xx, in
// which case the backend itself is failing.
func decodeEnvelope(endpoint string, status int, raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Success == nil {
		if status >= http.StatusInternalServerError {
			return apperrors.ErrNetworkFailure(endpoint).WithDetail("status", strconv.Itoa(status))
		}
		appErr := apperrors.ErrMalformedResponse(endpoint).WithDetail("status", strconv.Itoa(status))
		if err != nil {
			appErr.Wrap(err)
		}
		return appErr
	}

	if !*env.Success {
		message := env.Message
		if message == "" {
			message = env.Error
		}
		return apperrors.ErrApplication(message).WithDetail("endpoint", endpoint)
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperrors.ErrMalformedResponse(endpoint).Wrap(fmt.Errorf("decode data: %w", err))
	}
	return nil
}

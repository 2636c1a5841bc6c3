package phpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/pharmacy-inventory/internal/application"
	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	apperrors "github.com/wms-platform/pharmacy-inventory/pkg/errors"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

var _ application.InventoryGateway = (*Client)(nil)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := DefaultConfig(server.URL)
	config.Timeout = 200 * time.Millisecond
	return NewClient(config, logging.NewNop(), nil)
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestClient_ListPurchaseOrders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/"+EndpointPurchaseOrders, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		respond(`{
			"success": true,
			"data": [{
				"purchase_header_id": 7,
				"po_number": "PO-0007",
				"supplier_name": "MedSupply",
				"order_date": "2026-03-01 10:15:00",
				"products": [
					{"purchase_dtl_id": "70", "product_id": 1, "product_name": "Amoxicillin", "quantity": "10", "received_qty": 4},
					{"purchase_dtl_id": "71", "product_id": 2, "product_name": "Insulin", "quantity": 5, "received_qty": "5", "missing_qty": "0"},
					{"purchase_dtl_id": "72", "product_id": 3, "product_name": "Gauze", "quantity": 3, "received_qty": 0, "item_status": "Returned"}
				]
			}]
		}`)(w, r)
	})

	ctx := logging.ContextWithRequestID(context.Background(), "req-1")
	headers, err := client.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, headers, 1)

	header := headers[0]
	assert.Equal(t, "7", header.ID)
	assert.Equal(t, DefaultStatus, header.Status)
	assert.Equal(t, DefaultDeliveryStatus, header.DeliveryStatus)
	require.NotNil(t, header.OrderDate)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC), *header.OrderDate)
	assert.Equal(t, domain.OverallPartialDelivery, header.OverallStatus)

	require.Len(t, header.Lines, 3)
	assert.Equal(t, domain.ItemStatusPartial, header.Lines[0].ItemStatus)
	assert.Equal(t, 6, header.Lines[0].MissingQty)
	assert.Equal(t, domain.ItemStatusComplete, header.Lines[1].ItemStatus)
	assert.Equal(t, domain.ItemStatusReturned, header.Lines[2].ItemStatus)
}

func TestClient_ListProductsNormalizesAliases(t *testing.T) {
	client := newTestClient(t, respond(`{
		"success": true,
		"data": [
			{"product_id": 1, "product_name": "A", "quantity": "12", "expiration": "2026-05-01", "srp": "9.75"},
			{"product_id": 2, "product_name": "B", "total_quantity": 3, "earliest_expiration": "2026-04-01"},
			{"product_id": 3, "product_name": "C", "product_quantity": "0", "expiration": "0000-00-00"},
			{"product_id": 4, "product_name": "D", "quantity": "", "total_quantity": "8", "expiration": "not a date"}
		]
	}`))

	products, err := client.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 4)

	assert.Equal(t, 12, products[0].Quantity)
	assert.True(t, decimal.RequireFromString("9.75").Equal(products[0].SRP))
	require.NotNil(t, products[0].ExpirationDate)

	assert.Equal(t, 3, products[1].Quantity)
	require.NotNil(t, products[1].ExpirationDate)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), *products[1].ExpirationDate)

	assert.Equal(t, 0, products[2].Quantity)
	assert.Nil(t, products[2].ExpirationDate)

	assert.Equal(t, 8, products[3].Quantity)
	assert.Nil(t, products[3].ExpirationDate)
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode string
		wantMsg  string
	}{
		{
			name:     "application error",
			handler:  respond(`{"success": false, "message": "Supplier is inactive"}`),
			wantCode: apperrors.CodeApplicationError,
			wantMsg:  "Supplier is inactive",
		},
		{
			name:     "missing success field",
			handler:  respond(`{"data": []}`),
			wantCode: apperrors.CodeMalformedResponse,
		},
		{
			name:     "not json",
			handler:  respond(`<br /><b>Warning</b>: mysqli_connect()`),
			wantCode: apperrors.CodeMalformedResponse,
		},
		{
			name: "server error page",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("Bad Gateway"))
			},
			wantCode: apperrors.CodeNetworkFailure,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			wantCode: apperrors.CodeTimeout,
		},
		{
			name:     "data of the wrong shape",
			handler:  respond(`{"success": true, "data": {"rows": 3}}`),
			wantCode: apperrors.CodeMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			_, err := client.ListProducts(context.Background())

			require.Error(t, err)
			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, appErr.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestClient_ApplicationErrorsDoNotTripBreaker(t *testing.T) {
	client := newTestClient(t, respond(`{"success": false, "message": "nope"}`))

	for i := 0; i < 10; i++ {
		_, _ = client.ListProducts(context.Background())
	}

	assert.Equal(t, "closed", client.BreakerStatus().State)
}

func TestClient_NetworkFailuresOpenBreaker(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	for i := 0; i < 5; i++ {
		_, _ = client.ListProducts(context.Background())
	}

	_, err := client.ListProducts(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNetworkFailure))
	assert.Equal(t, "open", client.BreakerStatus().State)
}

func TestClient_PostsLineActions(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/"+EndpointReturnItem, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		respond(`{"success": true, "message": "Item returned"}`)(w, r)
	})

	require.NoError(t, client.ReturnLine(context.Background(), "7", "72", "damaged"))
	assert.Equal(t, map[string]any{"purchase_header_id": "7", "purchase_dtl_id": "72", "reason": "damaged"}, got)
}

func TestClient_SubmitStockAdjustment(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/"+EndpointStockAdjustment, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		respond(`{"success": true}`)(w, r)
	})

	err := client.SubmitStockAdjustment(context.Background(), domain.StockAdjustment{
		ProductID: "1", QuantityChange: -2, Type: domain.AdjustmentDamaged, Reason: "broken vial",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", got["product_id"])
	assert.Equal(t, float64(-2), got["quantity_change"])
	assert.Equal(t, "damaged", got["adjustment_type"])
}

func TestClient_CallerDeadlineIsTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.ListPurchaseOrders(ctx)

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeTimeout, appErr.Code)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.HTTPStatus)
}

func TestClient_RefusedConnectionIsNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(DefaultConfig(url), logging.NewNop(), nil)
	_, err := client.ListProducts(context.Background())

	assert.True(t, apperrors.HasCode(err, apperrors.CodeNetworkFailure))
}

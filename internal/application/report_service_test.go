package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/api"
	testutil "github.com/wms-platform/pharmacy-inventory/pkg/testing"
)

func reportProducts() []domain.Product {
	return []domain.Product{
		{ID: "1", Name: "Amoxicillin", Category: "Antibiotic", Quantity: 4, SRP: decimal.RequireFromString("12.50")},
		{ID: "2", Name: "Cetirizine", Category: "Antihistamine", Quantity: 0, SRP: decimal.RequireFromString("3.00")},
		{ID: "3", Name: "Insulin", Category: "Hormone", Quantity: 20, SRP: decimal.RequireFromString("45.10"), ExpirationDate: daysFromToday(10)},
	}
}

func newTestReportService(t *testing.T) *ReportService {
	t.Helper()
	gateway := &fakeGateway{products: reportProducts(), orders: testOrders()}
	products := newProductController(gateway)
	orders := newOrderController(gateway)
	require.NoError(t, products.Refresh(context.Background(), TriggerStartup))
	require.NoError(t, orders.Refresh(context.Background(), TriggerStartup))

	svc := NewReportService(products, orders, NewPurchaseOrderService(orders, gateway, testLogger()), DefaultAlertRules(), testLogger())
	svc.clock = testutil.FixedClock(testToday)
	return svc
}

func TestReportService_Dashboard(t *testing.T) {
	svc := newTestReportService(t)

	view := svc.Dashboard(context.Background())

	assert.Equal(t, 3, view.ProductCount)
	assert.Equal(t, 24, view.TotalUnits)
	assert.True(t, decimal.RequireFromString("952.00").Equal(view.TotalStockValue), view.TotalStockValue.String())
	assert.Equal(t, 1, view.AlertCounts[domain.AlertLowStock])
	assert.Equal(t, 1, view.AlertCounts[domain.AlertOutOfStock])
	assert.Equal(t, 1, view.AlertCounts[domain.AlertExpiringSoon])
	assert.Equal(t, 0, view.AlertCounts[domain.AlertExpired])
	assert.Equal(t, 3, view.TotalAlerts)
	assert.Equal(t, 3, view.PurchaseOrders.ByFilter[domain.FilterAll])
	assert.True(t, view.Controllers[ResourceProducts].Loaded)
	assert.Equal(t, 3, view.Controllers[ResourcePurchaseOrders].Records)
}

func TestReportService_InventoryReport(t *testing.T) {
	svc := newTestReportService(t)

	report, err := svc.InventoryReport(context.Background(), InventoryReportQuery{})
	require.NoError(t, err)

	require.Len(t, report.Rows, 3)
	assert.Equal(t, "low-stock", report.Rows[0].StockStatus)
	assert.Equal(t, "out-of-stock", report.Rows[1].StockStatus)
	assert.Equal(t, "expiring-soon", report.Rows[2].ExpiryStatus)
	assert.True(t, decimal.RequireFromString("902").Equal(report.Rows[2].Value))
	assert.Equal(t, 3, report.Totals.Products)
	assert.Equal(t, 24, report.Totals.Units)

	filtered, err := svc.InventoryReport(context.Background(), InventoryReportQuery{Alert: "out-of-stock"})
	require.NoError(t, err)
	require.Len(t, filtered.Rows, 1)
	assert.Equal(t, "2", filtered.Rows[0].ProductID)

	_, err = svc.InventoryReport(context.Background(), InventoryReportQuery{Alert: "nope"})
	assert.ErrorIs(t, err, domain.ErrUnknownAlertKey)
}

func TestProductService_ListProducts(t *testing.T) {
	gateway := &fakeGateway{products: reportProducts()}
	products := newProductController(gateway)
	require.NoError(t, products.Refresh(context.Background(), TriggerStartup))
	svc := NewProductService(products, DefaultAlertRules(), testLogger())
	svc.clock = testutil.FixedClock(testToday)

	result, err := svc.ListProducts(context.Background(), ListProductsQuery{Search: "IN", Page: api.DefaultPageRequest()})
	require.NoError(t, err)
	// Amoxicillin, Cetirizine and Insulin all contain "in"
	assert.Equal(t, 3, result.Page.TotalItems)

	result, err = svc.ListProducts(context.Background(), ListProductsQuery{Category: "hormone", Page: api.DefaultPageRequest()})
	require.NoError(t, err)
	require.Len(t, result.Page.Data, 1)
	assert.Equal(t, "Insulin", result.Page.Data[0].Name)
	assert.True(t, result.Page.Data[0].Alerts.ExpiringSoon)

	result, err = svc.ListProducts(context.Background(), ListProductsQuery{Alert: "low-stock", Page: api.DefaultPageRequest()})
	require.NoError(t, err)
	require.Len(t, result.Page.Data, 1)
	assert.Equal(t, "low-stock", result.Page.Data[0].StockStatus)

	assert.Equal(t, []string{"Antibiotic", "Antihistamine", "Hormone"}, svc.Categories(context.Background()))
}

package application

import (
	"time"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/api"
)

// ListPurchaseOrdersQuery represents the query to list purchase orders
type ListPurchaseOrdersQuery struct {
	Status   string
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time
	Page     api.PageRequest
}

// ListProductsQuery represents the query to list products
type ListProductsQuery struct {
	Search   string
	Category string
	Alert    string
	Screen   string
	Page     api.PageRequest
}

// UpdateReceivedQuantityCommand represents the command to change a line's received quantity
type UpdateReceivedQuantityCommand struct {
	PurchaseOrderID string
	LineID          string
	ReceivedQty     int
}

// ReceiveLineCommand represents the command to book a complete line into stock
type ReceiveLineCommand struct {
	PurchaseOrderID string
	LineID          string
}

// ReturnLineCommand represents the command to return a complete line to the supplier
type ReturnLineCommand struct {
	PurchaseOrderID string
	LineID          string
	Reason          string
}

// DismissAlertCommand represents the command to dismiss an alert class
type DismissAlertCommand struct {
	SessionID string
	AlertKey  string
	Screen    string
}

// SubmitStockAdjustmentCommand represents the command to adjust a product's stock
type SubmitStockAdjustmentCommand struct {
	Adjustment domain.StockAdjustment
}

// InventoryReportQuery represents the query for the inventory report
type InventoryReportQuery struct {
	Category string
	Alert    string
	Screen   string
}

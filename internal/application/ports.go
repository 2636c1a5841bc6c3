package application

import (
	"context"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
)

// InventoryGateway is the PHP backend as seen by the application layer.
// Implementations return *errors.AppError values carrying the upstream
// failure codes.
type InventoryGateway interface {
	ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrderHeader, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	UpdateReceivedQuantity(ctx context.Context, update domain.ReceivedQuantityUpdate) error
	ReceiveLine(ctx context.Context, purchaseOrderID, lineID string) error
	ReturnLine(ctx context.Context, purchaseOrderID, lineID, reason string) error
	SubmitStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	PublishAlertChanged(ctx context.Context, event *domain.AlertMembershipChangedEvent) error
	PublishStockAdjusted(ctx context.Context, event *domain.StockAdjustedEvent) error
}

// ChangeFeed delivers backend change notifications. Run blocks until ctx is
// cancelled or the feed fails; onChange receives the changed resource name.
type ChangeFeed interface {
	Run(ctx context.Context, onChange func(ctx context.Context, resource string) error) error
}

// Resource names used by the change feed and the refresh coordinator
const (
	ResourcePurchaseOrders = "purchase-orders"
	ResourceProducts       = "products"
)

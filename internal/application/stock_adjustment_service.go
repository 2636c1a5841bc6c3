package application

import (
	"context"
	"time"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/errors"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// StockAdjustmentService submits manual stock adjustments
type StockAdjustmentService struct {
	gateway   InventoryGateway
	products  *Controller[domain.Product]
	publisher EventPublisher
	logger    *logging.Logger
	clock     func() time.Time
}

// NewStockAdjustmentService creates a new StockAdjustmentService. publisher may be nil.
func NewStockAdjustmentService(gateway InventoryGateway, products *Controller[domain.Product], publisher EventPublisher, logger *logging.Logger) *StockAdjustmentService {
	return &StockAdjustmentService{
		gateway:   gateway,
		products:  products,
		publisher: publisher,
		logger:    logger.WithComponent("stock-adjustment-service"),
		clock:     time.Now,
	}
}

// Submit validates the adjustment and forwards it to the backend. An
// invalid adjustment never reaches the network.
func (s *StockAdjustmentService) Submit(ctx context.Context, cmd SubmitStockAdjustmentCommand) error {
	adjustment := cmd.Adjustment
	if err := adjustment.Validate(); err != nil {
		return errors.ErrValidation(err.Error()).Wrap(err)
	}

	if err := s.gateway.SubmitStockAdjustment(ctx, adjustment); err != nil {
		return err
	}

	s.logger.Audit(ctx, "adjust_stock", "product", adjustment.ProductID, map[string]any{
		"quantityChange": adjustment.QuantityChange,
		"adjustmentType": adjustment.Type,
		"reason":         adjustment.Reason,
	})

	if s.publisher != nil {
		event := &domain.StockAdjustedEvent{Adjustment: adjustment, AdjustedAt: s.clock()}
		if err := s.publisher.PublishStockAdjusted(ctx, event); err != nil {
			s.logger.WithError(err).Warn("Failed to publish stock adjusted event", "productId", adjustment.ProductID)
		}
	}

	if err := s.products.Refresh(ctx, TriggerAction); err != nil {
		s.logger.WithError(err).Warn("Refresh after stock adjustment failed")
	}
	return nil
}

package application

import (
	"context"
	"fmt"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/api"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// PurchaseOrderService serves the purchase order views and line actions
type PurchaseOrderService struct {
	orders  *Controller[domain.PurchaseOrderHeader]
	gateway InventoryGateway
	logger  *logging.Logger
}

// NewPurchaseOrderService creates a new PurchaseOrderService
func NewPurchaseOrderService(orders *Controller[domain.PurchaseOrderHeader], gateway InventoryGateway, logger *logging.Logger) *PurchaseOrderService {
	return &PurchaseOrderService{
		orders:  orders,
		gateway: gateway,
		logger:  logger.WithComponent("purchase-order-service"),
	}
}

// ListPurchaseOrders filters the cached purchase orders by date range,
// search term and line status, then paginates them. The tab counts are
// computed after the date and search filters.
func (s *PurchaseOrderService) ListPurchaseOrders(ctx context.Context, query ListPurchaseOrdersQuery) (*PurchaseOrderListResult, error) {
	filter, err := domain.ParseStatusFilter(query.Status)
	if err != nil {
		return nil, err
	}

	snapshot := s.orders.Snapshot()
	headers := FilterRecords(snapshot.Records, func(h domain.PurchaseOrderHeader) bool {
		return InDateRange(h.OrderDate, query.DateFrom, query.DateTo) && matchesPurchaseOrder(h, query.Search)
	})

	visible := domain.FilterByLineStatus(headers, filter)
	return &PurchaseOrderListResult{
		Filter:      filter,
		Counts:      domain.CountByFilter(headers),
		Page:        api.Paginate(visible, query.Page),
		RefreshedAt: snapshot.RefreshedAt,
		LastError:   snapshot.LastError,
	}, nil
}

func matchesPurchaseOrder(h domain.PurchaseOrderHeader, term string) bool {
	fields := make([]string, 0, 2+len(h.Lines))
	fields = append(fields, h.PONumber, h.Supplier)
	for _, line := range h.Lines {
		fields = append(fields, line.ProductName)
	}
	return MatchesSearch(term, fields...)
}

// Counts returns the tab counts, the overall status counts and the number
// of lines flagged for review.
func (s *PurchaseOrderService) Counts(ctx context.Context) PurchaseOrderCounts {
	headers := s.orders.Records()

	counts := PurchaseOrderCounts{
		ByFilter:        domain.CountByFilter(headers),
		ByOverallStatus: make(map[domain.OverallStatus]int),
	}
	for _, header := range headers {
		derived := header.Derived()
		counts.ByOverallStatus[derived.OverallStatus]++
		for _, line := range derived.Lines {
			if line.NeedsReview {
				counts.NeedsReview++
			}
		}
	}
	return counts
}

// GetPurchaseOrder returns one derived purchase order from the cache
func (s *PurchaseOrderService) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrderHeader, error) {
	for _, header := range s.orders.Records() {
		if header.ID == id {
			derived := header.Derived()
			return &derived, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrPurchaseOrderNotFound, id)
}

func (s *PurchaseOrderService) findLine(ctx context.Context, purchaseOrderID, lineID string) (domain.PurchaseOrderLine, error) {
	header, err := s.GetPurchaseOrder(ctx, purchaseOrderID)
	if err != nil {
		return domain.PurchaseOrderLine{}, err
	}
	return header.Line(lineID)
}

// UpdateReceivedQuantity records more received units on an open line
func (s *PurchaseOrderService) UpdateReceivedQuantity(ctx context.Context, cmd UpdateReceivedQuantityCommand) (*LineActionResult, error) {
	line, err := s.findLine(ctx, cmd.PurchaseOrderID, cmd.LineID)
	if err != nil {
		return nil, err
	}

	next, err := domain.PlanQuantityUpdate(line, cmd.ReceivedQty)
	if err != nil {
		return nil, err
	}

	err = s.gateway.UpdateReceivedQuantity(ctx, domain.ReceivedQuantityUpdate{
		PurchaseOrderID: cmd.PurchaseOrderID,
		LineID:          cmd.LineID,
		ReceivedQty:     cmd.ReceivedQty,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Audit(ctx, "update_quantity", "purchase_order_line", cmd.LineID, map[string]any{
		"purchaseOrderId": cmd.PurchaseOrderID,
		"receivedQty":     cmd.ReceivedQty,
		"from":            line.ItemStatus,
		"to":              next,
	})
	s.refreshAfterAction(ctx)

	return &LineActionResult{
		PurchaseOrderID: cmd.PurchaseOrderID,
		LineID:          cmd.LineID,
		Action:          domain.ActionUpdateQuantity,
		PreviousStatus:  line.ItemStatus,
		ExpectedStatus:  next,
	}, nil
}

// ReceiveLine books a complete line into stock
func (s *PurchaseOrderService) ReceiveLine(ctx context.Context, cmd ReceiveLineCommand) (*LineActionResult, error) {
	line, err := s.findLine(ctx, cmd.PurchaseOrderID, cmd.LineID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckAction(line.ItemStatus, domain.ActionReceive); err != nil {
		return nil, err
	}

	if err := s.gateway.ReceiveLine(ctx, cmd.PurchaseOrderID, cmd.LineID); err != nil {
		return nil, err
	}

	s.logger.Audit(ctx, "receive", "purchase_order_line", cmd.LineID, map[string]any{
		"purchaseOrderId": cmd.PurchaseOrderID,
	})
	s.refreshAfterAction(ctx)

	return &LineActionResult{
		PurchaseOrderID: cmd.PurchaseOrderID,
		LineID:          cmd.LineID,
		Action:          domain.ActionReceive,
		PreviousStatus:  line.ItemStatus,
		ExpectedStatus:  domain.ItemStatusReceived,
	}, nil
}

// ReturnLine sends a complete line back to the supplier
func (s *PurchaseOrderService) ReturnLine(ctx context.Context, cmd ReturnLineCommand) (*LineActionResult, error) {
	if cmd.Reason == "" {
		return nil, domain.ErrReasonRequired
	}

	line, err := s.findLine(ctx, cmd.PurchaseOrderID, cmd.LineID)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckAction(line.ItemStatus, domain.ActionReturn); err != nil {
		return nil, err
	}

	if err := s.gateway.ReturnLine(ctx, cmd.PurchaseOrderID, cmd.LineID, cmd.Reason); err != nil {
		return nil, err
	}

	s.logger.Audit(ctx, "return", "purchase_order_line", cmd.LineID, map[string]any{
		"purchaseOrderId": cmd.PurchaseOrderID,
		"reason":          cmd.Reason,
	})
	s.refreshAfterAction(ctx)

	return &LineActionResult{
		PurchaseOrderID: cmd.PurchaseOrderID,
		LineID:          cmd.LineID,
		Action:          domain.ActionReturn,
		PreviousStatus:  line.ItemStatus,
		ExpectedStatus:  domain.ItemStatusReturned,
	}, nil
}

// refreshAfterAction re-fetches the orders so derived values come from the
// backend again. A failure only sets the controller's last error.
func (s *PurchaseOrderService) refreshAfterAction(ctx context.Context) {
	if err := s.orders.Refresh(ctx, TriggerAction); err != nil {
		s.logger.WithError(err).Warn("Refresh after line action failed")
	}
}

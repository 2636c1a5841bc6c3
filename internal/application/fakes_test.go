package application

import (
	"context"
	"sync"
	"time"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

var testToday = time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)

func testLogger() *logging.Logger {
	return logging.NewNop()
}

func daysFromToday(n int) *time.Time {
	d := testToday.AddDate(0, 0, n)
	return &d
}

type fakeGateway struct {
	mu          sync.Mutex
	orders      []domain.PurchaseOrderHeader
	products    []domain.Product
	err         error
	actionErr   error
	calls       []string
	updates     []domain.ReceivedQuantityUpdate
	adjustments []domain.StockAdjustment
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
}

func (g *fakeGateway) callCount(call string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrderHeader, error) {
	g.record("ListPurchaseOrders")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return append([]domain.PurchaseOrderHeader(nil), g.orders...), nil
}

func (g *fakeGateway) ListProducts(ctx context.Context) ([]domain.Product, error) {
	g.record("ListProducts")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return append([]domain.Product(nil), g.products...), nil
}

func (g *fakeGateway) UpdateReceivedQuantity(ctx context.Context, update domain.ReceivedQuantityUpdate) error {
	g.record("UpdateReceivedQuantity")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.actionErr != nil {
		return g.actionErr
	}
	g.updates = append(g.updates, update)
	return nil
}

func (g *fakeGateway) ReceiveLine(ctx context.Context, purchaseOrderID, lineID string) error {
	g.record("ReceiveLine")
	return g.actionErr
}

func (g *fakeGateway) ReturnLine(ctx context.Context, purchaseOrderID, lineID, reason string) error {
	g.record("ReturnLine")
	return g.actionErr
}

func (g *fakeGateway) SubmitStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) error {
	g.record("SubmitStockAdjustment")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.actionErr != nil {
		return g.actionErr
	}
	g.adjustments = append(g.adjustments, adjustment)
	return nil
}

type fakePublisher struct {
	mu          sync.Mutex
	alertEvents []*domain.AlertMembershipChangedEvent
	stockEvents []*domain.StockAdjustedEvent
}

func (p *fakePublisher) PublishAlertChanged(ctx context.Context, event *domain.AlertMembershipChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alertEvents = append(p.alertEvents, event)
	return nil
}

func (p *fakePublisher) PublishStockAdjusted(ctx context.Context, event *domain.StockAdjustedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stockEvents = append(p.stockEvents, event)
	return nil
}

type fakeDismissalRepo struct {
	mu      sync.Mutex
	records map[string]map[domain.AlertKey]*domain.AlertDismissalRecord
	saves   int
}

func newFakeDismissalRepo() *fakeDismissalRepo {
	return &fakeDismissalRepo{records: make(map[string]map[domain.AlertKey]*domain.AlertDismissalRecord)}
}

func (r *fakeDismissalRepo) Save(ctx context.Context, record *domain.AlertDismissalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.records[record.SessionID] == nil {
		r.records[record.SessionID] = make(map[domain.AlertKey]*domain.AlertDismissalRecord)
	}
	copied := *record
	r.records[record.SessionID][record.AlertKey] = &copied
	return nil
}

func (r *fakeDismissalRepo) FindBySession(ctx context.Context, sessionID string) ([]*domain.AlertDismissalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AlertDismissalRecord
	for _, record := range r.records[sessionID] {
		copied := *record
		out = append(out, &copied)
	}
	return out, nil
}

func (r *fakeDismissalRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, sessionID)
	return nil
}

func (r *fakeDismissalRepo) sessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *fakeDismissalRepo) count(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records[sessionID])
}

func newProductController(gateway *fakeGateway) *Controller[domain.Product] {
	return NewController(ControllerConfig[domain.Product]{
		Name:  ResourceProducts,
		Fetch: gateway.ListProducts,
		Key:   func(p domain.Product) string { return p.ID },
	}, testLogger(), nil)
}

func newOrderController(gateway *fakeGateway) *Controller[domain.PurchaseOrderHeader] {
	return NewController(ControllerConfig[domain.PurchaseOrderHeader]{
		Name:  ResourcePurchaseOrders,
		Fetch: gateway.ListPurchaseOrders,
		Key:   func(h domain.PurchaseOrderHeader) string { return h.ID },
	}, testLogger(), nil)
}

func orderLine(id string, ordered, received int) domain.PurchaseOrderLine {
	return domain.PurchaseOrderLine{LineID: id, ProductID: "p-" + id, ProductName: "Product " + id, OrderedQty: ordered, ReceivedQty: received}
}

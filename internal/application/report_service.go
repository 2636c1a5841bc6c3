package application

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// ReportService builds the warehouse dashboard and the inventory report
type ReportService struct {
	products *Controller[domain.Product]
	orders   *Controller[domain.PurchaseOrderHeader]
	poSvc    *PurchaseOrderService
	rules    AlertRules
	logger   *logging.Logger
	clock    func() time.Time
}

// NewReportService creates a new ReportService
func NewReportService(
	products *Controller[domain.Product],
	orders *Controller[domain.PurchaseOrderHeader],
	poSvc *PurchaseOrderService,
	rules AlertRules,
	logger *logging.Logger,
) *ReportService {
	return &ReportService{
		products: products,
		orders:   orders,
		poSvc:    poSvc,
		rules:    rules,
		logger:   logger.WithComponent("report-service"),
		clock:    time.Now,
	}
}

// DashboardScreen is the screen name whose thresholds the dashboard uses
const DashboardScreen = "dashboard"

// Dashboard returns the warehouse dashboard
func (s *ReportService) Dashboard(ctx context.Context) *DashboardView {
	now := s.clock()
	productSnap := s.products.Snapshot()
	orderSnap := s.orders.Snapshot()

	summary := domain.EvaluateAlerts(productSnap.Records, s.rules.For(DashboardScreen), now)

	view := &DashboardView{
		GeneratedAt:     now,
		ProductCount:    len(productSnap.Records),
		TotalStockValue: decimal.Zero,
		AlertCounts:     make(map[domain.AlertKey]int, len(summary.Classes)),
		TotalAlerts:     summary.TotalCount(),
		PurchaseOrders:  s.poSvc.Counts(ctx),
		Controllers: map[string]ControllerStatus{
			s.products.Name(): controllerStatus(productSnap),
			s.orders.Name():   controllerStatus(orderSnap),
		},
	}
	for _, p := range productSnap.Records {
		view.TotalUnits += max(0, p.Quantity)
		view.TotalStockValue = view.TotalStockValue.Add(p.StockValue())
	}
	for _, class := range summary.Classes {
		view.AlertCounts[class.Key] = class.Count
	}
	return view
}

func controllerStatus[T any](snap Snapshot[T]) ControllerStatus {
	return ControllerStatus{
		Loaded:      snap.Loaded,
		Records:     len(snap.Records),
		RefreshedAt: snap.RefreshedAt,
		LastError:   snap.LastError,
	}
}

// InventoryReport returns the per-product valuation report
func (s *ReportService) InventoryReport(ctx context.Context, query InventoryReportQuery) (*InventoryReport, error) {
	var alertKey domain.AlertKey
	if query.Alert != "" {
		key, err := domain.ParseAlertKey(query.Alert)
		if err != nil {
			return nil, err
		}
		alertKey = key
	}

	now := s.clock()
	thresholds := s.rules.For(query.Screen)
	report := &InventoryReport{
		GeneratedAt: now,
		Thresholds:  thresholds,
		Rows:        []InventoryReportRow{},
		Totals:      InventoryReportTotals{Value: decimal.Zero},
	}

	for _, p := range s.products.Records() {
		if query.Category != "" && !strings.EqualFold(p.Category, query.Category) {
			continue
		}
		alerts := domain.ClassifyProduct(p, thresholds, now)
		if alertKey != "" && !alerts.Has(alertKey) {
			continue
		}

		value := p.StockValue()
		report.Rows = append(report.Rows, InventoryReportRow{
			ProductID:      p.ID,
			Name:           p.Name,
			Category:       p.Category,
			Location:       p.Location,
			Quantity:       p.Quantity,
			SRP:            p.SRP,
			Value:          value,
			StockStatus:    alerts.StockStatus(),
			ExpiryStatus:   alerts.ExpiryStatus(),
			ExpirationDate: p.ExpirationDate,
		})
		report.Totals.Products++
		report.Totals.Units += max(0, p.Quantity)
		report.Totals.Value = report.Totals.Value.Add(value)
	}

	s.logger.Debug("Inventory report built", "rows", len(report.Rows))
	return report, nil
}

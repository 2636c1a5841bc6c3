package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/api"
)

// PurchaseOrderListResult is one page of filtered purchase orders
type PurchaseOrderListResult struct {
	Filter      domain.StatusFilter                          `json:"filter"`
	Counts      map[domain.StatusFilter]int                  `json:"counts"`
	Page        api.PageResponse[domain.PurchaseOrderHeader] `json:"page"`
	RefreshedAt time.Time                                    `json:"refreshedAt"`
	LastError   *RefreshError                                `json:"lastError,omitempty"`
}

// PurchaseOrderCounts are the tab and status counts of the purchase order view
type PurchaseOrderCounts struct {
	ByFilter        map[domain.StatusFilter]int  `json:"byFilter"`
	ByOverallStatus map[domain.OverallStatus]int `json:"byOverallStatus"`
	NeedsReview     int                          `json:"needsReview"`
}

// LineActionResult describes a line action accepted by the backend
type LineActionResult struct {
	PurchaseOrderID string            `json:"purchaseOrderId"`
	LineID          string            `json:"lineId"`
	Action          domain.LineAction `json:"action"`
	PreviousStatus  domain.ItemStatus `json:"previousStatus"`
	ExpectedStatus  domain.ItemStatus `json:"expectedStatus"`
}

// ProductDTO is a product with its alert badges
type ProductDTO struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Category       string               `json:"category"`
	Location       string               `json:"location,omitempty"`
	Quantity       int                  `json:"quantity"`
	ExpirationDate *time.Time           `json:"expirationDate,omitempty"`
	SRP            decimal.Decimal      `json:"srp"`
	StockValue     decimal.Decimal      `json:"stockValue"`
	StockStatus    string               `json:"stockStatus"`
	ExpiryStatus   string               `json:"expiryStatus"`
	Alerts         domain.ProductAlerts `json:"alerts"`
}

// ProductListResult is one page of filtered products
type ProductListResult struct {
	Page        api.PageResponse[ProductDTO] `json:"page"`
	Thresholds  domain.AlertThresholds       `json:"thresholds"`
	RefreshedAt time.Time                    `json:"refreshedAt"`
	LastError   *RefreshError                `json:"lastError,omitempty"`
}

// ToProductDTO converts a domain product to its DTO
func ToProductDTO(p domain.Product, thresholds domain.AlertThresholds, today time.Time) ProductDTO {
	alerts := domain.ClassifyProduct(p, thresholds, today)
	return ProductDTO{
		ID:             p.ID,
		Name:           p.Name,
		Category:       p.Category,
		Location:       p.Location,
		Quantity:       p.Quantity,
		ExpirationDate: p.ExpirationDate,
		SRP:            p.SRP,
		StockValue:     p.StockValue(),
		StockStatus:    alerts.StockStatus(),
		ExpiryStatus:   alerts.ExpiryStatus(),
		Alerts:         alerts,
	}
}

// ControllerStatus is the health of one data controller
type ControllerStatus struct {
	Loaded      bool          `json:"loaded"`
	Records     int           `json:"records"`
	RefreshedAt time.Time     `json:"refreshedAt"`
	LastError   *RefreshError `json:"lastError,omitempty"`
}

// DashboardView is the warehouse dashboard
type DashboardView struct {
	GeneratedAt     time.Time                   `json:"generatedAt"`
	ProductCount    int                         `json:"productCount"`
	TotalUnits      int                         `json:"totalUnits"`
	TotalStockValue decimal.Decimal             `json:"totalStockValue"`
	AlertCounts     map[domain.AlertKey]int     `json:"alertCounts"`
	TotalAlerts     int                         `json:"totalAlerts"`
	PurchaseOrders  PurchaseOrderCounts         `json:"purchaseOrders"`
	Controllers     map[string]ControllerStatus `json:"controllers"`
}

// InventoryReportRow is one product line of the inventory report
type InventoryReportRow struct {
	ProductID      string          `json:"productId"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	Location       string          `json:"location,omitempty"`
	Quantity       int             `json:"quantity"`
	SRP            decimal.Decimal `json:"srp"`
	Value          decimal.Decimal `json:"value"`
	StockStatus    string          `json:"stockStatus"`
	ExpiryStatus   string          `json:"expiryStatus"`
	ExpirationDate *time.Time      `json:"expirationDate,omitempty"`
}

// InventoryReportTotals are the totals of the inventory report
type InventoryReportTotals struct {
	Products int             `json:"products"`
	Units    int             `json:"units"`
	Value    decimal.Decimal `json:"value"`
}

// InventoryReport is the inventory valuation report
type InventoryReport struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	Thresholds  domain.AlertThresholds `json:"thresholds"`
	Rows        []InventoryReportRow   `json:"rows"`
	Totals      InventoryReportTotals  `json:"totals"`
}

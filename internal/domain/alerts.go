package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AlertKey is the stable identity of an alert class
type AlertKey string

const (
	AlertLowStock     AlertKey = "low-stock"
	AlertOutOfStock   AlertKey = "out-of-stock"
	AlertExpiringSoon AlertKey = "expiring-soon"
	AlertExpired      AlertKey = "expired-products"
)

// AlertKeys lists every alert class in display order
var AlertKeys = []AlertKey{AlertLowStock, AlertOutOfStock, AlertExpiringSoon, AlertExpired}

// ParseAlertKey validates an alert key
func ParseAlertKey(s string) (AlertKey, error) {
	for _, key := range AlertKeys {
		if string(key) == s {
			return key, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlertKey, s)
}

// Kind returns the notification severity for the class
func (k AlertKey) Kind() string {
	switch k {
	case AlertOutOfStock, AlertExpired:
		return "error"
	default:
		return "warning"
	}
}

// AlertThresholds configures alert evaluation
type AlertThresholds struct {
	LowStockThreshold int `json:"lowStockThreshold" yaml:"lowStockThreshold"`
	ExpiryWarningDays int `json:"expiryWarningDays" yaml:"expiryWarningDays"`
}

// DefaultAlertThresholds returns the thresholds used when nothing is configured
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		LowStockThreshold: 10,
		ExpiryWarningDays: 30,
	}
}

// Product is a stocked item as seen by alerting and reporting
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Category       string          `json:"category,omitempty"`
	Location       string          `json:"location,omitempty"`
	Quantity       int             `json:"quantity"`
	ExpirationDate *time.Time      `json:"expirationDate,omitempty"`
	SRP            decimal.Decimal `json:"srp"`
}

// StockValue is quantity times SRP, zero for non-positive stock
func (p Product) StockValue() decimal.Decimal {
	if p.Quantity <= 0 {
		return decimal.Zero
	}
	return p.SRP.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// IsStockLow reports 0 < quantity <= threshold
func IsStockLow(quantity, threshold int) bool {
	return quantity > 0 && quantity <= threshold
}

// IsStockOut reports an empty stock. Negative quantities count as zero.
func IsStockOut(quantity int) bool {
	return quantity <= 0
}

// civilDate drops the time of day, keeping the calendar date as written
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsProductExpired reports expiration < today, comparing dates only.
// A nil date is never expired.
func IsProductExpired(expiration *time.Time, today time.Time) bool {
	if expiration == nil || expiration.IsZero() {
		return false
	}
	return civilDate(*expiration).Before(civilDate(today))
}

// IsProductExpiringSoon reports today <= expiration <= today+warningDays.
// It is never true for an expired product.
func IsProductExpiringSoon(expiration *time.Time, warningDays int, today time.Time) bool {
	if expiration == nil || expiration.IsZero() || IsProductExpired(expiration, today) {
		return false
	}
	limit := civilDate(today).AddDate(0, 0, max(0, warningDays))
	return !civilDate(*expiration).After(limit)
}

// ProductAlerts is the alert membership of one product
type ProductAlerts struct {
	LowStock     bool `json:"lowStock"`
	OutOfStock   bool `json:"outOfStock"`
	ExpiringSoon bool `json:"expiringSoon"`
	Expired      bool `json:"expired"`
}

// ClassifyProduct evaluates every alert predicate for p
func ClassifyProduct(p Product, thresholds AlertThresholds, today time.Time) ProductAlerts {
	return ProductAlerts{
		LowStock:     IsStockLow(p.Quantity, thresholds.LowStockThreshold),
		OutOfStock:   IsStockOut(p.Quantity),
		ExpiringSoon: IsProductExpiringSoon(p.ExpirationDate, thresholds.ExpiryWarningDays, today),
		Expired:      IsProductExpired(p.ExpirationDate, today),
	}
}

// Has reports membership in the given alert class
func (a ProductAlerts) Has(key AlertKey) bool {
	switch key {
	case AlertLowStock:
		return a.LowStock
	case AlertOutOfStock:
		return a.OutOfStock
	case AlertExpiringSoon:
		return a.ExpiringSoon
	case AlertExpired:
		return a.Expired
	default:
		return false
	}
}

// StockStatus returns the stock badge: out-of-stock, low-stock or in-stock
func (a ProductAlerts) StockStatus() string {
	switch {
	case a.OutOfStock:
		return "out-of-stock"
	case a.LowStock:
		return "low-stock"
	default:
		return "in-stock"
	}
}

// ExpiryStatus returns the expiry badge: expired, expiring-soon or ok
func (a ProductAlerts) ExpiryStatus() string {
	switch {
	case a.Expired:
		return "expired"
	case a.ExpiringSoon:
		return "expiring-soon"
	default:
		return "ok"
	}
}

// ProductRef identifies a product inside an alert class
type ProductRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlertClass is the set of products currently in one alert class
type AlertClass struct {
	Key      AlertKey     `json:"key"`
	Kind     string       `json:"kind"`
	Count    int          `json:"count"`
	Products []ProductRef `json:"products"`
}

// ProductNames returns the member names in evaluation order
func (c AlertClass) ProductNames() []string {
	names := make([]string, len(c.Products))
	for i, p := range c.Products {
		names[i] = p.Name
	}
	return names
}

// ProductIDs returns the member IDs in evaluation order
func (c AlertClass) ProductIDs() []string {
	ids := make([]string, len(c.Products))
	for i, p := range c.Products {
		ids[i] = p.ID
	}
	return ids
}

// Fingerprint identifies the membership independent of order
func (c AlertClass) Fingerprint() string {
	ids := c.ProductIDs()
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

var alertTitles = map[AlertKey]string{
	AlertLowStock:     "low on stock",
	AlertOutOfStock:   "out of stock",
	AlertExpiringSoon: "expiring soon",
	AlertExpired:      "expired",
}

// DetailText is the notification body shown for the class
func (c AlertClass) DetailText() string {
	noun := "products are"
	if c.Count == 1 {
		noun = "product is"
	}
	names := c.ProductNames()
	if len(names) > 5 {
		names = append(names[:5:5], fmt.Sprintf("and %d more", len(c.Products)-5))
	}
	return fmt.Sprintf("%d %s %s: %s", c.Count, noun, alertTitles[c.Key], strings.Join(names, ", "))
}

// AlertSummary is the result of one evaluation pass
type AlertSummary struct {
	EvaluatedAt time.Time       `json:"evaluatedAt"`
	Thresholds  AlertThresholds `json:"thresholds"`
	Classes     []AlertClass    `json:"classes"`
}

// Class returns the class with the given key
func (s AlertSummary) Class(key AlertKey) AlertClass {
	for _, class := range s.Classes {
		if class.Key == key {
			return class
		}
	}
	return AlertClass{Key: key, Kind: key.Kind(), Products: []ProductRef{}}
}

// TotalCount is the sum of the class counts. A product in two classes is
// counted twice.
func (s AlertSummary) TotalCount() int {
	total := 0
	for _, class := range s.Classes {
		total += class.Count
	}
	return total
}

// EvaluateAlerts groups products into the alert classes. Every class is
// present in the result, possibly empty.
func EvaluateAlerts(products []Product, thresholds AlertThresholds, today time.Time) AlertSummary {
	classes := make([]AlertClass, len(AlertKeys))
	for i, key := range AlertKeys {
		classes[i] = AlertClass{Key: key, Kind: key.Kind(), Products: []ProductRef{}}
	}

	for _, p := range products {
		alerts := ClassifyProduct(p, thresholds, today)
		for i, key := range AlertKeys {
			if alerts.Has(key) {
				classes[i].Products = append(classes[i].Products, ProductRef{ID: p.ID, Name: p.Name})
				classes[i].Count++
			}
		}
	}

	return AlertSummary{
		EvaluatedAt: today,
		Thresholds:  thresholds,
		Classes:     classes,
	}
}

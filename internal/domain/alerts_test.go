package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, time.March, 15, 16, 30, 0, 0, time.UTC)

func day(offset int) *time.Time {
	d := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	return &d
}

func TestIsStockLow_Boundaries(t *testing.T) {
	assert.True(t, IsStockLow(10, 10))
	assert.True(t, IsStockLow(1, 10))
	assert.False(t, IsStockLow(11, 10))
	assert.False(t, IsStockLow(0, 10))
	assert.True(t, IsStockOut(0))
	assert.True(t, IsStockOut(-3))
	assert.False(t, IsStockOut(1))

	for q := -2; q <= 20; q++ {
		assert.False(t, IsStockLow(q, 10) && IsStockOut(q), "quantity %d", q)
	}
}

func TestExpiryPredicates(t *testing.T) {
	assert.True(t, IsProductExpired(day(-1), today))
	assert.False(t, IsProductExpired(day(0), today), "expiring today is not expired")
	assert.True(t, IsProductExpiringSoon(day(0), 30, today))
	assert.True(t, IsProductExpiringSoon(day(30), 30, today))
	assert.False(t, IsProductExpiringSoon(day(31), 30, today))
	assert.False(t, IsProductExpiringSoon(day(-1), 30, today))

	assert.False(t, IsProductExpired(nil, today))
	assert.False(t, IsProductExpiringSoon(nil, 30, today))
}

func TestExpiryPredicates_IgnoreTimeOfDay(t *testing.T) {
	lateToday := time.Date(2026, time.March, 15, 23, 59, 0, 0, time.UTC)
	earlyToday := time.Date(2026, time.March, 15, 0, 1, 0, 0, time.UTC)
	assert.False(t, IsProductExpired(&earlyToday, lateToday))
	assert.True(t, IsProductExpiringSoon(&earlyToday, 0, lateToday))
}

func TestExpiryPredicates_MutuallyExclusive(t *testing.T) {
	for offset := -60; offset <= 60; offset++ {
		for _, warning := range []int{0, 7, 30} {
			d := day(offset)
			assert.False(t, IsProductExpired(d, today) && IsProductExpiringSoon(d, warning, today),
				"offset %d warning %d", offset, warning)
		}
	}
}

func TestEvaluateAlerts(t *testing.T) {
	products := []Product{
		{ID: "1", Name: "Amoxicillin", Quantity: 4, ExpirationDate: day(200)},
		{ID: "2", Name: "Paracetamol", Quantity: 0},
		{ID: "3", Name: "Ibuprofen", Quantity: 50, ExpirationDate: day(10)},
		{ID: "4", Name: "Cetirizine", Quantity: 8, ExpirationDate: day(-2)},
		{ID: "5", Name: "Vitamin C", Quantity: 120},
	}

	summary := EvaluateAlerts(products, DefaultAlertThresholds(), today)

	require.Len(t, summary.Classes, 4)
	assert.Equal(t, []string{"Amoxicillin", "Cetirizine"}, summary.Class(AlertLowStock).ProductNames())
	assert.Equal(t, []string{"Paracetamol"}, summary.Class(AlertOutOfStock).ProductNames())
	assert.Equal(t, []string{"Ibuprofen"}, summary.Class(AlertExpiringSoon).ProductNames())
	assert.Equal(t, []string{"Cetirizine"}, summary.Class(AlertExpired).ProductNames())
	assert.Equal(t, 5, summary.TotalCount())
	assert.Equal(t, "error", summary.Class(AlertExpired).Kind)
}

func TestAlertClass_DetailTextAndFingerprint(t *testing.T) {
	class := AlertClass{Key: AlertOutOfStock, Count: 1, Products: []ProductRef{{ID: "2", Name: "Paracetamol"}}}
	assert.Equal(t, "1 product is out of stock: Paracetamol", class.DetailText())

	a := AlertClass{Products: []ProductRef{{ID: "2"}, {ID: "1"}}}
	b := AlertClass{Products: []ProductRef{{ID: "1"}, {ID: "2"}}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestParseAlertKey(t *testing.T) {
	key, err := ParseAlertKey("expired-products")
	require.NoError(t, err)
	assert.Equal(t, AlertExpired, key)

	_, err = ParseAlertKey("expired")
	assert.ErrorIs(t, err, ErrUnknownAlertKey)
}

func TestProduct_StockValue(t *testing.T) {
	p := Product{Quantity: 3, SRP: decimal.RequireFromString("12.50")}
	assert.True(t, decimal.RequireFromString("37.5").Equal(p.StockValue()))

	p.Quantity = -1
	assert.True(t, p.StockValue().IsZero())
}

func TestStockAdjustment_Validate(t *testing.T) {
	valid := StockAdjustment{ProductID: "1", QuantityChange: -2, Type: AdjustmentDamaged, Reason: "broken vials"}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*StockAdjustment)
		want   error
	}{
		{"missing product", func(a *StockAdjustment) { a.ProductID = " " }, ErrProductRequired},
		{"zero change", func(a *StockAdjustment) { a.QuantityChange = 0 }, ErrZeroQuantityChange},
		{"missing reason", func(a *StockAdjustment) { a.Reason = "" }, ErrReasonRequired},
		{"unknown type", func(a *StockAdjustment) { a.Type = "theft" }, ErrInvalidAdjustmentType},
		{"positive damage", func(a *StockAdjustment) { a.QuantityChange = 2 }, ErrAdjustmentSignMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := valid
			tt.mutate(&adj)
			assert.ErrorIs(t, adj.Validate(), tt.want)
		})
	}
}

package domain

import "strings"

// AdjustmentType is the reason category of a stock adjustment
type AdjustmentType string

const (
	AdjustmentAddition    AdjustmentType = "addition"
	AdjustmentSubtraction AdjustmentType = "subtraction"
	AdjustmentDamaged     AdjustmentType = "damaged"
	AdjustmentExpired     AdjustmentType = "expired"
	AdjustmentCorrection  AdjustmentType = "correction"
)

// StockAdjustment is a manual change to a product's on-hand quantity
type StockAdjustment struct {
	ProductID      string         `json:"productId"`
	QuantityChange int            `json:"quantityChange"`
	Type           AdjustmentType `json:"adjustmentType"`
	Reason         string         `json:"reason"`
	AdjustedBy     string         `json:"adjustedBy,omitempty"`
}

// Validate checks the adjustment before it is sent anywhere. Additions must
// be positive, removals negative, and corrections may go either way.
func (a StockAdjustment) Validate() error {
	if strings.TrimSpace(a.ProductID) == "" {
		return ErrProductRequired
	}
	if a.QuantityChange == 0 {
		return ErrZeroQuantityChange
	}
	if strings.TrimSpace(a.Reason) == "" {
		return ErrReasonRequired
	}

	switch a.Type {
	case AdjustmentAddition:
		if a.QuantityChange < 0 {
			return ErrAdjustmentSignMismatch
		}
	case AdjustmentSubtraction, AdjustmentDamaged, AdjustmentExpired:
		if a.QuantityChange > 0 {
			return ErrAdjustmentSignMismatch
		}
	case AdjustmentCorrection:
	default:
		return ErrInvalidAdjustmentType
	}
	return nil
}

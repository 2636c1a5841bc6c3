package phpapi

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// Defaults applied when the backend omits a header status
const (
	DefaultStatus         = "delivered"
	DefaultDeliveryStatus = "pending"
)

// flexInt accepts a JSON number or a numeric string. Anything else leaves
// it unset, so an alias chain can move on to the next field.
type flexInt struct {
	Value int
	Set   bool
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	*f = flexInt{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	if raw == "" {
		return nil
	}

	if n, err := strconv.Atoi(raw); err == nil {
		*f = flexInt{Value: n, Set: true}
		return nil
	}
	if x, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(x) && !math.IsInf(x, 0) {
		*f = flexInt{Value: int(math.Round(x)), Set: true}
	}
	return nil
}

// flexString accepts a JSON string or number
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(string(data))
	return nil
}

func (f flexString) String() string {
	return string(f)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// parseDate returns nil for empty, zero ("0000-00-00") or unparseable values
func parseDate(value flexString) *time.Time {
	s := strings.TrimSpace(string(value))
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func firstSet(values ...flexInt) int {
	for _, v := range values {
		if v.Set {
			return v.Value
		}
	}
	return 0
}

func firstNonEmpty(values ...flexString) flexString {
	for _, v := range values {
		if strings.TrimSpace(string(v)) != "" {
			return v
		}
	}
	return ""
}

func parseDecimal(value flexString) decimal.Decimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(string(value), ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// purchaseOrderLineDTO is a line as sent by the purchase order endpoint
type purchaseOrderLineDTO struct {
	PurchaseDtlID flexString `json:"purchase_dtl_id"`
	ProductID     flexString `json:"product_id"`
	ProductName   flexString `json:"product_name"`
	Quantity      flexInt    `json:"quantity"`
	ReceivedQty   flexInt    `json:"received_qty"`
	MissingQty    flexInt    `json:"missing_qty"`
	ItemStatus    flexString `json:"item_status"`
}

// purchaseOrderDTO is a header as sent by the purchase order endpoint
type purchaseOrderDTO struct {
	PurchaseHeaderID     flexString             `json:"purchase_header_id"`
	PONumber             flexString             `json:"po_number"`
	SupplierName         flexString             `json:"supplier_name"`
	Status               flexString             `json:"status"`
	DeliveryStatus       flexString             `json:"delivery_status"`
	OrderDate            flexString             `json:"order_date"`
	ExpectedDeliveryDate flexString             `json:"expected_delivery_date"`
	Products             []purchaseOrderLineDTO `json:"products"`
}

// productDTO is a product as sent by the product endpoint. Quantity and
// expiration arrive under several aliases depending on the query behind it.
type productDTO struct {
	ProductID          flexString `json:"product_id"`
	ProductName        flexString `json:"product_name"`
	Category           flexString `json:"category"`
	CategoryName       flexString `json:"category_name"`
	Location           flexString `json:"location"`
	Quantity           flexInt    `json:"quantity"`
	TotalQuantity      flexInt    `json:"total_quantity"`
	ProductQuantity    flexInt    `json:"product_quantity"`
	Expiration         flexString `json:"expiration"`
	EarliestExpiration flexString `json:"earliest_expiration"`
	SRP                flexString `json:"srp"`
	SellingPrice       flexString `json:"selling_price"`
}

// normalizeProduct maps the product aliases onto the canonical fields.
// Quantity takes the first of quantity, total_quantity, product_quantity;
// expiration the first of expiration, earliest_expiration.
func normalizeProduct(dto productDTO) domain.Product {
	return domain.Product{
		ID:             dto.ProductID.String(),
		Name:           dto.ProductName.String(),
		Category:       firstNonEmpty(dto.Category, dto.CategoryName).String(),
		Location:       dto.Location.String(),
		Quantity:       max(0, firstSet(dto.Quantity, dto.TotalQuantity, dto.ProductQuantity)),
		ExpirationDate: parseDate(firstNonEmpty(dto.Expiration, dto.EarliestExpiration)),
		SRP:            parseDecimal(firstNonEmpty(dto.SRP, dto.SellingPrice)),
	}
}

func normalizeProducts(dtos []productDTO) []domain.Product {
	products := make([]domain.Product, 0, len(dtos))
	for _, dto := range dtos {
		products = append(products, normalizeProduct(dto))
	}
	return products
}

func normalizeLine(dto purchaseOrderLineDTO) domain.PurchaseOrderLine {
	line := domain.PurchaseOrderLine{
		LineID:         dto.PurchaseDtlID.String(),
		ProductID:      dto.ProductID.String(),
		ProductName:    dto.ProductName.String(),
		OrderedQty:     max(0, dto.Quantity.Value),
		ReceivedQty:    max(0, dto.ReceivedQty.Value),
		ExplicitStatus: strings.ToLower(dto.ItemStatus.String()),
	}
	if dto.MissingQty.Set {
		missing := dto.MissingQty.Value
		line.UpstreamMissingQty = &missing
	}
	return line
}

func normalizePurchaseOrder(dto purchaseOrderDTO) domain.PurchaseOrderHeader {
	header := domain.PurchaseOrderHeader{
		ID:                   dto.PurchaseHeaderID.String(),
		PONumber:             dto.PONumber.String(),
		Supplier:             dto.SupplierName.String(),
		OrderDate:            parseDate(dto.OrderDate),
		ExpectedDeliveryDate: parseDate(dto.ExpectedDeliveryDate),
		Status:               firstNonEmpty(dto.Status, DefaultStatus).String(),
		DeliveryStatus:       firstNonEmpty(dto.DeliveryStatus, DefaultDeliveryStatus).String(),
		Lines:                make([]domain.PurchaseOrderLine, 0, len(dto.Products)),
	}
	for _, lineDTO := range dto.Products {
		header.Lines = append(header.Lines, normalizeLine(lineDTO))
	}
	return header.Derived()
}

// normalizePurchaseOrders converts the wire headers and logs every line
// whose ordered quantity is zero, since its status cannot be trusted.
func normalizePurchaseOrders(dtos []purchaseOrderDTO, logger *logging.Logger) []domain.PurchaseOrderHeader {
	headers := make([]domain.PurchaseOrderHeader, 0, len(dtos))
	for _, dto := range dtos {
		header := normalizePurchaseOrder(dto)
		for _, line := range header.Lines {
			if line.NeedsReview {
				logger.Warn("Purchase order line has no ordered quantity",
					"purchaseOrderId", header.ID,
					"lineId", line.LineID,
					"receivedQty", line.ReceivedQty,
				)
			}
		}
		headers = append(headers, header)
	}
	return headers
}

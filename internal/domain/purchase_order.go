package domain

import (
	"fmt"
	"strings"
	"time"
)

// ItemStatus is the status of a single purchase order line
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusDelivered ItemStatus = "delivered"
	ItemStatusPartial   ItemStatus = "partial"
	ItemStatusComplete  ItemStatus = "complete"
	ItemStatusReceived  ItemStatus = "received"
	ItemStatusReturned  ItemStatus = "returned"
)

// IsTerminal reports whether no further transition is possible
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusReceived || s == ItemStatusReturned
}

var lineTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusPending:   {ItemStatusDelivered},
	ItemStatusDelivered: {ItemStatusPartial, ItemStatusComplete},
	ItemStatusPartial:   {ItemStatusComplete},
	ItemStatusComplete:  {ItemStatusReceived, ItemStatusReturned},
}

// CanTransitionTo checks if a transition to the target status is valid
func (s ItemStatus) CanTransitionTo(target ItemStatus) bool {
	for _, allowed := range lineTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// OverallStatus is the order-level status aggregated from line statuses
type OverallStatus string

const (
	OverallDelivered       OverallStatus = "delivered"
	OverallPartialDelivery OverallStatus = "partial_delivery"
	OverallComplete        OverallStatus = "complete"
	OverallReceived        OverallStatus = "received"
	OverallReturn          OverallStatus = "return"
)

// LineAction is a user action offered on a purchase order line
type LineAction string

const (
	ActionUpdateQuantity LineAction = "update_quantity"
	ActionReceive        LineAction = "receive"
	ActionReturn         LineAction = "return"
)

// actionSources maps each action to the statuses it may be applied from
var actionSources = map[LineAction][]ItemStatus{
	ActionUpdateQuantity: {ItemStatusDelivered, ItemStatusPartial},
	ActionReceive:        {ItemStatusComplete},
	ActionReturn:         {ItemStatusComplete},
}

// AvailableActions returns the actions offered for a line in the given status,
// in display order.
func AvailableActions(status ItemStatus) []LineAction {
	actions := []LineAction{}
	for _, action := range []LineAction{ActionUpdateQuantity, ActionReceive, ActionReturn} {
		for _, from := range actionSources[action] {
			if from == status {
				actions = append(actions, action)
			}
		}
	}
	return actions
}

// CheckAction returns ErrInvalidStatusTransition when action is not offered for status
func CheckAction(status ItemStatus, action LineAction) error {
	for _, allowed := range AvailableActions(status) {
		if allowed == action {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s a %s line", ErrInvalidStatusTransition, action, status)
}

// PurchaseOrderLine is a single product entry within a purchase order.
// Derived fields are only meaningful on a value returned by Derived.
type PurchaseOrderLine struct {
	LineID      string `json:"lineId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	OrderedQty  int    `json:"orderedQty"`
	ReceivedQty int    `json:"receivedQty"`

	// UpstreamMissingQty is the backend's missing_qty when it sent one
	UpstreamMissingQty *int `json:"-"`
	// ExplicitStatus is the backend's item_status when it sent one
	ExplicitStatus string `json:"-"`

	MissingQty       int          `json:"missingQty"`
	ItemStatus       ItemStatus   `json:"itemStatus"`
	NeedsReview      bool         `json:"needsReview,omitempty"`
	AvailableActions []LineAction `json:"availableActions"`
}

// Missing returns the outstanding quantity. An upstream value wins over the
// computed one.
func (l PurchaseOrderLine) Missing() int {
	if l.UpstreamMissingQty != nil {
		return max(0, *l.UpstreamMissingQty)
	}
	return max(0, l.OrderedQty-l.ReceivedQty)
}

// DeriveLineStatus maps a line's quantities to its status. A non-empty
// explicit status from the backend is returned unchanged.
func DeriveLineStatus(line PurchaseOrderLine) ItemStatus {
	if explicit := strings.TrimSpace(line.ExplicitStatus); explicit != "" {
		return ItemStatus(explicit)
	}

	missing := line.Missing()
	switch {
	case line.ReceivedQty <= 0:
		return ItemStatusDelivered
	case missing == 0:
		// Covers ordered == 0 with something received; such lines carry NeedsReview.
		return ItemStatusComplete
	default:
		return ItemStatusPartial
	}
}

// Derived returns a copy of the line with its derived fields recomputed
func (l PurchaseOrderLine) Derived() PurchaseOrderLine {
	l.MissingQty = l.Missing()
	l.ItemStatus = DeriveLineStatus(l)
	l.NeedsReview = l.OrderedQty == 0
	l.AvailableActions = AvailableActions(l.ItemStatus)
	return l
}

func lineStatus(l PurchaseOrderLine) ItemStatus {
	if l.ItemStatus != "" {
		return l.ItemStatus
	}
	return DeriveLineStatus(l)
}

// DeriveOverallStatus aggregates the statuses of the given (visible) lines.
// The least-progressed non-terminal status wins, except that any partial line
// makes the order a partial delivery. Returned lines only count when every
// line is returned. ok is false when lines is empty.
func DeriveOverallStatus(lines []PurchaseOrderLine) (status OverallStatus, ok bool) {
	if len(lines) == 0 {
		return "", false
	}

	var open, partial, complete, received, returned int
	for _, line := range lines {
		switch lineStatus(line) {
		case ItemStatusPartial:
			partial++
		case ItemStatusComplete:
			complete++
		case ItemStatusReceived:
			received++
		case ItemStatusReturned:
			returned++
		default:
			// pending, delivered and unknown backend values
			open++
		}
	}

	switch {
	case partial > 0:
		return OverallPartialDelivery, true
	case open > 0:
		return OverallDelivered, true
	case complete > 0:
		return OverallComplete, true
	case received > 0:
		return OverallReceived, true
	default:
		return OverallReturn, true
	}
}

// PurchaseOrderHeader is a purchase order with its lines
type PurchaseOrderHeader struct {
	ID                   string              `json:"id"`
	PONumber             string              `json:"poNumber"`
	Supplier             string              `json:"supplier"`
	OrderDate            *time.Time          `json:"orderDate,omitempty"`
	ExpectedDeliveryDate *time.Time          `json:"expectedDeliveryDate,omitempty"`
	Status               string              `json:"status"`
	DeliveryStatus       string              `json:"deliveryStatus"`
	Lines                []PurchaseOrderLine `json:"lines"`
	OverallStatus        OverallStatus       `json:"overallStatus"`
}

// Derived returns a copy of the header with every line and the overall status
// recomputed. Without lines the backend header status is used.
func (h PurchaseOrderHeader) Derived() PurchaseOrderHeader {
	lines := make([]PurchaseOrderLine, len(h.Lines))
	for i, line := range h.Lines {
		lines[i] = line.Derived()
	}
	h.Lines = lines

	if status, ok := DeriveOverallStatus(lines); ok {
		h.OverallStatus = status
	} else {
		h.OverallStatus = parseOverallStatus(h.Status)
	}
	return h
}

// Line returns the line with the given ID
func (h PurchaseOrderHeader) Line(lineID string) (PurchaseOrderLine, error) {
	for _, line := range h.Lines {
		if line.LineID == lineID {
			return line, nil
		}
	}
	return PurchaseOrderLine{}, fmt.Errorf("%w: %s", ErrLineNotFound, lineID)
}

func parseOverallStatus(s string) OverallStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "partial", "partial_delivery":
		return OverallPartialDelivery
	case "complete", "completed":
		return OverallComplete
	case "received":
		return OverallReceived
	case "return", "returned":
		return OverallReturn
	default:
		return OverallDelivered
	}
}

// StatusFilter selects purchase order lines by derived status
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterDelivered StatusFilter = "delivered"
	FilterPartial   StatusFilter = "partial"
	FilterComplete  StatusFilter = "complete"
	FilterReceived  StatusFilter = "received"
	FilterReturn    StatusFilter = "return"
)

// StatusFilters lists every filter in tab order
var StatusFilters = []StatusFilter{FilterAll, FilterDelivered, FilterPartial, FilterComplete, FilterReceived, FilterReturn}

// ParseStatusFilter parses a filter name. Status aliases and the tab labels
// ("Partial Products", "Returns") are accepted, and an empty value means all.
func ParseStatusFilter(s string) (StatusFilter, error) {
	name := strings.ToLower(strings.Join(strings.Fields(s), " "))
	name = strings.TrimSuffix(name, " products")
	switch name {
	case "", "all":
		return FilterAll, nil
	case "delivered", "pending":
		return FilterDelivered, nil
	case "partial", "partial_delivery":
		return FilterPartial, nil
	case "complete", "completed":
		return FilterComplete, nil
	case "received":
		return FilterReceived, nil
	case "return", "returned", "returns":
		return FilterReturn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatusFilter, s)
	}
}

// Matches reports whether a line in the given status belongs to the filter
func (f StatusFilter) Matches(status ItemStatus) bool {
	switch f {
	case FilterAll:
		return true
	case FilterDelivered:
		return status == ItemStatusDelivered || status == ItemStatusPending
	case FilterPartial:
		return status == ItemStatusPartial
	case FilterComplete:
		return status == ItemStatusComplete
	case FilterReceived:
		return status == ItemStatusReceived
	case FilterReturn:
		return status == ItemStatusReturned
	default:
		return false
	}
}

// FilterByLineStatus keeps the headers that have at least one line matching
// the filter, with only the matching lines attached and the overall status
// recomputed from them. Headers without lines only appear under FilterAll.
func FilterByLineStatus(headers []PurchaseOrderHeader, filter StatusFilter) []PurchaseOrderHeader {
	result := make([]PurchaseOrderHeader, 0, len(headers))
	for _, header := range headers {
		derived := header.Derived()
		if filter == FilterAll {
			result = append(result, derived)
			continue
		}

		visible := make([]PurchaseOrderLine, 0, len(derived.Lines))
		for _, line := range derived.Lines {
			if filter.Matches(line.ItemStatus) {
				visible = append(visible, line)
			}
		}
		if len(visible) == 0 {
			continue
		}

		derived.Lines = visible
		derived.OverallStatus, _ = DeriveOverallStatus(visible)
		result = append(result, derived)
	}
	return result
}

// CountByFilter returns, per filter, the number of headers that filter would show
func CountByFilter(headers []PurchaseOrderHeader) map[StatusFilter]int {
	counts := make(map[StatusFilter]int, len(StatusFilters))
	for _, header := range headers {
		derived := header.Derived()
		counts[FilterAll]++
		for _, filter := range StatusFilters[1:] {
			for _, line := range derived.Lines {
				if filter.Matches(line.ItemStatus) {
					counts[filter]++
					break
				}
			}
		}
	}
	return counts
}

// ReceivedQuantityUpdate is a change to the received quantity of one line
type ReceivedQuantityUpdate struct {
	PurchaseOrderID string
	LineID          string
	ReceivedQty     int
}

// PlanQuantityUpdate checks an update against the current line and returns the
// status the line will move to.
func PlanQuantityUpdate(current PurchaseOrderLine, newReceived int) (ItemStatus, error) {
	if newReceived < 0 {
		return "", fmt.Errorf("%w: received quantity must be >= 0", ErrInvalidQuantity)
	}

	current = current.Derived()
	if err := CheckAction(current.ItemStatus, ActionUpdateQuantity); err != nil {
		return "", err
	}
	if newReceived < current.ReceivedQty {
		return "", ErrReceivedQtyDecrease
	}

	next := current
	next.ReceivedQty = newReceived
	next.UpstreamMissingQty = nil
	next.ExplicitStatus = ""
	return DeriveLineStatus(next), nil
}

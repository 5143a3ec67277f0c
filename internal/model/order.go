package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus order lifecycle state
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "Pending"
	OrderStatusDelivered          OrderStatus = "Delivered"
	OrderStatusPartiallyDelivered OrderStatus = "Partially Delivered"
	OrderStatusCanceled           OrderStatus = "Canceled"
	OrderStatusNotDelivered       OrderStatus = "Canceled (Not Delivered)"
)

// OrderLine one snapshotted item of an order
type OrderLine struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
	Currency Currency        `json:"currency"`
}

// UnitPrice price of one unit in the line currency
func (l OrderLine) UnitPrice() decimal.Decimal {
	return l.Product.Price(l.Currency)
}

// Subtotal unit price times quantity
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// String renders "• **name** x2 - 250k UEC"
func (l OrderLine) String() string {
	return fmt.Sprintf("• **%s** x%d - %s", l.Product.Name, l.Quantity, FormatPrice(l.UnitPrice(), l.Currency))
}

// PendingOrder checkout snapshot awaiting an admin decision.
// At most one exists per user.
type PendingOrder struct {
	ID           uint64      `json:"id"`
	UserID       string      `json:"user_id"`
	UserTag      string      `json:"user_tag,omitempty"`
	Lines        []OrderLine `json:"lines"`
	Announcement MessageRef  `json:"announcement"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Currency returns the order currency; every line shares it
func (o *PendingOrder) Currency() Currency {
	if len(o.Lines) == 0 {
		return ""
	}
	return o.Lines[0].Currency
}

// Clone deep-copies the order
func (o *PendingOrder) Clone() *PendingOrder {
	c := *o
	c.Lines = append([]OrderLine(nil), o.Lines...)
	return &c
}

// Buyer display name used in announcements
func (o *PendingOrder) Buyer() string {
	return Caller{UserID: o.UserID, Tag: o.UserTag}.Display()
}

// Summary renders one line per item
func (o *PendingOrder) Summary() string {
	return SummarizeLines(o.Lines)
}

// SummarizeLines renders one line per item
func SummarizeLines(lines []OrderLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.String()
	}
	return strings.Join(parts, "\n")
}

// LineNames returns the product names of lines, comma separated
func LineNames(lines []OrderLine) string {
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = l.Product.Name
	}
	return strings.Join(names, ", ")
}

package model

import (
	"fmt"
	"strings"
)

// Dialogue collects per-item delivery answers from one admin for one order.
// Items are asked in order; Answers grows by one per reply.
type Dialogue struct {
	AdminID      string      `json:"admin_id"`
	OrderID      uint64      `json:"order_id"`
	TargetUser   string      `json:"target_user"`
	Announcement MessageRef  `json:"announcement"`
	Items        []OrderLine `json:"items"`
	Answers      []bool      `json:"answers"`
}

// NewDialogue starts a dialogue over a copy of the order lines
func NewDialogue(adminID string, order *PendingOrder) *Dialogue {
	items := make([]OrderLine, len(order.Lines))
	copy(items, order.Lines)
	return &Dialogue{
		AdminID:      adminID,
		OrderID:      order.ID,
		TargetUser:   order.UserID,
		Announcement: order.Announcement,
		Items:        items,
		Answers:      make([]bool, 0, len(items)),
	}
}

// Clone deep-copies the dialogue
func (d *Dialogue) Clone() *Dialogue {
	c := *d
	c.Items = append([]OrderLine(nil), d.Items...)
	c.Answers = append([]bool(nil), d.Answers...)
	return &c
}

// Current returns the item awaiting an answer
func (d *Dialogue) Current() (OrderLine, bool) {
	if d.Done() {
		return OrderLine{}, false
	}
	return d.Items[len(d.Answers)], true
}

// Resolve records the answer for the current item and reports whether all items are answered
func (d *Dialogue) Resolve(delivered bool) bool {
	if !d.Done() {
		d.Answers = append(d.Answers, delivered)
	}
	return d.Done()
}

// Done reports whether every item has an answer
func (d *Dialogue) Done() bool {
	return len(d.Answers) >= len(d.Items)
}

// Split partitions the items by answer, preserving order
func (d *Dialogue) Split() (delivered, undelivered []OrderLine) {
	for i, item := range d.Items {
		if i < len(d.Answers) && d.Answers[i] {
			delivered = append(delivered, item)
		} else {
			undelivered = append(undelivered, item)
		}
	}
	return delivered, undelivered
}

// Status terminal status implied by the answers
func (d *Dialogue) Status() OrderStatus {
	delivered, _ := d.Split()
	switch len(delivered) {
	case len(d.Items):
		return OrderStatusDelivered
	case 0:
		return OrderStatusNotDelivered
	}
	return OrderStatusPartiallyDelivered
}

// Prompt question for the current item
func (d *Dialogue) Prompt() string {
	item, ok := d.Current()
	if !ok {
		return ""
	}
	return DeliveryPrompt(item.Product.Name)
}

// DeliveryPrompt question asked for one item
func DeliveryPrompt(name string) string {
	return fmt.Sprintf("📦 Was **%s** delivered? Reply \"yes\" to confirm or \"no\" to skip:", name)
}

// ParseYesNo "yes", "true" and "1" mean delivered; anything else does not
func ParseYesNo(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "true", "1":
		return true
	}
	return false
}

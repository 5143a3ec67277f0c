package model

import "time"

// MessageRef locates a posted announcement so it can be edited later
type MessageRef struct {
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// IsZero reports whether the reference points nowhere
func (r MessageRef) IsZero() bool {
	return r.MessageID == ""
}

// ButtonStyle visual hint for a button
type ButtonStyle string

const (
	ButtonPrimary ButtonStyle = "primary"
	ButtonSuccess ButtonStyle = "success"
	ButtonDanger  ButtonStyle = "danger"
)

// Button an action attached to an announcement; ActionID is routed back as an interaction
type Button struct {
	Label    string      `json:"label"`
	ActionID string      `json:"action_id"`
	Style    ButtonStyle `json:"style"`
}

// ReconcileMessage asks an operator to reconcile lifecycle state with the ledger
type ReconcileMessage struct {
	OrderID   uint64      `json:"order_id"`
	UserID    string      `json:"user_id"`
	AdminID   string      `json:"admin_id"`
	Status    OrderStatus `json:"status"`
	Items     SaleItems   `json:"items"`
	Reason    string      `json:"reason"`
	Timestamp int64       `json:"timestamp"`
}

// NewReconcileMessage builds an alert for a sale record that failed to persist
func NewReconcileMessage(rec *SaleRecord, adminID string, cause error) *ReconcileMessage {
	return &ReconcileMessage{
		OrderID:   rec.OrderID,
		UserID:    rec.UserID,
		AdminID:   adminID,
		Status:    rec.Status,
		Items:     rec.Items,
		Reason:    cause.Error(),
		Timestamp: time.Now().Unix(),
	}
}

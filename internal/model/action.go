package model

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// ActionKind what an interaction asks the storefront to do
type ActionKind string

const (
	ActionAddToCart      ActionKind = "add_to_cart"
	ActionRequestRestock ActionKind = "request_restock"
	ActionCheckout       ActionKind = "checkout"
	ActionConfirmFull    ActionKind = "confirm_full"
	ActionConfirmPartial ActionKind = "confirm_partial"
	ActionCancelOrder    ActionKind = "cancel_order"
	ActionNotifyRestock  ActionKind = "notify_restock"
	ActionRefreshSales   ActionKind = "refresh_sales"
)

// ActionVersion current descriptor version
const ActionVersion = 1

const actionPrefix = "v1."

// ErrMalformedAction returned when an action id cannot be decoded
var ErrMalformedAction = errors.New("malformed action id")

// Action typed descriptor attached to every outbound button
type Action struct {
	Version    int        `json:"v"`
	Kind       ActionKind `json:"k"`
	Product    string     `json:"p,omitempty"`
	TargetUser string     `json:"u,omitempty"`
	Currency   Currency   `json:"c,omitempty"`
}

// AdminOnly reports whether the action needs the admin capability
func (k ActionKind) AdminOnly() bool {
	switch k {
	case ActionConfirmFull, ActionConfirmPartial, ActionCancelOrder, ActionNotifyRestock, ActionRefreshSales:
		return true
	}
	return false
}

func (k ActionKind) valid() bool {
	switch k {
	case ActionAddToCart, ActionRequestRestock, ActionCheckout,
		ActionConfirmFull, ActionConfirmPartial, ActionCancelOrder,
		ActionNotifyRestock, ActionRefreshSales:
		return true
	}
	return false
}

// Validate checks that the payload fields the kind needs are present
func (a Action) Validate() error {
	if a.Version != ActionVersion || !a.Kind.valid() {
		return ErrMalformedAction
	}
	switch a.Kind {
	case ActionAddToCart, ActionRequestRestock, ActionNotifyRestock:
		if a.Product == "" {
			return ErrMalformedAction
		}
	case ActionCheckout:
		if !a.Currency.Valid() {
			return ErrMalformedAction
		}
	case ActionConfirmFull, ActionConfirmPartial, ActionCancelOrder:
		if a.TargetUser == "" {
			return ErrMalformedAction
		}
	}
	return nil
}

// Encode renders the opaque action id
func (a Action) Encode() string {
	if a.Version == 0 {
		a.Version = ActionVersion
	}
	b, _ := json.Marshal(a)
	return actionPrefix + base64.RawURLEncoding.EncodeToString(b)
}

// DecodeAction parses an action id produced by Encode
func DecodeAction(id string) (Action, error) {
	var a Action
	payload, ok := strings.CutPrefix(id, actionPrefix)
	if !ok {
		return a, ErrMalformedAction
	}
	b, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return a, ErrMalformedAction
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return a, ErrMalformedAction
	}
	if err := a.Validate(); err != nil {
		return Action{}, err
	}
	return a, nil
}

// AddToCartAction button id for adding a product
func AddToCartAction(product string) string {
	return Action{Kind: ActionAddToCart, Product: product}.Encode()
}

// RequestRestockAction button id for joining a waitlist
func RequestRestockAction(product string) string {
	return Action{Kind: ActionRequestRestock, Product: product}.Encode()
}

// CheckoutAction button id for checking out in a currency
func CheckoutAction(c Currency) string {
	return Action{Kind: ActionCheckout, Currency: c}.Encode()
}

// OrderButtons the three admin buttons attached to a pending order announcement
func OrderButtons(userID string) []Button {
	return []Button{
		{Label: "✅ Confirm Full Delivery", Style: ButtonSuccess, ActionID: Action{Kind: ActionConfirmFull, TargetUser: userID}.Encode()},
		{Label: "📦 Confirm Partial Delivery", Style: ButtonPrimary, ActionID: Action{Kind: ActionConfirmPartial, TargetUser: userID}.Encode()},
		{Label: "❌ Cancel Order", Style: ButtonDanger, ActionID: Action{Kind: ActionCancelOrder, TargetUser: userID}.Encode()},
	}
}

// NotifyRestockButton admin button on a waitlist announcement
func NotifyRestockButton(product string) Button {
	return Button{
		Label:    "🔔 Notify Availability",
		Style:    ButtonPrimary,
		ActionID: Action{Kind: ActionNotifyRestock, Product: product}.Encode(),
	}
}

// RefreshSalesButton admin button on the sales summary
func RefreshSalesButton() Button {
	return Button{
		Label:    "🔄 Update Now",
		Style:    ButtonPrimary,
		ActionID: Action{Kind: ActionRefreshSales}.Encode(),
	}
}

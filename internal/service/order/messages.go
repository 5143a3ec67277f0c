package order

import (
	"fmt"

	"storefront/internal/model"
)

func pendingAnnouncement(o *model.PendingOrder) string {
	return fmt.Sprintf("📥 **%s** placed an order (using %s):\n%s\n**Status:** %s",
		o.Buyer(), o.Currency(), o.Summary(), model.OrderStatusPending)
}

func requeueAnnouncement(o *model.PendingOrder) string {
	return fmt.Sprintf("📥 **%s** has undelivered items from a previous order:\n%s\n**Status:** %s",
		o.Buyer(), o.Summary(), model.OrderStatusPending)
}

func finalAnnouncement(o *model.PendingOrder, status model.OrderStatus, undelivered []model.OrderLine) string {
	text := fmt.Sprintf("📥 **%s** placed an order (using %s):\n%s\n**Status:** %s",
		o.Buyer(), o.Currency(), o.Summary(), status)
	if len(undelivered) > 0 && status != model.OrderStatusCanceled {
		text += fmt.Sprintf(" (%s not delivered)", model.LineNames(undelivered))
	}
	return text
}

func replacedAnnouncement(o, by *model.PendingOrder) string {
	return fmt.Sprintf("📥 **%s** placed an order (using %s):\n%s\n**Status:** Replaced by order %d",
		o.Buyer(), o.Currency(), o.Summary(), by.ID)
}

func receiptMessage(o *model.PendingOrder) string {
	return fmt.Sprintf("🧾 Your order (using %s):\n%s", o.Currency(), o.Summary())
}

func outcomeMessage(o *model.PendingOrder, status model.OrderStatus, undelivered []model.OrderLine) string {
	text := fmt.Sprintf("📦 **Order Update**\n%s\n**Status:** %s", o.Summary(), status)
	if len(undelivered) > 0 {
		text += "\n**Not Delivered:** " + model.LineNames(undelivered)
	}
	return text
}

func cancelMessage(o *model.PendingOrder) string {
	return fmt.Sprintf("📦 **Order Canceled**\nYour order has been canceled by the administrator. Here are the details:\n%s\nIf you have any questions, please contact the support team.", o.Summary())
}

func requeueMessage(o *model.PendingOrder) string {
	return fmt.Sprintf("📦 **New Pending Order Created**\nThe following items from your previous order were not delivered and have been moved to a new pending order:\n%s\nWe will notify you once they are delivered.", o.Summary())
}

package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/pkg/log"
	"storefront/pkg/queue"
)

// ReconcileConsumer forwards sale records that failed to persist to the
// operator channel so someone can enter them by hand
type ReconcileConsumer struct {
	queue   queue.Queue
	gw      gateway.Gateway
	topic   string
	channel string
	metrics *monitor.Metrics
}

// NewReconcileConsumer creates a reconcile consumer
func NewReconcileConsumer(q queue.Queue, gw gateway.Gateway, topic, operatorChannel string, metrics *monitor.Metrics) *ReconcileConsumer {
	return &ReconcileConsumer{
		queue:   q,
		gw:      gw,
		topic:   topic,
		channel: operatorChannel,
		metrics: metrics,
	}
}

// Start subscribes to the reconcile topic; delivery stops when ctx ends
func (c *ReconcileConsumer) Start(ctx context.Context) error {
	log.WithFields(log.Fields{"topic": c.topic}).Info("Starting reconcile consumer")
	return c.queue.Subscribe(ctx, c.topic, c.handle)
}

func (c *ReconcileConsumer) handle(ctx context.Context, topic string, body []byte) error {
	var msg model.ReconcileMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.metrics.RecordReconcile("malformed")
		log.WithFields(log.Fields{
			"topic": topic,
			"error": err,
		}).Error("Failed to parse reconcile message")
		return err
	}

	if _, err := c.gw.PostAnnouncement(ctx, c.channel, render(&msg), nil); err != nil {
		c.metrics.RecordReconcile("alert_failed")
		log.WithFields(log.Fields{
			"order_id": msg.OrderID,
			"user_id":  msg.UserID,
			"error":    err,
		}).Error("Failed to post reconcile alert")
		return err
	}

	c.metrics.RecordReconcile("alerted")
	log.WithFields(log.Fields{
		"order_id": msg.OrderID,
		"user_id":  msg.UserID,
	}).Warn("Reconcile alert posted")
	return nil
}

func render(msg *model.ReconcileMessage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ **Sale not recorded** for order %d\n", msg.OrderID)
	fmt.Fprintf(&b, "Buyer: <@%s> | Confirmed by: <@%s> | Status: %s\n", msg.UserID, msg.AdminID, msg.Status)
	for _, item := range msg.Items {
		var price string
		if item.Currency == model.CurrencyUSD {
			price = model.FormatPrice(item.PriceUSD, item.Currency)
		} else {
			price = model.FormatPrice(item.PriceUEC, item.Currency)
		}
		fmt.Fprintf(&b, "• **%s** x%d - %s\n", item.ProductName, item.Quantity, price)
	}
	fmt.Fprintf(&b, "Reason: %s\n", msg.Reason)
	fmt.Fprintf(&b, "_At %s_", time.Unix(msg.Timestamp, 0).UTC().Format("2006-01-02 15:04 MST"))
	return b.String()
}

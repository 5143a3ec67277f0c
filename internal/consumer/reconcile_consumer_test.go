package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/pkg/queue"
)

func newQueue(t *testing.T) *queue.MemoryQueue {
	q := queue.NewMemoryQueue(&queue.MemoryQueueConfig{BufferSize: 8, Timeout: time.Second})
	t.Cleanup(func() { q.Close() })
	return q
}

func TestReconcileConsumer_PostsAlert(t *testing.T) {
	q := newQueue(t)
	gw := gateway.NewMemoryGateway()
	c := NewReconcileConsumer(q, gw, "ledger_reconcile", "ops", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	rec := &model.SaleRecord{
		OrderID: 42,
		UserID:  "u1",
		Status:  model.OrderStatusPartiallyDelivered,
		Items: model.SaleItems{{
			ProductName: "ShipA",
			Quantity:    2,
			PriceUEC:    decimal.NewFromInt(1500000),
			PriceUSD:    decimal.NewFromInt(60),
			Currency:    model.CurrencyUEC,
		}},
	}
	body, err := json.Marshal(model.NewReconcileMessage(rec, "admin-1", errors.New("db down")))
	require.NoError(t, err)
	require.NoError(t, q.Publish(ctx, "ledger_reconcile", body))

	require.Eventually(t, func() bool { return len(gw.Announcements()) == 1 }, time.Second, 10*time.Millisecond)
	ann := gw.Announcements()[0]
	assert.Equal(t, "ops", ann.Ref.ChannelID)
	assert.Contains(t, ann.Content, "order 42")
	assert.Contains(t, ann.Content, "• **ShipA** x2 - 1.5M UEC")
	assert.Contains(t, ann.Content, "Reason: db down")
	assert.Empty(t, ann.Buttons)
}

func TestReconcileConsumer_Malformed(t *testing.T) {
	q := newQueue(t)
	gw := gateway.NewMemoryGateway()
	c := NewReconcileConsumer(q, gw, "ledger_reconcile", "ops", nil)

	err := c.handle(context.Background(), "ledger_reconcile", []byte("{"))
	assert.Error(t, err)
	assert.Empty(t, gw.Announcements())
}

func TestReconcileConsumer_GatewayFailure(t *testing.T) {
	q := newQueue(t)
	gw := gateway.NewMemoryGateway()
	gw.FailAnnouncements(errors.New("down"))
	c := NewReconcileConsumer(q, gw, "ledger_reconcile", "ops", nil)

	body, _ := json.Marshal(model.ReconcileMessage{OrderID: 1})
	assert.Error(t, c.handle(context.Background(), "ledger_reconcile", body))
}

func TestReconcileConsumer_SingleSubscriber(t *testing.T) {
	q := newQueue(t)
	c := NewReconcileConsumer(q, gateway.NewMemoryGateway(), "ledger_reconcile", "ops", nil)

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), queue.ErrAlreadySubscribed)
}

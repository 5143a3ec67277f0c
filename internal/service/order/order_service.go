package order

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/internal/service/cart"
	"storefront/internal/service/ledger"
	"storefront/internal/session"
	"storefront/pkg/log"
	"storefront/pkg/queue"
	"storefront/pkg/snowflake"
	"storefront/pkg/utils"
)

// OrderService checkout -> pending -> terminal lifecycle of orders.
// Admin operations reject non-admin callers with ErrUnauthorized before
// touching any state.
type OrderService interface {
	// Checkout turns the caller's cart into a pending order, replacing any prior one
	Checkout(ctx context.Context, caller model.Caller, currency model.Currency) (*model.PendingOrder, error)

	// ConfirmFull records every item as delivered and closes the order
	ConfirmFull(ctx context.Context, caller model.Caller, userID string) (*Resolution, error)

	// ConfirmPartial starts an item-by-item delivery dialogue for the caller
	ConfirmPartial(ctx context.Context, caller model.Caller, userID string) (*Resolution, error)

	// ResolveNext answers the current dialogue item
	ResolveNext(ctx context.Context, caller model.Caller, delivered bool) (*Resolution, error)

	// Cancel closes the order without a sale
	Cancel(ctx context.Context, caller model.Caller, userID string) (*Resolution, error)

	// Pending returns a copy of the user's pending order
	Pending(ctx context.Context, userID string) (*model.PendingOrder, error)

	// ActiveDialogue returns a copy of the admin's open dialogue
	ActiveDialogue(ctx context.Context, adminID string) (*model.Dialogue, error)
}

// Resolution result of an admin action. While a dialogue is open only
// Prompt is set; once the order is closed Status and the split are set.
type Resolution struct {
	OrderID     uint64              `json:"order_id"`
	UserID      string              `json:"user_id"`
	Done        bool                `json:"done"`
	Prompt      string              `json:"prompt,omitempty"`
	Status      model.OrderStatus   `json:"status,omitempty"`
	Delivered   []model.OrderLine   `json:"delivered,omitempty"`
	Undelivered []model.OrderLine   `json:"undelivered,omitempty"`
	Sale        *model.SaleRecord   `json:"sale,omitempty"`
	Requeued    *model.PendingOrder `json:"requeued,omitempty"`
}

// SaleListener is told about every sale that reached the ledger
type SaleListener interface {
	SaleRecorded(ctx context.Context, rec *model.SaleRecord)
}

// Config engine settings
type Config struct {
	AdminChannel   string
	ReconcileTopic string
}

// Deps collaborators of the engine; Queue, Listener and Metrics may be nil
type Deps struct {
	Carts    cart.CartService
	Ledger   ledger.LedgerService
	Gateway  gateway.Gateway
	Queue    queue.Queue
	IDs      *snowflake.IDGenerator
	Metrics  *monitor.Metrics
	Listener SaleListener
}

type orderService struct {
	cfg       Config
	carts     cart.CartService
	ledger    ledger.LedgerService
	gw        gateway.Gateway
	queue     queue.Queue
	ids       *snowflake.IDGenerator
	metrics   *monitor.Metrics
	listener  SaleListener
	pending   *session.Store[*model.PendingOrder] // by user
	dialogues *session.Store[*model.Dialogue]     // by admin
	now       func() time.Time
}

// NewOrderService creates the order engine
func NewOrderService(deps Deps, cfg Config) OrderService {
	return &orderService{
		cfg:       cfg,
		carts:     deps.Carts,
		ledger:    deps.Ledger,
		gw:        deps.Gateway,
		queue:     deps.Queue,
		ids:       deps.IDs,
		metrics:   deps.Metrics,
		listener:  deps.Listener,
		pending:   session.NewStore[*model.PendingOrder](),
		dialogues: session.NewStore[*model.Dialogue](),
		now:       time.Now,
	}
}

func (s *orderService) Checkout(ctx context.Context, caller model.Caller, currency model.Currency) (order *model.PendingOrder, err error) {
	ctx, span := monitor.StartSpan(ctx, "order.checkout",
		attribute.String("user_id", caller.UserID),
		attribute.String("currency", string(currency)))
	defer func() { monitor.EndSpan(span, err) }()

	lines, err := s.carts.Checkout(ctx, caller.UserID, currency)
	if err != nil {
		return nil, err
	}

	order = &model.PendingOrder{
		ID:        s.ids.NextID(),
		UserID:    caller.UserID,
		UserTag:   caller.Tag,
		Lines:     lines,
		Status:    model.OrderStatusPending,
		CreatedAt: s.now(),
	}
	replaced := s.swapPending(order)
	s.metrics.RecordOrderTransition(string(model.OrderStatusPending))
	s.metrics.SetPendingOrders(s.pending.Len())

	log.WithFields(log.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"currency": currency,
		"lines":    len(lines),
	}).Info("Order submitted")

	order.Announcement = s.announce(ctx, order, pendingAnnouncement(order))
	s.retire(ctx, replaced, order)
	s.notify(ctx, order.UserID, "receipt", receiptMessage(order))
	return order, nil
}

func (s *orderService) ConfirmFull(ctx context.Context, caller model.Caller, userID string) (res *Resolution, err error) {
	ctx, span := monitor.StartSpan(ctx, "order.confirm_full",
		attribute.String("admin_id", caller.UserID),
		attribute.String("user_id", userID))
	defer func() { monitor.EndSpan(span, err) }()

	if !caller.Admin {
		return nil, utils.ErrUnauthorized
	}
	order, ok := s.pending.Take(userID)
	if !ok {
		return nil, utils.ErrNoPendingOrder
	}

	return s.close(ctx, caller, order, model.OrderStatusDelivered, order.Lines, nil)
}

func (s *orderService) ConfirmPartial(ctx context.Context, caller model.Caller, userID string) (res *Resolution, err error) {
	ctx, span := monitor.StartSpan(ctx, "order.confirm_partial",
		attribute.String("admin_id", caller.UserID),
		attribute.String("user_id", userID))
	defer func() { monitor.EndSpan(span, err) }()

	if !caller.Admin {
		return nil, utils.ErrUnauthorized
	}
	order, ok := s.pending.Get(userID)
	if !ok {
		return nil, utils.ErrNoPendingOrder
	}

	// an admin runs one dialogue at a time; a new one abandons the previous
	d := model.NewDialogue(caller.UserID, order)
	s.dialogues.Set(caller.UserID, d)
	s.metrics.SetActiveDialogues(s.dialogues.Len())

	log.WithFields(log.Fields{
		"admin_id": caller.UserID,
		"order_id": order.ID,
		"user_id":  userID,
		"items":    len(d.Items),
	}).Info("Partial delivery dialogue started")

	prompt := d.Prompt()
	s.notify(ctx, caller.UserID, "dialogue_prompt", prompt)
	return &Resolution{OrderID: order.ID, UserID: userID, Prompt: prompt}, nil
}

func (s *orderService) ResolveNext(ctx context.Context, caller model.Caller, delivered bool) (res *Resolution, err error) {
	ctx, span := monitor.StartSpan(ctx, "order.resolve_next",
		attribute.String("admin_id", caller.UserID),
		attribute.Bool("delivered", delivered))
	defer func() { monitor.EndSpan(span, err) }()

	if !caller.Admin {
		return nil, utils.ErrUnauthorized
	}

	var d *model.Dialogue
	err = s.dialogues.Update(caller.UserID, func(cur *model.Dialogue, ok bool) (*model.Dialogue, bool, error) {
		if !ok {
			return cur, ok, utils.ErrNoActiveDialogue
		}
		d = cur.Clone()
		done := d.Resolve(delivered)
		return d, !done, nil
	})
	if err != nil {
		return nil, err
	}

	if !d.Done() {
		prompt := d.Prompt()
		s.notify(ctx, caller.UserID, "dialogue_prompt", prompt)
		return &Resolution{OrderID: d.OrderID, UserID: d.TargetUser, Prompt: prompt}, nil
	}
	s.metrics.SetActiveDialogues(s.dialogues.Len())

	// the order may have been confirmed, canceled or replaced meanwhile
	order, ok := s.pending.TakeIf(d.TargetUser, func(o *model.PendingOrder) bool {
		return o.ID == d.OrderID
	})
	if !ok {
		log.WithFields(log.Fields{
			"admin_id": caller.UserID,
			"order_id": d.OrderID,
			"user_id":  d.TargetUser,
		}).Warn("Dialogue finished but order is no longer pending")
		return nil, utils.ErrNoPendingOrder
	}

	deliveredLines, undelivered := d.Split()
	return s.close(ctx, caller, order, d.Status(), deliveredLines, undelivered)
}

func (s *orderService) Cancel(ctx context.Context, caller model.Caller, userID string) (res *Resolution, err error) {
	ctx, span := monitor.StartSpan(ctx, "order.cancel",
		attribute.String("admin_id", caller.UserID),
		attribute.String("user_id", userID))
	defer func() { monitor.EndSpan(span, err) }()

	if !caller.Admin {
		return nil, utils.ErrUnauthorized
	}
	order, ok := s.pending.Take(userID)
	if !ok {
		return nil, utils.ErrNoPendingOrder
	}
	s.metrics.RecordOrderTransition(string(model.OrderStatusCanceled))
	s.metrics.SetPendingOrders(s.pending.Len())

	log.WithFields(log.Fields{
		"admin_id": caller.UserID,
		"order_id": order.ID,
		"user_id":  userID,
	}).Info("Order canceled")

	s.edit(ctx, order, finalAnnouncement(order, model.OrderStatusCanceled, order.Lines))
	s.notify(ctx, userID, "order_canceled", cancelMessage(order))
	return &Resolution{
		OrderID:     order.ID,
		UserID:      userID,
		Done:        true,
		Status:      model.OrderStatusCanceled,
		Undelivered: order.Lines,
	}, nil
}

func (s *orderService) Pending(ctx context.Context, userID string) (*model.PendingOrder, error) {
	order, ok := s.pending.Get(userID)
	if !ok {
		return nil, utils.ErrNoPendingOrder
	}
	return order.Clone(), nil
}

func (s *orderService) ActiveDialogue(ctx context.Context, adminID string) (*model.Dialogue, error) {
	d, ok := s.dialogues.Get(adminID)
	if !ok {
		return nil, utils.ErrNoActiveDialogue
	}
	return d.Clone(), nil
}

// close finishes an order already removed from the pending table. The
// sale is written first; a failed write is reported for reconciliation
// and returned, but the transition and notifications still go ahead.
func (s *orderService) close(ctx context.Context, caller model.Caller, order *model.PendingOrder,
	status model.OrderStatus, delivered, undelivered []model.OrderLine) (*Resolution, error) {
	s.metrics.RecordOrderTransition(string(status))

	res := &Resolution{
		OrderID:     order.ID,
		UserID:      order.UserID,
		Done:        true,
		Status:      status,
		Delivered:   delivered,
		Undelivered: undelivered,
	}

	var persistErr error
	if len(delivered) > 0 {
		res.Sale = model.NewSaleRecord(s.ids.NextID(), order, delivered, status, s.now())
		if persistErr = s.ledger.Record(ctx, res.Sale); persistErr != nil {
			s.reconcile(ctx, res.Sale, caller.UserID, persistErr)
		} else if s.listener != nil {
			s.listener.SaleRecorded(ctx, res.Sale)
		}
	}

	log.WithFields(log.Fields{
		"admin_id":    caller.UserID,
		"order_id":    order.ID,
		"user_id":     order.UserID,
		"status":      status,
		"delivered":   len(delivered),
		"undelivered": len(undelivered),
	}).Info("Order closed")

	s.edit(ctx, order, finalAnnouncement(order, status, undelivered))
	s.notify(ctx, order.UserID, "order_update", outcomeMessage(order, status, undelivered))

	if len(undelivered) > 0 {
		res.Requeued = s.requeue(ctx, order, undelivered)
	}
	s.metrics.SetPendingOrders(s.pending.Len())
	return res, persistErr
}

// requeue opens a new pending order holding the undelivered lines
func (s *orderService) requeue(ctx context.Context, prev *model.PendingOrder, lines []model.OrderLine) *model.PendingOrder {
	order := &model.PendingOrder{
		ID:        s.ids.NextID(),
		UserID:    prev.UserID,
		UserTag:   prev.UserTag,
		Lines:     append([]model.OrderLine(nil), lines...),
		Status:    model.OrderStatusPending,
		CreatedAt: s.now(),
	}
	replaced := s.swapPending(order)
	s.metrics.RecordOrderTransition(string(model.OrderStatusPending))

	log.WithFields(log.Fields{
		"order_id":  order.ID,
		"previous":  prev.ID,
		"user_id":   order.UserID,
		"remaining": len(lines),
	}).Info("Undelivered items re-queued")

	order.Announcement = s.announce(ctx, order, requeueAnnouncement(order))
	s.retire(ctx, replaced, order)
	s.notify(ctx, order.UserID, "requeue", requeueMessage(order))
	return order
}

// swapPending makes order the user's pending order and returns the one it replaced
func (s *orderService) swapPending(order *model.PendingOrder) *model.PendingOrder {
	var replaced *model.PendingOrder
	_ = s.pending.Update(order.UserID, func(cur *model.PendingOrder, ok bool) (*model.PendingOrder, bool, error) {
		if ok {
			replaced = cur
		}
		return order.Clone(), true, nil
	})
	return replaced
}

// retire strips the buttons from a replaced order's announcement, which
// would otherwise act on the order that replaced it
func (s *orderService) retire(ctx context.Context, replaced, by *model.PendingOrder) {
	if replaced == nil {
		return
	}
	log.WithFields(log.Fields{
		"order_id": replaced.ID,
		"by":       by.ID,
		"user_id":  replaced.UserID,
	}).Warn("Pending order replaced")
	s.edit(ctx, replaced, replacedAnnouncement(replaced, by))
}

// announce posts the admin announcement for a pending order and stores its
// reference on the order if it is still the user's pending one. If another
// order took its place meanwhile the fresh announcement is retired at once.
func (s *orderService) announce(ctx context.Context, order *model.PendingOrder, content string) model.MessageRef {
	ref, err := s.gw.PostAnnouncement(ctx, s.cfg.AdminChannel, content, model.OrderButtons(order.UserID))
	if err != nil {
		s.metrics.RecordNotificationFailure("order_announcement")
		log.WithFields(log.Fields{
			"order_id": order.ID,
			"user_id":  order.UserID,
			"reason":   "order_announcement",
			"error":    err,
		}).Warn("Failed to post order announcement")
		return model.MessageRef{}
	}

	var by *model.PendingOrder
	_ = s.pending.Update(order.UserID, func(cur *model.PendingOrder, ok bool) (*model.PendingOrder, bool, error) {
		if !ok || cur.ID != order.ID {
			if ok {
				by = cur
			}
			return cur, ok, nil
		}
		next := cur.Clone()
		next.Announcement = ref
		return next, true, nil
	})
	if by != nil {
		stale := *order
		stale.Announcement = ref
		s.retire(ctx, &stale, by)
	}
	return ref
}

// edit rewrites a closed order's announcement and removes its buttons
func (s *orderService) edit(ctx context.Context, order *model.PendingOrder, content string) {
	if order.Announcement.IsZero() {
		return
	}
	if err := s.gw.EditAnnouncement(ctx, order.Announcement, content, nil); err != nil {
		s.metrics.RecordNotificationFailure("order_announcement_edit")
		log.WithFields(log.Fields{
			"order_id": order.ID,
			"user_id":  order.UserID,
			"reason":   "order_announcement_edit",
			"error":    err,
		}).Warn("Failed to edit order announcement")
	}
}

// notify sends a direct message; failures are logged and skipped
func (s *orderService) notify(ctx context.Context, userID, reason, text string) {
	if err := s.gw.SendDirectMessage(ctx, userID, text); err != nil {
		s.metrics.RecordNotificationFailure(reason)
		log.WithFields(log.Fields{
			"user_id": userID,
			"reason":  reason,
			"error":   err,
		}).Warn("Could not send direct message")
	}
}

// reconcile flags a sale that failed to persist to the operator channel
func (s *orderService) reconcile(ctx context.Context, rec *model.SaleRecord, adminID string, cause error) {
	if s.queue == nil {
		log.WithFields(log.Fields{
			"order_id": rec.OrderID,
			"user_id":  rec.UserID,
			"cause":    cause,
		}).Error("Sale needs manual reconciliation")
		return
	}
	body, err := json.Marshal(model.NewReconcileMessage(rec, adminID, cause))
	if err == nil {
		err = s.queue.Publish(ctx, s.cfg.ReconcileTopic, body)
	}
	if err != nil {
		s.metrics.RecordReconcile("publish_failed")
		log.WithFields(log.Fields{
			"order_id": rec.OrderID,
			"user_id":  rec.UserID,
			"error":    err,
		}).Error("Failed to queue reconcile request")
		return
	}
	s.metrics.RecordReconcile("published")
}

// Package storefront routes inbound interactions to the cart, waitlist,
// order and report services.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"storefront/internal/catalog"
	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/internal/service/cart"
	"storefront/internal/service/order"
	"storefront/internal/service/report"
	"storefront/internal/service/waitlist"
	"storefront/internal/session"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// StorefrontService entry point for every inbound event
type StorefrontService interface {
	// Interact decodes an action id from a button press and dispatches it
	Interact(ctx context.Context, caller model.Caller, actionID string) (*Reply, error)

	// DialogueReply feeds a free-text yes/no answer into the caller's dialogue
	DialogueReply(ctx context.Context, caller model.Caller, text string) (*order.Resolution, error)

	// AdminSetStock sets a product's stock flag. While the product is in stock
	// its waitlist is drained and notified, so a retry after a failed drain
	// delivers what the first call could not.
	AdminSetStock(ctx context.Context, caller model.Caller, name string, inStock bool) (*StockChange, error)

	// Waitlist returns the users waiting for a product, admins only
	Waitlist(ctx context.Context, caller model.Caller, name string) ([]string, error)

	// Cart returns the caller's cart, nil when empty
	Cart(ctx context.Context, caller model.Caller) *model.Cart
}

// Reply outcome of an interaction, shown to the caller
type Reply struct {
	Kind       model.ActionKind    `json:"kind"`
	Message    string              `json:"message"`
	Quantity   int                 `json:"quantity,omitempty"`
	Waiting    []string            `json:"waiting,omitempty"`
	Order      *model.PendingOrder `json:"order,omitempty"`
	Resolution *order.Resolution   `json:"resolution,omitempty"`
	Stock      *StockChange        `json:"stock,omitempty"`
	Summary    *model.SalesSummary `json:"summary,omitempty"`
}

// StockChange result of AdminSetStock
type StockChange struct {
	Product  string   `json:"product"`
	InStock  bool     `json:"in_stock"`
	Changed  bool     `json:"changed"`
	Notified []string `json:"notified,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

// Config dispatcher settings
type Config struct {
	AdminChannel    string
	CatalogChannels map[string]string // catalog id -> channel id
}

// Deps collaborators of the dispatcher
type Deps struct {
	Catalog  catalog.Store
	Carts    cart.CartService
	Waitlist waitlist.WaitlistService
	Orders   order.OrderService
	Reports  report.ReportService
	Gateway  gateway.Gateway
	Metrics  *monitor.Metrics
}

type storefrontService struct {
	cfg      Config
	catalog  catalog.Store
	carts    cart.CartService
	waitlist waitlist.WaitlistService
	orders   order.OrderService
	reports  report.ReportService
	gw       gateway.Gateway
	metrics  *monitor.Metrics
	requests *session.Store[model.MessageRef] // waitlist announcement by product
	stock    *session.Store[struct{}]         // held while a stock check and waitlist change must agree
}

// NewStorefrontService creates the dispatcher
func NewStorefrontService(deps Deps, cfg Config) StorefrontService {
	return &storefrontService{
		cfg:      cfg,
		catalog:  deps.Catalog,
		carts:    deps.Carts,
		waitlist: deps.Waitlist,
		orders:   deps.Orders,
		reports:  deps.Reports,
		gw:       deps.Gateway,
		metrics:  deps.Metrics,
		requests: session.NewStore[model.MessageRef](),
		stock:    session.NewStore[struct{}](),
	}
}

func (s *storefrontService) Interact(ctx context.Context, caller model.Caller, actionID string) (*Reply, error) {
	action, err := model.DecodeAction(actionID)
	if err != nil {
		s.metrics.RecordInteraction("unknown", "invalid")
		return nil, utils.WrapError(err, utils.CodeInvalidAction, "invalid action")
	}

	reply, err := s.dispatch(ctx, caller, action)
	s.metrics.RecordInteraction(string(action.Kind), resultLabel(err))
	if err != nil {
		log.WithFields(log.Fields{
			"user_id": caller.UserID,
			"kind":    action.Kind,
			"error":   err,
		}).Info("Interaction rejected")
		return nil, err
	}
	reply.Kind = action.Kind
	return reply, nil
}

func (s *storefrontService) dispatch(ctx context.Context, caller model.Caller, a model.Action) (*Reply, error) {
	if a.Kind.AdminOnly() && !caller.Admin {
		return nil, utils.ErrUnauthorized
	}

	switch a.Kind {
	case model.ActionAddToCart:
		return s.addToCart(ctx, caller, a.Product)
	case model.ActionRequestRestock:
		return s.requestRestock(ctx, caller, a.Product)
	case model.ActionCheckout:
		o, err := s.orders.Checkout(ctx, caller, a.Currency)
		if err != nil {
			return nil, err
		}
		return &Reply{Message: "✅ Your order has been submitted. Check your DMs for the receipt.", Order: o}, nil
	case model.ActionConfirmFull:
		res, err := s.orders.ConfirmFull(ctx, caller, a.TargetUser)
		return resolutionReply(res, err, "✅ Order marked as delivered.")
	case model.ActionConfirmPartial:
		res, err := s.orders.ConfirmPartial(ctx, caller, a.TargetUser)
		if err != nil {
			return nil, err
		}
		return &Reply{Message: res.Prompt, Resolution: res}, nil
	case model.ActionCancelOrder:
		res, err := s.orders.Cancel(ctx, caller, a.TargetUser)
		return resolutionReply(res, err, "✅ Order canceled.")
	case model.ActionNotifyRestock:
		change, err := s.AdminSetStock(ctx, caller, a.Product, true)
		if err != nil {
			return nil, err
		}
		return &Reply{
			Message: fmt.Sprintf("✅ **%s** is in stock. %d users notified.", change.Product, len(change.Notified)),
			Stock:   change,
		}, nil
	case model.ActionRefreshSales:
		sum, err := s.reports.Publish(ctx)
		if err != nil {
			return nil, err
		}
		return &Reply{Message: "✅ Sales summary updated.", Summary: sum}, nil
	}
	return nil, utils.ErrInvalidAction
}

func resolutionReply(res *order.Resolution, err error, msg string) (*Reply, error) {
	if err != nil {
		return nil, err
	}
	return &Reply{Message: msg, Resolution: res}, nil
}

func (s *storefrontService) addToCart(ctx context.Context, caller model.Caller, name string) (*Reply, error) {
	p, err := s.catalog.FindProductFresh(ctx, name)
	if err != nil {
		return nil, err
	}
	qty, err := s.carts.AddItem(ctx, caller.UserID, p)
	if err != nil {
		return nil, err
	}
	return &Reply{
		Message:  fmt.Sprintf("🛒 **%s** added to your cart (x%d).", p.Name, qty),
		Quantity: qty,
	}, nil
}

func (s *storefrontService) requestRestock(ctx context.Context, caller model.Caller, name string) (*Reply, error) {
	var (
		p       *model.Product
		waiting []string
	)
	err := s.withStockLock(name, func() error {
		var err error
		if p, err = s.catalog.FindProductFresh(ctx, name); err != nil {
			return err
		}
		if p.InStock {
			return utils.ErrAlreadyInStock
		}
		if waiting, err = s.waitlist.Join(ctx, p.Name, caller.UserID); err != nil {
			return err
		}
		s.announceWaitlist(ctx, caller, p.Name, waiting)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Reply{
		Message: fmt.Sprintf("✅ You have been added to the waiting list for **%s**. We will notify you when it is available.", p.Name),
		Waiting: waiting,
	}, nil
}

// announceWaitlist keeps one admin announcement per product showing who waits
func (s *storefrontService) announceWaitlist(ctx context.Context, caller model.Caller, product string, waiting []string) {
	content := fmt.Sprintf("📋 **%s** has requested the product **%s** (Out of Stock).\nCurrent waiting list: %s",
		caller.Display(), product, mentions(waiting))
	buttons := []model.Button{model.NotifyRestockButton(product)}

	_ = s.requests.Update(product, func(ref model.MessageRef, ok bool) (model.MessageRef, bool, error) {
		if ok {
			err := s.gw.EditAnnouncement(ctx, ref, content, buttons)
			if err == nil {
				return ref, true, nil
			}
			s.notificationFailed("waitlist_announcement", caller.UserID, err)
		}
		next, err := s.gw.PostAnnouncement(ctx, s.cfg.AdminChannel, content, buttons)
		if err != nil {
			s.notificationFailed("waitlist_announcement", caller.UserID, err)
			return ref, ok, nil
		}
		return next, true, nil
	})
}

func (s *storefrontService) AdminSetStock(ctx context.Context, caller model.Caller, name string, inStock bool) (change *StockChange, err error) {
	ctx, span := monitor.StartSpan(ctx, "storefront.set_stock")
	defer func() { monitor.EndSpan(span, err) }()

	if !caller.Admin {
		return nil, utils.ErrUnauthorized
	}

	var (
		p       *model.Product
		waiting []string
		ref     model.MessageRef
		hasRef  bool
	)
	err = s.withStockLock(name, func() error {
		found, err := s.catalog.FindProductFresh(ctx, name)
		if err != nil {
			return err
		}
		p = found
		changed, err := s.catalog.SetStock(ctx, p.Name, inStock)
		if err != nil {
			return err
		}

		change = &StockChange{Product: p.Name, InStock: inStock, Changed: changed}
		log.WithFields(log.Fields{
			"admin_id": caller.UserID,
			"product":  p.Name,
			"in_stock": inStock,
			"changed":  changed,
		}).Info("Stock flag updated")

		if !inStock {
			return nil
		}
		// an earlier drain may have failed after the flag flipped; drain whatever is left
		if waiting, err = s.waitlist.Restock(ctx, p.Name); err != nil {
			log.WithFields(log.Fields{"product": p.Name, "error": err}).Error("Failed to drain waitlist")
			return utils.WrapError(err, utils.CodeInternalError, "failed to drain waitlist for "+p.Name)
		}
		if len(waiting) > 0 {
			ref, hasRef = s.requests.Take(p.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(waiting) == 0 {
		return change, nil
	}

	text := fmt.Sprintf("📦 Great news! The product **%s** you requested is now in stock.", p.Name)
	if ch, ok := s.cfg.CatalogChannels[p.CatalogID]; ok {
		text += fmt.Sprintf(" You can purchase it in the channel <#%s>.", ch)
	}
	for _, userID := range waiting {
		if err := s.gw.SendDirectMessage(ctx, userID, text); err != nil {
			s.metrics.RecordRestockNotify("failed")
			s.notificationFailed("restock", userID, err)
			change.Failed = append(change.Failed, userID)
			continue
		}
		s.metrics.RecordRestockNotify("ok")
		change.Notified = append(change.Notified, userID)
	}

	if hasRef {
		content := fmt.Sprintf("📋 Restock requests for **%s**.\nCurrent waiting list: (None)", p.Name)
		if err := s.gw.EditAnnouncement(ctx, ref, content, nil); err != nil {
			s.notificationFailed("waitlist_announcement", caller.UserID, err)
		}
	}
	return change, nil
}

// withStockLock runs fn while holding the product's stock lock
func (s *storefrontService) withStockLock(name string, fn func() error) error {
	return s.stock.Update(name, func(struct{}, bool) (struct{}, bool, error) {
		return struct{}{}, false, fn()
	})
}

func (s *storefrontService) Waitlist(ctx context.Context, caller model.Caller, name string) ([]string, error) {
	if !caller.Admin {
		return nil, utils.ErrUnauthorized
	}
	p, err := s.catalog.FindProduct(ctx, name)
	if err != nil {
		return nil, err
	}
	members, err := s.waitlist.Members(ctx, p.Name)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "failed to read waitlist")
	}
	return members, nil
}

func (s *storefrontService) DialogueReply(ctx context.Context, caller model.Caller, text string) (*order.Resolution, error) {
	res, err := s.orders.ResolveNext(ctx, caller, model.ParseYesNo(text))
	s.metrics.RecordInteraction("dialogue_reply", resultLabel(err))
	return res, err
}

func (s *storefrontService) Cart(ctx context.Context, caller model.Caller) *model.Cart {
	return s.carts.Get(ctx, caller.UserID)
}

func (s *storefrontService) notificationFailed(reason, userID string, err error) {
	s.metrics.RecordNotificationFailure(reason)
	log.WithFields(log.Fields{
		"user_id": userID,
		"reason":  reason,
		"error":   err,
	}).Warn("Notification failed, skipping")
}

func mentions(ids []string) string {
	if len(ids) == 0 {
		return "(None)"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "<@" + id + ">"
	}
	return strings.Join(parts, ", ")
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		return strconv.Itoa(int(appErr.Code))
	}
	return "error"
}

package cart

import (
	"context"

	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/internal/session"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// CartService builds and submits per-user carts
type CartService interface {
	// AddItem adds one unit of product and returns the new quantity
	AddItem(ctx context.Context, userID string, product *model.Product) (int, error)

	// Checkout snapshots the cart in currency and clears it
	Checkout(ctx context.Context, userID string, currency model.Currency) ([]model.OrderLine, error)

	// Get returns a copy of the user's cart, nil if none
	Get(ctx context.Context, userID string) *model.Cart
}

type cartService struct {
	carts   *session.Store[*model.Cart]
	metrics *monitor.Metrics
}

// NewCartService creates a cart service over its own session store
func NewCartService(metrics *monitor.Metrics) CartService {
	return &cartService{
		carts:   session.NewStore[*model.Cart](),
		metrics: metrics,
	}
}

func (s *cartService) AddItem(ctx context.Context, userID string, product *model.Product) (int, error) {
	if !product.InStock {
		s.metrics.RecordCartAdd("out_of_stock")
		return 0, utils.ErrOutOfStock
	}

	var qty int
	err := s.carts.Update(userID, func(cur *model.Cart, ok bool) (*model.Cart, bool, error) {
		if !ok {
			cur = model.NewCart(userID)
		}
		qty = cur.Add(product)
		return cur, true, nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.RecordCartAdd("ok")
	log.WithFields(log.Fields{
		"user_id":  userID,
		"product":  product.Name,
		"quantity": qty,
	}).Debug("Item added to cart")
	return qty, nil
}

func (s *cartService) Checkout(ctx context.Context, userID string, currency model.Currency) ([]model.OrderLine, error) {
	if !currency.Valid() {
		return nil, utils.NewError(utils.CodeInvalidParam, "unknown currency: "+string(currency))
	}

	var lines []model.OrderLine
	err := s.carts.Update(userID, func(cur *model.Cart, ok bool) (*model.Cart, bool, error) {
		if !ok || cur.IsEmpty() {
			return cur, ok, utils.ErrEmptyCart
		}
		lines = cur.Lines(currency)
		return nil, false, nil
	})
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *cartService) Get(ctx context.Context, userID string) *model.Cart {
	c, ok := s.carts.Get(userID)
	if !ok {
		return nil
	}
	return c.Clone()
}

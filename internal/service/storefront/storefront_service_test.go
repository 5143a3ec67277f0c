package storefront

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/service/cart"
	"storefront/internal/service/ledger"
	"storefront/internal/service/order"
	"storefront/internal/service/report"
	"storefront/internal/service/waitlist"
	"storefront/pkg/snowflake"
	"storefront/pkg/utils"
)

// memCatalog in-memory catalog.Store
type memCatalog struct {
	mu       sync.Mutex
	products map[string]*model.Product

	afterFresh func() // runs after every fresh lookup when set
}

func (c *memCatalog) FindProduct(ctx context.Context, name string) (*model.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[name]
	if !ok {
		return nil, utils.NewError(utils.CodeProductNotFound, "product not found: "+name)
	}
	cp := *p
	return &cp, nil
}

func (c *memCatalog) FindProductFresh(ctx context.Context, name string) (*model.Product, error) {
	p, err := c.FindProduct(ctx, name)
	if c.afterFresh != nil {
		c.afterFresh()
	}
	return p, err
}

func (c *memCatalog) FindProducts(ctx context.Context, catalogID string) ([]*model.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.Product
	for _, p := range c.products {
		if p.CatalogID == catalogID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (c *memCatalog) SetStock(ctx context.Context, name string, inStock bool) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[name]
	if !ok {
		return false, utils.NewError(utils.CodeProductNotFound, "product not found: "+name)
	}
	changed := p.InStock != inStock
	p.InStock = inStock
	return changed, nil
}

// memSales in-memory repository.SaleRepository
type memSales struct {
	mu      sync.Mutex
	records []*model.SaleRecord
}

func (r *memSales) Create(ctx context.Context, rec *model.SaleRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memSales) ListSince(ctx context.Context, since time.Time) ([]*model.SaleRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.SaleRecord
	for _, rec := range r.records {
		if !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *memSales) ListByUser(ctx context.Context, userID string, limit int) ([]*model.SaleRecord, error) {
	return nil, nil
}

// flakyWaitlist fails the first failures Restock calls
type flakyWaitlist struct {
	waitlist.WaitlistService
	mu       sync.Mutex
	failures int
}

func (w *flakyWaitlist) Restock(ctx context.Context, productName string) ([]string, error) {
	w.mu.Lock()
	if w.failures > 0 {
		w.failures--
		w.mu.Unlock()
		return nil, errors.New("redis: connection refused")
	}
	w.mu.Unlock()
	return w.WaitlistService.Restock(ctx, productName)
}

type fixture struct {
	svc   StorefrontService
	gw    *gateway.MemoryGateway
	cat   *memCatalog
	sales *memSales
}

var (
	admin = model.Caller{UserID: "admin-1", Tag: "Boss", Admin: true}
	buyer = model.Caller{UserID: "u1", Tag: "Pilot"}
)

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	ids, err := snowflake.NewIDGenerator(2)
	require.NoError(t, err)

	f := &fixture{
		gw:    gateway.NewMemoryGateway(),
		sales: &memSales{},
		cat: &memCatalog{products: map[string]*model.Product{
			"ShipA": {CatalogID: "ships", Name: "ShipA", PriceUEC: decimal.NewFromInt(1500000), PriceUSD: decimal.NewFromInt(60), InStock: true},
			"GearB": {CatalogID: "gear", Name: "GearB", PriceUEC: decimal.NewFromInt(50000), PriceUSD: decimal.NewFromInt(4), InStock: true},
			"Rare":  {CatalogID: "ships", Name: "Rare", PriceUEC: decimal.NewFromInt(9000000), PriceUSD: decimal.NewFromInt(300), InStock: false},
		}},
	}

	led := ledger.NewLedgerService(f.sales, nil)
	carts := cart.NewCartService(nil)
	reports := report.NewReportService(led, f.gw, nil, report.Config{FinanceChannel: "finance", Months: 6})
	orders := order.NewOrderService(order.Deps{
		Carts:    carts,
		Ledger:   led,
		Gateway:  f.gw,
		IDs:      ids,
		Listener: reports,
	}, order.Config{AdminChannel: "admins"})

	deps := Deps{
		Catalog:  f.cat,
		Carts:    carts,
		Waitlist: waitlist.NewMemoryWaitlist(nil),
		Orders:   orders,
		Reports:  reports,
		Gateway:  f.gw,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc = NewStorefrontService(deps, Config{AdminChannel: "admins", CatalogChannels: map[string]string{"ships": "ships-channel"}})
	return f
}

func act(kind model.ActionKind, product, target string, c model.Currency) string {
	return model.Action{Kind: kind, Product: product, TargetUser: target, Currency: c}.Encode()
}

func TestInteract_AddToCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.svc.Interact(ctx, buyer, model.AddToCartAction("ShipA"))
	require.NoError(t, err)
	assert.Equal(t, model.ActionAddToCart, reply.Kind)
	assert.Equal(t, 1, reply.Quantity)

	reply, err = f.svc.Interact(ctx, buyer, model.AddToCartAction("ShipA"))
	require.NoError(t, err)
	assert.Equal(t, 2, reply.Quantity)
	assert.Equal(t, 2, f.svc.Cart(ctx, buyer).Quantity("ShipA"))
}

func TestInteract_AddToCart_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Interact(ctx, buyer, model.AddToCartAction("Nope"))
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	_, err = f.svc.Interact(ctx, buyer, model.AddToCartAction("Rare"))
	assert.ErrorIs(t, err, utils.ErrOutOfStock)
	assert.Nil(t, f.svc.Cart(ctx, buyer))
}

func TestInteract_MalformedAction(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Interact(context.Background(), buyer, "agregar_ShipA_123")
	assert.ErrorIs(t, err, utils.ErrInvalidAction)
}

func TestInteract_AdminActionsNeedAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{
		act(model.ActionConfirmFull, "", "u1", ""),
		act(model.ActionConfirmPartial, "", "u1", ""),
		act(model.ActionCancelOrder, "", "u1", ""),
		act(model.ActionNotifyRestock, "Rare", "", ""),
		act(model.ActionRefreshSales, "", "", ""),
	} {
		_, err := f.svc.Interact(ctx, buyer, id)
		assert.ErrorIs(t, err, utils.ErrUnauthorized)
	}

	p, err := f.cat.FindProduct(ctx, "Rare")
	require.NoError(t, err)
	assert.False(t, p.InStock)
	assert.Empty(t, f.gw.Announcements())
}

func TestInteract_RequestRestock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Interact(ctx, buyer, model.RequestRestockAction("ShipA"))
	assert.ErrorIs(t, err, utils.ErrAlreadyInStock)

	reply, err := f.svc.Interact(ctx, buyer, model.RequestRestockAction("Rare"))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, reply.Waiting)

	_, err = f.svc.Interact(ctx, buyer, model.RequestRestockAction("Rare"))
	assert.ErrorIs(t, err, utils.ErrAlreadyWaiting)

	reply, err = f.svc.Interact(ctx, model.Caller{UserID: "u2"}, model.RequestRestockAction("Rare"))
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, reply.Waiting)

	anns := f.gw.Announcements()
	require.Len(t, anns, 1)
	assert.Contains(t, anns[0].Content, "Current waiting list: <@u1>, <@u2>")
	require.Len(t, anns[0].Buttons, 1)
	a, err := model.DecodeAction(anns[0].Buttons[0].ActionID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionNotifyRestock, a.Kind)
	assert.Equal(t, "Rare", a.Product)
}

func TestAdminSetStock_DrainsWaitlistOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []string{"u1", "u2", "u3"} {
		_, err := f.svc.Interact(ctx, model.Caller{UserID: u}, model.RequestRestockAction("Rare"))
		require.NoError(t, err)
	}
	f.gw.SetUnreachable("u2")

	reply, err := f.svc.Interact(ctx, admin, act(model.ActionNotifyRestock, "Rare", "", ""))
	require.NoError(t, err)
	change := reply.Stock
	assert.True(t, change.Changed)
	assert.Equal(t, []string{"u1", "u3"}, change.Notified)
	assert.Equal(t, []string{"u2"}, change.Failed)

	dms := f.gw.DirectMessages("u3")
	require.Len(t, dms, 1)
	assert.Contains(t, dms[0], "**Rare** you requested is now in stock")
	assert.Contains(t, dms[0], "<#ships-channel>")

	anns := f.gw.Announcements()
	require.Len(t, anns, 1)
	assert.Contains(t, anns[0].Content, "(None)")
	assert.Empty(t, anns[0].Buttons)

	change, err = f.svc.AdminSetStock(ctx, admin, "Rare", true)
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.Empty(t, change.Notified)
	assert.Len(t, f.gw.DirectMessages("u1"), 1)
}

func TestAdminSetStock_OutOfStockDoesNotDrain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	change, err := f.svc.AdminSetStock(ctx, admin, "ShipA", false)
	require.NoError(t, err)
	assert.True(t, change.Changed)

	_, err = f.svc.Interact(ctx, buyer, model.RequestRestockAction("ShipA"))
	require.NoError(t, err)

	_, err = f.svc.AdminSetStock(ctx, admin, "ShipA", false)
	require.NoError(t, err)
	assert.Empty(t, f.gw.DirectMessages(buyer.UserID))

	_, err = f.svc.AdminSetStock(ctx, buyer, "ShipA", true)
	assert.ErrorIs(t, err, utils.ErrUnauthorized)

	_, err = f.svc.AdminSetStock(ctx, admin, "Nope", true)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}

func TestAdminSetStock_RetryDrainsAfterFailedRestock(t *testing.T) {
	flaky := &flakyWaitlist{WaitlistService: waitlist.NewMemoryWaitlist(nil), failures: 1}
	f := newFixture(t, func(d *Deps) { d.Waitlist = flaky })
	ctx := context.Background()

	_, err := f.svc.Interact(ctx, model.Caller{UserID: "u9"}, model.RequestRestockAction("Rare"))
	require.NoError(t, err)

	_, err = f.svc.AdminSetStock(ctx, admin, "Rare", true)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrInternalError)
	assert.Empty(t, f.gw.DirectMessages("u9"))

	p, err := f.cat.FindProduct(ctx, "Rare")
	require.NoError(t, err)
	assert.True(t, p.InStock)

	change, err := f.svc.AdminSetStock(ctx, admin, "Rare", true)
	require.NoError(t, err)
	assert.False(t, change.Changed)
	assert.Equal(t, []string{"u9"}, change.Notified)
	assert.Len(t, f.gw.DirectMessages("u9"), 1)

	anns := f.gw.Announcements()
	require.Len(t, anns, 1)
	assert.Contains(t, anns[0].Content, "(None)")
}

func TestRequestRestock_SerializedWithSetStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	looked := make(chan struct{})
	adminDone := make(chan struct{})
	var once sync.Once
	// the requester pauses between its stock check and its join to give
	// the admin a chance to slip in
	f.cat.afterFresh = func() {
		once.Do(func() {
			close(looked)
			select {
			case <-adminDone:
			case <-time.After(50 * time.Millisecond):
			}
		})
	}

	var adminErr error
	go func() {
		defer close(adminDone)
		<-looked
		_, adminErr = f.svc.AdminSetStock(ctx, admin, "Rare", true)
	}()

	_, err := f.svc.Interact(ctx, buyer, model.RequestRestockAction("Rare"))
	require.NoError(t, err)
	<-adminDone
	require.NoError(t, adminErr)

	// the join landed before the drain, so the buyer was notified and nobody is stranded
	assert.Len(t, f.gw.DirectMessages(buyer.UserID), 1)
	members, err := f.svc.Waitlist(ctx, admin, "Rare")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestWaitlist_AdminView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []string{"u1", "u2"} {
		_, err := f.svc.Interact(ctx, model.Caller{UserID: u}, model.RequestRestockAction("Rare"))
		require.NoError(t, err)
	}

	members, err := f.svc.Waitlist(ctx, admin, "Rare")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, members)

	_, err = f.svc.Waitlist(ctx, buyer, "Rare")
	assert.ErrorIs(t, err, utils.ErrUnauthorized)

	_, err = f.svc.Waitlist(ctx, admin, "Nope")
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}

func TestFlow_PartialDeliveryThroughDialogueReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{model.AddToCartAction("ShipA"), model.AddToCartAction("ShipA"), model.AddToCartAction("GearB")} {
		_, err := f.svc.Interact(ctx, buyer, id)
		require.NoError(t, err)
	}

	reply, err := f.svc.Interact(ctx, buyer, model.CheckoutAction(model.CurrencyUEC))
	require.NoError(t, err)
	require.NotNil(t, reply.Order)
	assert.Len(t, reply.Order.Lines, 2)

	reply, err = f.svc.Interact(ctx, admin, act(model.ActionConfirmPartial, "", buyer.UserID, ""))
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryPrompt("ShipA"), reply.Message)

	res, err := f.svc.DialogueReply(ctx, admin, " YES ")
	require.NoError(t, err)
	assert.False(t, res.Done)

	res, err = f.svc.DialogueReply(ctx, admin, "nope")
	require.NoError(t, err)
	require.True(t, res.Done)
	assert.Equal(t, model.OrderStatusPartiallyDelivered, res.Status)
	require.NotNil(t, res.Requeued)
	assert.Equal(t, "GearB", res.Requeued.Lines[0].Product.Name)

	require.Len(t, f.sales.records, 1)
	assert.True(t, f.sales.records[0].TotalUEC.Equal(decimal.NewFromInt(3000000)))

	_, err = f.svc.DialogueReply(ctx, admin, "yes")
	assert.ErrorIs(t, err, utils.ErrNoActiveDialogue)
}

func TestInteract_RefreshSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.svc.Interact(ctx, admin, model.RefreshSalesButton().ActionID)
	require.NoError(t, err)
	require.NotNil(t, reply.Summary)
	assert.Len(t, reply.Summary.Months, 6)

	var finance []gateway.Announcement
	for _, a := range f.gw.Announcements() {
		if a.Ref.ChannelID == "finance" {
			finance = append(finance, a)
		}
	}
	assert.Len(t, finance, 1)
}

func TestInteract_CheckoutEmptyCart(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Interact(context.Background(), buyer, model.CheckoutAction(model.CurrencyUSD))
	assert.ErrorIs(t, err, utils.ErrEmptyCart)
}

package handler

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/catalog"
	"storefront/internal/model"
	"storefront/pkg/utils"
)

// CatalogHandler read-only product listings with their action ids
type CatalogHandler struct {
	catalog catalog.Store
}

// NewCatalogHandler creates a catalog handler
func NewCatalogHandler(store catalog.Store) *CatalogHandler {
	return &CatalogHandler{catalog: store}
}

// ProductView a product plus the buttons a client should render for it
type ProductView struct {
	*model.Product
	Buttons []model.Button `json:"buttons"`
}

// ListProducts GET /api/v1/catalogs/:catalog_id/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.catalog.FindProducts(c.Request.Context(), c.Param("catalog_id"))
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{Product: p, Buttons: productButtons(p)})
	}
	utils.SuccessResponse(c, views)
}

// GetProduct GET /api/v1/products/:name
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	p, err := h.catalog.FindProduct(c.Request.Context(), c.Param("name"))
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, ProductView{Product: p, Buttons: productButtons(p)})
}

// productButtons mirrors what a catalog listing offers: add or request,
// plus checkout in each currency the product is priced in
func productButtons(p *model.Product) []model.Button {
	if !p.InStock {
		return []model.Button{{
			Label:    "📋 Request Product",
			ActionID: model.RequestRestockAction(p.Name),
			Style:    model.ButtonPrimary,
		}}
	}

	buttons := []model.Button{{
		Label:    "➕ Add to Cart",
		ActionID: model.AddToCartAction(p.Name),
		Style:    model.ButtonPrimary,
	}}
	if p.PriceUEC.IsPositive() {
		buttons = append(buttons, model.Button{Label: "💰 Buy with UEC", ActionID: model.CheckoutAction(model.CurrencyUEC), Style: model.ButtonSuccess})
	}
	if p.PriceUSD.IsPositive() {
		buttons = append(buttons, model.Button{Label: "💵 Buy with USD", ActionID: model.CheckoutAction(model.CurrencyUSD), Style: model.ButtonSuccess})
	}
	return buttons
}

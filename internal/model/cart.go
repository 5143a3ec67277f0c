package model

// CartItem one product line in a cart
type CartItem struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int             `json:"quantity"`
}

// Cart a user's in-progress selection, keyed by product name.
// Items keep the order in which products were first added.
type Cart struct {
	UserID string      `json:"user_id"`
	Items  []*CartItem `json:"items"`
}

// NewCart creates an empty cart
func NewCart(userID string) *Cart {
	return &Cart{UserID: userID}
}

// Add increments the quantity of the product, creating the line if absent,
// and returns the new quantity
func (c *Cart) Add(p *Product) int {
	for _, item := range c.Items {
		if item.Product.Name == p.Name {
			item.Quantity++
			return item.Quantity
		}
	}
	c.Items = append(c.Items, &CartItem{Product: p.Snapshot(), Quantity: 1})
	return 1
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Quantity returns the quantity for a product name, 0 if absent
func (c *Cart) Quantity(name string) int {
	for _, item := range c.Items {
		if item.Product.Name == name {
			return item.Quantity
		}
	}
	return 0
}

// Clone returns a deep copy
func (c *Cart) Clone() *Cart {
	out := &Cart{UserID: c.UserID, Items: make([]*CartItem, len(c.Items))}
	for i, item := range c.Items {
		cp := *item
		out.Items[i] = &cp
	}
	return out
}

// Lines snapshots every item tagged with the checkout currency
func (c *Cart) Lines(currency Currency) []OrderLine {
	lines := make([]OrderLine, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, OrderLine{
			Product:  item.Product,
			Quantity: item.Quantity,
			Currency: currency,
		})
	}
	return lines
}

package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SaleRecord immutable ledger entry covering the delivered items of an order
type SaleRecord struct {
	ID        uint64          `gorm:"primaryKey;autoIncrement:false;comment:sale ID" json:"id"`
	OrderID   uint64          `gorm:"type:bigint unsigned;not null;index;comment:pending order ID" json:"order_id"`
	UserID    string          `gorm:"type:varchar(64);not null;index;comment:buyer ID" json:"user_id"`
	Items     SaleItems       `gorm:"type:json;not null;comment:delivered items" json:"items"`
	Currency  Currency        `gorm:"type:varchar(8);not null;comment:checkout currency" json:"currency"`
	TotalUEC  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0;comment:total in UEC" json:"total_uec"`
	TotalUSD  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0;comment:total in USD" json:"total_usd"`
	Status    OrderStatus     `gorm:"type:varchar(32);not null;comment:Delivered or Partially Delivered" json:"status"`
	Timestamp time.Time       `gorm:"type:timestamp;not null;index;comment:sale time" json:"timestamp"`
}

// TableName set name
func (SaleRecord) TableName() string {
	return "sale_records"
}

// SaleItem one delivered line with both unit prices
type SaleItem struct {
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	PriceUEC    decimal.Decimal `json:"price_uec"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	Currency    Currency        `json:"currency"`
}

// SaleItems json column
type SaleItems []SaleItem

// Value implement driver.Valuer interface
func (s SaleItems) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implement sql.Scanner interface
func (s *SaleItems) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	}
	return fmt.Errorf("cannot scan %T into SaleItems", value)
}

// NewSaleRecord builds a record for delivered lines. Only the checkout
// currency is totalled; the other total stays zero.
func NewSaleRecord(id uint64, order *PendingOrder, delivered []OrderLine, status OrderStatus, now time.Time) *SaleRecord {
	currency := order.Currency()
	rec := &SaleRecord{
		ID:        id,
		OrderID:   order.ID,
		UserID:    order.UserID,
		Items:     make(SaleItems, 0, len(delivered)),
		Currency:  currency,
		TotalUEC:  decimal.Zero,
		TotalUSD:  decimal.Zero,
		Status:    status,
		Timestamp: now,
	}

	total := decimal.Zero
	for _, l := range delivered {
		rec.Items = append(rec.Items, SaleItem{
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			PriceUEC:    l.Product.PriceUEC,
			PriceUSD:    l.Product.PriceUSD,
			Currency:    l.Currency,
		})
		total = total.Add(l.Subtotal())
	}

	if currency == CurrencyUSD {
		rec.TotalUSD = total
	} else {
		rec.TotalUEC = total
	}
	return rec
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product catalog product. Name is unique within a catalog.
type Product struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement;comment:product ID" json:"id"`
	CatalogID   string          `gorm:"type:varchar(64);not null;uniqueIndex:uk_catalog_name,priority:1;comment:catalog ID" json:"catalog_id"`
	Name        string          `gorm:"type:varchar(200);not null;uniqueIndex:uk_catalog_name,priority:2;index:idx_name;comment:product name" json:"name"`
	Description string          `gorm:"type:text;comment:description" json:"description"`
	ImageURL    string          `gorm:"type:varchar(500);comment:image reference" json:"image_url"`
	PriceUEC    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0;comment:price in UEC" json:"price_uec"`
	PriceUSD    decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0;comment:price in USD" json:"price_usd"`
	InStock     bool            `gorm:"not null;default:false;comment:stock flag" json:"in_stock"`
	CreatedAt   time.Time       `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP;comment:created at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP;comment:updated at" json:"updated_at"`
}

// TableName set name
func (Product) TableName() string {
	return "products"
}

// Price returns the unit price in the given currency
func (p *Product) Price(c Currency) decimal.Decimal {
	if c == CurrencyUSD {
		return p.PriceUSD
	}
	return p.PriceUEC
}

// ProductSnapshot is the copy of a product taken when it enters a cart or order.
// Later catalog edits never reach it.
type ProductSnapshot struct {
	CatalogID   string          `json:"catalog_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	PriceUEC    decimal.Decimal `json:"price_uec"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
}

// Snapshot copies the product fields
func (p *Product) Snapshot() ProductSnapshot {
	return ProductSnapshot{
		CatalogID:   p.CatalogID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		PriceUEC:    p.PriceUEC,
		PriceUSD:    p.PriceUSD,
	}
}

// Price returns the snapshot unit price in the given currency
func (s ProductSnapshot) Price(c Currency) decimal.Decimal {
	if c == CurrencyUSD {
		return s.PriceUSD
	}
	return s.PriceUEC
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"storefront/internal/model"
)

// SaleRepository append-only store of sale records
type SaleRepository interface {
	// Create appends a record
	Create(ctx context.Context, rec *model.SaleRecord) error

	// ListSince returns records with timestamp >= since, oldest first
	ListSince(ctx context.Context, since time.Time) ([]*model.SaleRecord, error)

	// ListByUser returns the latest records of a user
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.SaleRecord, error)
}

type saleRepository struct {
	db *gorm.DB
}

// NewSaleRepository creates a sale repository
func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

func (r *saleRepository) Create(ctx context.Context, rec *model.SaleRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *saleRepository) ListSince(ctx context.Context, since time.Time) ([]*model.SaleRecord, error) {
	var records []*model.SaleRecord
	err := r.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("timestamp").
		Find(&records).Error
	return records, err
}

func (r *saleRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.SaleRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var records []*model.SaleRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

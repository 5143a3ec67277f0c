package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"storefront/internal/model"
)

// ErrNotFound returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// ProductRepository product repository interface
type ProductRepository interface {
	// Create product
	Create(ctx context.Context, product *model.Product) error

	// FindByName returns the first product with the given name
	FindByName(ctx context.Context, name string) (*model.Product, error)

	// ListByCatalog lists products of a catalog in creation order
	ListByCatalog(ctx context.Context, catalogID string) ([]*model.Product, error)

	// ListNames returns every product name
	ListNames(ctx context.Context) ([]string, error)

	// SetStock sets the stock flag and reports whether it changed
	SetStock(ctx context.Context, name string, inStock bool) (bool, error)
}

// productRepository product repository implementation
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a product repository
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) FindByName(ctx context.Context, name string) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) ListByCatalog(ctx context.Context, catalogID string) ([]*model.Product, error) {
	var products []*model.Product
	err := r.db.WithContext(ctx).
		Where("catalog_id = ?", catalogID).
		Order("id").
		Find(&products).Error
	return products, err
}

func (r *productRepository) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&model.Product{}).Pluck("name", &names).Error
	return names, err
}

// SetStock only touches rows whose flag differs, so of two racing calls
// setting the same value exactly one observes the change.
func (r *productRepository) SetStock(ctx context.Context, name string, inStock bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Product{}).
		Where("name = ? AND in_stock <> ?", name, inStock).
		Update("in_stock", inStock)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	if _, err := r.FindByName(ctx, name); err != nil {
		return false, err
	}
	return false, nil
}

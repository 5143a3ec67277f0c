// Package catalog is the read side of the product catalog plus the stock flag.
package catalog

import (
	"context"
	"errors"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/pkg/utils"
)

// Store catalog accessor used by the storefront core.
// Description and prices are never written through it.
type Store interface {
	// FindProduct returns utils.ErrProductNotFound when name is unknown
	FindProduct(ctx context.Context, name string) (*model.Product, error)

	// FindProductFresh skips any cache; use it where the stock flag decides the outcome
	FindProductFresh(ctx context.Context, name string) (*model.Product, error)

	FindProducts(ctx context.Context, catalogID string) ([]*model.Product, error)

	// SetStock reports whether the flag actually changed
	SetStock(ctx context.Context, name string, inStock bool) (bool, error)
}

type repoStore struct {
	repo repository.ProductRepository
}

// NewStore creates a Store reading straight from the repository
func NewStore(repo repository.ProductRepository) Store {
	return &repoStore{repo: repo}
}

func (s *repoStore) FindProduct(ctx context.Context, name string) (*model.Product, error) {
	p, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, mapErr(err, name)
	}
	return p, nil
}

func (s *repoStore) FindProductFresh(ctx context.Context, name string) (*model.Product, error) {
	return s.FindProduct(ctx, name)
}

func (s *repoStore) FindProducts(ctx context.Context, catalogID string) ([]*model.Product, error) {
	products, err := s.repo.ListByCatalog(ctx, catalogID)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "failed to list products")
	}
	return products, nil
}

func (s *repoStore) SetStock(ctx context.Context, name string, inStock bool) (bool, error) {
	changed, err := s.repo.SetStock(ctx, name, inStock)
	if err != nil {
		return false, mapErr(err, name)
	}
	return changed, nil
}

func mapErr(err error, name string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return utils.NewError(utils.CodeProductNotFound, "product not found: "+name)
	}
	return utils.WrapError(err, utils.CodeInternalError, "catalog lookup failed")
}

package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
	"storefront/internal/repository"
	"storefront/pkg/utils"
)

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) Create(ctx context.Context, p *model.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *mockProductRepo) FindByName(ctx context.Context, name string) (*model.Product, error) {
	args := m.Called(ctx, name)
	if p := args.Get(0); p != nil {
		return p.(*model.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProductRepo) ListByCatalog(ctx context.Context, catalogID string) ([]*model.Product, error) {
	args := m.Called(ctx, catalogID)
	return args.Get(0).([]*model.Product), args.Error(1)
}

func (m *mockProductRepo) ListNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockProductRepo) SetStock(ctx context.Context, name string, inStock bool) (bool, error) {
	args := m.Called(ctx, name, inStock)
	return args.Bool(0), args.Error(1)
}

func cutlass() *model.Product {
	return &model.Product{
		ID:        1,
		CatalogID: "ships",
		Name:      "Cutlass Black",
		PriceUEC:  decimal.NewFromInt(1500000),
		PriceUSD:  decimal.NewFromInt(110),
		InStock:   true,
	}
}

func TestStore_FindProduct(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByName", mock.Anything, "Cutlass Black").Return(cutlass(), nil)
	repo.On("FindByName", mock.Anything, "Ghost").Return(nil, repository.ErrNotFound)
	repo.On("FindByName", mock.Anything, "Broken").Return(nil, errors.New("db down"))

	s := NewStore(repo)
	ctx := context.Background()

	p, err := s.FindProduct(ctx, "Cutlass Black")
	require.NoError(t, err)
	assert.Equal(t, "ships", p.CatalogID)

	_, err = s.FindProduct(ctx, "Ghost")
	assert.ErrorIs(t, err, utils.ErrProductNotFound)

	_, err = s.FindProduct(ctx, "Broken")
	assert.ErrorIs(t, err, utils.ErrInternalError)
}

func TestStore_SetStock(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("SetStock", mock.Anything, "Cutlass Black", true).Return(true, nil)
	repo.On("SetStock", mock.Anything, "Ghost", true).Return(false, repository.ErrNotFound)

	s := NewStore(repo)

	changed, err := s.SetStock(context.Background(), "Cutlass Black", true)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = s.SetStock(context.Background(), "Ghost", true)
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
}

func newCached(t *testing.T, repo *mockProductRepo) *CachedStore {
	t.Helper()
	cs, err := NewCachedStore(NewStore(repo), repo, CacheConfig{TTL: time.Minute, BloomCapacity: 100, BloomFPRate: 0.001})
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestCachedStore_CachesLookups(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("FindByName", mock.Anything, "Cutlass Black").Return(cutlass(), nil).Once()

	cs := newCached(t, repo)
	ctx := context.Background()

	p1, err := cs.FindProduct(ctx, "Cutlass Black")
	require.NoError(t, err)
	p2, err := cs.FindProduct(ctx, "Cutlass Black")
	require.NoError(t, err)

	assert.Equal(t, p1.Name, p2.Name)
	assert.True(t, p2.PriceUEC.Equal(decimal.NewFromInt(1500000)))

	// callers get independent copies
	p2.Name = "mutated"
	p3, _ := cs.FindProduct(ctx, "Cutlass Black")
	assert.Equal(t, "Cutlass Black", p3.Name)

	repo.AssertNumberOfCalls(t, "FindByName", 1)
}

func TestCachedStore_BloomRejectsUnknownNames(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("ListNames", mock.Anything).Return([]string{"Cutlass Black", "Aurora MR"}, nil)
	repo.On("FindByName", mock.Anything, "Cutlass Black").Return(cutlass(), nil)

	cs := newCached(t, repo)
	ctx := context.Background()
	require.NoError(t, cs.Refresh(ctx))

	_, err := cs.FindProduct(ctx, "Definitely Not A Ship")
	assert.ErrorIs(t, err, utils.ErrProductNotFound)
	repo.AssertNotCalled(t, "FindByName", mock.Anything, "Definitely Not A Ship")

	_, err = cs.FindProduct(ctx, "Cutlass Black")
	assert.NoError(t, err)
}

func TestCachedStore_RefreshError(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("ListNames", mock.Anything).Return([]string(nil), errors.New("db down"))
	repo.On("FindByName", mock.Anything, "Cutlass Black").Return(cutlass(), nil)

	cs := newCached(t, repo)
	assert.Error(t, cs.Refresh(context.Background()))

	// without a filter every name goes to the store
	_, err := cs.FindProduct(context.Background(), "Cutlass Black")
	assert.NoError(t, err)
}

func TestCachedStore_SetStockEvicts(t *testing.T) {
	repo := new(mockProductRepo)
	inStock := cutlass()
	outOfStock := cutlass()
	outOfStock.InStock = false

	repo.On("FindByName", mock.Anything, "Cutlass Black").Return(outOfStock, nil).Once()
	repo.On("FindByName", mock.Anything, "Cutlass Black").Return(inStock, nil).Once()
	repo.On("SetStock", mock.Anything, "Cutlass Black", true).Return(true, nil)

	cs := newCached(t, repo)
	ctx := context.Background()

	p, err := cs.FindProduct(ctx, "Cutlass Black")
	require.NoError(t, err)
	assert.False(t, p.InStock)

	changed, err := cs.SetStock(ctx, "Cutlass Black", true)
	require.NoError(t, err)
	assert.True(t, changed)

	p, err = cs.FindProduct(ctx, "Cutlass Black")
	require.NoError(t, err)
	assert.True(t, p.InStock)
}

func TestCachedStore_FindProductFreshSkipsCache(t *testing.T) {
	repo := new(mockProductRepo)
	outOfStock := cutlass()
	outOfStock.InStock = false

	repo.On("FindByName", mock.Anything, "Cutlass Black").Return(cutlass(), nil).Once()
	repo.On("FindByName", mock.Anything, "Cutlass Black").Return(outOfStock, nil).Once()

	cs := newCached(t, repo)
	ctx := context.Background()

	p, err := cs.FindProduct(ctx, "Cutlass Black")
	require.NoError(t, err)
	assert.True(t, p.InStock)

	// another replica marked it out of stock; the cached entry still says in stock
	p, err = cs.FindProductFresh(ctx, "Cutlass Black")
	require.NoError(t, err)
	assert.False(t, p.InStock)

	// the fresh read also replaced the cached entry
	p, err = cs.FindProduct(ctx, "Cutlass Black")
	require.NoError(t, err)
	assert.False(t, p.InStock)
	repo.AssertNumberOfCalls(t, "FindByName", 2)
}

func TestCachedStore_Run(t *testing.T) {
	repo := new(mockProductRepo)
	repo.On("ListNames", mock.Anything).Return([]string{"A"}, nil)

	cs := newCached(t, repo)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- cs.Run(ctx, 5*time.Millisecond) }()

	assert.Eventually(t, func() bool {
		cs.mu.RLock()
		defer cs.mu.RUnlock()
		return cs.filter != nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/bits-and-blooms/bloom/v3"

	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// NameLister lists every product name; used to rebuild the bloom filter
type NameLister interface {
	ListNames(ctx context.Context) ([]string, error)
}

// CacheConfig cached store configuration
type CacheConfig struct {
	TTL           time.Duration
	MaxSizeMB     int
	BloomCapacity uint
	BloomFPRate   float64
	Metrics       *monitor.Metrics
}

// CachedStore fronts a Store with a bigcache of products by name and a
// bloom filter of known names.
//
// The filter is only as fresh as the last Refresh: a product inserted
// out of band is reported missing until the next Refresh runs.
type CachedStore struct {
	next   Store
	names  NameLister
	cache  *bigcache.BigCache
	config CacheConfig

	mu     sync.RWMutex
	filter *bloom.BloomFilter // nil until the first successful Refresh
}

// NewCachedStore creates the cache; call Refresh before serving to enable the filter
func NewCachedStore(next Store, names NameLister, cfg CacheConfig) (*CachedStore, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.BloomCapacity == 0 {
		cfg.BloomCapacity = 10000
	}
	if cfg.BloomFPRate <= 0 {
		cfg.BloomFPRate = 0.01
	}

	bc := bigcache.DefaultConfig(cfg.TTL)
	bc.CleanWindow = cfg.TTL
	bc.HardMaxCacheSize = cfg.MaxSizeMB
	bc.Verbose = false

	cache, err := bigcache.New(context.Background(), bc)
	if err != nil {
		return nil, fmt.Errorf("failed to create product cache: %w", err)
	}

	return &CachedStore{
		next:   next,
		names:  names,
		cache:  cache,
		config: cfg,
	}, nil
}

// Refresh rebuilds the bloom filter from the full list of names
func (s *CachedStore) Refresh(ctx context.Context) error {
	names, err := s.names.ListNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list product names: %w", err)
	}

	capacity := s.config.BloomCapacity
	if n := uint(len(names)); n > capacity {
		capacity = n
	}
	filter := bloom.NewWithEstimates(capacity, s.config.BloomFPRate)
	for _, name := range names {
		filter.AddString(name)
	}

	s.mu.Lock()
	s.filter = filter
	s.mu.Unlock()

	log.WithFields(log.Fields{"products": len(names)}).Debug("Catalog bloom filter rebuilt")
	return nil
}

// Run refreshes the filter every interval until ctx ends
func (s *CachedStore) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				log.WithError(err).Warn("Catalog refresh failed")
			}
		}
	}
}

func (s *CachedStore) mayExist(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter == nil || s.filter.TestString(name)
}

// FindProduct returns a fresh copy of the product on every call
func (s *CachedStore) FindProduct(ctx context.Context, name string) (*model.Product, error) {
	if !s.mayExist(name) {
		s.config.Metrics.RecordCatalogLookup("bloom_reject")
		return nil, utils.NewError(utils.CodeProductNotFound, "product not found: "+name)
	}

	if data, err := s.cache.Get(name); err == nil {
		var p model.Product
		if err := json.Unmarshal(data, &p); err == nil {
			s.config.Metrics.RecordCatalogLookup("hit")
			return &p, nil
		}
	} else if !errors.Is(err, bigcache.ErrEntryNotFound) {
		log.WithError(err).Warn("Product cache read failed")
	}

	s.config.Metrics.RecordCatalogLookup("miss")
	p, err := s.next.FindProduct(ctx, name)
	if err != nil {
		return nil, err
	}
	s.put(name, p)
	return p, nil
}

// FindProductFresh reads through to the store and refreshes the cached
// entry. Plain FindProduct may see a stock flag up to TTL old.
func (s *CachedStore) FindProductFresh(ctx context.Context, name string) (*model.Product, error) {
	s.config.Metrics.RecordCatalogLookup("fresh")
	p, err := s.next.FindProductFresh(ctx, name)
	if err != nil {
		return nil, err
	}
	s.put(name, p)
	return p, nil
}

func (s *CachedStore) put(name string, p *model.Product) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.cache.Set(name, data); err != nil {
		log.WithError(err).Warn("Product cache write failed")
	}
}

// FindProducts is not cached; catalog listings are rare compared to lookups
func (s *CachedStore) FindProducts(ctx context.Context, catalogID string) ([]*model.Product, error) {
	return s.next.FindProducts(ctx, catalogID)
}

// SetStock writes through and evicts the cached entry
func (s *CachedStore) SetStock(ctx context.Context, name string, inStock bool) (bool, error) {
	changed, err := s.next.SetStock(ctx, name, inStock)
	if err != nil {
		return false, err
	}
	if err := s.cache.Delete(name); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		log.WithError(err).Warn("Product cache eviction failed")
	}
	return changed, nil
}

// Close releases the cache
func (s *CachedStore) Close() error {
	return s.cache.Close()
}

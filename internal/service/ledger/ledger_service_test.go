package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/model"
	"storefront/pkg/utils"
)

type MockSaleRepository struct {
	mock.Mock
}

func (m *MockSaleRepository) Create(ctx context.Context, rec *model.SaleRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockSaleRepository) ListSince(ctx context.Context, since time.Time) ([]*model.SaleRecord, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SaleRecord), args.Error(1)
}

func (m *MockSaleRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.SaleRecord, error) {
	args := m.Called(ctx, userID, limit)
	return args.Get(0).([]*model.SaleRecord), args.Error(1)
}

func sale(ts time.Time, uec, usd int64) *model.SaleRecord {
	return &model.SaleRecord{
		Status:    model.OrderStatusDelivered,
		TotalUEC:  decimal.NewFromInt(uec),
		TotalUSD:  decimal.NewFromInt(usd),
		Timestamp: ts,
	}
}

func TestLedgerService_Record(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewLedgerService(repo, nil)
	rec := sale(time.Now(), 100, 0)

	repo.On("Create", mock.Anything, rec).Return(nil).Once()
	require.NoError(t, svc.Record(context.Background(), rec))
	repo.AssertExpectations(t)
}

func TestLedgerService_Record_PersistenceError(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewLedgerService(repo, nil)
	rec := sale(time.Now(), 100, 0)
	dbErr := errors.New("connection refused")

	repo.On("Create", mock.Anything, rec).Return(dbErr).Once()
	err := svc.Record(context.Background(), rec)

	assert.ErrorIs(t, err, utils.ErrPersistence)
	assert.ErrorIs(t, err, dbErr)
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	since := utils.MonthsBack(now, 6)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), since)

	records := []*model.SaleRecord{
		sale(time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC), 999, 999), // outside the window
		sale(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), 250000, 0),
		sale(time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), 1250000, 0),
		sale(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), 0, 12),
		sale(time.Date(2026, 6, 15, 11, 0, 0, 0, time.UTC), 0, 5),
	}

	sum := Summarize(records, since, now)

	require.Len(t, sum.Months, 6)
	months := make([]string, len(sum.Months))
	for i, m := range sum.Months {
		months[i] = m.Month
	}
	assert.Equal(t, []string{"2026-01", "2026-02", "2026-03", "2026-04", "2026-05", "2026-06"}, months)

	assert.Equal(t, 2, sum.Months[0].Orders)
	assert.True(t, sum.Months[0].TotalUEC.Equal(decimal.NewFromInt(1500000)))
	assert.True(t, sum.Months[1].TotalUEC.IsZero())
	assert.Equal(t, 0, sum.Months[1].Orders)
	assert.True(t, sum.Months[3].TotalUSD.Equal(decimal.NewFromInt(12)))

	assert.Equal(t, 4, sum.Orders)
	assert.True(t, sum.TotalUEC.Equal(decimal.NewFromInt(1500000)))
	assert.True(t, sum.TotalUSD.Equal(decimal.NewFromInt(17)))

	text := sum.Render()
	assert.Contains(t, text, "**2026-01**: 1.5M UEC | $0 (2 orders)")
	assert.Contains(t, text, "**Total**: 1.5M UEC | $17 (4 orders)")
}

func TestSummarize_Empty(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	sum := Summarize(nil, utils.MonthsBack(now, 1), now)

	require.Len(t, sum.Months, 1)
	assert.Equal(t, "2026-03", sum.Months[0].Month)
	assert.Equal(t, 0, sum.Orders)
	assert.True(t, sum.TotalUEC.IsZero())
}

func TestLedgerService_SummarizeMonths(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewLedgerService(repo, nil).(*ledgerService)
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	since := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	repo.On("ListSince", mock.Anything, since).
		Return([]*model.SaleRecord{sale(time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), 300000, 0)}, nil).Once()

	sum, err := svc.SummarizeMonths(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, sum.Months, 3)
	assert.True(t, sum.TotalUEC.Equal(decimal.NewFromInt(300000)))
	repo.AssertExpectations(t)
}

func TestLedgerService_SummarizeMonths_Invalid(t *testing.T) {
	svc := NewLedgerService(new(MockSaleRepository), nil)

	_, err := svc.SummarizeMonths(context.Background(), 0)
	assert.ErrorIs(t, err, utils.ErrInvalidParam)
}

func TestLedgerService_SummarizeWindow_StoreError(t *testing.T) {
	repo := new(MockSaleRepository)
	svc := NewLedgerService(repo, nil)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	repo.On("ListSince", mock.Anything, since).Return(nil, errors.New("timeout")).Once()
	_, err := svc.SummarizeWindow(context.Background(), since)
	assert.ErrorIs(t, err, utils.ErrPersistence)
}

// slowSales blocks ListSince until released so concurrent callers overlap
type slowSales struct {
	MockSaleRepository
	calls   int32
	release chan struct{}
}

func (s *slowSales) ListSince(ctx context.Context, since time.Time) ([]*model.SaleRecord, error) {
	atomic.AddInt32(&s.calls, 1)
	<-s.release
	return nil, nil
}

func TestLedgerService_SummarizeWindow_Collapses(t *testing.T) {
	repo := &slowSales{release: make(chan struct{})}
	svc := NewLedgerService(repo, nil)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	const n = 10
	var wg sync.WaitGroup
	results := make([]*model.SalesSummary, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.SummarizeWindow(context.Background(), since)
		}(i)
	}

	// let the goroutines pile up on the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&repo.calls), int32(n))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&repo.calls), int32(1))
	for _, r := range results {
		require.NotNil(t, r)
	}
}

// ctxSales reports whether the context handed to ListSince was already done
type ctxSales struct {
	MockSaleRepository
	ctxErr error
}

func (s *ctxSales) ListSince(ctx context.Context, since time.Time) ([]*model.SaleRecord, error) {
	s.ctxErr = ctx.Err()
	return []*model.SaleRecord{{
		Status:    model.OrderStatusDelivered,
		TotalUEC:  decimal.NewFromInt(100),
		TotalUSD:  decimal.Zero,
		Timestamp: since.Add(time.Hour),
	}}, nil
}

func TestLedgerService_SummarizeWindow_IgnoresCallerCancel(t *testing.T) {
	repo := &ctxSales{}
	svc := NewLedgerService(repo, nil)
	since := time.Now().AddDate(0, -1, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := svc.SummarizeWindow(ctx, since)
	require.NoError(t, err)
	assert.NoError(t, repo.ctxErr)
	assert.Equal(t, 1, sum.Orders)
}

func TestLedgerService_SummarizeWindow_CallersGetOwnCopy(t *testing.T) {
	repo := &slowSales{release: make(chan struct{})}
	svc := NewLedgerService(repo, nil)
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	results := make([]*model.SalesSummary, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = svc.SummarizeWindow(context.Background(), since)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.NotSame(t, results[0], results[1])

	require.NotEmpty(t, results[0].Months)
	results[0].Orders = 99
	results[0].Months[0].Orders = 99
	assert.Zero(t, results[1].Orders)
	assert.Zero(t, results[1].Months[0].Orders)
}

func TestLedgerService_History(t *testing.T) {
	recs := []*model.SaleRecord{{ID: 2, UserID: "u1"}, {ID: 1, UserID: "u1"}}

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{"default", 0, 20},
		{"explicit", 5, 5},
		{"capped", 500, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockSaleRepository)
			repo.On("ListByUser", mock.Anything, "u1", tt.wantLimit).Return(recs, nil)

			got, err := NewLedgerService(repo, nil).History(context.Background(), "u1", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, recs, got)
			repo.AssertExpectations(t)
		})
	}

	t.Run("missing user", func(t *testing.T) {
		_, err := NewLedgerService(new(MockSaleRepository), nil).History(context.Background(), "", 0)
		assert.True(t, errors.Is(err, utils.ErrInvalidParam))
	})

	t.Run("store error", func(t *testing.T) {
		repo := new(MockSaleRepository)
		repo.On("ListByUser", mock.Anything, "u1", 20).Return([]*model.SaleRecord(nil), errors.New("db down"))

		_, err := NewLedgerService(repo, nil).History(context.Background(), "u1", 0)
		assert.True(t, errors.Is(err, utils.ErrPersistence))
	})
}

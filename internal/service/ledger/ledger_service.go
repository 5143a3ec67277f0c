package ledger

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/internal/repository"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// LedgerService append-only sales ledger
type LedgerService interface {
	// Record writes one sale; store failures come back as ErrPersistence
	Record(ctx context.Context, rec *model.SaleRecord) error

	// SummarizeWindow totals every sale with timestamp >= since, per calendar month
	SummarizeWindow(ctx context.Context, since time.Time) (*model.SalesSummary, error)

	// SummarizeMonths totals the last n calendar months, the current one included
	SummarizeMonths(ctx context.Context, months int) (*model.SalesSummary, error)

	// History returns a user's most recent sales, newest first
	History(ctx context.Context, userID string, limit int) ([]*model.SaleRecord, error)
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type ledgerService struct {
	repo    repository.SaleRepository
	metrics *monitor.Metrics
	group   singleflight.Group
	now     func() time.Time
}

// NewLedgerService creates the ledger over a sale repository
func NewLedgerService(repo repository.SaleRepository, metrics *monitor.Metrics) LedgerService {
	return &ledgerService{
		repo:    repo,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *ledgerService) Record(ctx context.Context, rec *model.SaleRecord) error {
	if err := s.repo.Create(ctx, rec); err != nil {
		s.metrics.RecordSaleRecord(string(rec.Status), "error")
		log.WithFields(log.Fields{
			"sale_id":  rec.ID,
			"order_id": rec.OrderID,
			"user_id":  rec.UserID,
			"status":   rec.Status,
			"error":    err,
		}).Error("Failed to write sale record")
		return utils.WrapError(err, utils.CodePersistence, "failed to write sale record")
	}

	s.metrics.RecordSaleRecord(string(rec.Status), "ok")
	log.WithFields(log.Fields{
		"sale_id":   rec.ID,
		"order_id":  rec.OrderID,
		"user_id":   rec.UserID,
		"status":    rec.Status,
		"total_uec": rec.TotalUEC.String(),
		"total_usd": rec.TotalUSD.String(),
	}).Info("Sale recorded")
	return nil
}

func (s *ledgerService) SummarizeWindow(ctx context.Context, since time.Time) (*model.SalesSummary, error) {
	// concurrent refreshes of the same window share one query, which must
	// not die with whichever caller happened to start it
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(strconv.FormatInt(since.UnixNano(), 10), func() (interface{}, error) {
		records, err := s.repo.ListSince(shared, since)
		if err != nil {
			return nil, utils.WrapError(err, utils.CodePersistence, "failed to load sales")
		}
		return Summarize(records, since, s.now()), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.SalesSummary).Clone(), nil
}

func (s *ledgerService) SummarizeMonths(ctx context.Context, months int) (*model.SalesSummary, error) {
	if err := utils.ValidateMonths(months); err != nil {
		return nil, err
	}
	return s.SummarizeWindow(ctx, utils.MonthsBack(s.now(), months))
}

func (s *ledgerService) History(ctx context.Context, userID string, limit int) ([]*model.SaleRecord, error) {
	if userID == "" {
		return nil, utils.NewError(utils.CodeInvalidParam, "user id is required")
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	records, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodePersistence, "failed to load sales")
	}
	return records, nil
}

// Summarize buckets records by calendar month in since's location. Every
// month from since to now appears, with zero totals when it had no sales.
// Records before since are ignored.
func Summarize(records []*model.SaleRecord, since, now time.Time) *model.SalesSummary {
	loc := since.Location()
	sum := &model.SalesSummary{
		Since:    since,
		Until:    now,
		TotalUEC: decimal.Zero,
		TotalUSD: decimal.Zero,
	}

	index := make(map[string]int)
	last := utils.GetStartOfMonth(now.In(loc))
	for m := utils.GetStartOfMonth(since); !m.After(last); m = utils.AddMonths(m, 1) {
		key := utils.MonthKey(m)
		index[key] = len(sum.Months)
		sum.Months = append(sum.Months, model.MonthTotal{
			Month:    key,
			TotalUEC: decimal.Zero,
			TotalUSD: decimal.Zero,
		})
	}

	for _, rec := range records {
		if rec.Timestamp.Before(since) {
			continue
		}
		key := utils.MonthKey(rec.Timestamp.In(loc))
		i, ok := index[key]
		if !ok {
			// sale stamped after now; give it its own bucket
			i = len(sum.Months)
			index[key] = i
			sum.Months = append(sum.Months, model.MonthTotal{Month: key, TotalUEC: decimal.Zero, TotalUSD: decimal.Zero})
		}
		m := &sum.Months[i]
		m.Orders++
		m.TotalUEC = m.TotalUEC.Add(rec.TotalUEC)
		m.TotalUSD = m.TotalUSD.Add(rec.TotalUSD)

		sum.Orders++
		sum.TotalUEC = sum.TotalUEC.Add(rec.TotalUEC)
		sum.TotalUSD = sum.TotalUSD.Add(rec.TotalUSD)
	}
	return sum
}

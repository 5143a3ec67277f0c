package report

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/model"
	"storefront/internal/service/ledger"
	"storefront/pkg/lock"
	"storefront/pkg/log"
)

// Locker lease held while a replica publishes the periodic summary
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// ReportService keeps one sales summary announcement current in the finance channel
type ReportService interface {
	// Publish summarizes the configured window and posts or edits the announcement
	Publish(ctx context.Context) (*model.SalesSummary, error)

	// Run publishes on start, every interval and after recorded sales until ctx ends
	Run(ctx context.Context, interval time.Duration) error

	// SaleRecorded schedules a refresh without blocking the caller
	SaleRecorded(ctx context.Context, rec *model.SaleRecord)
}

// Config summary settings
type Config struct {
	FinanceChannel string
	Months         int
}

type reportService struct {
	cfg     Config
	ledger  ledger.LedgerService
	gw      gateway.Gateway
	locker  Locker
	trigger chan struct{}

	mu  sync.Mutex
	ref model.MessageRef
}

// NewReportService creates the publisher; locker may be nil on a single replica
func NewReportService(ledger ledger.LedgerService, gw gateway.Gateway, locker Locker, cfg Config) ReportService {
	if cfg.Months <= 0 {
		cfg.Months = 6
	}
	return &reportService{
		cfg:     cfg,
		ledger:  ledger,
		gw:      gw,
		locker:  locker,
		trigger: make(chan struct{}, 1),
	}
}

func (s *reportService) Publish(ctx context.Context) (*model.SalesSummary, error) {
	sum, err := s.ledger.SummarizeMonths(ctx, s.cfg.Months)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	content := sum.Render()
	buttons := []model.Button{model.RefreshSalesButton()}

	if !s.ref.IsZero() {
		err := s.gw.EditAnnouncement(ctx, s.ref, content, buttons)
		if err == nil {
			return sum, nil
		}
		log.WithFields(log.Fields{
			"message_id": s.ref.MessageID,
			"error":      err,
		}).Warn("Failed to edit sales summary, posting a new one")
	}

	ref, err := s.gw.PostAnnouncement(ctx, s.cfg.FinanceChannel, content, buttons)
	if err != nil {
		return sum, err
	}
	s.ref = ref

	log.WithFields(log.Fields{
		"channel_id": ref.ChannelID,
		"message_id": ref.MessageID,
		"orders":     sum.Orders,
	}).Info("Sales summary posted")
	return sum, nil
}

func (s *reportService) SaleRecorded(ctx context.Context, rec *model.SaleRecord) {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *reportService) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx)
		case <-s.trigger:
			s.tick(ctx)
		}
	}
}

// tick publishes under the lease when one is configured; another replica
// holding it means this one skips the round
func (s *reportService) tick(ctx context.Context) {
	if s.locker != nil {
		if err := s.locker.Lock(ctx); err != nil {
			if !errors.Is(err, lock.ErrLockFailed) {
				log.WithFields(log.Fields{"error": err}).Warn("Sales summary lock unavailable")
			}
			return
		}
		defer func() {
			if err := s.locker.Unlock(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, lock.ErrLockNotHeld) {
				log.WithFields(log.Fields{"error": err}).Warn("Failed to release sales summary lock")
			}
		}()
	}

	if _, err := s.Publish(ctx); err != nil {
		log.WithFields(log.Fields{"error": err}).Error("Failed to publish sales summary")
	}
}

package waitlist

import (
	"context"
	"slices"

	"storefront/internal/monitor"
	"storefront/internal/session"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// WaitlistService tracks users waiting for a product to return to stock.
// Members keep join order and appear at most once.
type WaitlistService interface {
	// Join appends userID and returns the updated list; ErrAlreadyWaiting if present
	Join(ctx context.Context, productName, userID string) ([]string, error)

	// Restock removes the whole list and returns it in join order.
	// A second call with no joins in between returns an empty list.
	Restock(ctx context.Context, productName string) ([]string, error)

	// Members returns the current list
	Members(ctx context.Context, productName string) ([]string, error)
}

type memoryWaitlist struct {
	lists   *session.Store[[]string]
	metrics *monitor.Metrics
}

// NewMemoryWaitlist keeps waitlists in process memory
func NewMemoryWaitlist(metrics *monitor.Metrics) WaitlistService {
	return &memoryWaitlist{
		lists:   session.NewStore[[]string](),
		metrics: metrics,
	}
}

func (w *memoryWaitlist) Join(ctx context.Context, productName, userID string) ([]string, error) {
	var members []string
	err := w.lists.Update(productName, func(cur []string, _ bool) ([]string, bool, error) {
		if slices.Contains(cur, userID) {
			return cur, true, utils.ErrAlreadyWaiting
		}
		cur = append(cur, userID)
		members = slices.Clone(cur)
		return cur, true, nil
	})
	if err != nil {
		w.metrics.RecordWaitlistJoin("already_waiting")
		return nil, err
	}

	w.metrics.RecordWaitlistJoin("ok")
	log.WithFields(log.Fields{
		"product": productName,
		"user_id": userID,
		"waiting": len(members),
	}).Info("User joined waitlist")
	return members, nil
}

func (w *memoryWaitlist) Restock(ctx context.Context, productName string) ([]string, error) {
	members, _ := w.lists.Take(productName)
	return members, nil
}

func (w *memoryWaitlist) Members(ctx context.Context, productName string) ([]string, error) {
	members, _ := w.lists.Get(productName)
	return slices.Clone(members), nil
}

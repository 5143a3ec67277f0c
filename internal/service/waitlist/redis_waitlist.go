package waitlist

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"storefront/internal/monitor"
	"storefront/internal/redis"
	"storefront/pkg/log"
	"storefront/pkg/utils"
)

type redisWaitlist struct {
	client  goredis.Cmdable
	scripts *redis.WaitlistScripts
	prefix  string
	metrics *monitor.Metrics
}

// NewRedisWaitlist keeps waitlists in Redis so they survive restarts and
// are shared between replicas. Each product uses a list for order and a
// set for membership, updated together by Lua scripts, which are loaded
// before it returns.
func NewRedisWaitlist(ctx context.Context, client goredis.Cmdable, prefix string, metrics *monitor.Metrics) (WaitlistService, error) {
	scripts := redis.NewWaitlistScripts(client)
	if err := scripts.Load(ctx); err != nil {
		return nil, err
	}
	return &redisWaitlist{
		client:  client,
		scripts: scripts,
		prefix:  prefix,
		metrics: metrics,
	}, nil
}

func (w *redisWaitlist) keys(productName string) (string, string) {
	list := w.prefix + productName
	return list, list + ":members"
}

func (w *redisWaitlist) Join(ctx context.Context, productName, userID string) ([]string, error) {
	listKey, setKey := w.keys(productName)
	added, members, err := w.scripts.Join(ctx, listKey, setKey, userID)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "waitlist join failed")
	}
	if !added {
		w.metrics.RecordWaitlistJoin("already_waiting")
		return nil, utils.ErrAlreadyWaiting
	}

	w.metrics.RecordWaitlistJoin("ok")
	log.WithFields(log.Fields{
		"product": productName,
		"user_id": userID,
		"waiting": len(members),
	}).Info("User joined waitlist")
	return members, nil
}

func (w *redisWaitlist) Restock(ctx context.Context, productName string) ([]string, error) {
	listKey, setKey := w.keys(productName)
	members, err := w.scripts.Drain(ctx, listKey, setKey)
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "waitlist drain failed")
	}
	return members, nil
}

func (w *redisWaitlist) Members(ctx context.Context, productName string) ([]string, error) {
	listKey, _ := w.keys(productName)
	members, err := w.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, utils.WrapError(err, utils.CodeInternalError, "waitlist read failed")
	}
	return members, nil
}

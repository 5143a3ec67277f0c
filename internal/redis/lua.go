package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// KEYS[1] ordered list, KEYS[2] membership set, ARGV[1] user id.
	// Returns {added, members}.
	waitlistJoinScript = `
		local added = 0
		if redis.call('SADD', KEYS[2], ARGV[1]) == 1 then
			redis.call('RPUSH', KEYS[1], ARGV[1])
			added = 1
		end
		return {added, redis.call('LRANGE', KEYS[1], 0, -1)}
	`

	// Returns the members in join order and removes both keys.
	waitlistDrainScript = `
		local members = redis.call('LRANGE', KEYS[1], 0, -1)
		redis.call('DEL', KEYS[1], KEYS[2])
		return members
	`
)

// WaitlistScripts atomic waitlist operations over a list plus a set
type WaitlistScripts struct {
	client redis.Scripter
	join   *redis.Script
	drain  *redis.Script
}

// NewWaitlistScripts creates the script set
func NewWaitlistScripts(client redis.Scripter) *WaitlistScripts {
	return &WaitlistScripts{
		client: client,
		join:   redis.NewScript(waitlistJoinScript),
		drain:  redis.NewScript(waitlistDrainScript),
	}
}

// Load preloads the scripts so the first call avoids a NOSCRIPT round trip
func (s *WaitlistScripts) Load(ctx context.Context) error {
	if err := s.join.Load(ctx, s.client).Err(); err != nil {
		return fmt.Errorf("failed to load waitlist join script: %w", err)
	}
	if err := s.drain.Load(ctx, s.client).Err(); err != nil {
		return fmt.Errorf("failed to load waitlist drain script: %w", err)
	}
	return nil
}

// Join appends userID unless already present and returns the current members
func (s *WaitlistScripts) Join(ctx context.Context, listKey, setKey, userID string) (bool, []string, error) {
	res, err := s.join.Run(ctx, s.client, []string{listKey, setKey}, userID).Slice()
	if err != nil {
		return false, nil, err
	}
	if len(res) != 2 {
		return false, nil, fmt.Errorf("invalid join script result: %v", res)
	}

	added, _ := res[0].(int64)
	members, err := toStrings(res[1])
	if err != nil {
		return false, nil, err
	}
	return added == 1, members, nil
}

// Drain returns all members in join order and deletes the waitlist
func (s *WaitlistScripts) Drain(ctx context.Context, listKey, setKey string) ([]string, error) {
	res, err := s.drain.Run(ctx, s.client, []string{listKey, setKey}).Result()
	if err != nil {
		return nil, err
	}
	return toStrings(res)
}

func toStrings(v interface{}) ([]string, error) {
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected script reply %T", v)
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected member %T", item)
		}
		out = append(out, s)
	}
	return out, nil
}

package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryQueueConfig memory queue configuration
type MemoryQueueConfig struct {
	BufferSize int           `json:"buffer_size"`
	Timeout    time.Duration `json:"timeout"`
}

// MemoryQueue is an in-process Queue backed by one buffered channel per topic.
// Each topic has at most one subscriber.
type MemoryQueue struct {
	config MemoryQueueConfig

	mu         sync.RWMutex
	topics     map[string]chan []byte
	subscribed map[string]bool
	closed     bool
	done       chan struct{}

	published atomic.Int64
	handled   atomic.Int64
	failed    atomic.Int64
}

// NewMemoryQueue creates a memory queue; nil config uses defaults
func NewMemoryQueue(config *MemoryQueueConfig) *MemoryQueue {
	cfg := MemoryQueueConfig{BufferSize: 1000, Timeout: 5 * time.Second}
	if config != nil {
		if config.BufferSize > 0 {
			cfg.BufferSize = config.BufferSize
		}
		if config.Timeout > 0 {
			cfg.Timeout = config.Timeout
		}
	}
	return &MemoryQueue{
		config:     cfg,
		topics:     make(map[string]chan []byte),
		subscribed: make(map[string]bool),
		done:       make(chan struct{}),
	}
}

func (mq *MemoryQueue) topic(name string) (chan []byte, error) {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return nil, ErrQueueClosed
	}
	ch, ok := mq.topics[name]
	if !ok {
		ch = make(chan []byte, mq.config.BufferSize)
		mq.topics[name] = ch
	}
	return ch, nil
}

// Publish enqueues message, blocking up to the configured timeout when the topic is full
func (mq *MemoryQueue) Publish(ctx context.Context, topic string, message []byte) error {
	ch, err := mq.topic(topic)
	if err != nil {
		return err
	}

	timer := time.NewTimer(mq.config.Timeout)
	defer timer.Stop()

	select {
	case ch <- message:
		mq.published.Add(1)
		return nil
	case <-mq.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
}

// Subscribe starts a goroutine delivering topic messages to handler.
// Handler errors are counted and the message is dropped.
func (mq *MemoryQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	ch, err := mq.topic(topic)
	if err != nil {
		return err
	}

	mq.mu.Lock()
	if mq.subscribed[topic] {
		mq.mu.Unlock()
		return ErrAlreadySubscribed
	}
	mq.subscribed[topic] = true
	mq.mu.Unlock()

	go func() {
		for {
			select {
			case msg := <-ch:
				if err := handler(ctx, topic, msg); err != nil {
					mq.failed.Add(1)
					continue
				}
				mq.handled.Add(1)
			case <-mq.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Close stops all subscribers; pending messages are discarded
func (mq *MemoryQueue) Close() error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return nil
	}
	mq.closed = true
	close(mq.done)
	return nil
}

// Health reports ErrQueueClosed after Close
func (mq *MemoryQueue) Health() error {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	if mq.closed {
		return ErrQueueClosed
	}
	return nil
}

// GetStats returns queue statistics
func (mq *MemoryQueue) GetStats() Stats {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	return Stats{
		Topics:    len(mq.topics),
		Published: mq.published.Load(),
		Handled:   mq.handled.Load(),
		Failed:    mq.failed.Load(),
		Connected: !mq.closed,
	}
}

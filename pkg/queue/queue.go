package queue

import (
	"context"
	"errors"
)

// Queue is a topic based publish/subscribe channel
type Queue interface {
	// Publish enqueues message on topic
	Publish(ctx context.Context, topic string, message []byte) error

	// Subscribe registers handler for topic; messages are delivered until ctx ends
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	Close() error

	Health() error
}

// MessageHandler handles one message
type MessageHandler func(ctx context.Context, topic string, message []byte) error

// Stats queue statistics
type Stats struct {
	Topics    int   `json:"topics"`
	Published int64 `json:"published"`
	Handled   int64 `json:"handled"`
	Failed    int64 `json:"failed"`
	Connected bool  `json:"connected"`
}

var (
	ErrQueueClosed       = errors.New("queue is closed")
	ErrPublishTimeout    = errors.New("publish timeout")
	ErrAlreadySubscribed = errors.New("topic already has a subscriber")
)

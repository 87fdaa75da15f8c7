// Package queue provides the message transports the evaluation worker
// consumes requests from and publishes results to.
package queue

import "context"

// Publisher publishes messages to a queue
type Publisher interface {
	// Publish publishes a message to a subject/topic
	Publish(ctx context.Context, subject string, data []byte) error

	// Close closes the connection
	Close() error
}

// Subscriber subscribes to messages from a queue
type Subscriber interface {
	// Subscribe delivers every message on subject to handler until ctx is
	// done or the subject is unsubscribed. A handler error leaves the
	// message unacknowledged so the broker redelivers it.
	Subscribe(ctx context.Context, subject string, handler MessageHandler) error

	// Unsubscribe unsubscribes from a subject/topic. Unsubscribing from a
	// subject with no active subscription is a no-op.
	Unsubscribe(subject string) error

	// Close closes the connection
	Close() error
}

// MessageHandler handles incoming messages
type MessageHandler func(ctx context.Context, subject string, data []byte) error

// Queue combines Publisher and Subscriber interfaces
type Queue interface {
	Publisher
	Subscriber
}

// Options holds the consumer identity shared by all backends
type Options struct {
	// ConsumerGroup is shared by all workers so each message is handled once
	ConsumerGroup string

	// NodeID names this worker inside the group
	NodeID string
}

package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/soltixdb/nelson/internal/utils"
)

// MemoryQueue implements Queue interface using in-memory channels.
// Useful for tests and single-process development.
type MemoryQueue struct {
	channels      map[string]chan []byte
	subscriptions map[string]context.CancelFunc
	mu            sync.RWMutex
}

// newMemoryQueue creates a new in-memory queue instance
func newMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		channels:      make(map[string]chan []byte),
		subscriptions: make(map[string]context.CancelFunc),
	}
}

// getOrCreateChannel returns existing channel or creates new one
func (q *MemoryQueue) getOrCreateChannel(subject string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ch, exists := q.channels[subject]; exists {
		return ch
	}

	ch := make(chan []byte, utils.DefaultBufferSize)
	q.channels[subject] = ch
	return ch
}

// Publish publishes a message to an in-memory channel
func (q *MemoryQueue) Publish(ctx context.Context, subject string, data []byte) error {
	ch := q.getOrCreateChannel(subject)

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	select {
	case ch <- dataCopy:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("channel full for subject: %s", subject)
	}
}

// Subscribe consumes an in-memory channel. A message whose handler fails
// is requeued up to utils.DefaultMaxRetries deliveries.
func (q *MemoryQueue) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	ch := q.getOrCreateChannel(subject)

	q.mu.Lock()
	if _, exists := q.subscriptions[subject]; exists {
		q.mu.Unlock()
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}
	subCtx, cancel := context.WithCancel(ctx)
	q.subscriptions[subject] = cancel
	q.mu.Unlock()

	go func() {
		attempts := make(map[*byte]int)
		for {
			select {
			case <-subCtx.Done():
				return
			case data, ok := <-ch:
				if !ok {
					return
				}
				if err := handler(subCtx, subject, data); err != nil {
					q.redeliver(ch, data, attempts)
				}
			}
		}
	}()

	return nil
}

// redeliver puts a failed message back on its channel, keyed by the
// message's backing array
func (q *MemoryQueue) redeliver(ch chan []byte, data []byte, attempts map[*byte]int) {
	if len(data) == 0 {
		return
	}
	key := &data[0]
	attempts[key]++
	if attempts[key] >= utils.DefaultMaxRetries {
		delete(attempts, key)
		return
	}
	select {
	case ch <- data:
	default:
		delete(attempts, key)
	}
}

// Unsubscribe unsubscribes from a channel
func (q *MemoryQueue) Unsubscribe(subject string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cancel, exists := q.subscriptions[subject]
	if !exists {
		return nil
	}

	cancel()
	delete(q.subscriptions, subject)
	return nil
}

// Close closes all channels and subscriptions
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}

	for subject, ch := range q.channels {
		close(ch)
		delete(q.channels, subject)
	}

	return nil
}

// GetPendingCount returns the number of pending messages for a subject (for testing)
func (q *MemoryQueue) GetPendingCount(subject string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if ch, exists := q.channels[subject]; exists {
		return len(ch)
	}
	return 0
}

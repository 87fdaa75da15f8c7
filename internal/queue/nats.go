package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/utils"
)

// NATSQueue implements Queue interface using NATS JetStream
type NATSQueue struct {
	conn          *nats.Conn
	js            nats.JetStreamContext
	opts          Options
	logger        *logging.Logger
	streams       map[string]struct{}
	subscriptions map[string]*nats.Subscription
	mu            sync.RWMutex
}

// newNATSQueue creates a new NATS queue instance with JetStream enabled
func newNATSQueue(url string, opts Options, natsOpts ...nats.Option) (*NATSQueue, error) {
	logger := logging.Global().With("component", "queue.nats")

	natsOpts = append([]nats.Option{
		nats.Name(fmt.Sprintf("nelson-%s", opts.NodeID)),
		nats.Timeout(utils.QueueConnectTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}, natsOpts...)

	conn, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	q, err := newNATSQueueWithConn(conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	q.logger = logger
	return q, nil
}

// newNATSQueueWithConn creates a new NATS queue instance with existing connection (used in tests)
func newNATSQueueWithConn(conn *nats.Conn, opts Options) (*NATSQueue, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if opts.ConsumerGroup == "" {
		opts.ConsumerGroup = "nelson-workers"
	}

	return &NATSQueue{
		conn:          conn,
		js:            js,
		opts:          opts,
		logger:        logging.Global().With("component", "queue.nats"),
		streams:       make(map[string]struct{}),
		subscriptions: make(map[string]*nats.Subscription),
	}, nil
}

// Publish publishes a message to a subject using JetStream and waits for
// the stream acknowledgement
func (q *NATSQueue) Publish(ctx context.Context, subject string, data []byte) error {
	if err := q.ensureStream(subject); err != nil {
		return err
	}

	if _, err := q.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish to subject %s: %w", subject, err)
	}
	return nil
}

// Subscribe joins the consumer group's durable queue subscription on
// subject. Messages are acked after handler succeeds, NAKed otherwise, and
// given up after utils.DefaultMaxRetries deliveries.
func (q *NATSQueue) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	if err := q.ensureStream(subject); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	durableName := sanitizeConsumerName(q.opts.ConsumerGroup + "-" + subject)

	sub, err := q.js.QueueSubscribe(subject, durableName, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			_ = msg.Nak()
			return
		}

		if err := handler(ctx, msg.Subject, msg.Data); err != nil {
			q.logger.Error("Failed to handle message",
				"subject", msg.Subject,
				"node_id", q.opts.NodeID,
				"error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durableName),
		nats.ManualAck(),
		nats.MaxAckPending(utils.DefaultBatchSize),
		nats.AckWait(utils.DefaultAckWait),
		nats.MaxDeliver(utils.DefaultMaxRetries),
		nats.DeliverAll(),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", subject, err)
	}

	q.subscriptions[subject] = sub
	q.logger.Info("Subscribed to subject", "subject", subject, "durable", durableName)

	go func() {
		<-ctx.Done()
		if err := q.unsubscribe(subject, sub); err != nil {
			q.logger.Warn("Failed to unsubscribe on context done", "subject", subject, "error", err)
		}
	}()

	return nil
}

// ensureStream creates a work-queue stream for subject unless one already
// captures it
func (q *NATSQueue) ensureStream(subject string) error {
	q.mu.RLock()
	_, known := q.streams[subject]
	q.mu.RUnlock()
	if known {
		return nil
	}

	if name, err := q.js.StreamNameBySubject(subject); err != nil || name == "" {
		streamName := "NELSON_" + sanitizeConsumerName(subject)
		_, err = q.js.AddStream(&nats.StreamConfig{
			Name:      streamName,
			Subjects:  []string{subject},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
			Replicas:  1,
		})
		if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return fmt.Errorf("failed to create stream %s: %w", streamName, err)
		}
	}

	q.mu.Lock()
	q.streams[subject] = struct{}{}
	q.mu.Unlock()
	return nil
}

// Unsubscribe unsubscribes from a subject. The durable consumer is kept so
// other workers in the group continue to receive messages.
func (q *NATSQueue) Unsubscribe(subject string) error {
	return q.unsubscribe(subject, nil)
}

// unsubscribe drains the subscription on subject. When only is set it must
// still be the active subscription, otherwise nothing happens.
func (q *NATSQueue) unsubscribe(subject string, only *nats.Subscription) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	sub, exists := q.subscriptions[subject]
	if !exists || (only != nil && sub != only) {
		return nil
	}

	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("failed to unsubscribe from subject %s: %w", subject, err)
	}

	delete(q.subscriptions, subject)
	return nil
}

// Close closes the NATS connection and all subscriptions
func (q *NATSQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for subject, sub := range q.subscriptions {
		if err := sub.Drain(); err != nil {
			q.logger.Warn("Failed to drain subscription", "subject", subject, "error", err)
		}
		delete(q.subscriptions, subject)
	}

	q.conn.Close()
	return nil
}

// GetNATSConn returns the underlying NATS connection (for advanced usage)
func (q *NATSQueue) GetNATSConn() *nats.Conn {
	return q.conn
}

// sanitizeConsumerName replaces invalid characters for stream and consumer
// names, which can only contain A-Z, a-z, 0-9, dash and underscore
func sanitizeConsumerName(subject string) string {
	result := make([]byte, 0, len(subject))
	for i := 0; i < len(subject); i++ {
		c := subject[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' || c == '_' {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}
	return string(result)
}

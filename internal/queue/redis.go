package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soltixdb/nelson/internal/logging"
	"github.com/soltixdb/nelson/internal/utils"
)

// RedisConfig represents Redis Streams configuration
type RedisConfig struct {
	URL      string // Redis URL (e.g., redis://localhost:6379) or host:port
	Password string // Optional password
	DB       int    // Database number (default: 0)
	Stream   string // Stream prefix (default: "nelson")
	Group    string // Consumer group name (default: "nelson-workers")
	Consumer string // Consumer name inside the group
}

// RedisQueue implements Queue interface using Redis Streams
type RedisQueue struct {
	client        *redis.Client
	config        RedisConfig
	logger        *logging.Logger
	subscriptions map[string]context.CancelFunc
	wg            sync.WaitGroup
	mu            sync.RWMutex
}

// newRedisQueue creates a new Redis Streams queue instance
func newRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		opts = &redis.Options{
			Addr:     cfg.URL,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	opts.DialTimeout = utils.QueueConnectTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), utils.QueueConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if cfg.Stream == "" {
		cfg.Stream = "nelson"
	}
	if cfg.Group == "" {
		cfg.Group = "nelson-workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "consumer-1"
	}

	return &RedisQueue{
		client:        client,
		config:        cfg,
		logger:        logging.Global().With("component", "queue.redis"),
		subscriptions: make(map[string]context.CancelFunc),
	}, nil
}

// streamName converts a subject to a Redis stream name
func (q *RedisQueue) streamName(subject string) string {
	return fmt.Sprintf("%s:%s", q.config.Stream, subject)
}

// Publish appends a message to the subject's Redis stream
func (q *RedisQueue) Publish(ctx context.Context, subject string, data []byte) error {
	stream := q.streamName(subject)

	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": data,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to Redis stream %s: %w", stream, err)
	}

	return nil
}

// Subscribe reads the subject's stream as a member of the consumer group
func (q *RedisQueue) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.subscriptions[subject]; exists {
		return fmt.Errorf("already subscribed to subject: %s", subject)
	}

	stream := q.streamName(subject)
	subCtx, cancel := context.WithCancel(ctx)

	err := q.client.XGroupCreateMkStream(subCtx, stream, q.config.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		cancel()
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	q.subscriptions[subject] = cancel
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.readStream(subCtx, subject, stream, handler)
	}()

	q.logger.Info("Subscribed to stream", "stream", stream, "group", q.config.Group, "consumer", q.config.Consumer)
	return nil
}

// readStream first drains this consumer's pending entries, then reads new
// ones. Failed messages stay pending and are retried on the next pass.
func (q *RedisQueue) readStream(ctx context.Context, subject, stream string, handler MessageHandler) {
	attempts := make(map[string]int)
	cursor := "0"

	for ctx.Err() == nil {
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.config.Group,
			Consumer: q.config.Consumer,
			Streams:  []string{stream, cursor},
			Count:    utils.DefaultBatchSize,
			Block:    time.Second,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				continue
			}
			q.logger.Warn("Failed to read stream", "stream", stream, "error", err)
			time.Sleep(utils.DefaultRetryBackoff)
			continue
		}

		delivered := 0
		for _, s := range streams {
			for _, msg := range s.Messages {
				delivered++
				q.handleMessage(ctx, subject, stream, msg, handler, attempts)
			}
		}

		// Pending entries exhausted, switch to new messages
		if cursor == "0" && delivered == 0 {
			cursor = ">"
		} else if cursor == ">" && len(attempts) > 0 {
			cursor = "0"
		}
	}
}

func (q *RedisQueue) handleMessage(ctx context.Context, subject, stream string, msg redis.XMessage,
	handler MessageHandler, attempts map[string]int,
) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		q.client.XAck(ctx, stream, q.config.Group, msg.ID)
		return
	}

	if err := handler(ctx, subject, []byte(data)); err != nil {
		attempts[msg.ID]++
		if attempts[msg.ID] < utils.DefaultMaxRetries {
			return
		}
		q.logger.Error("Dropping message after max deliveries",
			"stream", stream, "id", msg.ID, "error", err)
	}

	delete(attempts, msg.ID)
	q.client.XAck(ctx, stream, q.config.Group, msg.ID)
}

// Unsubscribe unsubscribes from a subject
func (q *RedisQueue) Unsubscribe(subject string) error {
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

// Close stops all readers and closes the Redis connection
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	for subject, cancel := range q.subscriptions {
		cancel()
		delete(q.subscriptions, subject)
	}
	q.mu.Unlock()

	q.wg.Wait()
	return q.client.Close()
}

package utils

import "time"

// =============================================================================
// Timeout Constants
// =============================================================================

const (
	// DefaultRequestTimeout bounds one evaluation, over HTTP or from the queue
	DefaultRequestTimeout = 30 * time.Second

	// QueueConnectTimeout is the timeout for establishing broker connections
	QueueConnectTimeout = 5 * time.Second

	// PublishTimeout is the timeout for publishing one result envelope
	PublishTimeout = 10 * time.Second
)

// =============================================================================
// Retry and Backoff Constants
// =============================================================================

const (
	// DefaultMaxRetries is the default number of delivery attempts
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the default backoff duration between retries
	DefaultRetryBackoff = 100 * time.Millisecond

	// DefaultAckWait is how long a broker waits for an ack before redelivering
	DefaultAckWait = 30 * time.Second
)

// =============================================================================
// Buffer and Batch Size Constants
// =============================================================================

const (
	// DefaultBatchSize is the default number of messages fetched per read
	DefaultBatchSize = 100

	// DefaultBufferSize is the default buffer size for in-memory channels
	DefaultBufferSize = 10000
)

// =============================================================================
// Queue Type Constants
// =============================================================================

// QueueType represents the type of message queue
type QueueType string

const (
	// QueueTypeNATS represents NATS JetStream queue (default)
	QueueTypeNATS QueueType = "nats"

	// QueueTypeRedis represents Redis Streams queue
	QueueTypeRedis QueueType = "redis"

	// QueueTypeKafka represents Apache Kafka queue
	QueueTypeKafka QueueType = "kafka"

	// QueueTypeMemory represents in-memory queue (for testing)
	QueueTypeMemory QueueType = "memory"
)

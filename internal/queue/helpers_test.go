package queue

import "github.com/nats-io/nats.go"

// Test-only helpers to keep existing test names while constructors are unexported.

func NewNATSQueue(url string, opts Options) (*NATSQueue, error) {
	return newNATSQueue(url, opts)
}

func NewNATSQueueWithConn(conn *nats.Conn, opts Options) (*NATSQueue, error) {
	return newNATSQueueWithConn(conn, opts)
}

func NewRedisQueue(cfg RedisConfig) (*RedisQueue, error) {
	return newRedisQueue(cfg)
}

func NewKafkaQueue(cfg KafkaConfig) (*KafkaQueue, error) {
	return newKafkaQueue(cfg)
}

func NewMemoryQueue() *MemoryQueue {
	return newMemoryQueue()
}

package queue

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/soltixdb/nelson/internal/config"
	"github.com/soltixdb/nelson/internal/utils"
)

// NewQueue creates a new Queue instance based on configuration.
// Default is NATS if type is not specified.
func NewQueue(cfg config.QueueConfig) (Queue, error) {
	queueType := utils.QueueType(strings.ToLower(cfg.Type))
	if queueType == "" {
		queueType = utils.QueueTypeNATS
	}

	opts := Options{
		ConsumerGroup: cfg.ConsumerGroup,
		NodeID:        cfg.GetNodeID(),
	}

	switch queueType {
	case utils.QueueTypeNATS:
		var natsOpts []nats.Option
		if cfg.Username != "" {
			natsOpts = append(natsOpts, nats.UserInfo(cfg.Username, cfg.Password))
		}
		return newNATSQueue(cfg.URL, opts, natsOpts...)

	case utils.QueueTypeRedis:
		return newRedisQueue(RedisConfig{
			URL:      cfg.URL,
			Password: cfg.Password,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
			Group:    opts.ConsumerGroup,
			Consumer: opts.NodeID,
		})

	case utils.QueueTypeKafka:
		return newKafkaQueue(KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: opts.ConsumerGroup,
		})

	case utils.QueueTypeMemory:
		return newMemoryQueue(), nil

	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: nats, redis, kafka, memory)", queueType)
	}
}

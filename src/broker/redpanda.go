package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"cisync/src/logger"
	"cisync/src/metrics"
)

const (
	clientID          = "cisync"
	consumerQueueSize = 100
)

// RedpandaBroker publishes and consumes over a Kafka-compatible cluster with franz-go.
// Consumers join a group and start at the end of the topic, so they only see
// messages published after the group first subscribed. Offsets are committed
// once a record has been handed to the subscriber's channel.
type RedpandaBroker struct {
	producer *kgo.Client
	seeds    []string
	logger   logger.Logger

	mu        sync.Mutex
	consumers map[string]*kgo.Client // "topic:group"
	closed    bool
}

// NewRedpandaBroker connects a producer to the seed brokers (e.g. "localhost:19092").
func NewRedpandaBroker(seeds []string, log logger.Logger) (*RedpandaBroker, error) {
	if len(seeds) == 0 {
		return nil, errors.New("at least one broker address is required")
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ClientID(clientID),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka client: %w", err)
	}

	return &RedpandaBroker{
		producer:  producer,
		seeds:     seeds,
		logger:    log,
		consumers: make(map[string]*kgo.Client),
	}, nil
}

// Publish produces one record and waits for it to be acknowledged.
// The key selects the partition, so events of one build stay ordered.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return errors.New("broker is closed")
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := b.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", topic, err)
	}
	metrics.BrokerMessages.WithLabelValues(topic, "published").Inc()
	return nil
}

// Subscribe joins groupID on topic. The returned channel closes when ctx is
// cancelled or the broker is closed. A group can subscribe to a topic once per broker.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.New("broker is closed")
	}

	key := topic + ":" + groupID
	if _, exists := b.consumers[key]; exists {
		return nil, fmt.Errorf("consumer already exists for topic %s and group %s", topic, groupID)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.seeds...),
		kgo.ClientID(clientID),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
		kgo.AutoCommitMarks(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	b.consumers[key] = consumer

	out := make(chan Message, consumerQueueSize)
	go b.consume(ctx, consumer, out)

	b.logger.Debug("[RedpandaBroker] Group %s subscribed to %s", groupID, topic)
	return out, nil
}

func (b *RedpandaBroker) consume(ctx context.Context, consumer *kgo.Client, out chan<- Message) {
	defer close(out)

	for ctx.Err() == nil {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			b.logger.Warn("[RedpandaBroker] Fetch error on %s/%d: %v", topic, partition, err)
		})

		for iter := fetches.RecordIter(); !iter.Done(); {
			record := iter.Next()
			select {
			case out <- toMessage(record):
				consumer.MarkCommitRecords(record)
				metrics.BrokerMessages.WithLabelValues(record.Topic, "consumed").Inc()
			case <-ctx.Done():
				return
			}
		}
	}
}

func toMessage(r *kgo.Record) Message {
	return Message{
		Topic:     r.Topic,
		Key:       string(r.Key),
		Value:     r.Value,
		Offset:    r.Offset,
		Partition: r.Partition,
		Timestamp: r.Timestamp.UnixMilli(),
	}
}

// Close leaves every consumer group, committing marked offsets, then closes the producer.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for key, consumer := range b.consumers {
		consumer.Close()
		delete(b.consumers, key)
	}
	b.producer.Close()
	return nil
}

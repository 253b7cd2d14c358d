// Package broker carries sync events and sync requests between cisync processes,
// over Redpanda or an in-process fan-out.
package broker

import "context"

// Broker publishes keyed messages to topics and delivers them to subscribers.
type Broker interface {
	// Publish sends value to topic. Redpanda partitions by key; the in-memory broker ignores it.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe delivers messages of topic published from now on. Subscribers sharing a
	// groupID split the topic on Redpanda; the in-memory broker gives each its own copy.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	// Close stops all subscriptions and releases connections. Safe to call twice.
	Close() error
}

// Message is one delivered record.
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	// Timestamp is in Unix milliseconds.
	Timestamp int64
}

package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"cisync/src/contracts"
	"cisync/src/metrics"
)

func TestInMemoryBroker_PublishSubscribe(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	topic := "test-topic"
	key := "test-key"
	value := []byte("test message")

	// Subscribe before publishing
	msgChan, err := broker.Subscribe(ctx, topic, "test-group")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// Publish message
	if err := broker.Publish(ctx, topic, key, value); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Receive message
	select {
	case msg := <-msgChan:
		if msg.Topic != topic {
			t.Errorf("Expected topic %s, got %s", topic, msg.Topic)
		}
		if msg.Key != key {
			t.Errorf("Expected key %s, got %s", key, msg.Key)
		}
		if string(msg.Value) != string(value) {
			t.Errorf("Expected value %s, got %s", string(value), string(msg.Value))
		}
	case <-time.After(1 * time.Second):
		t.Fatal("Timeout waiting for message")
	}
}

func TestInMemoryBroker_MultipleSubscribers(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()

	ctx := context.Background()
	topic := "test-topic"

	// Create two subscribers
	sub1, err := broker.Subscribe(ctx, topic, "group1")
	if err != nil {
		t.Fatalf("Subscribe 1 failed: %v", err)
	}

	sub2, err := broker.Subscribe(ctx, topic, "group2")
	if err != nil {
		t.Fatalf("Subscribe 2 failed: %v", err)
	}

	// Publish message
	value := []byte("broadcast message")
	if err := broker.Publish(ctx, topic, "key", value); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Both subscribers should receive the message
	for i, sub := range []<-chan Message{sub1, sub2} {
		select {
		case msg := <-sub:
			if string(msg.Value) != string(value) {
				t.Errorf("Subscriber %d: expected value %s, got %s", i+1, string(value), string(msg.Value))
			}
		case <-time.After(1 * time.Second):
			t.Fatalf("Subscriber %d: timeout waiting for message", i+1)
		}
	}
}

func TestInMemoryBroker_ClosedBroker(t *testing.T) {
	broker := NewInMemoryBroker()
	broker.Close()

	ctx := context.Background()

	// Publishing to closed broker should fail
	err := broker.Publish(ctx, "test", "key", []byte("value"))
	if err == nil {
		t.Error("Expected error when publishing to closed broker")
	}

	// Subscribing to closed broker should fail
	_, err = broker.Subscribe(ctx, "test", "group")
	if err == nil {
		t.Error("Expected error when subscribing to closed broker")
	}
}

func TestPublishSyncEvent_Topics(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()
	ctx := context.Background()

	completed, _ := broker.Subscribe(ctx, contracts.TopicSyncCompleted, "g")
	failed, _ := broker.Subscribe(ctx, contracts.TopicSyncFailed, "g")

	tests := []struct {
		name  string
		event contracts.SyncEvent
		want  <-chan Message
		other <-chan Message
	}{
		{"completed", contracts.SyncEvent{BuildID: "b1", NewRunsSynced: 3}, completed, failed},
		{"failed", contracts.SyncEvent{BuildID: "b2", Error: "boom"}, failed, completed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := PublishSyncEvent(ctx, broker, tt.event); err != nil {
				t.Fatalf("PublishSyncEvent failed: %v", err)
			}

			select {
			case msg := <-tt.want:
				if msg.Key != tt.event.BuildID {
					t.Errorf("Expected key %s, got %s", tt.event.BuildID, msg.Key)
				}
				var got contracts.SyncEvent
				if err := json.Unmarshal(msg.Value, &got); err != nil {
					t.Fatalf("Failed to decode event: %v", err)
				}
				if got.NewRunsSynced != tt.event.NewRunsSynced || got.Error != tt.event.Error {
					t.Errorf("Expected %+v, got %+v", tt.event, got)
				}
			case <-time.After(time.Second):
				t.Fatal("Timeout waiting for event")
			}

			select {
			case msg := <-tt.other:
				t.Errorf("Unexpected message on %s", msg.Topic)
			default:
			}
		})
	}
}

func TestInMemoryBroker_Offsets(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()
	ctx := context.Background()

	sub, _ := broker.Subscribe(ctx, "t", "g")
	for i := 0; i < 3; i++ {
		broker.Publish(ctx, "t", "k", []byte("v"))
	}
	for want := int64(0); want < 3; want++ {
		msg := <-sub
		if msg.Offset != want {
			t.Errorf("Expected offset %d, got %d", want, msg.Offset)
		}
	}
}

func TestInMemoryBroker_CloseClosesSubscribers(t *testing.T) {
	broker := NewInMemoryBroker()
	sub, _ := broker.Subscribe(context.Background(), "t", "g")
	broker.Close()

	if _, ok := <-sub; ok {
		t.Error("Expected subscriber channel to be closed")
	}
	if err := broker.Close(); err != nil {
		t.Errorf("Second Close returned %v", err)
	}
}

func TestInMemoryBroker_FullSubscriberDropsMessages(t *testing.T) {
	broker := NewInMemoryBroker()
	defer broker.Close()
	ctx := context.Background()

	dropped := metrics.BrokerMessages.WithLabelValues("slow", "dropped")
	before := testutil.ToFloat64(dropped)

	sub, _ := broker.Subscribe(ctx, "slow", "g")
	for i := 0; i < 105; i++ {
		if err := broker.Publish(ctx, "slow", "k", []byte("v")); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	if len(sub) != 100 {
		t.Errorf("Expected a full buffer of 100, got %d", len(sub))
	}
	if got := testutil.ToFloat64(dropped) - before; got != 5 {
		t.Errorf("Expected 5 dropped messages, got %v", got)
	}
}

func TestNewRedpandaBroker_RequiresSeeds(t *testing.T) {
	if _, err := NewRedpandaBroker(nil, nil); err == nil {
		t.Error("Expected error without broker addresses")
	}
}

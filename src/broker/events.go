package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"cisync/src/contracts"
)

// PublishSyncEvent encodes the event and publishes it keyed by build ID,
// on the failed topic when the event carries an error.
func PublishSyncEvent(ctx context.Context, b Broker, event contracts.SyncEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal sync event: %w", err)
	}

	topic := contracts.TopicSyncCompleted
	if event.Error != "" {
		topic = contracts.TopicSyncFailed
	}
	return b.Publish(ctx, topic, event.BuildID, data)
}

// PublishSyncRequest encodes the request and publishes it keyed by build ID.
func PublishSyncRequest(ctx context.Context, b Broker, req contracts.SyncRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal sync request: %w", err)
	}
	return b.Publish(ctx, contracts.TopicSyncRequested, req.BuildID, data)
}

// Package worker provides the sync agent for distributed mode.
// The agent consumes sync requests from the broker and runs them against the shared store.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"cisync/src/broker"
	"cisync/src/contracts"
	"cisync/src/logger"
	"cisync/src/store"
)

// ConsumerGroup is the broker group shared by all sync agents.
const ConsumerGroup = "cisync-workers"

// Engine runs syncs. *pipeline.Pipeline satisfies it.
type Engine interface {
	Sync(ctx context.Context, build *contracts.Build) (*contracts.SyncResult, error)
	CheckAndSync(ctx context.Context, build *contracts.Build) bool
}

// Agent consumes sync requests and runs them.
type Agent struct {
	broker broker.Broker
	engine Engine
	store  store.Store
	logger logger.Logger
}

// NewAgent creates a new sync agent.
func NewAgent(brk broker.Broker, engine Engine, st store.Store, log logger.Logger) *Agent {
	return &Agent{
		broker: brk,
		engine: engine,
		store:  st,
		logger: log,
	}
}

// Run starts the agent's main loop.
// It subscribes to cisync.sync.requested and processes requests until ctx is cancelled
// or the broker closes the subscription.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("[SyncAgent] Starting...")

	msgChan, err := a.broker.Subscribe(ctx, contracts.TopicSyncRequested, ConsumerGroup)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", contracts.TopicSyncRequested, err)
	}

	a.logger.Info("[SyncAgent] Listening for requests on '%s' topic...", contracts.TopicSyncRequested)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				a.logger.Info("[SyncAgent] Message channel closed, shutting down")
				return nil
			}

			if err := a.processRequest(ctx, msg); err != nil {
				a.logger.Error("[SyncAgent] Error processing request: %v", err)
			}

		case <-ctx.Done():
			a.logger.Info("[SyncAgent] Context cancelled, shutting down")
			return ctx.Err()
		}
	}
}

// processRequest handles one sync request. Sync failures are already recorded
// and published by the engine, so only lookup problems are returned.
func (a *Agent) processRequest(ctx context.Context, msg broker.Message) error {
	var request contracts.SyncRequest
	if err := json.Unmarshal(msg.Value, &request); err != nil {
		return fmt.Errorf("failed to unmarshal request: %w", err)
	}

	build, err := a.store.GetBuild(ctx, request.BuildID, request.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load build %s: %w", request.BuildID, err)
	}

	a.logger.Info("[SyncAgent] Processing request %s for %s (force=%v)", request.RequestID, build.ID, request.Force)

	if !request.Force {
		synced := a.engine.CheckAndSync(ctx, build)
		a.logger.Info("[SyncAgent] Completed request %s (synced=%v)", request.RequestID, synced)
		return nil
	}

	result, err := a.engine.Sync(ctx, build)
	if err != nil {
		a.logger.Warn("[SyncAgent] Request %s failed: %v", request.RequestID, err)
		return nil
	}
	a.logger.Info("[SyncAgent] Completed request %s (%d new runs, %d test reports)",
		request.RequestID, result.NewRunsSynced, result.TestResultsParsed)
	return nil
}

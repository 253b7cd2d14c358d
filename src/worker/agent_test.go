package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cisync/src/broker"
	"cisync/src/contracts"
	"cisync/src/logger"
	"cisync/src/store"
)

type fakeEngine struct {
	mu     sync.Mutex
	syncs  []string
	checks []string
	err    error
}

func (e *fakeEngine) Sync(ctx context.Context, build *contracts.Build) (*contracts.SyncResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncs = append(e.syncs, build.ID)
	if e.err != nil {
		return nil, e.err
	}
	return &contracts.SyncResult{}, nil
}

func (e *fakeEngine) CheckAndSync(ctx context.Context, build *contracts.Build) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.checks = append(e.checks, build.ID)
	return true
}

func (e *fakeEngine) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.syncs), len(e.checks)
}

func newAgent(t *testing.T) (*Agent, *fakeEngine, broker.Broker) {
	t.Helper()
	st := store.NewMemoryStore()
	if err := st.SaveBuild(context.Background(), &contracts.Build{ID: "b1", TenantID: "t1"}); err != nil {
		t.Fatal(err)
	}
	brk := broker.NewInMemoryBroker()
	t.Cleanup(func() { brk.Close() })
	engine := &fakeEngine{}
	return NewAgent(brk, engine, st, logger.NewSilentLogger()), engine, brk
}

func TestAgent_ProcessRequest(t *testing.T) {
	tests := []struct {
		name       string
		request    contracts.SyncRequest
		syncErr    error
		wantErr    bool
		wantSyncs  int
		wantChecks int
	}{
		{"force runs a sync", contracts.SyncRequest{BuildID: "b1", TenantID: "t1", Force: true}, nil, false, 1, 0},
		{"default checks for a commit", contracts.SyncRequest{BuildID: "b1", TenantID: "t1"}, nil, false, 0, 1},
		{"sync failure is not a request error", contracts.SyncRequest{BuildID: "b1", TenantID: "t1", Force: true}, errors.New("boom"), false, 1, 0},
		{"unknown build", contracts.SyncRequest{BuildID: "nope", TenantID: "t1"}, nil, true, 0, 0},
		{"wrong tenant", contracts.SyncRequest{BuildID: "b1", TenantID: "t2"}, nil, true, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent, engine, _ := newAgent(t)
			engine.err = tt.syncErr

			msg := broker.Message{Value: mustJSON(t, tt.request)}
			err := agent.processRequest(context.Background(), msg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("processRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			syncs, checks := engine.counts()
			if syncs != tt.wantSyncs || checks != tt.wantChecks {
				t.Errorf("Got %d syncs / %d checks, want %d / %d", syncs, checks, tt.wantSyncs, tt.wantChecks)
			}
		})
	}
}

func TestAgent_InvalidRequest(t *testing.T) {
	agent, _, _ := newAgent(t)
	if err := agent.processRequest(context.Background(), broker.Message{Value: []byte("invalid json")}); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

// subscribedBroker signals once the agent has subscribed.
type subscribedBroker struct {
	broker.Broker
	subscribed chan struct{}
}

func (b *subscribedBroker) Subscribe(ctx context.Context, topic, groupID string) (<-chan broker.Message, error) {
	ch, err := b.Broker.Subscribe(ctx, topic, groupID)
	close(b.subscribed)
	return ch, err
}

func startAgent(t *testing.T, ctx context.Context) (*fakeEngine, broker.Broker, <-chan error) {
	t.Helper()
	agent, engine, brk := newAgent(t)
	sb := &subscribedBroker{Broker: brk, subscribed: make(chan struct{})}
	agent.broker = sb

	done := make(chan error, 1)
	go func() { done <- agent.Run(ctx) }()

	select {
	case <-sb.subscribed:
	case <-time.After(time.Second):
		t.Fatal("Agent did not subscribe")
	}
	return engine, brk, done
}

func TestAgent_RunConsumesRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine, brk, done := startAgent(t, ctx)

	if err := broker.PublishSyncRequest(ctx, brk, contracts.SyncRequest{BuildID: "b1", TenantID: "t1", Force: true}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		if syncs, _ := engine.counts(); syncs == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timeout waiting for the agent to process a request")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Agent did not stop after cancel")
	}
}

func TestAgent_StopsWhenBrokerCloses(t *testing.T) {
	_, brk, done := startAgent(t, context.Background())
	brk.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Agent did not stop after broker close")
	}
}

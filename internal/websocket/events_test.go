package websocket

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/loomwork/loom/internal/events"
)

func newTestHubAndClient(t *testing.T, room string) (*Hub, *Client) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	hub := NewHub(logger)
	go hub.Run()

	client := &Client{
		ID:            "test-client",
		TenantID:      "tenant-1",
		Hub:           hub,
		Send:          make(chan []byte, 256),
		Subscriptions: make(map[string]bool),
	}
	hub.Register <- client
	time.Sleep(10 * time.Millisecond)
	hub.SubscribeClient(client, room)
	return hub, client
}

func TestEventSink_PublishWorkflowStarted(t *testing.T) {
	_, client := newTestHubAndClient(t, "execution:exec-123")
	sink := NewEventSink(client.Hub)

	sink.Publish(events.Event{
		Name:        events.WorkflowStarted,
		WorkflowID:  "workflow-1",
		ExecutionID: "exec-123",
		TenantID:    "tenant-1",
		OccurredAt:  time.Now(),
	})

	select {
	case msg := <-client.Send:
		var got events.Event
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if got.Name != events.WorkflowStarted {
			t.Errorf("expected name %s, got %s", events.WorkflowStarted, got.Name)
		}
		if got.ExecutionID != "exec-123" {
			t.Errorf("expected execution id exec-123, got %s", got.ExecutionID)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("did not receive message")
	}
}

func TestEventSink_PublishNodeFailed(t *testing.T) {
	_, client := newTestHubAndClient(t, "execution:exec-456")
	sink := NewEventSink(client.Hub)

	sink.Publish(events.Event{
		Name:        events.NodeFailed,
		WorkflowID:  "workflow-1",
		ExecutionID: "exec-456",
		TenantID:    "tenant-1",
		NodeID:      "0",
		NodeType:    "httpRequest",
		Error:       "connection timeout",
		OccurredAt:  time.Now(),
	})

	select {
	case msg := <-client.Send:
		var got events.Event
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if got.Error != "connection timeout" {
			t.Errorf("expected error message preserved, got %q", got.Error)
		}
		if got.NodeID != "0" {
			t.Errorf("expected node id 0, got %s", got.NodeID)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("did not receive message")
	}
}

func TestEventSink_BroadcastsToAllThreeRooms(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	hub := NewHub(logger)
	go hub.Run()

	client := &Client{
		ID:            "test-client",
		TenantID:      "tenant-1",
		Hub:           hub,
		Send:          make(chan []byte, 256),
		Subscriptions: make(map[string]bool),
	}
	hub.Register <- client
	time.Sleep(10 * time.Millisecond)

	hub.SubscribeClient(client, "execution:exec-789")
	hub.SubscribeClient(client, "workflow:workflow-1")
	hub.SubscribeClient(client, "tenant:tenant-1")

	sink := NewEventSink(hub)
	sink.Publish(events.Event{
		Name:        events.WorkflowDone,
		WorkflowID:  "workflow-1",
		ExecutionID: "exec-789",
		TenantID:    "tenant-1",
		OccurredAt:  time.Now(),
	})

	time.Sleep(50 * time.Millisecond)

	count := 0
	for i := 0; i < 3; i++ {
		select {
		case <-client.Send:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 3 {
		t.Errorf("expected 3 messages (one per subscribed room), got %d", count)
	}
}

func TestEventSink_EmptyIDsSkipTheirRoom(t *testing.T) {
	_, client := newTestHubAndClient(t, "tenant:tenant-1")
	sink := NewEventSink(client.Hub)

	sink.Publish(events.Event{
		Name:       events.WorkflowStarted,
		TenantID:   "tenant-1",
		OccurredAt: time.Now(),
	})

	select {
	case <-client.Send:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected the tenant-room broadcast even with no execution/workflow id")
	}
}

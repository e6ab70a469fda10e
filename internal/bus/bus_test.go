package bus

import (
	"context"
	"testing"
	"time"

	"github.com/mocraimer/genflow/pkg/models"
)

func newTestBus(t *testing.T) (*Bus, context.Context, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBus(10, nil, nil)
	b.Start(ctx)
	return b, ctx, func() {
		b.Stop()
		cancel()
	}
}

func TestBusDirectSend(t *testing.T) {
	b, ctx, done := newTestBus(t)
	defer done()

	b.RegisterAgent("a")
	b.RegisterAgent("b")

	if err := b.Send(ctx, models.AgentMessage{Sender: "a", Recipient: "b", Content: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, ok := b.Receive(ctx, "b", time.Second)
	if !ok {
		t.Fatal("expected a message for b")
	}
	if msg.Content != "hi" || msg.Sender != "a" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestBusBroadcastExcludesSender(t *testing.T) {
	b, ctx, done := newTestBus(t)
	defer done()

	for _, id := range []string{"x", "y", "z"} {
		b.RegisterAgent(id)
	}

	if err := b.Broadcast(ctx, "x", "hello", "", nil); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}

	for _, id := range []string{"y", "z"} {
		msg, ok := b.Receive(ctx, id, time.Second)
		if !ok {
			t.Fatalf("expected %s to receive the broadcast", id)
		}
		if msg.Content != "hello" {
			t.Errorf("%s received unexpected content: %q", id, msg.Content)
		}
	}

	if _, ok := b.Receive(ctx, "x", 50*time.Millisecond); ok {
		t.Error("sender x should not receive its own broadcast")
	}
}

func TestBusBroadcastNoOtherAgentsIsNoop(t *testing.T) {
	b, ctx, done := newTestBus(t)
	defer done()
	b.RegisterAgent("only")

	if err := b.Broadcast(ctx, "only", "hello", "", nil); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	stats := b.Stats()
	if stats.Sent != 1 {
		t.Errorf("Sent = %d, want 1", stats.Sent)
	}
	if stats.Delivered != 0 {
		t.Errorf("Delivered = %d, want 0", stats.Delivered)
	}
	if stats.Failed != 0 {
		t.Errorf("Failed = %d, want 0", stats.Failed)
	}
}

func TestBusSendToUnregisteredRecipientCountsFailed(t *testing.T) {
	b, ctx, done := newTestBus(t)
	defer done()

	if err := b.Send(ctx, models.AgentMessage{Sender: "a", Recipient: "ghost", Content: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	stats := b.Stats()
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Delivered+stats.Failed > stats.Sent {
		t.Errorf("invariant violated: delivered(%d)+failed(%d) > sent(%d)", stats.Delivered, stats.Failed, stats.Sent)
	}
}

func TestBusFilterMatching(t *testing.T) {
	b, ctx, done := newTestBus(t)
	defer done()
	b.RegisterAgent("a")
	b.RegisterAgent("b")

	received := make(chan models.AgentMessage, 1)
	b.Subscribe(Filter{MessageType: "urgent"}, func(msg models.AgentMessage) error {
		received <- msg
		return nil
	})

	if err := b.Send(ctx, models.AgentMessage{Sender: "a", Recipient: "b", Content: "ignore me", MessageType: "general"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := b.Send(ctx, models.AgentMessage{Sender: "a", Recipient: "b", Content: "pay attention", MessageType: "urgent"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if msg.Content != "pay attention" {
			t.Errorf("handler received unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked for matching message")
	}

	select {
	case msg := <-received:
		t.Errorf("handler should not have matched the general message, got %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusRequestResponseCorrelation(t *testing.T) {
	b, ctx, done := newTestBus(t)
	defer done()
	b.RegisterAgent("x")
	b.RegisterAgent("y")

	b.Subscribe(Filter{Recipient: "y", MessageType: "request"}, func(msg models.AgentMessage) error {
		corrID := msg.MetadataString("correlation_id")
		return b.Send(ctx, models.AgentMessage{
			Sender:      "y",
			Recipient:   msg.Sender,
			Content:     "pong",
			MessageType: "reply",
			Metadata:    map[string]any{"correlation_id": corrID},
		})
	})

	reply, ok := b.RequestResponse(ctx, "x", "y", "ping", "request", 2*time.Second)
	if !ok {
		t.Fatal("expected a correlated reply within the timeout")
	}
	if reply.Content != "pong" || reply.Sender != "y" {
		t.Errorf("unexpected reply: %+v", reply)
	}
}

func TestBusRequestResponseTimesOut(t *testing.T) {
	b, ctx, done := newTestBus(t)
	defer done()
	b.RegisterAgent("x")
	b.RegisterAgent("y")

	_, ok := b.RequestResponse(ctx, "x", "y", "ping", "request", 50*time.Millisecond)
	if ok {
		t.Fatal("expected timeout with no responder registered")
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	b, ctx, done := newTestBus(t)
	defer done()
	b.RegisterAgent("a")
	b.RegisterAgent("b")

	calls := 0
	id := b.Subscribe(Filter{}, func(msg models.AgentMessage) error {
		calls++
		return nil
	})
	b.Unsubscribe(id)

	if err := b.Send(ctx, models.AgentMessage{Sender: "a", Recipient: "b", Content: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if calls != 0 {
		t.Errorf("handler invoked %d times after unsubscribe, want 0", calls)
	}
}

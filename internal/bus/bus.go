// Package bus implements the Message Bus: asynchronous routing of direct
// and broadcast messages between agents, filter-based subscription, and
// request/response correlation (§4.6).
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mocraimer/genflow/internal/observability"
	"github.com/mocraimer/genflow/pkg/models"
)

// DefaultQueueCapacity is applied when Bus is constructed with capacity<=0
// (§4.6 Structure: "capacity configurable; default 1 000").
const DefaultQueueCapacity = 1000

// DefaultRequestResponseTimeout is used by RequestResponse callers that
// don't specify one (§8 scenario 6 uses 2s; the broader spec's default
// request/response timeout is 30s).
const DefaultRequestResponseTimeout = 30 * time.Second

type pendingReply struct {
	expectedFrom string
	ch           chan models.AgentMessage
}

// Stats are the Bus's monotonic counters and point-in-time gauges (§4.6
// Statistics).
type Stats struct {
	Sent             int64
	Delivered        int64
	Failed           int64
	RegisteredAgents int
	ActiveHandlers   int
	QueueSizes       map[string]int
}

// Bus is the Message Bus (§4.6).
type Bus struct {
	logger  *observability.Logger
	metrics *observability.Metrics

	capacity int

	queuesMu sync.RWMutex
	queues   map[string]*agentQueue

	handlersMu sync.RWMutex
	handlers   []*Handler

	pendingMu sync.Mutex
	pending   map[string]*pendingReply

	historyMu sync.Mutex
	history   []models.AgentMessage

	ingress chan models.AgentMessage
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	sent      atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
}

// historyLimit bounds the in-memory message history the Bus retains for
// Bus.History (supplemented feature, grounded on the original project's
// get_message_history); it halves when exceeded, matching the original's
// overflow policy.
const historyLimit = 10000

// NewBus constructs a Bus with per-recipient queues of the given capacity
// (DefaultQueueCapacity if capacity<=0).
func NewBus(capacity int, logger *observability.Logger, metrics *observability.Metrics) *Bus {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if logger == nil {
		logger = observability.Default()
	}
	return &Bus{
		logger:   logger,
		metrics:  metrics,
		capacity: capacity,
		queues:   make(map[string]*agentQueue),
		pending:  make(map[string]*pendingReply),
		ingress:  make(chan models.AgentMessage, capacity),
	}
}

// Start launches the ingress-processing loop (§4.6 Start/stop). It is a
// no-op if the Bus is already running.
func (b *Bus) Start(ctx context.Context) {
	if !b.running.CompareAndSwap(false, true) {
		return
	}
	b.stopCh = make(chan struct{})
	b.wg.Add(1)
	go b.processLoop(ctx)
}

// Stop signals the ingress processor to exit and waits for it to
// terminate. Messages already in per-recipient queues remain retrievable.
func (b *Bus) Stop() {
	if !b.running.CompareAndSwap(true, false) {
		return
	}
	close(b.stopCh)
	b.wg.Wait()
}

// RegisterAgent creates recipientID's per-recipient queue.
func (b *Bus) RegisterAgent(recipientID string) {
	b.queuesMu.Lock()
	defer b.queuesMu.Unlock()
	if _, ok := b.queues[recipientID]; !ok {
		b.queues[recipientID] = newAgentQueue(b.capacity)
	}
}

// UnregisterAgent destroys recipientID's queue.
func (b *Bus) UnregisterAgent(recipientID string) {
	b.queuesMu.Lock()
	defer b.queuesMu.Unlock()
	delete(b.queues, recipientID)
}

func (b *Bus) registeredAgents() []string {
	b.queuesMu.RLock()
	defer b.queuesMu.RUnlock()
	ids := make([]string, 0, len(b.queues))
	for id := range b.queues {
		ids = append(ids, id)
	}
	return ids
}

// Subscribe adds handler under filter and returns its id (§4.6
// Subscribe/unsubscribe).
func (b *Bus) Subscribe(filter Filter, handle HandlerFunc) string {
	h := &Handler{ID: uuid.NewString(), Filter: filter, Handle: handle}
	b.handlersMu.Lock()
	b.handlers = append(b.handlers, h)
	b.handlersMu.Unlock()
	return h.ID
}

// Unsubscribe removes the handler with the given id, if present.
func (b *Bus) Unsubscribe(handlerID string) {
	b.handlersMu.Lock()
	defer b.handlersMu.Unlock()
	for i, h := range b.handlers {
		if h.ID == handlerID {
			b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
			return
		}
	}
}

// Send enqueues msg on the global ingress queue (§4.6 Send), filling in ID
// and CreatedAt if unset.
func (b *Bus) Send(ctx context.Context, msg models.AgentMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.MessageType == "" {
		msg.MessageType = "general"
	}

	select {
	case b.ingress <- msg:
		b.sent.Add(1)
		if b.metrics != nil {
			b.metrics.BusMessagesSent.Inc()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast is Send with Recipient set to the broadcast sentinel (§4.6
// Broadcast).
func (b *Bus) Broadcast(ctx context.Context, sender, content, messageType string, metadata map[string]any) error {
	return b.Send(ctx, models.AgentMessage{
		Sender:      sender,
		Recipient:   models.BroadcastRecipient,
		Content:     content,
		MessageType: messageType,
		Metadata:    metadata,
	})
}

// Receive pulls the oldest message from recipientID's queue, blocking up
// to timeout.
func (b *Bus) Receive(ctx context.Context, recipientID string, timeout time.Duration) (models.AgentMessage, bool) {
	b.queuesMu.RLock()
	q, ok := b.queues[recipientID]
	b.queuesMu.RUnlock()
	if !ok {
		return models.AgentMessage{}, false
	}
	return q.waitAndPop(ctx, timeout)
}

// RequestResponse sends content from sender to recipient carrying a fresh
// correlation id, then waits up to timeout for a reply from recipient
// echoing that id (§4.6 Request/response). A timeout<=0 uses
// DefaultRequestResponseTimeout.
func (b *Bus) RequestResponse(ctx context.Context, sender, recipient, content, messageType string, timeout time.Duration) (models.AgentMessage, bool) {
	if timeout <= 0 {
		timeout = DefaultRequestResponseTimeout
	}
	correlationID := uuid.NewString()
	replyCh := make(chan models.AgentMessage, 1)

	b.pendingMu.Lock()
	b.pending[correlationID] = &pendingReply{expectedFrom: recipient, ch: replyCh}
	b.pendingMu.Unlock()
	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, correlationID)
		b.pendingMu.Unlock()
	}()

	err := b.Send(ctx, models.AgentMessage{
		Sender:      sender,
		Recipient:   recipient,
		Content:     content,
		MessageType: messageType,
		Metadata:    map[string]any{"correlation_id": correlationID, "expects_response": true},
	})
	if err != nil {
		return models.AgentMessage{}, false
	}

	select {
	case reply := <-replyCh:
		return reply, true
	case <-time.After(timeout):
		return models.AgentMessage{}, false
	case <-ctx.Done():
		return models.AgentMessage{}, false
	}
}

// Stats returns a snapshot of the Bus's counters and gauges.
func (b *Bus) Stats() Stats {
	b.queuesMu.RLock()
	sizes := make(map[string]int, len(b.queues))
	for id, q := range b.queues {
		sizes[id] = q.size()
	}
	registered := len(b.queues)
	b.queuesMu.RUnlock()

	b.handlersMu.RLock()
	active := len(b.handlers)
	b.handlersMu.RUnlock()

	return Stats{
		Sent:             b.sent.Load(),
		Delivered:        b.delivered.Load(),
		Failed:           b.failed.Load(),
		RegisteredAgents: registered,
		ActiveHandlers:   active,
		QueueSizes:       sizes,
	}
}

// History returns up to limit of the most recent messages whose Recipient
// or Sender is agentID (supplemented feature: the original project's
// get_message_history).
func (b *Bus) History(agentID string, limit int) []models.AgentMessage {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()

	var matched []models.AgentMessage
	for i := len(b.history) - 1; i >= 0 && (limit <= 0 || len(matched) < limit); i-- {
		m := b.history[i]
		if agentID == "" || m.Sender == agentID || m.Recipient == agentID {
			matched = append(matched, m)
		}
	}
	return matched
}

func (b *Bus) recordHistory(msg models.AgentMessage) {
	b.historyMu.Lock()
	defer b.historyMu.Unlock()
	b.history = append(b.history, msg)
	if len(b.history) > historyLimit {
		b.history = append([]models.AgentMessage{}, b.history[len(b.history)/2:]...)
	}
}

func (b *Bus) processLoop(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case msg := <-b.ingress:
			b.routeMessage(msg)
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// routeMessage implements §4.6 Send's routing rule: broadcasts fan out to
// every registered agent except the sender, each as a freshly-id'd clone;
// direct messages go to their one recipient. Handlers matching the
// original message then run once, concurrently, regardless of fan-out.
func (b *Bus) routeMessage(msg models.AgentMessage) {
	b.recordHistory(msg)

	if msg.IsBroadcast() {
		for _, id := range b.registeredAgents() {
			if id == msg.Sender {
				continue
			}
			clone := msg
			clone.ID = uuid.NewString()
			clone.Recipient = id
			b.deliverMessage(clone)
		}
	} else {
		b.deliverMessage(msg)
	}

	b.processHandlers(msg)
}

func (b *Bus) deliverMessage(msg models.AgentMessage) {
	b.queuesMu.RLock()
	q, ok := b.queues[msg.Recipient]
	b.queuesMu.RUnlock()

	if !ok {
		b.failed.Add(1)
		if b.metrics != nil {
			b.metrics.BusMessagesFailed.Inc()
		}
		b.logger.Warn(context.Background(), "dropping message to unregistered recipient", "recipient", msg.Recipient)
		return
	}

	if !q.push(msg) {
		b.failed.Add(1)
		if b.metrics != nil {
			b.metrics.BusMessagesFailed.Inc()
		}
		b.logger.Warn(context.Background(), "recipient queue full, dropping message", "recipient", msg.Recipient)
		return
	}

	b.delivered.Add(1)
	if b.metrics != nil {
		b.metrics.BusMessagesDelivd.Inc()
		b.metrics.BusQueueDepth.WithLabelValues(msg.Recipient).Set(float64(q.size()))
	}

	if corrID := msg.MetadataString("correlation_id"); corrID != "" {
		b.pendingMu.Lock()
		entry, ok := b.pending[corrID]
		b.pendingMu.Unlock()
		if ok && entry.expectedFrom == msg.Sender {
			select {
			case entry.ch <- msg:
			default:
			}
		}
	}
}

func (b *Bus) processHandlers(msg models.AgentMessage) {
	b.handlersMu.RLock()
	matched := make([]*Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		if h.Filter.Matches(msg) {
			matched = append(matched, h)
		}
	}
	b.handlersMu.RUnlock()

	var wg sync.WaitGroup
	for _, h := range matched {
		wg.Add(1)
		go func(h *Handler) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error(context.Background(), "message handler panicked", "handler_id", h.ID, "panic", r)
				}
			}()
			if err := h.Handle(msg); err != nil {
				b.logger.Error(context.Background(), "message handler failed", "handler_id", h.ID, "error", err)
			}
		}(h)
	}
	wg.Wait()
}

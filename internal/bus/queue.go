package bus

import (
	"context"
	"sync"
	"time"

	"github.com/mocraimer/genflow/pkg/models"
)

// agentQueue is one registered agent's bounded inbox: a FIFO slice guarded
// by a mutex, with a signal channel waking blocked receivers on push. A
// full queue drops the incoming message (§9 Open Questions: the spec
// leaves blocking-vs-drop unresolved for overflow; this implementation
// drops and the caller counts it via Stats().Failed).
type agentQueue struct {
	mu       sync.Mutex
	items    []models.AgentMessage
	capacity int
	notify   chan struct{}
}

func newAgentQueue(capacity int) *agentQueue {
	return &agentQueue{
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

func (q *agentQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// push appends msg to the back of the queue, reporting false if the queue
// was already at capacity.
func (q *agentQueue) push(msg models.AgentMessage) bool {
	q.mu.Lock()
	if len(q.items) >= q.capacity {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.signal()
	return true
}

// popFront removes and returns the oldest queued message, if any.
func (q *agentQueue) popFront() (models.AgentMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return models.AgentMessage{}, false
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, true
}

func (q *agentQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// waitAndPop blocks until a message is available, ctx is done, or timeout
// elapses, whichever comes first.
func (q *agentQueue) waitAndPop(ctx context.Context, timeout time.Duration) (models.AgentMessage, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if msg, ok := q.popFront(); ok {
			return msg, true
		}
		select {
		case <-q.notify:
			continue
		case <-timer.C:
			return models.AgentMessage{}, false
		case <-ctx.Done():
			return models.AgentMessage{}, false
		}
	}
}

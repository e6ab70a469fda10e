package mcp

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/mocraimer/genflow/internal/observability"
)

// entry tracks one pooled Client and its reference count.
type entry struct {
	client   *Client
	refCount int
}

// connectRateLimit and connectBurst bound how often the pool will spawn a
// new tool-server subprocess for a given fingerprint, so a tool server
// stuck in a crash loop doesn't turn every Acquire into a fork bomb.
const (
	connectRateLimit = 1 // connect attempts per second, per fingerprint
	connectBurst     = 3
)

// Pool is the Connection Pool: a reference-counted, fingerprint-keyed
// registry of Clients (§4.2). Concurrent acquirers for the same
// fingerprint see exactly one connect attempt.
type Pool struct {
	logger  *observability.Logger
	metrics *observability.Metrics

	mapMu    sync.Mutex // protects entries, keyLocks, and limiters
	entries  map[string]*entry
	keyLock  map[string]*sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPool constructs an empty Pool.
func NewPool(logger *observability.Logger, metrics *observability.Metrics) *Pool {
	if logger == nil {
		logger = observability.Default()
	}
	return &Pool{
		logger:   logger,
		metrics:  metrics,
		entries:  make(map[string]*entry),
		keyLock:  make(map[string]*sync.Mutex),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (p *Pool) limiterFor(key string) *rate.Limiter {
	p.mapMu.Lock()
	defer p.mapMu.Unlock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(connectRateLimit), connectBurst)
		p.limiters[key] = l
	}
	return l
}

func (p *Pool) lockFor(key string) *sync.Mutex {
	p.mapMu.Lock()
	defer p.mapMu.Unlock()
	l, ok := p.keyLock[key]
	if !ok {
		l = &sync.Mutex{}
		p.keyLock[key] = l
	}
	return l
}

// Acquire returns a connected Client for config, creating and connecting
// one if necessary, and increments its reference count (§4.2 Acquire). A
// disconnected cached Client is evicted and replaced.
func (p *Pool) Acquire(ctx context.Context, config *ServerConfig) (*Client, error) {
	key := config.Fingerprint()
	lock := p.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	p.mapMu.Lock()
	e, ok := p.entries[key]
	p.mapMu.Unlock()

	if ok {
		if e.client.Connected() {
			p.mapMu.Lock()
			e.refCount++
			p.mapMu.Unlock()
			return e.client, nil
		}
		e.client.Disconnect()
		p.mapMu.Lock()
		delete(p.entries, key)
		p.mapMu.Unlock()
	}

	if err := p.limiterFor(key).Wait(ctx); err != nil {
		return nil, err
	}

	client := NewClient(config, p.logger)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}

	p.mapMu.Lock()
	p.entries[key] = &entry{client: client, refCount: 1}
	count := len(p.entries)
	p.mapMu.Unlock()

	if p.metrics != nil {
		p.metrics.PoolActiveClients.Set(float64(count))
	}
	return client, nil
}

// Release decrements config's reference count. Reaching zero does not
// disconnect the Client — connections are retained for reuse (§4.2
// Release).
func (p *Pool) Release(config *ServerConfig) {
	key := config.Fingerprint()
	p.mapMu.Lock()
	defer p.mapMu.Unlock()
	if e, ok := p.entries[key]; ok && e.refCount > 0 {
		e.refCount--
	}
}

// Shutdown disconnects every pooled Client concurrently, logging (and
// swallowing) individual failures, and clears the registry.
func (p *Pool) Shutdown() {
	p.mapMu.Lock()
	entries := make([]*entry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.entries = make(map[string]*entry)
	p.mapMu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			e.client.Disconnect()
		}(e)
	}
	wg.Wait()

	if p.metrics != nil {
		p.metrics.PoolActiveClients.Set(0)
	}
}

// Size returns the number of distinct fingerprints currently pooled.
func (p *Pool) Size() int {
	p.mapMu.Lock()
	defer p.mapMu.Unlock()
	return len(p.entries)
}

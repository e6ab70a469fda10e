package mcp

import (
	"context"
	"sync"
	"testing"
)

func TestPoolAcquireReusesConnectedClient(t *testing.T) {
	pool := NewPool(nil, nil)
	config := fakeServerConfig()

	c1, err := pool.Acquire(context.Background(), config)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	c2, err := pool.Acquire(context.Background(), config)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c1 != c2 {
		t.Error("expected the same Client instance for the same fingerprint")
	}
	if pool.Size() != 1 {
		t.Errorf("pool.Size() = %d, want 1", pool.Size())
	}
	pool.Shutdown()
}

func TestPoolReleaseDoesNotDisconnect(t *testing.T) {
	pool := NewPool(nil, nil)
	config := fakeServerConfig()

	c, err := pool.Acquire(context.Background(), config)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pool.Release(config)
	if !c.Connected() {
		t.Error("expected client to remain connected after Release reaches zero")
	}
	pool.Shutdown()
}

func TestPoolConcurrentAcquireSingleFlight(t *testing.T) {
	pool := NewPool(nil, nil)
	config := fakeServerConfig()

	var wg sync.WaitGroup
	clients := make([]*Client, 8)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := pool.Acquire(context.Background(), config)
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			clients[i] = c
		}(i)
	}
	wg.Wait()

	for i := 1; i < len(clients); i++ {
		if clients[i] != clients[0] {
			t.Error("expected a single Client shared across concurrent acquirers")
		}
	}
	if pool.Size() != 1 {
		t.Errorf("pool.Size() = %d, want 1", pool.Size())
	}
	pool.Shutdown()
}

func TestPoolShutdownClearsRegistry(t *testing.T) {
	pool := NewPool(nil, nil)
	config := fakeServerConfig()

	if _, err := pool.Acquire(context.Background(), config); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pool.Shutdown()
	if pool.Size() != 0 {
		t.Errorf("pool.Size() after Shutdown = %d, want 0", pool.Size())
	}
}

func TestPoolAcquireRejectsInvalidConfig(t *testing.T) {
	pool := NewPool(nil, nil)
	if _, err := pool.Acquire(context.Background(), &ServerConfig{}); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

// Package rpc pool.go provides a thread-safe client pool so each upstream
// endpoint gets exactly one HTTP client (and one keep-alive connection pool).
package rpc

import (
	"sync"
)

// ClientPool manages RPC clients keyed by endpoint name. It uses
// double-checked locking so the hot path only takes the read lock.
type ClientPool struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewClientPool creates an empty pool.
func NewClientPool() *ClientPool {
	return &ClientPool{
		clients: make(map[string]*Client),
	}
}

// GetOrCreate returns the client registered under cfg.Name, creating it from
// cfg on first use. Later calls with the same name ignore cfg.
//
// Parameters:
//   - cfg: Client settings; cfg.Name is the pool key (e.g. "chain-1/archive")
//
// Returns:
//   - *Client: Existing or newly created client
func (p *ClientPool) GetOrCreate(cfg ClientConfig) *Client {
	// Fast path: existing clients only need the read lock
	p.mu.RLock()
	if client, exists := p.clients[cfg.Name]; exists {
		p.mu.RUnlock()
		return client
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another goroutine may have created it while we waited for the lock.
	if client, exists := p.clients[cfg.Name]; exists {
		return client
	}

	client := NewClient(cfg)
	p.clients[cfg.Name] = client
	return client
}

// Len reports how many clients the pool holds.
func (p *ClientPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

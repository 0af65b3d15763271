package llm

import "sync"

// Pool hands out clients keyed by (endpoint, credential) so at most one
// client exists per distinct pair. Clients are stateless per call and safe to
// share across workers.
type Pool struct {
	mu      sync.Mutex
	clients map[poolKey]*Client
	opts    []Option
}

type poolKey struct {
	baseURL string
	apiKey  string
}

// NewPool constructs an empty pool. The supplied options are applied to every
// client the pool creates.
func NewPool(opts ...Option) *Pool {
	return &Pool{clients: make(map[poolKey]*Client), opts: opts}
}

// Get returns the cached client for the configuration, creating it on first
// use.
func (p *Pool) Get(cfg Config) *Client {
	key := poolKey{baseURL: cfg.BaseURL, apiKey: cfg.APIKey}
	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[key]; ok {
		return client
	}
	client := NewClient(cfg, p.opts...)
	// Key on the resolved URL so an empty BaseURL and the explicit default
	// share one client.
	resolved := poolKey{baseURL: client.BaseURL(), apiKey: client.cfg.APIKey}
	if existing, ok := p.clients[resolved]; ok {
		p.clients[key] = existing
		return existing
	}
	p.clients[key] = client
	p.clients[resolved] = client
	return client
}

// Size returns the number of distinct clients the pool holds.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	distinct := make(map[*Client]struct{}, len(p.clients))
	for _, client := range p.clients {
		distinct[client] = struct{}{}
	}
	return len(distinct)
}

// Package upstream maps (chain, tier) pairs to node endpoints and talks to
// them. It is the only place that knows about URLs and credentials.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmagro/eth-rpc-tier-router/internal/config"
	"github.com/dmagro/eth-rpc-tier-router/internal/routing"
	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
)

// ErrUnsupportedChain is returned for a chain with no configured endpoint.
var ErrUnsupportedChain = errors.New("unsupported chain")

// CallRecorder is notified of every upstream round-trip.
type CallRecorder interface {
	ObserveUpstream(chainID uint64, tier routing.NodeTier, status int, elapsed time.Duration, err error)
}

// Backend resolves endpoints and holds one pooled client per endpoint.
type Backend struct {
	baseURL  string
	apiKey   string
	chains   map[uint64]config.Chain
	defaults config.Defaults
	pool     *rpc.ClientPool
	recorder CallRecorder
}

// Option configures a Backend.
type Option func(*Backend)

// WithRecorder reports upstream calls to r.
func WithRecorder(r CallRecorder) Option {
	return func(b *Backend) { b.recorder = r }
}

// New builds a backend from validated configuration.
func New(cfg *config.Config, opts ...Option) *Backend {
	chains := make(map[uint64]config.Chain, len(cfg.Chains))
	for _, ch := range cfg.Chains {
		chains[ch.ID] = ch
	}

	b := &Backend{
		baseURL:  cfg.Upstream.BaseURL,
		apiKey:   cfg.Upstream.APIKey,
		chains:   chains,
		defaults: cfg.Defaults,
		pool:     rpc.NewClientPool(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Supports reports whether chainID can be served.
func (b *Backend) Supports(chainID uint64) bool {
	if chainID == 0 {
		return false
	}
	if _, ok := b.chains[chainID]; ok {
		return true
	}
	return b.baseURL != ""
}

// Endpoint returns the URL serving tier on chainID. Explicit chain URLs win
// over the {base_url}/{chainId}/{tier} layout.
func (b *Backend) Endpoint(chainID uint64, tier routing.NodeTier) (string, error) {
	if !b.Supports(chainID) {
		return "", fmt.Errorf("%w: %d", ErrUnsupportedChain, chainID)
	}

	if ch, ok := b.chains[chainID]; ok {
		switch {
		case tier == routing.TierFull && ch.FullURL != "":
			return ch.FullURL, nil
		case tier == routing.TierArchive && ch.ArchiveURL != "":
			return ch.ArchiveURL, nil
		}
	}
	if b.baseURL == "" {
		return "", fmt.Errorf("%w: no %s endpoint for chain %d", ErrUnsupportedChain, tier, chainID)
	}

	return b.baseURL + "/" + strconv.FormatUint(chainID, 10) + "/" + tier.String(), nil
}

// Client returns the pooled client for (chainID, tier). Forwarded calls
// retry transport failures per defaults.max_retries.
func (b *Backend) Client(chainID uint64, tier routing.NodeTier) (*rpc.Client, error) {
	return b.client(chainID, tier, "", b.defaults.MaxRetries)
}

// headClient never retries; a failed head fetch falls back to the sentinel.
func (b *Backend) headClient(chainID uint64, tier routing.NodeTier) (*rpc.Client, error) {
	return b.client(chainID, tier, "/head", 0)
}

func (b *Backend) client(chainID uint64, tier routing.NodeTier, suffix string, retries int) (*rpc.Client, error) {
	url, err := b.Endpoint(chainID, tier)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if b.apiKey != "" {
		headers["Authorization"] = "Bearer " + b.apiKey
	}

	return b.pool.GetOrCreate(rpc.ClientConfig{
		Name:           fmt.Sprintf("chain-%d/%s%s", chainID, tier, suffix),
		URL:            url,
		Timeout:        b.defaults.Timeout,
		MaxRetries:     retries,
		BackoffInitial: b.defaults.BackoffInitial,
		BackoffMax:     b.defaults.BackoffMax,
		Headers:        headers,
	}), nil
}

// Call implements routing.Caller. It is used for head lookups and so makes
// a single attempt.
func (b *Backend) Call(ctx context.Context, chainID uint64, tier routing.NodeTier, method string, params ...interface{}) (*rpc.Response, error) {
	c, err := b.headClient(chainID, tier)
	if err != nil {
		return nil, err
	}

	resp, latency, err := c.Call(ctx, method, params...)
	b.record(chainID, tier, statusOf(err), latency, err)
	return resp, err
}

// Dispatch forwards an already-encoded request body to (chainID, tier) and
// returns the upstream reply untouched. Non-2xx statuses are not errors.
func (b *Backend) Dispatch(ctx context.Context, chainID uint64, tier routing.NodeTier, body []byte) (*rpc.Reply, error) {
	c, err := b.Client(chainID, tier)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := c.Forward(ctx, body)
	if err != nil {
		b.record(chainID, tier, 0, time.Since(start), err)
		return nil, err
	}
	b.record(chainID, tier, reply.StatusCode, reply.Latency, nil)
	return reply, nil
}

func (b *Backend) record(chainID uint64, tier routing.NodeTier, status int, elapsed time.Duration, err error) {
	if b.recorder != nil {
		b.recorder.ObserveUpstream(chainID, tier, status, elapsed, err)
	}
}

// statusOf approximates the HTTP status of a Call result: 200 unless the
// call failed before a JSON-RPC envelope came back.
func statusOf(err error) int {
	if err == nil {
		return 200
	}
	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		return 200
	}
	return 0
}

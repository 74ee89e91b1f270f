package routing

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
)

// DefaultSentinelHead stands in for the chain head when the real one could
// not be fetched. It is far above any real block height.
const DefaultSentinelHead uint64 = math.MaxInt64

// HeadSource records where a ChainHead came from.
type HeadSource string

const (
	HeadFromRPC      HeadSource = "rpc"
	HeadFallback     HeadSource = "fallback"
	HeadShortCircuit HeadSource = "short-circuit"
	HeadPinned       HeadSource = "pinned"
)

// ChainHead is the block height observed for one chain while routing one
// request. It is never cached.
type ChainHead struct {
	ChainID     uint64     `json:"chainId"`
	BlockNumber uint64     `json:"blockNumber"`
	ObservedAt  time.Time  `json:"observedAt"`
	Source      HeadSource `json:"source"`
}

// IsSentinel reports whether the head is a placeholder rather than a height
// read from (or pinned for) the chain.
func (h ChainHead) IsSentinel() bool {
	return h.Source != HeadFromRPC && h.Source != HeadPinned
}

// Caller issues a JSON-RPC call against one tier of one chain.
type Caller interface {
	Call(ctx context.Context, chainID uint64, tier NodeTier, method string, params ...interface{}) (*rpc.Response, error)
}

// HeadResolver yields chain heads for the Router.
type HeadResolver interface {
	ResolveHead(ctx context.Context, chainID uint64) ChainHead
	SentinelHead(chainID uint64) ChainHead
}

// Resolver fetches chain heads with eth_blockNumber on the full tier.
type Resolver struct {
	caller   Caller
	sentinel uint64
	logger   *slog.Logger
	now      func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSentinel overrides DefaultSentinelHead.
func WithSentinel(n uint64) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.sentinel = n
		}
	}
}

func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func NewResolver(caller Caller, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		caller:   caller,
		sentinel: DefaultSentinelHead,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Sentinel returns the configured sentinel height.
func (r *Resolver) Sentinel() uint64 { return r.sentinel }

// ResolveHead asks the full tier of chainID for its block height. It never
// fails: any problem yields the sentinel head with Source HeadFallback.
//
// Parameters:
//   - ctx: Request context; its deadline bounds the single eth_blockNumber call
//   - chainID: Chain whose full tier is queried
//
// Returns:
//   - ChainHead: Source HeadFromRPC with the decoded height, or the sentinel
//     with Source HeadFallback
//
// Failure handling:
//  1. Transport or JSON-RPC error: warn and fall back
//  2. Result that is not a JSON string: warn and fall back
//  3. String that is not a 0x hex quantity fitting uint64: warn and fall back
func (r *Resolver) ResolveHead(ctx context.Context, chainID uint64) ChainHead {
	// One attempt only; the caller's head client never retries
	resp, err := r.caller.Call(ctx, chainID, TierFull, "eth_blockNumber")
	if err != nil {
		r.logger.Warn("chain head fetch failed, using sentinel",
			"chain_id", chainID, "error", err)
		return r.head(chainID, r.sentinel, HeadFallback)
	}

	var hexStr string
	if err := json.Unmarshal(resp.Result, &hexStr); err != nil {
		r.logger.Warn("chain head result is not a string, using sentinel",
			"chain_id", chainID, "result", string(resp.Result))
		return r.head(chainID, r.sentinel, HeadFallback)
	}

	n, err := rpc.ParseQuantity(hexStr)
	if err != nil {
		r.logger.Warn("chain head result is not a hex quantity, using sentinel",
			"chain_id", chainID, "result", hexStr, "error", err)
		return r.head(chainID, r.sentinel, HeadFallback)
	}

	return r.head(chainID, n, HeadFromRPC)
}

// SentinelHead returns the placeholder head used when a request does not
// need a real one. No network call is made.
func (r *Resolver) SentinelHead(chainID uint64) ChainHead {
	return r.head(chainID, r.sentinel, HeadShortCircuit)
}

func (r *Resolver) head(chainID, n uint64, src HeadSource) ChainHead {
	return ChainHead{ChainID: chainID, BlockNumber: n, ObservedAt: r.now(), Source: src}
}

// FixedResolver always reports the same height. It serves offline routing
// from the CLI, where the head is given on the command line.
type FixedResolver struct {
	Head     uint64
	Sentinel uint64
}

func (f FixedResolver) ResolveHead(_ context.Context, chainID uint64) ChainHead {
	return ChainHead{ChainID: chainID, BlockNumber: f.Head, ObservedAt: time.Now(), Source: HeadPinned}
}

func (f FixedResolver) SentinelHead(chainID uint64) ChainHead {
	n := f.Sentinel
	if n == 0 {
		n = DefaultSentinelHead
	}
	return ChainHead{ChainID: chainID, BlockNumber: n, ObservedAt: time.Now(), Source: HeadShortCircuit}
}

package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
)

// ErrInvalidChain is returned by Route for a zero chain id.
var ErrInvalidChain = errors.New("invalid chain id")

// OtherMethod replaces caller-supplied method names the router does not know
// when they are handed to the Observer, so metric labels stay bounded.
const OtherMethod = "other"

const blockNumberMethod = "eth_blockNumber"

// Decision is the outcome of routing one request.
type Decision struct {
	Tier           NodeTier       `json:"tier"`
	Head           ChainHead      `json:"head"`
	Classification Classification `json:"classification"`
}

// Observer receives routing events. metrics.Metrics implements it.
type Observer interface {
	HeadResolved(chainID uint64, head ChainHead, elapsed time.Duration)
	Routed(chainID uint64, method string, c Classification)
}

type nopObserver struct{}

func (nopObserver) HeadResolved(uint64, ChainHead, time.Duration) {}
func (nopObserver) Routed(uint64, string, Classification)         {}

// RouterOpts wires a Router.
type RouterOpts struct {
	Resolver   HeadResolver
	Classifier *Classifier
	Observer   Observer
	Logger     *slog.Logger
	// KnownMethods are reported to the Observer by name in addition to the
	// chain's historical methods and eth_blockNumber.
	KnownMethods []string
}

// Router combines head resolution and classification.
type Router struct {
	resolver   HeadResolver
	classifier *Classifier
	observer   Observer
	logger     *slog.Logger
	known      map[string]struct{}
}

func NewRouter(opts RouterOpts) *Router {
	r := &Router{
		resolver:   opts.Resolver,
		classifier: opts.Classifier,
		observer:   opts.Observer,
		logger:     opts.Logger,
		known:      map[string]struct{}{blockNumberMethod: {}},
	}
	for _, m := range opts.KnownMethods {
		r.known[m] = struct{}{}
	}
	if r.classifier == nil {
		r.classifier = NewClassifier(DefaultPolicy(), nil)
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Route picks the node tier for req on chainID and returns it together with
// the head it was judged against. eth_blockNumber skips the head fetch, since
// it is itself a head query and is always served by the full tier.
func (r *Router) Route(ctx context.Context, req *rpc.Request, chainID uint64) (Decision, error) {
	if req == nil {
		return Decision{}, fmt.Errorf("%w: nil request", rpc.ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}
	if chainID == 0 {
		return Decision{}, ErrInvalidChain
	}

	var head ChainHead
	if req.Method == blockNumberMethod {
		head = r.resolver.SentinelHead(chainID)
	} else {
		start := time.Now()
		head = r.resolver.ResolveHead(ctx, chainID)
		r.observer.HeadResolved(chainID, head, time.Since(start))
	}

	c := r.classifier.Explain(req.Method, req.Params, head)
	r.observer.Routed(chainID, r.observedMethod(chainID, req.Method), c)

	r.logger.Debug("routed request",
		"chain_id", chainID,
		"method", req.Method,
		"tier", c.Tier.String(),
		"reason", string(c.Reason),
		"block", c.Ref.String(),
		"head", head.BlockNumber,
		"head_source", string(head.Source),
		"blocks_ago", c.BlocksAgo,
	)

	return Decision{Tier: c.Tier, Head: head, Classification: c}, nil
}

// observedMethod folds method into a bounded set: names from the chain's
// method table or KnownMethods are kept, anything else is OtherMethod.
func (r *Router) observedMethod(chainID uint64, method string) string {
	if _, ok := r.classifier.PolicyFor(chainID).Methods[method]; ok {
		return method
	}
	if _, ok := r.known[method]; ok {
		return method
	}
	return OtherMethod
}

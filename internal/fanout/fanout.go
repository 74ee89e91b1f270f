// Package fanout runs one operation against every configured chain at once.
//
// CLI commands probe all chains and keep going when some fail, so results
// are collected per chain and returned in configuration order.
package fanout

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmagro/eth-rpc-tier-router/internal/config"
)

// Result wraps the outcome for one chain.
type Result[T any] struct {
	Chain config.Chain
	Index int
	Value T
	Err   error
}

// ExecuteAll runs fn concurrently for each chain. It does not fail fast;
// per-chain errors are recorded in the corresponding Result. Cancellation
// of ctx still reaches fn.
func ExecuteAll[T any](
	ctx context.Context,
	chains []config.Chain,
	fn func(ctx context.Context, ch config.Chain) (T, error),
) []Result[T] {
	return Limit(ctx, 0, chains, fn)
}

// Limit is ExecuteAll with at most n chains in flight. n <= 0 means no limit.
func Limit[T any](
	ctx context.Context,
	n int,
	chains []config.Chain,
	fn func(ctx context.Context, ch config.Chain) (T, error),
) []Result[T] {
	results := make([]Result[T], len(chains))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	if n > 0 {
		g.SetLimit(n)
	}
	for i, ch := range chains {
		g.Go(func() error {
			val, err := fn(gctx, ch)
			mu.Lock()
			results[i] = Result[T]{Chain: ch, Index: i, Value: val, Err: err}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

package output

import (
	"fmt"
	"io"

	"github.com/dmagro/eth-rpc-tier-router/internal/routing"
	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
)

// RouteReport explains the routing of one request.
type RouteReport struct {
	ChainID  uint64           `json:"chainId"`
	Method   string           `json:"method"`
	Decision routing.Decision `json:"decision"`
	Endpoint string           `json:"endpoint,omitempty"`
}

// RenderRouteTerminal prints a RouteReport as aligned key/value lines.
func RenderRouteTerminal(w io.Writer, r *RouteReport) {
	d := r.Decision
	c := d.Classification

	tier := green(d.Tier.String())
	if d.Tier == routing.TierArchive {
		tier = yellow(d.Tier.String())
	}

	head := formatBlock(d.Head.BlockNumber)
	if d.Head.IsSentinel() {
		head = dim(fmt.Sprintf("unknown (%s)", d.Head.Source))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-12s %s\n", "Method", bold(r.Method))
	fmt.Fprintf(w, "  %-12s %d\n", "Chain", r.ChainID)
	fmt.Fprintf(w, "  %-12s %s\n", "Head", head)
	fmt.Fprintf(w, "  %-12s %s\n", "Block", c.Ref.String())
	if c.BlocksAgo > 0 {
		fmt.Fprintf(w, "  %-12s %s (threshold %d)\n", "Blocks ago", rpc.FormatNumber(c.BlocksAgo), c.Threshold)
	}
	fmt.Fprintf(w, "  %-12s %s\n", "Reason", string(c.Reason))
	fmt.Fprintf(w, "  %-12s %s\n", "Tier", tier)
	if r.Endpoint != "" {
		fmt.Fprintf(w, "  %-12s %s\n", "Endpoint", cyan(r.Endpoint))
	}
	fmt.Fprintln(w)
}

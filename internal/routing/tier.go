// Package routing decides which node tier, full or archive, must serve a
// JSON-RPC call. A full node keeps dense state only for recent blocks, so a
// read pinned deep in history has to go to an archive node; everything else
// is cheaper on a full node.
//
// The package has three parts: Resolver fetches the chain head, Classifier
// turns (method, params, head) into a NodeTier, and Router glues both into the
// single Route operation used by the proxy.
package routing

import "fmt"

// NodeTier is the class of backend selected for a call.
type NodeTier int

const (
	TierFull NodeTier = iota
	TierArchive
)

// String returns the tier name, which is also the upstream path segment.
func (t NodeTier) String() string {
	switch t {
	case TierFull:
		return "full"
	case TierArchive:
		return "archive"
	default:
		return fmt.Sprintf("NodeTier(%d)", int(t))
	}
}

func (t NodeTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *NodeTier) UnmarshalText(b []byte) error {
	tier, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = tier
	return nil
}

// ParseTier parses "full" or "archive".
func ParseTier(s string) (NodeTier, error) {
	switch s {
	case "full":
		return TierFull, nil
	case "archive":
		return TierArchive, nil
	default:
		return TierFull, fmt.Errorf("unknown node tier %q", s)
	}
}

// Tiers lists every tier, in routing preference order.
func Tiers() []NodeTier {
	return []NodeTier{TierFull, TierArchive}
}

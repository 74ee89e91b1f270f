package routing

import (
	"encoding/json"
)

// Reason explains a classification. It is used as a metrics label and in
// debug logs, so the set is small and fixed.
type Reason string

const (
	ReasonNotHistorical   Reason = "not_historical"
	ReasonNoBlockRef      Reason = "no_block_ref"
	ReasonBlockTag        Reason = "block_tag"
	ReasonHeadUnknown     Reason = "head_unknown"
	ReasonAheadOfHead     Reason = "ahead_of_head"
	ReasonWithinThreshold Reason = "within_threshold"
	ReasonBeyondThreshold Reason = "beyond_threshold"
)

// Classification is the outcome of classifying one call.
type Classification struct {
	Tier      NodeTier       `json:"tier"`
	Ref       BlockReference `json:"block"`
	BlocksAgo uint64         `json:"blocksAgo"`
	Threshold uint64         `json:"threshold"`
	Reason    Reason         `json:"reason"`
}

// Classifier decides Full vs Archive for one JSON-RPC call. It holds only
// immutable policy and is safe for concurrent use.
type Classifier struct {
	def      Policy
	perChain map[uint64]Policy
}

// NewClassifier builds a classifier applying def to every chain except those
// listed in perChain.
func NewClassifier(def Policy, perChain map[uint64]Policy) *Classifier {
	if def.Methods == nil {
		def.Methods = DefaultMethodTable()
	}

	overrides := make(map[uint64]Policy, len(perChain))
	for id, p := range perChain {
		if p.Methods == nil {
			p.Methods = def.Methods
		}
		overrides[id] = p
	}

	return &Classifier{def: def, perChain: overrides}
}

// PolicyFor returns the policy in effect for chainID.
func (c *Classifier) PolicyFor(chainID uint64) Policy {
	if p, ok := c.perChain[chainID]; ok {
		return p
	}
	return c.def
}

// Classify returns the tier for method/params against head.
func (c *Classifier) Classify(method string, params []json.RawMessage, head ChainHead) NodeTier {
	return c.Explain(method, params, head).Tier
}

// Explain classifies and reports why. Every path that cannot establish the
// age of the read lands on TierFull.
//
// Parameters:
//   - method: JSON-RPC method name
//   - params: Raw positional params of the call
//   - head: Chain head the call is judged against; head.ChainID selects the policy
//
// Returns:
//   - Classification: Tier plus the block reference, depth, threshold and Reason
//
// Algorithm:
//  1. Methods outside the policy's table stay on full
//  2. Absent or malformed references and block tags stay on full
//  3. A sentinel head, or a block at or past the head, stays on full
//  4. blocksAgo = head - block; strictly more than the threshold goes to archive
func (c *Classifier) Explain(method string, params []json.RawMessage, head ChainHead) Classification {
	policy := c.PolicyFor(head.ChainID)
	out := Classification{Tier: TierFull, Threshold: policy.ArchiveThreshold}

	// Only historical-read methods are ever tiered
	bp, historical := policy.Methods[method]
	if !historical {
		out.Reason = ReasonNotHistorical
		return out
	}

	out.Ref = extractBlockReference(bp, params)
	switch out.Ref.Kind {
	case RefAbsent:
		out.Reason = ReasonNoBlockRef
		return out
	case RefTag:
		out.Reason = ReasonBlockTag
		return out
	}

	// A sentinel head means the real height is unknown; the request fails
	// open to the full tier instead of forcing archive traffic.
	if head.IsSentinel() {
		out.Reason = ReasonHeadUnknown
		return out
	}

	if out.Ref.Number >= head.BlockNumber {
		out.Reason = ReasonAheadOfHead
		return out
	}

	out.BlocksAgo = head.BlockNumber - out.Ref.Number
	if out.BlocksAgo > policy.ArchiveThreshold {
		out.Tier = TierArchive
		out.Reason = ReasonBeyondThreshold
		return out
	}

	out.Reason = ReasonWithinThreshold
	return out
}

// BlockReference extracts the block reference of a call under the policy for
// chainID. ok is false when the method is not a historical read.
func (c *Classifier) BlockReference(chainID uint64, method string, params []json.RawMessage) (BlockReference, bool) {
	bp, ok := c.PolicyFor(chainID).Methods[method]
	if !ok {
		return BlockReference{Kind: RefAbsent}, false
	}
	return extractBlockReference(bp, params), true
}

func extractBlockReference(bp BlockParam, params []json.RawMessage) BlockReference {
	if bp.CallObject && len(params) > 0 {
		if v, ok := callObjectBlockNumber(params[0]); ok {
			return ParseBlockReference(v)
		}
	}
	if bp.Index < 0 || bp.Index >= len(params) {
		return BlockReference{Kind: RefAbsent}
	}
	return ParseBlockReference(params[bp.Index])
}

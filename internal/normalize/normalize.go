// Package normalize rewrites a few hex-encoded JSON-RPC results into forms
// that are easier to read: block heights and nonces as decimal integers,
// balances as wei/ether pairs.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
)

// Kind is the rewrite applied to a method's result.
type Kind string

const (
	// Decimal replaces result with a JSON integer and keeps the original hex
	// in a resultHex sibling.
	Decimal Kind = "decimal"
	// Balance replaces result with {"wei", "ether", "hex"}.
	Balance Kind = "balance"
)

// ParseKind parses a Kind from configuration.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case Decimal:
		return Decimal, nil
	case Balance:
		return Balance, nil
	}
	return "", fmt.Errorf("unknown normalization kind %q", s)
}

// Rules maps a method name to its rewrite.
type Rules map[string]Kind

// DefaultRules returns the methods normalized out of the box.
func DefaultRules() Rules {
	return Rules{
		"eth_blockNumber":         Decimal,
		"eth_getBalance":          Balance,
		"eth_getTransactionCount": Decimal,
	}
}

// BalanceResult is the rewritten eth_getBalance result.
type BalanceResult struct {
	Wei   string `json:"wei"`
	Ether string `json:"ether"`
	Hex   string `json:"hex"`
}

// Normalizer applies Rules to upstream response bodies.
type Normalizer struct {
	rules Rules
}

func New(rules Rules) *Normalizer {
	if rules == nil {
		rules = DefaultRules()
	}
	own := make(Rules, len(rules))
	for m, k := range rules {
		own[m] = k
	}
	return &Normalizer{rules: own}
}

// Methods returns the names of every method with a rewrite rule, sorted.
func (n *Normalizer) Methods() []string {
	out := make([]string, 0, len(n.rules))
	for m := range n.rules {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Applies reports whether method has a rewrite rule.
func (n *Normalizer) Applies(method string) bool {
	_, ok := n.rules[method]
	return ok
}

// Normalize returns body with its result rewritten for method. Whenever the
// rewrite does not apply (unknown method, not an object, no string result,
// no 0x prefix, bad hex) body is returned unchanged.
func (n *Normalizer) Normalize(method string, body []byte) []byte {
	kind, ok := n.rules[method]
	if !ok {
		return body
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return body
	}

	rawResult, ok := envelope["result"]
	if !ok {
		return body
	}
	var hexStr string
	if err := json.Unmarshal(rawResult, &hexStr); err != nil {
		return body
	}
	if !strings.HasPrefix(hexStr, "0x") {
		return body
	}

	value, err := rpc.ParseQuantityBig(hexStr)
	if err != nil {
		return body
	}

	switch kind {
	case Decimal:
		envelope["result"] = json.RawMessage(value.String())
		envelope["resultHex"] = rawResult
	case Balance:
		b, err := json.Marshal(BalanceResult{
			Wei:   value.String(),
			Ether: rpc.FormatEther(value),
			Hex:   hexStr,
		})
		if err != nil {
			return body
		}
		envelope["result"] = b
	default:
		return body
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelope); err != nil {
		return body
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

package routing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
)

// RefKind tags a BlockReference.
type RefKind int

const (
	// RefAbsent covers a missing parameter, a non-string value and any string
	// that is neither a known tag nor a well-formed block number.
	RefAbsent RefKind = iota
	RefTag
	RefNumber
)

func (k RefKind) String() string {
	switch k {
	case RefTag:
		return "tag"
	case RefNumber:
		return "number"
	default:
		return "absent"
	}
}

func (k RefKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *RefKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "absent":
		*k = RefAbsent
	case "tag":
		*k = RefTag
	case "number":
		*k = RefNumber
	default:
		return fmt.Errorf("unknown block reference kind %q", b)
	}
	return nil
}

// Block tags a call can carry instead of a number.
const (
	TagLatest   = "latest"
	TagPending  = "pending"
	TagEarliest = "earliest"
)

// BlockReference says which point in chain history a read observes.
type BlockReference struct {
	Kind   RefKind `json:"kind"`
	Tag    string  `json:"tag,omitempty"`
	Number uint64  `json:"number,omitempty"`
}

func (r BlockReference) String() string {
	switch r.Kind {
	case RefTag:
		return r.Tag
	case RefNumber:
		return fmt.Sprintf("%d", r.Number)
	default:
		return "absent"
	}
}

// ParseBlockReference interprets one raw JSON parameter. It never fails:
// anything it cannot read is RefAbsent.
//
// Accepted shapes:
//   - "latest", "pending", "earliest" (case-sensitive)
//   - "0x"-prefixed hex with at least one digit, fitting in uint64
//   - plain decimal digits, fitting in uint64
func ParseBlockReference(raw json.RawMessage) BlockReference {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return BlockReference{Kind: RefAbsent}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return BlockReference{Kind: RefAbsent}
	}
	return parseBlockString(s)
}

func parseBlockString(s string) BlockReference {
	switch s {
	case TagLatest, TagPending, TagEarliest:
		return BlockReference{Kind: RefTag, Tag: s}
	}

	if len(s) >= 2 && s[:2] == "0x" {
		n, err := rpc.ParseQuantity(s)
		if err != nil {
			return BlockReference{Kind: RefAbsent}
		}
		return BlockReference{Kind: RefNumber, Number: n}
	}

	if isDecimal(s) {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return BlockReference{Kind: RefAbsent}
		}
		return BlockReference{Kind: RefNumber, Number: n}
	}

	return BlockReference{Kind: RefAbsent}
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// callObjectBlockNumber returns the blockNumber member of an eth_call
// transaction object, if params[0] is an object that carries a set one.
// Missing, null, false, "" and numeric zero leave the positional parameter
// in charge.
func callObjectBlockNumber(raw json.RawMessage) (json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}

	v, ok := obj["blockNumber"]
	if !ok {
		return nil, false
	}
	lit := string(bytes.TrimSpace(v))
	switch lit {
	case "", "null", `""`, "false":
		return nil, false
	}
	// Every JSON spelling of zero (0, -0, 0.0, 0e0) counts as unset.
	if f, err := strconv.ParseFloat(lit, 64); err == nil && f == 0 {
		return nil, false
	}
	return v, true
}

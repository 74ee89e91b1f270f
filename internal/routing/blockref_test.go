package routing

import (
	"encoding/json"
	"testing"
)

func TestParseBlockReference(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want BlockReference
	}{
		{"latest", `"latest"`, BlockReference{Kind: RefTag, Tag: TagLatest}},
		{"pending", `"pending"`, BlockReference{Kind: RefTag, Tag: TagPending}},
		{"earliest", `"earliest"`, BlockReference{Kind: RefTag, Tag: TagEarliest}},
		{"tags are case sensitive", `"Latest"`, BlockReference{Kind: RefAbsent}},
		{"hex", `"0x64"`, BlockReference{Kind: RefNumber, Number: 100}},
		{"hex upper digits", `"0xC8"`, BlockReference{Kind: RefNumber, Number: 200}},
		{"hex zero", `"0x0"`, BlockReference{Kind: RefNumber, Number: 0}},
		{"decimal", `"1000"`, BlockReference{Kind: RefNumber, Number: 1000}},
		{"empty hex", `"0x"`, BlockReference{Kind: RefAbsent}},
		{"malformed hex", `"0xzz"`, BlockReference{Kind: RefAbsent}},
		{"hex overflow", `"0x10000000000000000"`, BlockReference{Kind: RefAbsent}},
		{"decimal overflow", `"18446744073709551616"`, BlockReference{Kind: RefAbsent}},
		{"negative", `"-1"`, BlockReference{Kind: RefAbsent}},
		{"empty string", `""`, BlockReference{Kind: RefAbsent}},
		{"safe tag unknown", `"safe"`, BlockReference{Kind: RefAbsent}},
		{"json number", `100`, BlockReference{Kind: RefAbsent}},
		{"null", `null`, BlockReference{Kind: RefAbsent}},
		{"object", `{"blockHash":"0xabc"}`, BlockReference{Kind: RefAbsent}},
		{"array", `["0x1"]`, BlockReference{Kind: RefAbsent}},
		{"nil", ``, BlockReference{Kind: RefAbsent}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseBlockReference(json.RawMessage(tt.raw))
			if got != tt.want {
				t.Errorf("ParseBlockReference(%s) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCallObjectBlockNumber(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"present", `{"to":"0x1","blockNumber":"0x10"}`, `"0x10"`, true},
		{"missing", `{"to":"0x1"}`, "", false},
		{"null", `{"blockNumber":null}`, "", false},
		{"empty string", `{"blockNumber":""}`, "", false},
		{"zero", `{"blockNumber":0}`, "", false},
		{"false", `{"blockNumber":false}`, "", false},
		{"not an object", `"0x10"`, "", false},
		{"broken json", `{"blockNumber":`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := callObjectBlockNumber(json.RawMessage(tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && string(got) != tt.want {
				t.Errorf("value = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNodeTierText(t *testing.T) {
	for _, tier := range Tiers() {
		b, err := tier.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		var back NodeTier
		if err := back.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", b, err)
		}
		if back != tier {
			t.Errorf("round trip %s -> %s", tier, back)
		}
	}

	if _, err := ParseTier("light"); err == nil {
		t.Error("ParseTier accepted an unknown tier")
	}
}

package output

import (
	"fmt"
	"io"
	"time"

	"github.com/rodaine/table"

	"github.com/dmagro/eth-rpc-tier-router/internal/stats"
)

// HeadsReport is the result of probing the head of every configured chain.
type HeadsReport struct {
	Timestamp time.Time    `json:"timestamp"`
	Samples   int          `json:"samples"`
	Chains    []ChainHeads `json:"chains"`
}

// ChainHeads holds both tiers' probe summaries for one chain.
type ChainHeads struct {
	ChainID  uint64        `json:"chainId"`
	Name     string        `json:"name"`
	Full     stats.Summary `json:"full"`
	Archive  stats.Summary `json:"archive"`
	Drift    stats.Drift   `json:"drift"`
	Endpoint string        `json:"endpoint,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// RenderHeadsTerminal prints one row per chain and tier, followed by the
// tier drift of every chain.
func RenderHeadsTerminal(w io.Writer, r *HeadsReport) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s  %s\n", bold("Chain heads"), dim(fmt.Sprintf("%s, %d sample(s) per tier", r.Timestamp.Format("2006-01-02 15:04:05 MST"), r.Samples)))
	fmt.Fprintln(w)

	tbl := table.New("Chain", "Tier", "Status", "Head", "p50", "p95", "Max", "Success").WithWriter(w)
	tbl.WithHeaderFormatter(headerFmt)

	for _, ch := range r.Chains {
		label := fmt.Sprintf("%s (%d)", ch.Name, ch.ChainID)
		if ch.Error != "" {
			tbl.AddRow(label, "-", formatStatus(stats.StatusDown), "-", "-", "-", "-", red(ch.Error))
			continue
		}
		for _, tier := range []struct {
			name string
			s    stats.Summary
		}{{"full", ch.Full}, {"archive", ch.Archive}} {
			tbl.AddRow(
				label,
				tier.name,
				formatStatus(tier.s.Status),
				formatBlock(tier.s.HighestBlock),
				formatDuration(tier.s.Latency.P50),
				formatDuration(tier.s.Latency.P95),
				formatDuration(tier.s.Latency.Max),
				formatSuccessRate(tier.s.SuccessRate),
			)
		}
	}
	tbl.Print()
	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Archive drift"))
	for _, ch := range r.Chains {
		fmt.Fprintf(w, "  %s %-12s %s\n", cyan("•"), ch.Name, formatDrift(ch.Drift))
	}

	var failures []string
	for _, ch := range r.Chains {
		for _, s := range []stats.Summary{ch.Full, ch.Archive} {
			if s.LastError != "" {
				failures = append(failures, fmt.Sprintf("%s: %s", ch.Name, s.LastError))
			}
		}
	}
	if len(failures) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, bold("Errors"))
		for _, f := range failures {
			fmt.Fprintf(w, "  %s %s\n", red("✗"), f)
		}
	}
	fmt.Fprintln(w)
}

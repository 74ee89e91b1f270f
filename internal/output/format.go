// Package output renders CLI results for humans (colored tables) and for
// machines (indented JSON).
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/dmagro/eth-rpc-tier-router/internal/rpc"
	"github.com/dmagro/eth-rpc-tier-router/internal/stats"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()

	headerFmt = color.New(color.FgCyan, color.Underline).SprintfFunc()
)

// RenderJSON writes v as indented JSON.
func RenderJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func formatStatus(s stats.Status) string {
	switch s {
	case stats.StatusUp:
		return green(string(s))
	case stats.StatusSlow, stats.StatusDegraded:
		return yellow(string(s))
	default:
		return red(string(s))
	}
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return dim("-")
	}
	ms := d.Milliseconds()
	str := fmt.Sprintf("%dms", ms)
	switch {
	case ms < 100:
		return green(str)
	case ms < 300:
		return yellow(str)
	default:
		return red(str)
	}
}

func formatSuccessRate(rate float64) string {
	str := fmt.Sprintf("%.0f%%", rate)
	switch {
	case rate >= 100:
		return green(str)
	case rate >= 80:
		return yellow(str)
	default:
		return red(str)
	}
}

func formatBlock(n uint64) string {
	if n == 0 {
		return dim("-")
	}
	return rpc.FormatNumber(n)
}

func formatDrift(d stats.Drift) string {
	switch {
	case d.FullHead == 0 || d.ArchiveHead == 0:
		return dim("n/a")
	case d.Blocks == 0:
		return green("in sync")
	case d.Consistent:
		return yellow(fmt.Sprintf("%+d", -d.Blocks))
	default:
		return red(fmt.Sprintf("%+d", -d.Blocks))
	}
}

// DisableColors turns off color output (for non-TTY or JSON mode)
func DisableColors() {
	color.NoColor = true
}

// IsTerminal returns true if stdout is a terminal
func IsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

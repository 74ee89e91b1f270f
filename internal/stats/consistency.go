package stats

// AcceptableDrift is how many blocks the archive tier may trail the full
// tier before the pair is flagged (about 24s on mainnet).
const AcceptableDrift = 2

// Drift compares the heads reported by the two tiers of one chain.
type Drift struct {
	FullHead    uint64 `json:"fullHead"`
	ArchiveHead uint64 `json:"archiveHead"`
	// Blocks is full minus archive; negative when archive is ahead.
	Blocks     int64 `json:"blocks"`
	Consistent bool  `json:"consistent"`
}

// CompareHeads computes the drift between tiers. A zero head means the tier
// could not be read and the pair is never consistent.
func CompareHeads(full, archive uint64) Drift {
	d := Drift{FullHead: full, ArchiveHead: archive}
	if full == 0 || archive == 0 {
		return d
	}

	d.Blocks = int64(full) - int64(archive)
	abs := d.Blocks
	if abs < 0 {
		abs = -abs
	}
	d.Consistent = abs <= AcceptableDrift
	return d
}

package executor

// QueueEntry is the external seed record the core reads (spec.md §3).
// The core never scores or reorders entries; it reads bytes/footprint and
// updates the per-edge fuzzed bitmap and the was_fuzzed/trim_done/
// passed_det flags.
type QueueEntry struct {
	ID uint64

	Bytes []byte

	// Footprint is a compressed "mini" coverage map: one bit per edge,
	// presence only (spec §3 CoverageMap "mini variant").
	Footprint []byte

	// FuzzedBranches is the per-entry, per-edge bitmap recording which
	// rare edges have already been selected as this seed's target
	// (spec §4.4 "Record the chosen edge in the seed's fuzzed-branches
	// bitmap before use").
	FuzzedBranches []byte

	Favored    bool
	WasFuzzed  bool
	TrimDone   bool
	PassedDet  bool
}

// Queue is the external seed corpus collaborator (spec.md §6): the core
// iterates random entries, reads/writes per-entry flags, and hands new
// buffers discovered by mutation back for the Queue to persist.
type Queue interface {
	// RandomEntry returns a uniformly random entry, or ok=false if the
	// queue is empty.
	RandomEntry() (entry *QueueEntry, ok bool)

	// Len is the current corpus size; havoc masks splice ops off when
	// Len() <= 1 (spec §4.9).
	Len() int

	// EntryAt returns the entry at idx for splicing against another
	// corpus member.
	EntryAt(idx int) (*QueueEntry, bool)

	// Save persists mutations made to entry's flags/FuzzedBranches
	// in place.
	Save(entry *QueueEntry) error

	// Enqueue is how the Executor wrapper (or fuzzone, on its behalf)
	// adds a newly discovered input. Returns the new entry's ID.
	Enqueue(bytes []byte, footprint []byte) (uint64, error)
}

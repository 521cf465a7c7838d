package schedule

// Ledger is an append-only, size-bounded history of executed jobs.
// Eviction is insertion-order FIFO: when the bound is reached the oldest
// entry is dropped, regardless of how often it was read.
//
// Ledger is not safe for concurrent use; the Scheduler guards it with
// its registry lock.
type Ledger struct {
	entries []ExecutionRecord
	bound   int
}

// DefaultLedgerSize bounds the executed-job history
const DefaultLedgerSize = 100

// NewLedger creates a ledger holding at most bound entries
func NewLedger(bound int) *Ledger {
	if bound <= 0 {
		bound = DefaultLedgerSize
	}
	return &Ledger{
		entries: make([]ExecutionRecord, 0, bound),
		bound:   bound,
	}
}

// Append records an execution, evicting the oldest entry at the bound
func (l *Ledger) Append(rec ExecutionRecord) {
	if len(l.entries) >= l.bound {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, rec)
}

// Recent returns up to limit entries, most recent first
func (l *Ledger) Recent(limit int) []ExecutionRecord {
	if limit <= 0 || limit > len(l.entries) {
		limit = len(l.entries)
	}
	out := make([]ExecutionRecord, 0, limit)
	for i := len(l.entries) - 1; i >= len(l.entries)-limit; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Len returns the number of entries currently held
func (l *Ledger) Len() int {
	return len(l.entries)
}

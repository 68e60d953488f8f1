package helio

// loopStats counts loop activity. All fields except the wakeup counter are
// written by the loop thread only; Stats() snapshots them for readers that
// synchronize externally (or tolerate slightly stale values).
type loopStats struct {
	loopCycles        uint64
	numStalls         uint64
	completionFetches uint64
	numTaskRuns       uint64
	taskInterrupts    uint64
}

// Stats is a snapshot of proactor counters.
type Stats struct {
	// LoopCycles is the number of MainLoop iterations.
	LoopCycles uint64
	// NumStalls counts iterations that committed to a blocking wait.
	NumStalls uint64
	// CompletionFetches counts backend waits that returned completions, plus
	// every zero-timeout re-fetch after a full batch (even an empty one).
	CompletionFetches uint64
	// NumTaskRuns counts inbox tasks executed.
	NumTaskRuns uint64
	// TaskInterrupts counts inbox sweeps cut short by the task time budget.
	TaskInterrupts uint64
	// Wakeups counts wake-fd fires, by producers and by Wake.
	Wakeups uint64
}

// Stats returns a snapshot of the proactor's counters.
func (p *Proactor) Stats() Stats {
	return Stats{
		LoopCycles:        p.stats.loopCycles,
		NumStalls:         p.stats.numStalls,
		CompletionFetches: p.stats.completionFetches,
		NumTaskRuns:       p.stats.numTaskRuns,
		TaskInterrupts:    p.stats.taskInterrupts,
		Wakeups:           p.tqWakeups.Load(),
	}
}

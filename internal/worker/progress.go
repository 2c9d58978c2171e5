package worker

import (
	"sync"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Progress tracks the counters of one in-flight dispatch. The dispatch
// goroutine is the sole writer; any number of readers may call Snapshot
// concurrently. Counters advance in whole-chunk increments, so a snapshot
// never exposes a torn partial-chunk state.
type Progress struct {
	mu   sync.Mutex
	snap domain.BatchProgress
}

func newProgress(totalEmails, totalBatches int) *Progress {
	return &Progress{snap: domain.BatchProgress{
		TotalEmails:  totalEmails,
		TotalBatches: totalBatches,
	}}
}

// advance records the completion of one chunk.
func (p *Progress) advance(processed, succeeded, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.ProcessedEmails += processed
	p.snap.SuccessCount += succeeded
	p.snap.ErrorCount += failed
	p.snap.CurrentBatch++
}

// complete marks the dispatch finished. After this the snapshot is final
// and the Progress is eligible for disposal by its owner.
func (p *Progress) complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.IsComplete = true
}

// Snapshot returns a consistent copy of the current counters.
func (p *Progress) Snapshot() domain.BatchProgress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

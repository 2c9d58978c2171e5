package domain

// BatchProgress is a point-in-time snapshot of one in-flight dispatch.
// It is ephemeral: owned by the dispatch that produced it, observable by
// concurrent readers, and discarded once the dispatch completes.
//
// Counters advance in whole-chunk increments only, so a reader never sees
// a torn partial-chunk state.
type BatchProgress struct {
	TotalEmails     int  `json:"total_emails"`
	ProcessedEmails int  `json:"processed_emails"`
	CurrentBatch    int  `json:"current_batch"`
	TotalBatches    int  `json:"total_batches"`
	SuccessCount    int  `json:"success_count"`
	ErrorCount      int  `json:"error_count"`
	IsComplete      bool `json:"is_complete"`
}

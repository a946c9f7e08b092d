package constants

// ItemStatus is the terminal status of one image inside a batch.
type ItemStatus string

// Stable values (exported over the wire and stored in exports).
const (
	ItemStatusSuccess ItemStatus = "success"
	ItemStatusFailed  ItemStatus = "failed"
	ItemStatusTimeout ItemStatus = "timeout"
)

// PipelineState tracks a single recognition run.
type PipelineState string

const (
	StatePending     PipelineState = "pending"
	StateDetecting   PipelineState = "detecting"
	StateClassifying PipelineState = "classifying"
	StateExtracting  PipelineState = "extracting"
	StateAssembled   PipelineState = "assembled" // terminal
	StateFailed      PipelineState = "failed"    // terminal
	StateTimeout     PipelineState = "timeout"   // terminal
)

// Terminal reports whether no further transition is possible from s.
func (s PipelineState) Terminal() bool {
	return s == StateAssembled || s == StateFailed || s == StateTimeout
}

// BatchState is the lifecycle of a whole batch as seen by status queries.
type BatchState string

const (
	BatchStateRunning   BatchState = "running"
	BatchStateCompleted BatchState = "completed"
	BatchStateCancelled BatchState = "cancelled"
	BatchStateExpired   BatchState = "expired" // overall deadline hit
)

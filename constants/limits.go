package constants

// Bounds on the number of images recognized concurrently in one batch.
// Requested parallel counts are clamped into [MinParallelCount, MaxParallelCount].
const (
	MinParallelCount = 1
	MaxParallelCount = 10
)

package wsqueue

// DequeConfig holds the options fixed at a Deque's creation, mirroring the
// teacher's Config/DefaultConfig builder pattern.
type DequeConfig struct {
	// MaxCapacityOrNegative bounds growth to the next power of two at or
	// above this value, but never below the 64-slot minimum block size.
	// Negative (the default) leaves the deque
	// unbounded, limited only by address space.
	MaxCapacityOrNegative int64
}

// DefaultDequeConfig returns an unbounded deque configuration.
func DefaultDequeConfig() DequeConfig {
	return DequeConfig{MaxCapacityOrNegative: -1}
}

// PoolRecorder receives Pool lifecycle events for observability.
// Implementations must be safe for concurrent use by every worker
// goroutine touching the pool; wsqueue/metrics provides a
// prometheus-backed one.
type PoolRecorder interface {
	Pushed(thread int32)
	PoppedSelf(thread int32)
	PoppedStolen(thread, victim int32)
	StealMiss(thread, victim int32)
	ScanRestarted(thread int32)
	QueueDepth(thread int32, depth int64)
}

type noopRecorder struct{}

func (noopRecorder) Pushed(int32)              {}
func (noopRecorder) PoppedSelf(int32)          {}
func (noopRecorder) PoppedStolen(int32, int32) {}
func (noopRecorder) StealMiss(int32, int32)    {}
func (noopRecorder) ScanRestarted(int32)       {}
func (noopRecorder) QueueDepth(int32, int64)   {}

// PoolConfig holds the options fixed at a Pool's creation.
type PoolConfig struct {
	// ThreadCapacity is the maximum number of simultaneously live workers
	// the pool's thread table can hold.
	ThreadCapacity int32
	// Deque is applied to every per-worker deque the pool creates.
	Deque DequeConfig
	// Recorder, if non-nil, is notified of push/pop/steal/scan events.
	// Defaults to a no-op recorder.
	Recorder PoolRecorder
}

// DefaultPoolConfig returns a pool configuration with room for 64 workers
// and unbounded per-worker deques.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ThreadCapacity: 64,
		Deque:          DefaultDequeConfig(),
	}
}

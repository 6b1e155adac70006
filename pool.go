package wsqueue

import "sync/atomic"

// poolThread is one Pool entry: its Deque, the hint cache pointing at its
// last successful steal victim, and the bookkeeping the Pool needs to
// support dynamic membership (tombstone) and the owner fast-path
// (pushed).
type poolThread[T any] struct {
	deque *Deque[T]

	// stealingFrom caches the last victim this thread stole from
	// successfully; the next scan starts there instead of at 0, so a
	// thread that keeps finding work at the same neighbor doesn't re-scan
	// the whole table every time.
	stealingFrom atomic.Int32

	// pushed is read and written only by the goroutine that owns this
	// entry (never concurrently), exactly like LC_Pool_Thread.pushed in
	// the source this is ported from — a plain bool is correct here, not
	// an oversight.
	pushed bool

	// tombstone marks this entry as logically removed but retained for
	// reuse: a future Add may flip it back to false and inherit this
	// entry's Deque, including its still-live top/bot counters.
	tombstone atomic.Bool
}

// Pool is a fixed-capacity table of per-worker deques with dynamic
// membership: workers join via Add and leave via Remove, and any worker
// can steal from any other via Pop/PopOthers. The stealing discipline
// preserves linearizability of pool emptiness: a PopOthers that returns
// StateEmpty is guaranteed to have observed, at some point during the
// call, that every other worker's deque was simultaneously empty.
type Pool[T any] struct {
	threads         []poolThread[T]
	threadsCapacity int32
	threadsCount    atomic.Int32
	dequeConfig     DequeConfig
	recorder        PoolRecorder
}

// NewPool creates a Pool with no live workers; config.ThreadCapacity slots
// are preallocated up front so that Add never allocates.
func NewPool[T any](config PoolConfig) *Pool[T] {
	if config.ThreadCapacity <= 0 {
		config.ThreadCapacity = 1
	}
	recorder := config.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}

	return &Pool[T]{
		threads:         make([]poolThread[T], config.ThreadCapacity),
		threadsCapacity: config.ThreadCapacity,
		dequeConfig:     config.Deque,
		recorder:        recorder,
	}
}

// Add registers a new worker, returning its id and true, or (0, false)
// when the table is at capacity with no tombstoned entry to reuse (the
// spec's NONE outcome). It first looks for a tombstoned slot to reclaim;
// only if none exists does it grow threadsCount.
func (p *Pool[T]) Add() (int32, bool) {
	threadsCount := p.threadsCount.Load()
	for i := int32(0); i < threadsCount; i++ {
		t := &p.threads[i]
		if t.tombstone.Load() && t.tombstone.CompareAndSwap(true, false) {
			return i, true
		}
	}

	for {
		threadsCount = p.threadsCount.Load()
		if threadsCount == p.threadsCapacity {
			return 0, false
		}
		if p.threadsCount.CompareAndSwap(threadsCount, threadsCount+1) {
			id := threadsCount
			t := &p.threads[id]
			t.deque = NewDeque[T](p.dequeConfig.MaxCapacityOrNegative)
			t.stealingFrom.Store(id)
			t.pushed = false
			return id, true
		}
	}
}

// Remove marks id as tombstoned. Its Deque is not torn down and may be
// reused by a future Add; any still-queued items on it remain reachable
// only through that reuse (or a drain via PopOthersFrom) until then.
func (p *Pool[T]) Remove(id int32) {
	p.threads[id].tombstone.Store(true)
}

// Push pushes item onto id's own deque and marks the fast-path flag so
// the next Pop on this id tries PopSelf before stealing.
func (p *Pool[T]) Push(id int32, item T) State {
	t := &p.threads[id]
	t.pushed = true
	state := t.deque.Push(item)
	p.recorder.Pushed(id)
	p.recorder.QueueDepth(id, t.deque.Count())
	return state
}

// PopSelf pops from the bottom of id's own deque, bypassing the stealing
// scan entirely.
func (p *Pool[T]) PopSelf(id int32) (T, State) {
	item, state := p.threads[id].deque.PopBack()
	if state == StateOK {
		p.recorder.PoppedSelf(id)
		p.recorder.QueueDepth(id, p.threads[id].deque.Count())
	}
	return item, state
}

// Pop tries id's own deque first (the common, cheap case) and only falls
// through to PopOthers on a miss, short-circuiting the stealing scan
// whenever the caller's own work is non-empty.
func (p *Pool[T]) Pop(id int32) (T, State) {
	t := &p.threads[id]
	if t.pushed {
		if item, state := p.PopSelf(id); state == StateOK {
			return item, state
		}
		t.pushed = false
	}
	return p.PopOthers(id)
}

// PopOthers scans every other live worker's deque looking for work,
// starting from id's cached hint and continuing from wherever it
// succeeds. It returns StateEmpty only once it has linearizably confirmed
// the rest of the pool was empty: a two-round scan records, for every
// victim that appeared empty in round 0, a witness combining that
// victim's bot and its bot_ticket; if the same witness doesn't match in
// round 1, that victim did *something* (push or pop-back) between
// rounds, so the round-0 emptiness observation is no longer valid and the
// whole scan restarts. A change in threads count observed anywhere during
// a revolution also restarts the scan.
func (p *Pool[T]) PopOthers(id int32) (T, State) {
	self := &p.threads[id]
	victim, state := popOthersFrom(p, self.stealingFrom.Load(), id, true)
	if state != StateOK {
		var zero T
		return zero, state
	}
	self.stealingFrom.Store(victim.from)
	p.recorder.PoppedStolen(id, victim.from)
	p.recorder.QueueDepth(victim.from, p.threads[victim.from].deque.Count())
	return victim.item, StateOK
}

// PopOthersFrom scans the pool for work starting at base without
// filtering out any particular id, for callers outside the pool's normal
// worker set (e.g. a drain-on-shutdown driver). It returns the id it
// stole from and StateOK, or StateEmpty.
func (p *Pool[T]) PopOthersFrom(base int32) (int32, T, State) {
	victim, state := popOthersFrom(p, base, -1, false)
	if state != StateOK {
		var zero T
		return -1, zero, state
	}
	return victim.from, victim.item, StateOK
}

type stealResult[T any] struct {
	from int32
	item T
}

// popOthersFrom is the shared two-round witnessed scan behind PopOthers
// and PopOthersFrom. filterSelf controls whether id is skipped as a
// victim (PopOthers: yes; PopOthersFrom: no, and id is ignored entirely).
func popOthersFrom[T any](p *Pool[T], base, id int32, filterSelf bool) (stealResult[T], State) {
	witness := make([]uint64, p.threadsCapacity)

	threadsCount := p.threadsCount.Load()
	if threadsCount == 0 {
		var zero stealResult[T]
		return zero, StateEmpty
	}

	start := base
	if !filterSelf {
		start = base % threadsCount
	}

	for round := 0; round < 2; round++ {
		// steal is advanced before each visit, so the first victim is start.
		steal := start - 1
		for k := int32(0); k < threadsCount; k++ {
			steal++
			if steal >= threadsCount {
				steal = 0
			}

			if filterSelf && steal == id {
				continue
			}

			victim := &p.threads[steal]
			item, res := victim.deque.PopResult()
			if res.State == StateOK {
				return stealResult[T]{from: steal, item: item}, StateOK
			}

			ticket := res.Bot + victim.deque.botTicket.Load()
			if round == 0 {
				witness[steal] = ticket
			} else if witness[steal] != ticket {
				if id >= 0 {
					p.recorder.ScanRestarted(id)
				}
				round = -1
				break
			}
		}

		newThreadsCount := p.threadsCount.Load()
		if threadsCount != newThreadsCount {
			threadsCount = newThreadsCount
			if id >= 0 {
				p.recorder.ScanRestarted(id)
			}
			round = -1
		}
	}

	if id >= 0 {
		p.recorder.StealMiss(id, start)
	}
	var zero stealResult[T]
	return zero, StateEmpty
}

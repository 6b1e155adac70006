package wsqueue

import "sync/atomic"

// cacheLinePad is sized to separate the hot fields of a Deque onto their
// own cache lines, the same way rutvijjoshi26-parallel-compressor-go's
// WSDeque separates top from bottom: padding between atomics that are
// written by different goroutines avoids false sharing under contention.
const cacheLinePad = 64

// Deque is a lock-free, single-owner/multiple-thief work-stealing deque in
// the Chase-Lev tradition. The owner pushes and pops from the bottom; any
// number of thieves concurrently pop from the top. Growth never blocks a
// thief, and a thief never blocks the owner or another thief beyond a
// single CAS retry.
//
// A Deque must not be copied after first use.
type Deque[T any] struct {
	top atomic.Uint64
	_   [cacheLinePad]byte

	bot       atomic.Uint64
	botTicket atomic.Uint64
	_         [cacheLinePad]byte

	block atomic.Pointer[block[T]]

	maxCapacityLog2 uint32
	owner           ownerGuard
}

// NewDeque creates an empty Deque. maxCapacityOrNegative bounds growth to
// the next power of two at or above the given value, but never below the
// 64-slot minimum block size; a negative value
// (the common case) leaves the deque unbounded, limited only by address
// space.
func NewDeque[T any](maxCapacityOrNegative int64) *Deque[T] {
	return &Deque[T]{maxCapacityLog2: capacityLog2(maxCapacityOrNegative)}
}

func (d *Deque[T]) maxCapacity() int64 {
	return maxCapacityFromLog2(d.maxCapacityLog2)
}

// Capacity returns the current block's size, 0 if nothing has been pushed
// yet. It is a relaxed, racy snapshot intended for observers, not for
// synchronization.
func (d *Deque[T]) Capacity() int64 {
	return d.block.Load().capacity()
}

// Count returns max(0, bot-top) as a signed quantity — a racy snapshot of
// the number of items currently reachable from the bottom, safe to call
// from any goroutine.
func (d *Deque[T]) Count() int64 {
	t := d.top.Load()
	b := d.bot.Load()
	diff := int64(b - t)
	if diff < 0 {
		return 0
	}
	return diff
}

// Reserve grows the deque's backing block to at least toSize slots if it
// isn't already that large and doing so would not exceed the configured
// maximum capacity. It is owner-only, like every other growth-triggering
// operation.
func (d *Deque[T]) Reserve(toSize int64) {
	defer d.owner.enter()()
	reserve(d, toSize)
}

// Push appends item to the bottom of the deque. Owner-only. Returns
// StateFull if growth was required but would exceed the configured
// maximum capacity; StateOK otherwise.
func (d *Deque[T]) Push(item T) State {
	return d.PushResult(item).State
}

// PushResult is Push, additionally reporting the bot/top values observed
// before the push took effect.
func (d *Deque[T]) PushResult(item T) Result[T] {
	defer d.owner.enter()()

	b := d.bot.Load()
	t := d.top.Load()
	a := d.block.Load()

	if a == nil || int64(b-t) > int64(a.mask) {
		newA := reserve(d, int64(b-t)+1)
		if newA == a {
			return Result[T]{Top: t, Bot: b, State: StateFull}
		}
		a = newA
	}

	*a.slot(b) = item

	// Go's memory model treats sync/atomic operations as sequentially
	// consistent, which is strictly stronger than the release fence the
	// spec asks for here — a plain Store already guarantees a thief that
	// observes the new bot also observes the write into the slot.
	d.bot.Store(b + 1)
	return Result[T]{Top: t, Bot: b, State: StateOK}
}

// PopBack removes and returns the item at the bottom of the deque.
// Owner-only. Returns StateEmpty if the deque was empty at the observed
// linearization point.
func (d *Deque[T]) PopBack() (T, State) {
	item, res := d.PopBackResult()
	return item, res.State
}

// PopBackResult is PopBack, additionally reporting the top it observed
// and the bot it decremented to (one below bot's value before the call).
// The Pool's witness protocol relies
// on botTicket bumping on *every* call, including ones that find the
// queue empty, which is why the ticket increment below happens before the
// empty/non-empty branch is resolved.
func (d *Deque[T]) PopBackResult() (T, Result[T]) {
	defer d.owner.enter()()

	var zero T

	b := d.bot.Load() - 1
	d.bot.Store(b)
	d.botTicket.Add(1)
	t := d.top.Load()

	res := Result[T]{Top: t, Bot: b, State: StateOK}

	diff := int64(t) - int64(b)
	switch {
	case diff > 0:
		// Empty: nothing was ever here, or the last item was already
		// stolen. Undo the speculative decrement.
		d.bot.Store(b + 1)
		res.State = StateEmpty
		return zero, res

	case diff == 0:
		// Exactly one item left. Race the CAS on top against any thief
		// also trying to take it.
		if !d.top.CompareAndSwap(t, t+1) {
			d.bot.Store(b + 1)
			res.State = StateEmpty
			return zero, res
		}
		d.bot.Store(b + 1)
	}

	// The slot is now ours alone: either diff < 0 (at least two items,
	// thieves can't reach this one), or we just won the top CAS above. No
	// reader can be racing to overwrite it, so a plain read is safe.
	item := *d.block.Load().slot(b)
	return item, res
}

// Pop removes and returns the item at the top of the deque. Thief-callable
// from any goroutine, including the owner's own. Retries internally on a
// lost race; only returns StateOK or StateEmpty.
func (d *Deque[T]) Pop() (T, State) {
	item, res := d.PopResult()
	return item, res.State
}

// PopResult is Pop, additionally reporting the bot/top values observed
// during the attempt that finally settled (OK or EMPTY). Used internally
// by the Pool's steal scan, which needs a call that never surfaces
// StateFailedRace: a stealing scan must only ever see OK or EMPTY from a
// victim it reaches into.
func (d *Deque[T]) PopResult() (T, Result[T]) {
	for {
		item, res := d.PopWeakResult()
		if res.State != StateFailedRace {
			return item, res
		}
	}
}

// PopWeak is Pop without the retry loop: it may return StateFailedRace if
// another thief won the CAS on top first, in which case the caller is
// expected to retry (or give up).
func (d *Deque[T]) PopWeak() (T, State) {
	item, res := d.PopWeakResult()
	return item, res.State
}

// PopWeakResult is PopWeak, additionally reporting the bot/top values
// observed before the attempt.
func (d *Deque[T]) PopWeakResult() (T, Result[T]) {
	var zero T

	t := d.top.Load()
	b := d.bot.Load()
	a := d.block.Load()

	res := Result[T]{Top: t, Bot: b, State: StateEmpty}
	if int64(t-b) >= 0 {
		return zero, res
	}

	item := *a.slot(t)
	if !d.top.CompareAndSwap(t, t+1) {
		res.State = StateFailedRace
		return zero, res
	}

	res.State = StateOK
	return item, res
}

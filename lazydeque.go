package wsqueue

import "sync/atomic"

// LazyDeque is a sibling of Deque with the same push/pop contract but a
// cheaper fast path: the owner caches the last-seen top in a private,
// non-atomic field (estimateTop) and only refreshes it from the real,
// atomically-observed top when the cache suggests the deque might be
// full; thieves cache the last-seen bot in a shared atomic slot
// (estimateBot) and only refresh it from the real bot when the cache
// suggests the deque might be empty. Trade-off: fewer atomics on the fast
// path, a higher false-FULL/false-EMPTY rate under contention — callers
// are expected to retry, exactly as with Deque's StateFull/StateEmpty.
//
// The reference source this module is ported from (lazy_queue.h) does not
// define a pop-back for the lazy variant — its owner-side operations are
// push-only, with pop reserved for thieves. LazyDeque follows that rather
// than inventing one; use Deque directly if the owner also needs to pop
// its own bottom.
type LazyDeque[T any] struct {
	top         atomic.Uint64
	estimateBot atomic.Uint64
	_           [cacheLinePad]byte

	bot         atomic.Uint64
	estimateTop uint64
	_           [cacheLinePad]byte

	block atomic.Pointer[block[T]]

	maxCapacityLog2 uint32
	owner           ownerGuard
}

// NewLazyDeque creates an empty LazyDeque with the same capacity
// semantics as NewDeque.
func NewLazyDeque[T any](maxCapacityOrNegative int64) *LazyDeque[T] {
	return &LazyDeque[T]{maxCapacityLog2: capacityLog2(maxCapacityOrNegative)}
}

func (d *LazyDeque[T]) maxCapacity() int64 {
	return maxCapacityFromLog2(d.maxCapacityLog2)
}

// Capacity returns the current block's size, 0 if nothing has been pushed
// yet.
func (d *LazyDeque[T]) Capacity() int64 {
	return d.block.Load().capacity()
}

// Count returns max(0, bot-top), the same racy snapshot Deque.Count gives.
func (d *LazyDeque[T]) Count() int64 {
	t := d.top.Load()
	b := d.bot.Load()
	diff := int64(b - t)
	if diff < 0 {
		return 0
	}
	return diff
}

// Reserve grows the deque to at least toSize slots, subject to the
// configured maximum capacity.
func (d *LazyDeque[T]) Reserve(toSize int64) {
	defer d.owner.enter()()
	lazyReserve(d, toSize)
}

// lazyReserve mirrors reserve for LazyDeque, since the two types' block
// fields aren't unifiable without a shared interface that would cost more
// than it saves for two call sites.
func lazyReserve[T any](d *LazyDeque[T], toSize int64) *block[T] {
	old := d.block.Load()
	oldCap := old.capacity()

	if oldCap >= toSize || toSize > d.maxCapacity() {
		return old
	}

	next := newBlock[T](toSize)
	next.next = old

	if old != nil {
		top := d.top.Load()
		bot := d.bot.Load()
		for i := top; int64(i-bot) < 0; i++ {
			*next.slot(i) = *old.slot(i)
		}
	}

	d.block.Store(next)
	return next
}

// Push appends item to the bottom of the deque. Owner-only, single
// logical writer at a time (the lazy variant does not defend against
// concurrent owners any more than Deque does).
func (d *LazyDeque[T]) Push(item T) State {
	return d.PushResult(item).State
}

// PushResult is Push, additionally reporting the bot and the owner's
// cached top at the time of the call.
func (d *LazyDeque[T]) PushResult(item T) Result[T] {
	defer d.owner.enter()()

	a := d.block.Load()
	b := d.bot.Load()
	t := d.estimateTop

	if a == nil || int64(b-t) > int64(a.mask) {
		t = d.top.Load()
		d.estimateTop = t
		if a == nil || int64(b-t) > int64(a.mask) {
			newA := lazyReserve(d, int64(b-t)+1)
			if newA == a {
				return Result[T]{Top: t, Bot: b, State: StateFull}
			}
			a = newA
		}
	}

	*a.slot(b) = item
	d.bot.Store(b + 1)
	return Result[T]{Top: t, Bot: b, State: StateOK}
}

// Pop removes and returns the item at the top of the deque. Thief-callable
// from any goroutine. Retries internally on a lost race.
func (d *LazyDeque[T]) Pop() (T, State) {
	for {
		item, res := d.PopWeakResult()
		if res.State != StateFailedRace {
			return item, res.State
		}
	}
}

// PopWeak attempts a single top CAS, returning StateFailedRace if another
// thief won the race.
func (d *LazyDeque[T]) PopWeak() (T, State) {
	item, res := d.PopWeakResult()
	return item, res.State
}

// PopWeakResult is PopWeak, additionally reporting the top/bot values
// involved in the attempt.
func (d *LazyDeque[T]) PopWeakResult() (T, Result[T]) {
	var zero T

	t := d.top.Load()
	b := d.estimateBot.Load()

	res := Result[T]{Top: t, Bot: b, State: StateEmpty}
	if int64(t-b) >= 0 {
		b = d.bot.Load()
		d.estimateBot.Store(b)
		res.Bot = b
		if int64(t-b) >= 0 {
			return zero, res
		}
	}

	// Seq-cst here (the strongest order sync/atomic offers) rather than
	// acquire: on a weak memory model, an acquire-only load could still
	// race a stale top/bot pair against a fresher block pointer, reading
	// uninitialized memory from a block that hasn't been populated yet.
	// See lazy_queue.h's own comment on this load for the x86-vs-weak-
	// model rationale; Go's sync/atomic has no weaker-than-seq-cst knob
	// to even tempt us here.
	a := d.block.Load()

	item := *a.slot(t)
	if !d.top.CompareAndSwap(t, t+1) {
		res.State = StateFailedRace
		return zero, res
	}

	res.State = StateOK
	return item, res
}

// StPush is Push restricted to single-threaded use: the owner is the only
// goroutine ever touching the deque, including for pops. It exists purely
// to mirror lazy_queue_st_push from the source this module is ported from
// and is otherwise identical to Push.
func (d *LazyDeque[T]) StPush(item T) State {
	return d.Push(item)
}

// StPop is a single-threaded-only pop: safe only when no concurrent
// thief can be calling Pop/PopWeak at the same time, which makes the
// estimateBot refresh-on-apparent-emptiness path always accurate instead
// of merely likely. Mirrors lazy_queue_st_pop.
func (d *LazyDeque[T]) StPop() (T, State) {
	var zero T

	t := d.top.Load()
	b := d.estimateBot.Load()

	if int64(b-t) <= 0 {
		b = d.bot.Load()
		d.estimateBot.Store(b)
		if int64(b-t) <= 0 {
			return zero, StateEmpty
		}
	}

	a := d.block.Load()
	item := *a.slot(t)
	d.top.Store(t + 1)
	return item, StateOK
}

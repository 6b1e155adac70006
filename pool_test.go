package wsqueue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"
)

type PoolTestSuite struct {
	suite.Suite
}

func TestPoolTestSuite(t *testing.T) {
	suite.Run(t, new(PoolTestSuite))
}

func (ts *PoolTestSuite) TestAddRemoveChurn() {
	p := NewPool[int](PoolConfig{ThreadCapacity: 4, Deque: DefaultDequeConfig()})

	id0, ok := p.Add()
	ts.True(ok)
	ts.Equal(int32(0), id0)

	id1, ok := p.Add()
	ts.True(ok)
	ts.Equal(int32(1), id1)

	p.Remove(id0)

	// The table has room for 4 threads; we've used 2 ids (0 live-removed,
	// 1 live), so two more Adds succeed by growing, and a reused slot
	// comes from the tombstone rather than growth.
	id2, ok := p.Add()
	ts.True(ok)
	ts.Equal(id0, id2, "Add should reuse the tombstoned slot before growing")

	id3, ok := p.Add()
	ts.True(ok)
	ts.Equal(int32(2), id3)

	id4, ok := p.Add()
	ts.True(ok)
	ts.Equal(int32(3), id4)

	_, ok = p.Add()
	ts.False(ok, "table is at capacity with no tombstoned entry")
}

func (ts *PoolTestSuite) TestPushPopSelfFastPath() {
	p := NewPool[string](DefaultPoolConfig())
	id, ok := p.Add()
	ts.Require().True(ok)

	ts.Equal(StateOK, p.Push(id, "a"))
	ts.Equal(StateOK, p.Push(id, "b"))

	item, state := p.Pop(id)
	ts.Equal(StateOK, state)
	ts.Equal("b", item)
}

func (ts *PoolTestSuite) TestPopOthersSteals() {
	p := NewPool[int](DefaultPoolConfig())
	owner, ok := p.Add()
	ts.Require().True(ok)
	thief, ok := p.Add()
	ts.Require().True(ok)

	ts.Equal(StateOK, p.Push(owner, 42))

	item, state := p.Pop(thief)
	ts.Equal(StateOK, state)
	ts.Equal(42, item)

	_, state = p.Pop(thief)
	ts.Equal(StateEmpty, state)
}

func (ts *PoolTestSuite) TestPopOthersEmptyOnSoleWorker() {
	p := NewPool[int](DefaultPoolConfig())
	id, ok := p.Add()
	ts.Require().True(ok)

	_, state := p.PopOthers(id)
	ts.Equal(StateEmpty, state)
}

func (ts *PoolTestSuite) TestReuseAfterRemoveDoesNotResurrectItems() {
	p := NewPool[int](DefaultPoolConfig())
	id, ok := p.Add()
	ts.Require().True(ok)

	ts.Equal(StateOK, p.Push(id, 7))
	p.Remove(id)

	id2, ok := p.Add()
	ts.Require().True(ok)
	ts.Equal(id, id2)

	// The old item is still physically reachable (removal doesn't destroy
	// the deque), but nothing resurrects it as a "fresh" item: the
	// reused thread's Deque behaves exactly as it did before removal.
	item, state := p.PopSelf(id2)
	ts.Equal(StateOK, state)
	ts.Equal(7, item)
}

// TestNWorkersEveryItemPoppedExactlyOnce drives a full pool of workers
// each pushing a private batch of items, then all workers draining the
// whole pool via Pop (self fast-path + steal) until quiescence. Every
// item must surface exactly once.
func (ts *PoolTestSuite) TestNWorkersEveryItemPoppedExactlyOnce() {
	const workers = 8
	const perWorker = 5000

	p := NewPool[int](PoolConfig{ThreadCapacity: workers, Deque: DefaultDequeConfig()})
	ids := make([]int32, workers)
	for i := range ids {
		id, ok := p.Add()
		ts.Require().True(ok)
		ids[i] = id
	}

	for w, id := range ids {
		for i := 0; i < perWorker; i++ {
			ts.Require().Equal(StateOK, p.Push(id, w*perWorker+i))
		}
	}

	type collected struct {
		items []int
	}
	results := make([]collected, workers)

	g, _ := errgroup.WithContext(context.Background())
	for wi, id := range ids {
		wi, id := wi, id
		g.Go(func() error {
			var mine []int
			misses := 0
			for misses < 3 {
				item, state := p.Pop(id)
				if state == StateOK {
					mine = append(mine, item)
					misses = 0
					continue
				}
				misses++
			}
			results[wi] = collected{items: mine}
			return nil
		})
	}
	ts.Require().NoError(g.Wait())

	seen := make(map[int]bool, workers*perWorker)
	total := 0
	for _, r := range results {
		for _, v := range r.items {
			ts.False(seen[v], "item %d popped more than once", v)
			seen[v] = true
			total++
		}
	}
	ts.Equal(workers*perWorker, total)
}

// TestPingPongBetweenTwoPools covers items relocating from pool A to
// pool B: every worker on the A side drains its own reachable work
// (self queue, then stealing from the rest of A) and pushes each item
// onto B. Every original value must end up reachable from B's drain
// exactly once, and gone from A.
func (ts *PoolTestSuite) TestPingPongBetweenTwoPools() {
	const itemCount = 2000
	const workersPerSide = 4

	a := NewPool[int](PoolConfig{ThreadCapacity: workersPerSide, Deque: DefaultDequeConfig()})
	b := NewPool[int](PoolConfig{ThreadCapacity: workersPerSide, Deque: DefaultDequeConfig()})

	aIDs := make([]int32, workersPerSide)
	bIDs := make([]int32, workersPerSide)
	for i := 0; i < workersPerSide; i++ {
		id, ok := a.Add()
		ts.Require().True(ok)
		aIDs[i] = id

		id, ok = b.Add()
		ts.Require().True(ok)
		bIDs[i] = id
	}

	for i := 0; i < itemCount; i++ {
		ts.Require().Equal(StateOK, a.Push(aIDs[i%workersPerSide], i))
	}

	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < workersPerSide; i++ {
		from, to, id, dstID := a, b, aIDs[i], bIDs[i]
		g.Go(func() error { return movePoolContents(from, to, id, dstID) })
	}
	ts.Require().NoError(g.Wait())

	drainedA := drainPool(a, aIDs)
	drainedB := drainPool(b, bIDs)

	ts.Empty(drainedA, "every item should have been moved out of pool A")

	counts := make(map[int]int, itemCount)
	for _, v := range drainedB {
		counts[v]++
	}

	ts.Len(counts, itemCount)
	for v, c := range counts {
		ts.Equal(1, c, "value %d should appear exactly once in pool B", v)
	}
}

// movePoolContents drains id's reachable work from src via Pop and pushes
// every item onto dst's fallbackID, until src reports empty for this
// worker across both its own deque and the rest of src's pool.
func movePoolContents[T any](src, dst *Pool[T], id, fallbackID int32) error {
	misses := 0
	for misses < 3 {
		item, state := src.Pop(id)
		if state == StateOK {
			dst.Push(fallbackID, item)
			misses = 0
			continue
		}
		misses++
	}
	return nil
}

func drainPool[T any](p *Pool[T], ids []int32) []T {
	var all []T
	for _, id := range ids {
		for {
			item, state := p.PopSelf(id)
			if state != StateOK {
				break
			}
			all = append(all, item)
		}
	}
	return all
}

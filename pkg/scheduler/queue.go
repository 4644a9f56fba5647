package scheduler

import (
	"github.com/zurustar/instrscript/pkg/vm"
)

// entry is the scheduler's bookkeeping for one live instance. Entries and
// their instances are pooled.
type entry struct {
	h   Handle
	in  *vm.Instance
	seq uint64
	due int64
	// index is the position in the ready queue, or -1 when the instance is
	// blocked on a lock or not queued.
	index int
}

// readyQueue orders entries by due tick, then by creation sequence.
// It implements heap.Interface.
type readyQueue []*entry

func (q readyQueue) Len() int { return len(q) }

func (q readyQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q readyQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *readyQueue) Push(x any) {
	e := x.(*entry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *readyQueue) Pop() any {
	old := *q
	n := len(old) - 1
	e := old[n]
	old[n] = nil
	e.index = -1
	*q = old[:n]
	return e
}

// peek returns the earliest entry without removing it.
func (q readyQueue) peek() *entry {
	if len(q) == 0 {
		return nil
	}
	return q[0]
}

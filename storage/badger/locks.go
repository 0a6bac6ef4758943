package badger

import (
	"slices"
	"sync"

	"github.com/poiesic/schedex/core"
)

const lockStripes = 64

// itemLocks serializes writers per item number. Numbers hash onto a fixed
// set of stripes; a batch locks its stripes in ascending order so two
// overlapping batches can never deadlock.
type itemLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *itemLocks) lock(numbers ...core.ItemNumber) (unlock func()) {
	idx := make([]int, 0, len(numbers))
	for _, n := range numbers {
		idx = append(idx, int(uint64(n)%lockStripes))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		l.stripes[i].Lock()
	}
	return func() {
		for i := len(idx) - 1; i >= 0; i-- {
			l.stripes[idx[i]].Unlock()
		}
	}
}

// lockAll takes every stripe, for whole-catalog writes.
func (l *itemLocks) lockAll() (unlock func()) {
	for i := range l.stripes {
		l.stripes[i].Lock()
	}
	return func() {
		for i := len(l.stripes) - 1; i >= 0; i-- {
			l.stripes[i].Unlock()
		}
	}
}

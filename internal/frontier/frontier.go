// Package frontier is a bounded binary min-heap over FrontierItem,
// ordered by (score, priority, sequence) ascending — scores are stored
// negated upstream so the heap's natural min-ordering dequeues the
// best real score first. Structured after the teacher's
// container/heap-backed PriorityQueue (index-tracking Push/Pop, a
// max-size cap enforced by the caller).
package frontier

import (
	"container/heap"

	"slicecore/internal/model"
)

// Frontier is a bounded min-heap of model.FrontierItem.
type Frontier struct {
	items   innerHeap
	maxSize int
}

// New builds an empty Frontier capped at maxSize entries.
func New(maxSize int) *Frontier {
	f := &Frontier{maxSize: maxSize}
	heap.Init(&f.items)
	return f
}

// Size returns the number of items currently held.
func (f *Frontier) Size() int {
	return f.items.Len()
}

// Full reports whether the frontier is at its configured max size.
func (f *Frontier) Full() bool {
	return f.maxSize > 0 && f.items.Len() >= f.maxSize
}

// Insert pushes item onto the heap. Callers are expected to check Full
// first and apply the overflow-replacement rule (§4.E step 7)
// themselves; Insert does not enforce maxSize.
func (f *Frontier) Insert(item model.FrontierItem) {
	heap.Push(&f.items, item)
}

// ExtractMin pops and returns the best (lowest tuple) item.
func (f *Frontier) ExtractMin() (model.FrontierItem, bool) {
	if f.items.Len() == 0 {
		return model.FrontierItem{}, false
	}
	return heap.Pop(&f.items).(model.FrontierItem), true
}

// Peek returns the best item without removing it.
func (f *Frontier) Peek() (model.FrontierItem, bool) {
	if f.items.Len() == 0 {
		return model.FrontierItem{}, false
	}
	return f.items[0], true
}

// Worst returns the current heap's worst (highest tuple) item by
// linear scan — used only for the overflow-replacement comparison,
// which runs once for each neighbor offered while the heap is full.
func (f *Frontier) Worst() (model.FrontierItem, int, bool) {
	if f.items.Len() == 0 {
		return model.FrontierItem{}, -1, false
	}
	worstIdx := 0
	for i := 1; i < len(f.items); i++ {
		if less(f.items[worstIdx], f.items[i]) {
			worstIdx = i
		}
	}
	return f.items[worstIdx], worstIdx, true
}

// ReplaceAt swaps the item at heap index idx for replacement and
// restores the heap invariant.
func (f *Frontier) ReplaceAt(idx int, replacement model.FrontierItem) {
	f.items[idx] = replacement
	heap.Fix(&f.items, idx)
}

// ToArray returns a non-destructive snapshot of all items, in no
// particular order (callers that need the best-K should sort the copy).
func (f *Frontier) ToArray() []model.FrontierItem {
	out := make([]model.FrontierItem, len(f.items))
	copy(out, f.items)
	return out
}

// less implements the tuple ordering (score, priority, sequence) ascending.
func less(a, b model.FrontierItem) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Sequence < b.Sequence
}

type innerHeap []model.FrontierItem

func (h innerHeap) Len() int            { return len(h) }
func (h innerHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h innerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *innerHeap) Push(x interface{}) { *h = append(*h, x.(model.FrontierItem)) }
func (h *innerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

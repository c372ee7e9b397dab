// Package dsa holds the small data structures the service leans on.
package dsa

import "sort"

// ─── Bounded Top-K Heap ─────────────────────────────────────────────────────
// Keeps the K best items seen so far in a binary min-heap whose root is the
// worst item retained. Used to cut leaderboards down without sorting every
// account.
//
// Operations:
//   Push:   O(log k), replace root when the newcomer beats it, sift down
//   Sorted: O(k log k)
//   Len:    O(1)

// TopK retains the k highest-ranked items pushed into it.
// better(a, b) reports whether a ranks above b. Not safe for concurrent use.
type TopK[T any] struct {
	k      int
	better func(a, b T) bool
	heap   []T
}

// NewTopK creates an empty bounded heap. k <= 0 retains nothing.
func NewTopK[T any](k int, better func(a, b T) bool) *TopK[T] {
	if k < 0 {
		k = 0
	}
	return &TopK[T]{k: k, better: better, heap: make([]T, 0, k)}
}

// Push offers an item. It is kept only if it is among the k best so far.
func (h *TopK[T]) Push(item T) {
	if h.k == 0 {
		return
	}
	if len(h.heap) < h.k {
		h.heap = append(h.heap, item)
		h.siftUp(len(h.heap) - 1)
		return
	}
	if !h.better(item, h.heap[0]) {
		return
	}
	h.heap[0] = item
	h.siftDown(0)
}

// Len returns the number of retained items.
func (h *TopK[T]) Len() int { return len(h.heap) }

// Sorted returns the retained items best first. The heap is left intact.
func (h *TopK[T]) Sorted() []T {
	out := make([]T, len(h.heap))
	copy(out, h.heap)
	sort.SliceStable(out, func(i, j int) bool { return h.better(out[i], out[j]) })
	return out
}

// worse orders the heap: the root is the item every other item beats.
func (h *TopK[T]) worse(i, j int) bool {
	return h.better(h.heap[j], h.heap[i])
}

// siftUp restores heap property after insertion.
func (h *TopK[T]) siftUp(idx int) {
	for idx > 0 {
		parent := (idx - 1) / 2
		if h.worse(idx, parent) {
			h.heap[idx], h.heap[parent] = h.heap[parent], h.heap[idx]
			idx = parent
		} else {
			break
		}
	}
}

// siftDown restores heap property after the root is replaced.
func (h *TopK[T]) siftDown(idx int) {
	n := len(h.heap)
	for {
		worst := idx
		left := 2*idx + 1
		right := 2*idx + 2

		if left < n && h.worse(left, worst) {
			worst = left
		}
		if right < n && h.worse(right, worst) {
			worst = right
		}
		if worst == idx {
			break
		}
		h.heap[idx], h.heap[worst] = h.heap[worst], h.heap[idx]
		idx = worst
	}
}

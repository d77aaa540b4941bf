// ABOUTME: Priority queue of pending maintenance tasks, container/heap as a max-heap keyed by priority
// ABOUTME: A stdlib heap stands in for the source's hand-rolled PriorityQueue, per the "use the target language's containers" guidance

package maintenance

import "container/heap"

type task struct {
	name     string
	priority float64
	index    int // position in the heap, maintained by heap.Interface
}

// taskHeap is a max-heap: the highest-priority task sits at index 0.
type taskHeap []*task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].priority > h[j].priority }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

var _ heap.Interface = (*taskHeap)(nil)

package queue

import (
	"container/heap"
	"sync"

	"github.com/sirupsen/logrus"

	"docsmap/pkg/models"
)

// frontierItem wraps a work item for the heap
type frontierItem struct {
	workItem *models.WorkItem
	priority int // Lower value means higher priority (depth)
	index    int // Index in the heap, maintained by heap.Interface
}

// frontierHeap implements heap.Interface ordered by ascending depth
type frontierHeap []*frontierItem

func (h frontierHeap) Len() int { return len(h) }

func (h frontierHeap) Less(i, j int) bool {
	return h[i].priority < h[j].priority
}

func (h frontierHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *frontierHeap) Push(x any) {
	n := len(*h)
	item := x.(*frontierItem)
	item.index = n
	*h = append(*h, item)
}

func (h *frontierHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*h = old[0 : n-1]
	return item
}

// Frontier is a thread-safe priority queue of pending crawl work.
// Items at lower depth are dequeued first so the crawl proceeds
// breadth-first from the start URLs.
type Frontier struct {
	heap   frontierHeap
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
	log    *logrus.Entry
}

// NewFrontier creates an empty crawl frontier
func NewFrontier(log *logrus.Entry) *Frontier {
	f := &Frontier{log: log}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.heap)
	return f
}

// Add pushes a work item onto the frontier, prioritized by depth
func (f *Frontier) Add(item *models.WorkItem) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.log.Warnf("Attempted to add item to closed frontier: %s", item.URL)
		return
	}

	heap.Push(&f.heap, &frontierItem{
		workItem: item,
		priority: item.Depth,
	})
	f.cond.Signal()
}

// Pop retrieves and removes the lowest-depth work item.
// It blocks while the frontier is empty until an item is added or the
// frontier is closed. Returns nil and false once closed and drained.
func (f *Frontier) Pop() (*models.WorkItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.heap) == 0 {
		if f.closed {
			return nil, false
		}
		f.cond.Wait()
	}

	item := heap.Pop(&f.heap).(*frontierItem)
	return item.workItem, true
}

// Close signals that no more items will be added. Blocked Pop calls
// wake up and return false once the frontier drains.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
}

// Len returns the current number of pending items
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heap)
}

package hnsw

import "container/heap"

// Compile time check to ensure priorityQueue satisfies the heap interface.
var _ heap.Interface = (*priorityQueue)(nil)

// queueItem represents an item in the priority queue.
type queueItem struct {
	node     uint32  // internal node ID
	distance float32 // priority of the item in the queue
}

// priorityQueue implements heap.Interface over queueItems.
// maxHeap=true orders by descending distance (worst candidate on top),
// maxHeap=false by ascending distance.
type priorityQueue struct {
	maxHeap bool
	items   []queueItem
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	if pq.maxHeap {
		return pq.items[i].distance > pq.items[j].distance
	}
	return pq.items[i].distance < pq.items[j].distance
}

func (pq *priorityQueue) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

func (pq *priorityQueue) Push(x any) {
	item, _ := x.(queueItem)
	pq.items = append(pq.items, item)
}

func (pq *priorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	pq.items = old[:n-1]
	return item
}

// top returns the root element without removing it.
func (pq *priorityQueue) top() queueItem {
	return pq.items[0]
}

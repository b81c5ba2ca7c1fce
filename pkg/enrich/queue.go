package enrich

import "sync"

// WorkQueue is a FIFO of pending person IDs, safe for concurrent use.
// Each enqueued ID is handed out by exactly one TryDequeue call.
type WorkQueue struct {
	mu    sync.Mutex
	items []int64
	head  int
}

// NewWorkQueue creates an empty queue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{}
}

// EnqueueAll appends ids in order.
func (q *WorkQueue) EnqueueAll(ids ...int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, ids...)
}

// TryDequeue removes and returns the head of the queue. It never blocks;
// ok is false when the queue is empty.
func (q *WorkQueue) TryDequeue() (id int64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head >= len(q.items) {
		return 0, false
	}
	id = q.items[q.head]
	q.head++

	// release the backing array once drained
	if q.head == len(q.items) {
		q.items = nil
		q.head = 0
	}
	return id, true
}

// Len returns the number of IDs still pending.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

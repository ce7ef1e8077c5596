package history

// Queue is a fixed-capacity FIFO ring. Enqueueing into a full queue evicts
// the oldest entry. Positions run from 0 (oldest) to Count()-1 (newest).
type Queue[T any] struct {
	items []T
	head  int
	count int
}

// NewQueue creates a queue holding at most capacity entries
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{items: make([]T, capacity)}
}

// Capacity returns the maximum number of entries
func (q *Queue[T]) Capacity() int {
	return len(q.items)
}

// Count returns the number of entries
func (q *Queue[T]) Count() int {
	return q.count
}

// Enqueue appends v, evicting the oldest entry when the queue is full
func (q *Queue[T]) Enqueue(v T) {
	if q.count == len(q.items) {
		q.Dequeue()
	}
	q.items[(q.head+q.count)%len(q.items)] = v
	q.count++
}

// Dequeue removes and returns the oldest entry. It panics on an empty queue.
func (q *Queue[T]) Dequeue() T {
	if q.count == 0 {
		panic("history: dequeue from empty queue")
	}
	var zero T
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.count--
	return v
}

// At returns the entry at position i
func (q *Queue[T]) At(i int) T {
	return q.items[q.slot(i)]
}

// Newest returns the most recently enqueued entry
func (q *Queue[T]) Newest() (T, bool) {
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.At(q.count - 1), true
}

// Contains reports whether any entry satisfies match
func (q *Queue[T]) Contains(match func(T) bool) bool {
	for i := 0; i < q.count; i++ {
		if match(q.At(i)) {
			return true
		}
	}
	return false
}

// Clear removes every entry
func (q *Queue[T]) Clear() {
	clear(q.items)
	q.head = 0
	q.count = 0
}

func (q *Queue[T]) slot(i int) int {
	if i < 0 || i >= q.count {
		panic("history: queue index out of range")
	}
	return (q.head + i) % len(q.items)
}

package queue

// Queue is a FIFO queue backed by a slice.
//
// Queue is not goroutine-safe; callers serialize access.
type Queue[T comparable] struct {
	items []T
}

// New creates a Queue with room for prealloc items.
func New[T comparable](prealloc int) *Queue[T] {
	return &Queue[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds an item to the tail of the queue.
func (q *Queue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the item at the head of the queue.
// The second result is false when the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]

	return item, true
}

// Peek returns the item at the head of the queue without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	return q.items[0], true
}

// Remove deletes the first occurrence of item, keeping the order of the rest.
// It returns false if item is not in the queue.
func (q *Queue[T]) Remove(item T) bool {
	for i, v := range q.items {
		if v != item {
			continue
		}

		copy(q.items[i:], q.items[i+1:])
		var zero T
		q.items[len(q.items)-1] = zero
		q.items = q.items[:len(q.items)-1]

		return true
	}

	return false
}

// Drain removes and returns every item in FIFO order.
func (q *Queue[T]) Drain() []T {
	items := q.items
	q.items = nil

	return items
}

// IsEmpty returns true if the queue is empty.
func (q *Queue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Length returns the number of items in the queue.
func (q *Queue[T]) Length() int {
	return len(q.items)
}

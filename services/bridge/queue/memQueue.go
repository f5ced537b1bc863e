package queue

import "sync"

type entry struct {
	id   uint64
	line string
}

// memQueue is an in-memory FIFO. A positive maxLength enables the drop-oldest overflow policy.
type memQueue struct {
	mut       sync.Mutex
	data      []entry
	nextID    uint64
	maxLength int
}

// NewMemQueue creates an in-memory queue. maxLength <= 0 means unbounded.
func NewMemQueue(maxLength int) *memQueue {
	return &memQueue{
		nextID:    1,
		maxLength: maxLength,
	}
}

// Append adds the lines at the tail and returns how many lines were dropped from the head to honor the length limit
func (q *memQueue) Append(lines ...string) (int, error) {
	q.mut.Lock()
	defer q.mut.Unlock()

	for _, line := range lines {
		q.data = append(q.data, entry{id: q.nextID, line: line})
		q.nextID++
	}

	if q.maxLength <= 0 || len(q.data) <= q.maxLength {
		return 0, nil
	}

	dropped := len(q.data) - q.maxLength
	q.data = append(q.data[:0], q.data[dropped:]...)

	return dropped, nil
}

// Peek returns up to max lines from the head without removing them
func (q *memQueue) Peek(max int) (Batch, error) {
	q.mut.Lock()
	defer q.mut.Unlock()

	if len(q.data) == 0 || max <= 0 {
		return Batch{}, nil
	}
	if max > len(q.data) {
		max = len(q.data)
	}

	batch := Batch{
		Lines:  make([]string, 0, max),
		LastID: q.data[max-1].id,
	}
	for _, e := range q.data[:max] {
		batch.Lines = append(batch.Lines, e.line)
	}

	return batch, nil
}

// Remove drops every line up to and including the provided id
func (q *memQueue) Remove(upToID uint64) error {
	q.mut.Lock()
	defer q.mut.Unlock()

	idx := 0
	for idx < len(q.data) && q.data[idx].id <= upToID {
		idx++
	}
	q.data = append(q.data[:0], q.data[idx:]...)

	return nil
}

// Len returns the number of queued lines
func (q *memQueue) Len() int {
	q.mut.Lock()
	defer q.mut.Unlock()

	return len(q.data)
}

// Close does nothing for the in-memory queue
func (q *memQueue) Close() error {
	return nil
}

// IsInterfaceNil returns true if the value under the interface is nil
func (q *memQueue) IsInterfaceNil() bool {
	return q == nil
}

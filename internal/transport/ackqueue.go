package transport

import (
	"sync"
)

// AckQueue is the AwaitingAck FIFO: payloads the local client has sent but
// not yet confirmed by the relay. Enqueue happens on the game thread inside
// SendFrame; Dequeue happens on the receiver thread inside handleAck. It
// gets its own mutex, separate from the connection's state fields, so an
// ack drain never contends with a state read.
type AckQueue struct {
	mu      sync.Mutex
	pending [][]byte
}

// Enqueue appends a payload to the tail of the FIFO.
func (q *AckQueue) Enqueue(payload []byte) {
	q.mu.Lock()
	q.pending = append(q.pending, payload)
	q.mu.Unlock()
}

// DequeueN removes exactly n entries from the head of the FIFO and returns
// them in order. It returns ErrAckUnderflow if fewer than n are available —
// an Ack-underflow is an invariant violation, not a transient condition to
// retry.
func (q *AckQueue) DequeueN(n int) ([][]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.pending) {
		return nil, ErrAckUnderflow
	}
	out := q.pending[:n:n]
	q.pending = q.pending[n:]
	return out, nil
}

// Len reports the current backlog depth.
func (q *AckQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

package pipeline

import "context"

// fifo is the backlog of an unbounded queue: a slice consumed from a moving
// head index, compacted once fully drained.
type fifo[T any] struct {
	head  int
	items []T
}

func (q *fifo[T]) enqueue(item T) {
	q.items = append(q.items, item)
}

func (q *fifo[T]) peek() (T, bool) {
	if q.head >= len(q.items) {
		var zeroVal T
		return zeroVal, false
	}
	return q.items[q.head], true
}

func (q *fifo[T]) dequeue() {
	var zeroVal T
	q.items[q.head] = zeroVal
	q.head++

	if q.head >= len(q.items) {
		q.head = 0
		q.items = q.items[:0]
	}
}

func (q *fifo[T]) len() int {
	return len(q.items) - q.head
}

// NewQueue returns both ends of an unbounded FIFO queue. Sends on the
// returned send end never block on capacity; they block only until the
// queue's internal pump accepts the item. Closing the send end closes the
// receive end once every buffered item has been delivered.
//
// Cancelling ctx stops the pump and closes the receive end immediately,
// discarding the backlog. Producers must therefore send with [Send] so that
// they do not block on a stopped pump.
func NewQueue[T any](ctx context.Context) (chan<- T, <-chan T) {
	in := make(chan T)
	out := make(chan T)

	go pump(ctx, in, out)

	return in, out
}

func pump[T any](ctx context.Context, in <-chan T, out chan<- T) {
	defer close(out)

	var backlog fifo[T]

	for {
		var (
			sendCh chan<- T
			next   T
		)
		if item, ok := backlog.peek(); ok {
			sendCh = out
			next = item
		}

		if in == nil && sendCh == nil {
			return
		}

		select {
		case <-ctx.Done():
			return

		case item, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			backlog.enqueue(item)

		case sendCh <- next:
			backlog.dequeue()
		}
	}
}

// Send delivers v on ch unless ctx is cancelled first. It reports whether
// the value was delivered.
func Send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case <-ctx.Done():
		return false
	case ch <- v:
		return true
	}
}

// Receive takes the next value from ch. It reports false once ch is closed
// and drained, or ctx has been cancelled.
func Receive[T any](ctx context.Context, ch <-chan T) (T, bool) {
	select {
	case <-ctx.Done():
		var zeroVal T
		return zeroVal, false
	case v, ok := <-ch:
		return v, ok
	}
}

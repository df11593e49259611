package webrtc

import "sync"

// opQueue runs queued operations one at a time in FIFO order on a single
// goroutine. push never blocks.
type opQueue struct {
	mu     sync.Mutex
	ops    []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newOpQueue() *opQueue {
	q := &opQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// push reports false once the queue is stopped.
func (q *opQueue) push(op func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.ops = append(q.ops, op)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// stop discards pending operations and waits for the running one to finish.
// It must not be called from inside an operation.
func (q *opQueue) stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.ops = nil
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}

func (q *opQueue) run() {
	defer close(q.done)
	for range q.wake {
		for {
			q.mu.Lock()
			if q.closed {
				q.mu.Unlock()
				return
			}
			if len(q.ops) == 0 {
				q.mu.Unlock()
				break
			}
			op := q.ops[0]
			q.ops[0] = nil
			q.ops = q.ops[1:]
			q.mu.Unlock()

			op()
		}
	}
}

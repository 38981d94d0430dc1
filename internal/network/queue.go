package network

import (
	"sync"

	"github.com/energizer-project/craftflow/internal/abstract"
	"github.com/energizer-project/craftflow/internal/protocol"
)

// outbound is one entry of the write queue. Exactly one of abstract and
// concrete is set. A kick entry carries the reason the connection is closed
// with once the packet is written.
type outbound struct {
	abstract abstract.Packet
	concrete protocol.Packet
	kick     *string
}

// outboundQueue is an unbounded FIFO with a single consumer, the write task.
// Producers never block, so callbacks running on the read task can send.
type outboundQueue struct {
	mu     sync.Mutex
	items  []outbound
	notify chan struct{}
	closed bool
}

func newOutboundQueue() *outboundQueue {
	return &outboundQueue{notify: make(chan struct{}, 1)}
}

func (q *outboundQueue) push(item outbound) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// pop blocks until an entry is available. It returns false once the queue
// is closed; entries still queued at that point are dropped.
func (q *outboundQueue) pop() (outbound, bool) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return outbound{}, false
		}
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = outbound{}
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()
		<-q.notify
	}
}

func (q *outboundQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.items = nil
	close(q.notify)
}

func (q *outboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

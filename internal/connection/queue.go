package connection

import "github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"

// outboundQueue is a bounded FIFO ring buffer for messages sent while the
// connection is not open. Overflow favors freshness: the oldest entry is
// evicted to make room.
type outboundQueue struct {
	buf      []*domain.Message
	head     int
	length   int
	capacity int
}

func newOutboundQueue(capacity int) *outboundQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &outboundQueue{
		buf:      make([]*domain.Message, capacity),
		capacity: capacity,
	}
}

// push appends a message. When full it evicts and returns the oldest entry;
// otherwise it returns nil.
func (q *outboundQueue) push(msg *domain.Message) *domain.Message {
	var evicted *domain.Message
	if q.length == q.capacity {
		evicted = q.buf[q.head]
		q.buf[q.head] = nil
		q.head = (q.head + 1) % q.capacity
		q.length--
	}
	q.buf[(q.head+q.length)%q.capacity] = msg
	q.length++
	return evicted
}

// pop removes and returns the oldest message, or nil when empty.
func (q *outboundQueue) pop() *domain.Message {
	if q.length == 0 {
		return nil
	}
	msg := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % q.capacity
	q.length--
	return msg
}

// pushFront reinstates a message at the head, evicting the newest entry if
// full. Used when a flush write fails mid-drain.
func (q *outboundQueue) pushFront(msg *domain.Message) {
	if q.length == q.capacity {
		q.buf[(q.head+q.length-1)%q.capacity] = nil
		q.length--
	}
	q.head = (q.head - 1 + q.capacity) % q.capacity
	q.buf[q.head] = msg
	q.length++
}

func (q *outboundQueue) len() int { return q.length }

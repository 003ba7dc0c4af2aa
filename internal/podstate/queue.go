package podstate

import (
	"sync"

	"github.com/fyrsmithlabs/podharness/internal/clock"
)

// Message is one inter-pod message.
type Message struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
}

// MessageQueue carries messages between pods in the same process,
// FIFO per recipient. Safe for concurrent use.
type MessageQueue struct {
	clock clock.Clock

	mu     sync.Mutex
	queues map[string][]Message
}

// NewMessageQueue creates an empty queue. A nil clock defaults to the
// system clock.
func NewMessageQueue(c clock.Clock) *MessageQueue {
	if c == nil {
		c = clock.System{}
	}
	return &MessageQueue{clock: c, queues: make(map[string][]Message)}
}

// Send enqueues a message for the recipient.
func (q *MessageQueue) Send(from, to string, payload any) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queues[to] = append(q.queues[to], Message{
		From:      from,
		To:        to,
		Payload:   payload,
		Timestamp: clock.Timestamp(q.clock.Now()),
	})
}

// Receive dequeues the recipient's oldest message. Returns false when
// the queue is empty.
func (q *MessageQueue) Receive(recipient string) (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	queue := q.queues[recipient]
	if len(queue) == 0 {
		return Message{}, false
	}
	msg := queue[0]
	q.queues[recipient] = queue[1:]
	return msg, true
}

// Pending reports how many messages wait for the recipient.
func (q *MessageQueue) Pending(recipient string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[recipient])
}

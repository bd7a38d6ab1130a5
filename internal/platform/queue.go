// Package platform holds the pieces shared by the audio backends: the
// blocking frame queue that turns callback-driven devices into readable
// lines, the sample layout conversions, and a simulated device that
// generates a test tone when no hardware is available.
package platform

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// Queue buffers bytes pushed by a device callback until a reader takes
// them. Read blocks while the queue is empty and open; once closed, Read
// returns whatever is left and then io.EOF.
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     bytes.Buffer
	limit   int
	closed  bool
	dropped int64
}

// NewQueue creates a queue holding at most limit bytes. When a push would
// exceed the limit the oldest queued bytes are discarded and counted, so a
// slow reader always resumes on the most recent audio.
func NewQueue(limit int) *Queue {
	q := &Queue{limit: limit}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends p. It never blocks, since it runs on the audio thread.
func (q *Queue) Push(p []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(p) == 0 {
		return
	}
	if q.limit > 0 {
		if len(p) > q.limit {
			q.dropped += int64(len(p) - q.limit)
			p = p[len(p)-q.limit:]
		}
		if over := q.buf.Len() + len(p) - q.limit; over > 0 {
			q.buf.Next(over)
			q.dropped += int64(over)
		}
	}
	q.buf.Write(p)
	q.cond.Broadcast()
}

// Read copies queued bytes into p, blocking until data arrives or the
// queue is closed.
func (q *Queue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.buf.Len() == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.buf.Len() == 0 {
		return 0, io.EOF
	}
	n, _ := q.buf.Read(p)
	q.cond.Broadcast()
	return n, nil
}

// Drain waits until the reader has consumed everything queued, the queue
// is closed, or timeout elapses.
func (q *Queue) Drain(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		empty := q.buf.Len() == 0 || q.closed
		q.mu.Unlock()
		if empty || time.Now().After(deadline) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close wakes any blocked reader. Further pushes are ignored.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Dropped returns how many bytes were discarded because the reader fell
// behind.
func (q *Queue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

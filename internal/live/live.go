// Package live holds the small primitives the portal uses to move callbacks
// around: ordered per-subscriber delivery, a broadcast value, and scopes that
// own subscription handles.
package live

import "sync"

// Cancel disposes of a subscription. Calling it more than once is allowed.
type Cancel func()

// Once wraps c so that only the first call has an effect.
func Once(c Cancel) Cancel {
	if c == nil {
		return func() {}
	}
	var once sync.Once
	return func() { once.Do(c) }
}

// Mailbox runs posted functions one at a time, in post order, on its own
// goroutine. Posting never blocks. After Close, queued functions are dropped
// and no further function starts.
type Mailbox struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func NewMailbox() *Mailbox {
	m := &Mailbox{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

// Post enqueues fn. It reports false when the mailbox is already closed.
func (m *Mailbox) Post(fn func()) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	close(m.done)
}

func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mailbox) run() {
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}
		for {
			m.mu.Lock()
			if m.closed {
				m.mu.Unlock()
				return
			}
			if len(m.queue) == 0 {
				m.mu.Unlock()
				break
			}
			fn := m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			fn()
		}
	}
}

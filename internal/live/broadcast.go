package live

import "sync"

// Broadcaster holds a current value and pushes every change to its
// subscribers. A new subscriber first receives the value current at the time
// it subscribed. Each subscriber sees values in publish order.
type Broadcaster[T any] struct {
	mu    sync.Mutex
	value T
	next  uint64
	subs  map[uint64]*subscriber[T]
}

type subscriber[T any] struct {
	box *Mailbox
	fn  func(T)
}

func NewBroadcaster[T any](initial T) *Broadcaster[T] {
	return &Broadcaster[T]{value: initial, subs: make(map[uint64]*subscriber[T])}
}

// Get returns the current value.
func (b *Broadcaster[T]) Get() T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value
}

// Publish replaces the current value and queues it for every subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.value = v
	for _, s := range b.subs {
		fn := s.fn
		s.box.Post(func() { fn(v) })
	}
}

// Update applies fn to the current value under the broadcaster's lock and
// publishes the result.
func (b *Broadcaster[T]) Update(fn func(T) T) T {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := fn(b.value)
	b.value = v
	for _, s := range b.subs {
		sfn := s.fn
		s.box.Post(func() { sfn(v) })
	}
	return v
}

func (b *Broadcaster[T]) Subscribe(fn func(T)) Cancel {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	s := &subscriber[T]{box: NewMailbox(), fn: fn}
	v := b.value
	s.box.Post(func() { fn(v) })
	b.subs[id] = s
	return Once(func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		s.box.Close()
	})
}

// Subscribers reports how many subscribers are attached.
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches every subscriber.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*subscriber[T])
	b.mu.Unlock()
	for _, s := range subs {
		s.box.Close()
	}
}

package monitor

import (
	"sync"

	"buildwatch/internal/status"
)

// broadcaster fans changes out to subscribers. Each subscriber owns an
// unbounded FIFO drained by its own goroutine, so publish never blocks and
// nothing is dropped or coalesced.
type broadcaster struct {
	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	mu      sync.Mutex
	pending []status.StatusChange
	wake    chan struct{}
	done    chan struct{}
	out     chan status.StatusChange
	once    sync.Once
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*subscription]struct{})}
}

func (b *broadcaster) subscribe() (<-chan status.StatusChange, func()) {
	sub := &subscription{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan status.StatusChange),
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go sub.pump()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		sub.once.Do(func() { close(sub.done) })
	}
	return sub.out, cancel
}

func (b *broadcaster) publish(change status.StatusChange) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		sub.enqueue(change)
	}
}

func (s *subscription) enqueue(change status.StatusChange) {
	s.mu.Lock()
	s.pending = append(s.pending, change)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.pending[0]
			s.pending[0] = status.StatusChange{}
			s.pending = s.pending[1:]
			s.mu.Unlock()

			select {
			case s.out <- next:
			case <-s.done:
				return
			}
		}
	}
}

package app

import (
	"sync"

	"live-quiz-service/internal/domain"
)

// Feed fans leaderboard snapshots out to live subscribers.
type Feed struct {
	mu          sync.Mutex
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewFeed() *Feed {
	return &Feed{subscribers: make(map[chan domain.Leaderboard]struct{})}
}

// Subscribe registers a buffered channel primed with initial.
func (f *Feed) Subscribe(initial domain.Leaderboard) (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers lb to every subscriber without blocking.
func (f *Feed) Publish(lb domain.Leaderboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- lb:
		default:
			// slow subscriber: drop its oldest snapshot so the newest always lands
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}

// Len reports the number of live subscribers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

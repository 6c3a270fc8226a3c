package log

import (
	"io"
	"sync"
	"sync/atomic"
)

const subscriberBuffer = 256

// Broadcaster copies every written log line to its subscribers. A
// subscriber that falls behind loses lines instead of stalling the logger.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[chan []byte]struct{}
	dropped atomic.Uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan []byte]struct{})}
}

func (b *Broadcaster) Write(p []byte) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.subs) == 0 {
		return len(p), nil
	}

	line := append([]byte(nil), p...)
	for ch := range b.subs {
		select {
		case ch <- line:
		default:
			b.dropped.Add(1)
		}
	}
	return len(p), nil
}

// Subscribe returns a channel of log lines and a cancel func that removes
// the subscription and closes the channel. Cancel is idempotent.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many lines were skipped for slow subscribers.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

var _ io.Writer = (*Broadcaster)(nil)

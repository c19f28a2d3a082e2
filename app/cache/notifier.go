package cache

import "sync"

// Notifier is the store-owned subscriber list for change notifications.
// Sends are non-blocking: a subscriber that has fallen behind misses the
// update instead of stalling the writer.
type Notifier struct {
	mu   sync.Mutex
	subs map[int]chan Update
	next int
}

func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[int]chan Update),
	}
}

// Subscribe returns a channel of updates and a cancel func that must be
// called when the subscriber is done.
func (n *Notifier) Subscribe() (<-chan Update, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.next
	n.next++
	ch := make(chan Update, 8)
	n.subs[id] = ch

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		if existing, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(existing)
		}
	}

	return ch, cancel
}

func (n *Notifier) Broadcast(update Update) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- update:
		default:
		}
	}
}

package auth

import "sync"

const subscriberBuffer = 16

// Broadcaster fans events out to subscribers. Publish never blocks: a
// subscriber that falls behind loses its oldest pending event.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subID := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[subID] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, subID)
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Broadcaster) Publish(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		for {
			select {
			case ch <- event:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Close cancels every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for subID, ch := range b.subs {
		delete(b.subs, subID)
		close(ch)
	}
}

// Holder keeps the current session of a Client and announces changes to it.
type Holder struct {
	mu      sync.RWMutex
	session *Session
	events  *Broadcaster
}

func NewHolder() *Holder {
	return &Holder{events: NewBroadcaster()}
}

// Current returns a copy of the current session, or nil.
func (h *Holder) Current() *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session.Clone()
}

// Set replaces the current session and publishes the given event.
func (h *Holder) Set(session *Session, event EventType) {
	h.mu.Lock()
	h.session = session.Clone()
	h.mu.Unlock()
	h.events.Publish(Event{Type: event, Session: session.Clone()})
}

// Clear drops the current session. SIGNED_OUT is published only when a
// session was present.
func (h *Holder) Clear() {
	h.mu.Lock()
	had := h.session != nil
	h.session = nil
	h.mu.Unlock()
	if had {
		h.events.Publish(Event{Type: EventSignedOut})
	}
}

func (h *Holder) Subscribe() (<-chan Event, func()) {
	return h.events.Subscribe()
}

package session

import (
	"sync"

	"github.com/ssokeeper/ssokeeper/pkg/models"
)

const subscriberBuffer = 16

// Hub fans login progress events out to per-domain subscribers. Publishing
// never blocks: a subscriber that falls behind loses events instead of
// stalling a login attempt.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan models.ProgressEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan models.ProgressEvent]struct{})}
}

// Subscribe registers for one domain's events. The returned cancel func
// must be called to release the subscription; it closes the channel.
func (h *Hub) Subscribe(domain string) (<-chan models.ProgressEvent, func()) {
	ch := make(chan models.ProgressEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[domain] == nil {
		h.subs[domain] = make(map[chan models.ProgressEvent]struct{})
	}
	h.subs[domain][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[domain], ch)
			if len(h.subs[domain]) == 0 {
				delete(h.subs, domain)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to the domain's current subscribers
func (h *Hub) Publish(ev models.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[ev.Domain] {
		select {
		case ch <- ev:
		default:
		}
	}
}

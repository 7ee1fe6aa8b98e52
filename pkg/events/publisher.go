package events

import (
	"slices"
	"sync"
)

// Publisher delivers notifications to the render layer. An empty sessionID
// publishes on the global channel.
type Publisher interface {
	Publish(sessionID string, payload Payload)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(sessionID string, payload Payload)

// Publish implements Publisher.
func (f PublisherFunc) Publish(sessionID string, payload Payload) {
	f(sessionID, payload)
}

// Discard drops every notification.
var Discard Publisher = PublisherFunc(func(string, Payload) {})

// Recorder captures notifications in publish order.
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

// Publish implements Publisher.
func (r *Recorder) Publish(sessionID string, payload Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, Notification{Type: payload.EventType(), SessionID: sessionID, Data: payload})
}

// All returns a copy of every recorded notification.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.seen)
}

// Types returns the recorded notification types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.seen))
	for i, n := range r.seen {
		types[i] = n.Type
	}
	return types
}

// OfType returns the payloads of the given notification type in order.
func (r *Recorder) OfType(eventType string) []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payload
	for _, n := range r.seen {
		if n.Type == eventType {
			out = append(out, n.Data)
		}
	}
	return out
}

// Last returns the most recent payload of the given type, or nil.
func (r *Recorder) Last(eventType string) Payload {
	all := r.OfType(eventType)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.seen = nil
	r.mu.Unlock()
}

// Fanout publishes to every non-nil publisher in order.
func Fanout(publishers ...Publisher) Publisher {
	return PublisherFunc(func(sessionID string, payload Payload) {
		for _, p := range publishers {
			if p != nil {
				p.Publish(sessionID, payload)
			}
		}
	})
}

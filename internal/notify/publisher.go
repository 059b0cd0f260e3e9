// Package notify carries ledger notifications to whoever listens. The core
// publishes after a transition commits; a failed publish never unwinds the
// transition.
package notify

import "sync"

// Publisher delivers one notification payload on a topic.
type Publisher interface {
	Publish(topic string, payload any) error
}

// Discard drops every notification. Used when no broker is configured.
type Discard struct{}

func (Discard) Publish(string, any) error { return nil }

// Recorded is one captured notification.
type Recorded struct {
	Topic   string
	Payload any
}

// Recorder keeps notifications in memory for tests.
type Recorder struct {
	mu   sync.Mutex
	msgs []Recorded
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(topic string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, Recorded{Topic: topic, Payload: payload})
	return nil
}

// Messages returns a copy of everything published so far.
func (r *Recorder) Messages() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.msgs))
	copy(out, r.msgs)
	return out
}

// ByTopic returns the captured notifications for a single topic.
func (r *Recorder) ByTopic(topic string) []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Recorded
	for _, m := range r.msgs {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

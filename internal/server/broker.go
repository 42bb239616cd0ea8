package server

import (
	"encoding/json"
	"sync"

	"github.com/Pusher91/fieldbutton/internal/domain"
)

type message struct {
	Event  string
	Domain string
	Data   string
}

type broker struct {
	mu   sync.Mutex
	subs map[chan message]struct{}
}

func newBroker() *broker {
	return &broker{subs: make(map[chan message]struct{})}
}

func (b *broker) subscribe() chan message {
	ch := make(chan message, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *broker) unsubscribe(ch chan message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// closeAll ends every open stream.
func (b *broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
}

// publish drops the message for subscribers whose buffer is full.
func (b *broker) publish(msg message) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- msg:
		default:
		}
	}
	b.mu.Unlock()
}

func (b *broker) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CloseStreams disconnects /events subscribers so a graceful shutdown
// does not wait on them.
func (s *Server) CloseStreams() { s.broker.closeAll() }

// Emit publishes a registration event to /events subscribers.
func (s *Server) Emit(event string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("Dropping unencodable event", "event", event, "error", err)
		return
	}
	msg := message{Event: event, Data: string(b)}
	switch p := payload.(type) {
	case domain.AttemptMsg:
		msg.Domain = p.Domain
	case domain.ResultMsg:
		msg.Domain = p.Domain
	}
	s.broker.publish(msg)
}

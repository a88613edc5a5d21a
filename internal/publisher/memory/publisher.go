// Package memory provides an in-process publisher for development and
// tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// Event is one published message.
type Event struct {
	Topic   string
	Payload []byte
}

// Publisher records events in memory.
type Publisher struct {
	mu     sync.Mutex
	events []Event
}

// New constructs a Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish marshals the payload and appends it to the event log.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, Event{Topic: topic, Payload: data})
	return strconv.Itoa(len(p.events)), nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

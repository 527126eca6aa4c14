package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ActionUpdateSettings is the only broadcast action.
const ActionUpdateSettings = "updateSettings"

// ErrUnknownAction is returned by DecodeMessage for other actions.
var ErrUnknownAction = errors.New("unknown broadcast action")

// Message is the broadcast payload sent to every active engine.
type Message struct {
	Action   string   `json:"action"`
	Settings Settings `json:"settings"`
}

// UpdateMessage builds an updateSettings message.
func UpdateMessage(hideEmails, hideIps bool) Message {
	return Message{
		Action:   ActionUpdateSettings,
		Settings: Settings{HideEmails: hideEmails, HideIps: hideIps},
	}
}

// DecodeMessage parses a JSON broadcast and rejects unknown actions.
// Flags missing from the payload default to true.
func DecodeMessage(data []byte) (Message, error) {
	var raw struct {
		Action   string `json:"action"`
		Settings struct {
			HideEmails *bool `json:"hideEmails"`
			HideIps    *bool `json:"hideIps"`
		} `json:"settings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, fmt.Errorf("failed to decode broadcast: %w", err)
	}
	if raw.Action != ActionUpdateSettings {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownAction, raw.Action)
	}
	values := make(map[string]bool, 2)
	if raw.Settings.HideEmails != nil {
		values[KeyHideEmails] = *raw.Settings.HideEmails
	}
	if raw.Settings.HideIps != nil {
		values[KeyHideIps] = *raw.Settings.HideIps
	}
	return Message{Action: raw.Action, Settings: FromValues(values)}, nil
}

// Hub delivers broadcasts to every subscribed engine.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscription is one engine's end of the hub.
type Subscription struct {
	hub  *Hub
	c    chan Message
	once sync.Once
}

// C returns the channel messages arrive on. It is closed by Close.
func (s *Subscription) C() <-chan Message {
	return s.c
}

// Close unsubscribes. Messages broadcast afterwards are not delivered.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.c)
		s.hub.mu.Unlock()
	})
}

// Subscribe registers a new receiver with the given buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{hub: h, c: make(chan Message, buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Broadcast sends msg to every subscriber without blocking and returns how
// many received it. A subscriber whose buffer is full misses the message;
// failed deliveries are not errors and are not retried.
func (h *Hub) Broadcast(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for s := range h.subs {
		select {
		case s.c <- msg:
			delivered++
		default:
		}
	}
	return delivered
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Package events provides a fixed-capacity registry that dispatches system
// events to subscribed handlers.
package events

import (
	"errors"
	"fmt"
	"reflect"
)

// ID identifies a system event.
type ID int

// System events dispatched by the recording screen and its collaborators.
const (
	ActionUpdate      ID = iota + 1 // screen contents changed and should be redrawn
	RecordingStarted                // a take (or a new file of a take) started
	RecordingStopped                // recording stopped
	FileClosed                      // a take file was closed; data is a Take
	GainChanged                     // recording gain changed; data is a Gain
	TriggerChanged                  // trigger state changed; data is the new state name
	AudioError                      // the audio backend reported an error; data is a Take with Err set
	ShutdownRequested               // a stop-and-shutdown was requested
	SettingsSaved                   // recording settings were written to disk
)

var idNames = map[ID]string{
	ActionUpdate:      "action_update",
	RecordingStarted:  "recording_started",
	RecordingStopped:  "recording_stopped",
	FileClosed:        "file_closed",
	GainChanged:       "gain_changed",
	TriggerChanged:    "trigger_changed",
	AudioError:        "audio_error",
	ShutdownRequested: "shutdown_requested",
	SettingsSaved:     "settings_saved",
}

// String returns the event name.
func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return fmt.Sprintf("event_%d", int(id))
}

// DefaultCapacity is the number of subscription slots used by New when no capacity is given.
const DefaultCapacity = 32

// Sentinel errors for registry operations.
var (
	// ErrAlreadySubscribed is returned when the (id, handler) pair is already registered.
	ErrAlreadySubscribed = errors.New("handler already subscribed to event")

	// ErrRegistryFull is returned when no free slot is left. It indicates a
	// misconfigured capacity and should be treated as fatal by the caller.
	ErrRegistryFull = errors.New("event registry full")

	// ErrNotSubscribed is returned when removing a subscription that does not exist.
	ErrNotSubscribed = errors.New("event subscription not found")

	// ErrHandlerNotComparable is returned for handlers whose dynamic type cannot be compared.
	ErrHandlerNotComparable = errors.New("event handler is not comparable")
)

// Handler receives dispatched events.
//
// Handlers are identified by interface equality, so implementations should
// use pointer receivers. HandleEvent runs on the dispatching goroutine and
// must not block.
type Handler interface {
	HandleEvent(id ID, data any)
}

type slot struct {
	id      ID
	handler Handler
}

// Registry maps event IDs to handlers in a fixed number of slots.
//
// Registry is not safe for concurrent use; all calls must come from the
// goroutine that owns it.
type Registry struct {
	slots []slot
}

// New returns a registry with the given number of slots.
func New(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{slots: make([]slot, capacity)}
}

// Subscribe registers handler for id in the first free slot.
func (r *Registry) Subscribe(id ID, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("subscribe %s: nil handler", id)
	}
	if !reflect.TypeOf(handler).Comparable() {
		return fmt.Errorf("subscribe %s: %w", id, ErrHandlerNotComparable)
	}

	free := -1
	for i, s := range r.slots {
		if s.handler == nil {
			if free == -1 {
				free = i
			}
			continue
		}
		if s.id == id && s.handler == handler {
			return ErrAlreadySubscribed
		}
	}
	if free == -1 {
		return fmt.Errorf("subscribe %s: %w", id, ErrRegistryFull)
	}

	r.slots[free] = slot{id: id, handler: handler}
	return nil
}

// Unsubscribe removes the subscription of handler for id.
func (r *Registry) Unsubscribe(id ID, handler Handler) error {
	for i, s := range r.slots {
		if s.handler != nil && s.id == id && s.handler == handler {
			r.slots[i] = slot{}
			return nil
		}
	}
	return fmt.Errorf("unsubscribe %s: %w", id, ErrNotSubscribed)
}

// Dispatch calls every handler subscribed to id in slot order.
// When oneShot is set, each matching slot is cleared after its handler returns.
func (r *Registry) Dispatch(id ID, oneShot bool, data any) {
	for i := range r.slots {
		s := r.slots[i]
		if s.handler == nil || s.id != id {
			continue
		}
		s.handler.HandleEvent(id, data)
		if oneShot && r.slots[i] == s {
			r.slots[i] = slot{}
		}
	}
}

// Len returns the number of live subscriptions.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.slots {
		if s.handler != nil {
			n++
		}
	}
	return n
}

// Cap returns the number of slots.
func (r *Registry) Cap() int {
	return len(r.slots)
}

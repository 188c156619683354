package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/newhook/plclog/internal/logging"
)

// EventType names the payload kind of a stream event.
type EventType string

const (
	EventClassification EventType = "classification"
	EventSuggestions    EventType = "suggestions"
	EventParsedErrors   EventType = "parsed_errors"
	EventComplete       EventType = "complete"
	EventError          EventType = "error"
)

// Event is one frame of the streaming contract.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// CompletePayload is the payload of the complete event.
type CompletePayload struct {
	Status string `json:"status"`
}

// ErrorPayload is the payload of the error event.
type ErrorPayload struct {
	Detail string `json:"detail"`
}

// State is a position in the stream's lifecycle.
type State int

const (
	StatePending State = iota
	StateClassificationSent
	StateSuggestionsSent
	StateParsedErrorsSent
	StateComplete
	StateError
)

var stateNames = map[State]string{
	StatePending:            "pending",
	StateClassificationSent: "classification_sent",
	StateSuggestionsSent:    "suggestions_sent",
	StateParsedErrorsSent:   "parsed_errors_sent",
	StateComplete:           "complete",
	StateError:              "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further events may follow.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateError
}

// ErrIllegalTransition is returned when an event does not fit the stream's
// current state.
var ErrIllegalTransition = errors.New("illegal stream transition")

// transitions lists the only event accepted in each non-terminal state
// besides error.
var transitions = map[State]struct {
	event EventType
	next  State
}{
	StatePending:            {EventClassification, StateClassificationSent},
	StateClassificationSent: {EventSuggestions, StateSuggestionsSent},
	StateSuggestionsSent:    {EventParsedErrors, StateParsedErrorsSent},
	StateParsedErrorsSent:   {EventComplete, StateComplete},
}

// Machine tracks the stream state and rejects out-of-order events.
type Machine struct {
	state State
}

// NewMachine returns a machine in the pending state.
func NewMachine() *Machine {
	return &Machine{state: StatePending}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Advance applies an event. An error event is legal from every non-terminal
// state.
func (m *Machine) Advance(ev EventType) error {
	if m.state.Terminal() {
		return fmt.Errorf("%w: %s after %s", ErrIllegalTransition, ev, m.state)
	}
	if ev == EventError {
		m.state = StateError
		return nil
	}
	t := transitions[m.state]
	if t.event != ev {
		return fmt.Errorf("%w: %s in state %s", ErrIllegalTransition, ev, m.state)
	}
	m.state = t.next
	return nil
}

// maxStreamEvents is the longest legal event sequence.
const maxStreamEvents = 4

// Stream runs the same steps as Analyze but reports each result as soon as
// it is available. The channel yields events in order and is closed after a
// complete or error event.
func (a *Analyzer) Stream(ctx context.Context, raw string) <-chan Event {
	ch := make(chan Event, maxStreamEvents)
	go func() {
		defer close(ch)
		m := NewMachine()
		emit := func(t EventType, payload any) bool {
			if err := m.Advance(t); err != nil {
				logging.Error("dropping stream event", "error", err)
				return false
			}
			ch <- Event{Type: t, Payload: payload}
			return true
		}
		fail := func(err error) {
			emit(EventError, ErrorPayload{Detail: err.Error()})
		}

		result := a.parser.Parse(raw)
		if len(result.Errors) == 0 {
			fail(ErrNoErrors)
			return
		}

		cls, err := a.classify(ctx, result)
		if err != nil {
			fail(err)
			return
		}
		if !emit(EventClassification, cls) {
			return
		}

		suggestions, err := a.suggester.Suggest(ctx, result, cls)
		if err != nil {
			fail(fmt.Errorf("failed to suggest fixes: %w", err))
			return
		}
		if !emit(EventSuggestions, suggestions) {
			return
		}
		if !emit(EventParsedErrors, result.Errors) {
			return
		}
		emit(EventComplete, CompletePayload{Status: "ok"})
	}()
	return ch
}

// WriteSSE writes ev as a Server-Sent Events data frame.
func WriteSSE(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

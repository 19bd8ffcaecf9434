package registrations

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
)

// State is the step of a registration attempt.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateSuccess    State = "success"
	StateFailed     State = "failed"
)

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateSubmitting, StateFailed},
	StateSubmitting: {StateSuccess, StateFailed},
	StateSuccess:    {StateIdle},
	StateFailed:     {StateIdle, StateValidating},
}

// Attempt tracks one RSVP submission. Field errors only ever come from
// validation; submission failures carry a single general message.
type Attempt struct {
	mu           sync.RWMutex
	state        State
	fields       map[string]string
	message      string
	registration *models.EventRegistration
	event        *models.Event
}

func NewAttempt() *Attempt {
	return &Attempt{state: StateIdle}
}

func (a *Attempt) move(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ok := range transitions[a.state] {
		if ok == to {
			a.state = to
			return nil
		}
	}
	return fmt.Errorf("registration attempt cannot go from %s to %s", a.state, to)
}

func (a *Attempt) fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateFailed
	a.fields = nil
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind == apperr.KindValidation {
		a.fields = ae.Fields
	}
	a.message = generalMessage(err)
}

func (a *Attempt) succeed(reg models.EventRegistration, ev models.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = StateSuccess
	a.registration = &reg
	a.event = &ev
	a.fields = nil
	a.message = ""
}

// Reset returns a finished attempt to idle, clearing its results.
func (a *Attempt) Reset() error {
	if err := a.move(StateIdle); err != nil {
		return err
	}
	a.mu.Lock()
	a.fields, a.message, a.registration, a.event = nil, "", nil, nil
	a.mu.Unlock()
	return nil
}

func (a *Attempt) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Fields returns per-field validation messages.
func (a *Attempt) Fields() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.fields
}

// Message returns the general failure message.
func (a *Attempt) Message() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.message
}

// Result returns the stored registration and the updated event after success.
func (a *Attempt) Result() (*models.EventRegistration, *models.Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.registration, a.event
}

func generalMessage(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return ae.Message
		}
	case apperr.KindNotFound:
		return "event not found"
	case apperr.KindConflict:
		return "not enough places left for this registration"
	case apperr.KindNetwork:
		return "could not reach the server, please try again"
	}
	return "registration failed, please try again"
}

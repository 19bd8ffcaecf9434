package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the lifecycle state of an RSVP.
type RegistrationStatus string

const (
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// EventRegistration is one RSVP for an event. Creating it adds Guests to the
// event's CurrentAttendees; cancelling it does not give the seats back.
type EventRegistration struct {
	ID        uuid.UUID          `json:"id"`
	EventID   uuid.UUID          `json:"event_id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Phone     string             `json:"phone,omitempty"`
	Guests    int                `json:"guests"`
	Notes     string             `json:"notes,omitempty"`
	Status    RegistrationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

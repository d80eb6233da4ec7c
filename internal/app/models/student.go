package models

import "time"

// Student defines the student model based on the 'students' table
type Student struct {
	ID         int64     `json:"id" db:"id" example:"1"`
	FirstName  string    `json:"firstName" db:"first_name" example:"Ada"`
	LastName   string    `json:"lastName" db:"last_name" example:"Lovelace"`
	// MaxSlots is the quota of simultaneously held slots
	MaxSlots   int       `json:"maxSlots" db:"max_slots" example:"2"`
	// UniqueLink is an opaque access token, not a credential
	UniqueLink string    `json:"uniqueLink" db:"unique_link" example:"alovelace-3f9a"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`

	// Relations (populated when needed)
	Bookings []*Booking `json:"bookings,omitempty"`
}

// FullName returns "First Last"
func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

package models

import "time"

// Booking assigns one slot to one student
type Booking struct {
	ID        int64     `json:"id" db:"id" example:"12"`
	StudentID int64     `json:"studentId" db:"student_id" example:"1"`
	SlotID    int64     `json:"slotId" db:"slot_id" example:"5"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// Relations (populated when needed)
	Slot    *Slot    `json:"slot,omitempty"`
	Student *Student `json:"student,omitempty"`
}

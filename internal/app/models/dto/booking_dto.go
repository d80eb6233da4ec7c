package dto

import (
	"time"

	"github.com/yigit/slotbook/internal/app/models"
)

// ReplaceBookingsRequest replaces the full booking set of a student
type ReplaceBookingsRequest struct {
	StudentID int64   `json:"studentId" binding:"required,gt=0" example:"1"`
	SlotIDs   []int64 `json:"slotIds" binding:"required,min=1,dive,gt=0" example:"5,6"`
}

// BookingResponse is a booking with its slot and, for admin listings, its student
type BookingResponse struct {
	ID        int64           `json:"id" example:"12"`
	StudentID int64           `json:"studentId" example:"1"`
	SlotID    int64           `json:"slotId" example:"5"`
	CreatedAt time.Time       `json:"createdAt"`
	Slot      *SlotResponse   `json:"slot,omitempty"`
	Student   *StudentSummary `json:"student,omitempty"`
}

// StudentSummary is the student part of an admin booking listing
type StudentSummary struct {
	ID        int64  `json:"id" example:"1"`
	FirstName string `json:"firstName" example:"Ada"`
	LastName  string `json:"lastName" example:"Lovelace"`
}

// NewBookingResponse converts a booking model
func NewBookingResponse(b *models.Booking) BookingResponse {
	resp := BookingResponse{
		ID:        b.ID,
		StudentID: b.StudentID,
		SlotID:    b.SlotID,
		CreatedAt: b.CreatedAt,
	}
	if b.Slot != nil {
		slot := NewSlotResponse(b.Slot)
		resp.Slot = &slot
	}
	if b.Student != nil {
		resp.Student = &StudentSummary{
			ID:        b.Student.ID,
			FirstName: b.Student.FirstName,
			LastName:  b.Student.LastName,
		}
	}
	return resp
}

// NewBookingResponses converts a list of booking models
func NewBookingResponses(bookings []*models.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, NewBookingResponse(b))
	}
	return out
}

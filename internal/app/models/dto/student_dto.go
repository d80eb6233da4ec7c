package dto

import (
	"time"

	"github.com/yigit/slotbook/internal/app/models"
)

// CreateStudentRequest represents student creation data
type CreateStudentRequest struct {
	FirstName string `json:"firstName" binding:"required,personname" example:"Ada"`
	LastName  string `json:"lastName" binding:"required,personname" example:"Lovelace"`
	MaxSlots  int    `json:"maxSlots" binding:"required,gte=1,max=50" example:"2"`
}

// UpdateStudentRequest is a partial update; omitted fields keep their value
type UpdateStudentRequest struct {
	FirstName *string `json:"firstName,omitempty" binding:"omitempty,personname" example:"Ada"`
	LastName  *string `json:"lastName,omitempty" binding:"omitempty,personname" example:"Byron"`
	MaxSlots  *int    `json:"maxSlots,omitempty" binding:"omitempty,gte=1,max=50" example:"3"`
}

// StudentResponse is a student with its current bookings
type StudentResponse struct {
	ID            int64             `json:"id" example:"1"`
	FirstName     string            `json:"firstName" example:"Ada"`
	LastName      string            `json:"lastName" example:"Lovelace"`
	MaxSlots      int               `json:"maxSlots" example:"2"`
	UniqueLink    string            `json:"uniqueLink" example:"alovelace-3f9a"`
	CreatedAt     time.Time         `json:"createdAt"`
	BookingsCount int               `json:"bookingsCount" example:"1"`
	Bookings      []BookingResponse `json:"bookings"`
}

// NewStudentResponse converts a student model including its bookings
func NewStudentResponse(s *models.Student) StudentResponse {
	return StudentResponse{
		ID:            s.ID,
		FirstName:     s.FirstName,
		LastName:      s.LastName,
		MaxSlots:      s.MaxSlots,
		UniqueLink:    s.UniqueLink,
		CreatedAt:     s.CreatedAt,
		BookingsCount: len(s.Bookings),
		Bookings:      NewBookingResponses(s.Bookings),
	}
}

// NewStudentResponses converts a list of student models
func NewStudentResponses(students []*models.Student) []StudentResponse {
	out := make([]StudentResponse, 0, len(students))
	for _, s := range students {
		out = append(out, NewStudentResponse(s))
	}
	return out
}

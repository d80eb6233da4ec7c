package dto

import "github.com/yigit/slotbook/internal/app/models"

// SlotResponse is a slot of the weekly grid
type SlotResponse struct {
	ID       int64              `json:"id" example:"5"`
	Day      models.Day         `json:"day" example:"Monday"`
	Hour     string             `json:"hour" example:"16:00"`
	IsBooked bool               `json:"isBooked" example:"false"`
	Holder   *models.SlotHolder `json:"holder,omitempty"`
}

// NewSlotResponse converts a slot model
func NewSlotResponse(s *models.Slot) SlotResponse {
	return SlotResponse{
		ID:       s.ID,
		Day:      s.Day,
		Hour:     s.Hour,
		IsBooked: s.IsBooked,
		Holder:   s.Holder,
	}
}

// NewSlotResponses converts a list of slot models
func NewSlotResponses(slots []*models.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, NewSlotResponse(s))
	}
	return out
}

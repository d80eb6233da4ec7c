package models

import "sort"

// Slot is one bookable cell of the weekly grid
type Slot struct {
	ID       int64  `json:"id" db:"id" example:"5"`
	Day      Day    `json:"day" db:"day" example:"Monday"`
	Hour     string `json:"hour" db:"hour" example:"16:00"`
	IsBooked bool   `json:"isBooked" db:"is_booked"` // Derived from the bookings table

	// Holder is set on admin listings when the slot is booked
	Holder *SlotHolder `json:"holder,omitempty"`
}

// SlotHolder names the student holding a slot
type SlotHolder struct {
	StudentID int64  `json:"studentId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// SortSlots orders slots by weekday, then hour, then id
func SortSlots(slots []*Slot) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if oa, ob := a.Day.Order(), b.Day.Order(); oa != ob {
			return oa < ob
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.ID < b.ID
	})
}

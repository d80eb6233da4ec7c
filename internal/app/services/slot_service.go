package services

import (
	"context"

	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/app/repositories"
)

// SlotService defines read access to the slot catalog
type SlotService interface {
	ListFreeSlots(ctx context.Context) ([]*models.Slot, error)
	ListAllSlots(ctx context.Context) ([]*models.Slot, error)
	Snapshot(ctx context.Context) ([]*models.Slot, error)
}

type slotServiceImpl struct {
	store repositories.Store
}

// NewSlotService creates a new slot service instance
func NewSlotService(store repositories.Store) SlotService {
	return &slotServiceImpl{store: store}
}

// ListFreeSlots returns the unbooked slots in week order
func (s *slotServiceImpl) ListFreeSlots(ctx context.Context) ([]*models.Slot, error) {
	slots, err := s.store.ListSlots(ctx, true)
	if err != nil {
		return nil, translateStorageError(err, "failed to load slots")
	}
	return slots, nil
}

// ListAllSlots returns the whole grid with the holder of each booked slot
func (s *slotServiceImpl) ListAllSlots(ctx context.Context) ([]*models.Slot, error) {
	slots, err := s.store.ListSlotsWithHolders(ctx)
	if err != nil {
		return nil, translateStorageError(err, "failed to load slots")
	}
	return slots, nil
}

// Snapshot returns the whole grid without holder names
func (s *slotServiceImpl) Snapshot(ctx context.Context) ([]*models.Slot, error) {
	slots, err := s.store.ListSlots(ctx, false)
	if err != nil {
		return nil, translateStorageError(err, "failed to load slots")
	}
	return slots, nil
}

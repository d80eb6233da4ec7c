package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/app/repositories"
	"github.com/yigit/slotbook/internal/pkg/apperrors"
	"github.com/yigit/slotbook/internal/pkg/dberrors"
	"github.com/yigit/slotbook/internal/pkg/metrics"
)

// BookingService is the booking coordinator. Every mutation runs in one
// transaction that locks the student row, then the slot rows in ascending id
// order, then touches the bookings, and finally recomputes is_booked from the
// ledger for every slot it touched.
type BookingService interface {
	ReplaceBookings(ctx context.Context, studentID int64, slotIDs []int64) ([]*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64) error
	DeleteStudent(ctx context.Context, studentID int64) error
	ListBookings(ctx context.Context) ([]*models.Booking, error)
}

// bookingServiceImpl implements the BookingService interface
type bookingServiceImpl struct {
	store    repositories.Store
	notifier SlotNotifier
	metrics  metrics.Recorder
	logger   zerolog.Logger

	// publishMu orders feed updates: each one re-reads committed state
	publishMu sync.Mutex
}

// NewBookingService creates a new booking coordinator
func NewBookingService(store repositories.Store, notifier SlotNotifier, recorder metrics.Recorder, logger zerolog.Logger) BookingService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &bookingServiceImpl{
		store:    store,
		notifier: notifier,
		metrics:  recorder,
		logger:   logger,
	}
}

// normalizeSlotIDs rejects empty or non-positive input and returns the
// distinct ids in ascending order.
func normalizeSlotIDs(slotIDs []int64) ([]int64, error) {
	if len(slotIDs) == 0 {
		return nil, apperrors.ErrNoSlotsSelected
	}

	seen := make(map[int64]struct{}, len(slotIDs))
	ids := make([]int64, 0, len(slotIDs))
	for _, id := range slotIDs {
		if id <= 0 {
			return nil, apperrors.NewValidationError(fmt.Sprintf("invalid slot id %d", id))
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// unionIDs merges sorted id lists into one sorted list without duplicates
func unionIDs(lists ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	out := []int64{}
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// requestedSlots keeps the slots whose id is in ids
func requestedSlots(slots []*models.Slot, ids []int64) []*models.Slot {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]*models.Slot, 0, len(ids))
	for _, slot := range slots {
		if want[slot.ID] {
			out = append(out, slot)
		}
	}
	return out
}

func slotTakenError(slotIDs []int64) error {
	return &apperrors.CustomError{
		Err:     apperrors.ErrConflict,
		Message: apperrors.ErrSlotTaken.Error(),
		Details: map[string]interface{}{"slotIds": slotIDs},
	}
}

func missingSlotsError(requested []int64, found []*models.Slot) error {
	exists := make(map[int64]bool, len(found))
	for _, s := range found {
		exists[s.ID] = true
	}
	missing := []int64{}
	for _, id := range requested {
		if !exists[id] {
			missing = append(missing, id)
		}
	}
	return &apperrors.CustomError{
		Err:     apperrors.ErrResourceNotFound,
		Message: apperrors.ErrSlotNotFound.Error(),
		Details: map[string]interface{}{"slotIds": missing},
	}
}

// lockStudent locks the student row, mapping a missing row to notFound
func lockStudent(ctx context.Context, q repositories.Queries, studentID int64, notFound error) (*models.Student, error) {
	student, err := q.GetStudentForUpdate(ctx, studentID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, notFound
	}
	return student, err
}

func (s *bookingServiceImpl) record(op string, start time.Time, err error) {
	s.metrics.RecordOperation(op, outcomeOf(err), time.Since(start))
}

// ReplaceBookings makes the requested slots the complete booking set of the
// student. Bookings on slots the student keeps are left untouched, so calling
// it twice with the same ids changes nothing.
func (s *bookingServiceImpl) ReplaceBookings(ctx context.Context, studentID int64, slotIDs []int64) (result []*models.Booking, err error) {
	start := time.Now()
	defer func() { s.record(metrics.OpReplaceBookings, start, err) }()

	ids, err := normalizeSlotIDs(slotIDs)
	if err != nil {
		return nil, err
	}
	if studentID <= 0 {
		return nil, apperrors.ErrStudentNotFound
	}

	var (
		bookings []*models.Booking
		touched  []*models.Slot
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context, q repositories.Queries) error {
		student, err := lockStudent(ctx, q, studentID, apperrors.ErrStudentNotFound)
		if err != nil {
			return err
		}

		if len(ids) > student.MaxSlots {
			return apperrors.NewQuotaExceededError(student.MaxSlots)
		}

		// Slots the student may release are locked together with the
		// requested ones, so every slot row is taken in ascending id order.
		held, err := q.ListBookingsByStudents(ctx, []int64{studentID})
		if err != nil {
			return err
		}
		heldSlots := make([]int64, 0, len(held))
		for _, b := range held {
			heldSlots = append(heldSlots, b.SlotID)
		}

		locked, err := q.LockSlots(ctx, unionIDs(heldSlots, ids))
		if err != nil {
			return err
		}
		if slots := requestedSlots(locked, ids); len(slots) != len(ids) {
			return missingSlotsError(ids, slots)
		}

		// Holders are read after the slot locks, so a concurrent claimant
		// that committed first is visible here.
		holders, err := q.ListBookingsBySlots(ctx, ids)
		if err != nil {
			return err
		}

		kept := []*models.Booking{}
		keptSlots := map[int64]bool{}
		taken := []int64{}
		for _, b := range holders {
			if b.StudentID == studentID {
				kept = append(kept, b)
				keptSlots[b.SlotID] = true
			} else {
				taken = append(taken, b.SlotID)
			}
		}
		if len(taken) > 0 {
			return slotTakenError(taken)
		}

		keep := make([]int64, 0, len(kept))
		add := make([]int64, 0, len(ids))
		for _, id := range ids {
			if keptSlots[id] {
				keep = append(keep, id)
			} else {
				add = append(add, id)
			}
		}

		released, err := q.DeleteBookingsByStudent(ctx, studentID, keep)
		if err != nil {
			return err
		}

		created, err := q.InsertBookings(ctx, studentID, add)
		if err != nil {
			return err
		}

		touched, err = q.RecomputeOccupancy(ctx, unionIDs(released, ids))
		if err != nil {
			return err
		}

		bookings = append(kept, created...)
		return nil
	})
	if err != nil {
		err = translateStorageError(err, "failed to save bookings")
		s.logFailure(err, "Replace bookings failed", studentID)
		return nil, err
	}

	attachSlots(bookings, touched)
	s.publish(ctx, touched)

	s.logger.Info().
		Int64("studentID", studentID).
		Ints64("slotIDs", ids).
		Msg("Bookings replaced")

	return bookings, nil
}

// attachSlots sets Booking.Slot from the recomputed slot states and orders
// the bookings like the grid.
func attachSlots(bookings []*models.Booking, slots []*models.Slot) {
	byID := make(map[int64]*models.Slot, len(slots))
	for _, slot := range slots {
		byID[slot.ID] = slot
	}
	for _, b := range bookings {
		if slot, ok := byID[b.SlotID]; ok {
			b.Slot = slot
		}
	}
	sortBookingsBySlot(bookings)
}

// sortBookingsBySlot orders bookings like the weekly grid
func sortBookingsBySlot(bookings []*models.Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		a, b := bookings[i].Slot, bookings[j].Slot
		if a == nil || b == nil {
			return bookings[i].SlotID < bookings[j].SlotID
		}
		if oa, ob := a.Day.Order(), b.Day.Order(); oa != ob {
			return oa < ob
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.ID < b.ID
	})
}

// CancelBooking deletes one booking and frees its slot
func (s *bookingServiceImpl) CancelBooking(ctx context.Context, bookingID int64) (err error) {
	start := time.Now()
	defer func() { s.record(metrics.OpCancelBooking, start, err) }()

	if bookingID <= 0 {
		return apperrors.ErrBookingNotFound
	}

	// Unlocked read to learn which student and slot to lock
	existing, err := s.store.GetBookingByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.ErrBookingNotFound
		}
		return translateStorageError(err, "failed to cancel booking")
	}

	var touched []*models.Slot
	err = s.store.RunInTx(ctx, func(ctx context.Context, q repositories.Queries) error {
		if _, err := lockStudent(ctx, q, existing.StudentID, apperrors.ErrBookingNotFound); err != nil {
			return err
		}
		if _, err := q.LockSlots(ctx, []int64{existing.SlotID}); err != nil {
			return err
		}

		if _, err := q.GetBookingForUpdate(ctx, bookingID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrBookingNotFound
			}
			return err
		}

		slotID, err := q.DeleteBooking(ctx, bookingID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrBookingNotFound
			}
			return err
		}

		// The slot is freed only if no other booking still references it
		touched, err = q.RecomputeOccupancy(ctx, []int64{slotID})
		return err
	})
	if err != nil {
		// A cancel has no business conflict; a lost lock race is a server fault
		if dberrors.IsConcurrencyFailure(err) {
			err = apperrors.NewInternalError("failed to cancel booking", err)
		}
		err = translateStorageError(err, "failed to cancel booking")
		s.logFailure(err, "Cancel booking failed", existing.StudentID)
		return err
	}

	s.publish(ctx, touched)

	s.logger.Info().
		Int64("bookingID", bookingID).
		Int64("studentID", existing.StudentID).
		Int64("slotID", existing.SlotID).
		Msg("Booking cancelled")

	return nil
}

// DeleteStudent removes a student together with its bookings and frees the
// released slots in the same transaction.
func (s *bookingServiceImpl) DeleteStudent(ctx context.Context, studentID int64) (err error) {
	start := time.Now()
	defer func() { s.record(metrics.OpDeleteStudent, start, err) }()

	if studentID <= 0 {
		return apperrors.ErrStudentNotFound
	}

	var touched []*models.Slot
	err = s.store.RunInTx(ctx, func(ctx context.Context, q repositories.Queries) error {
		if _, err := lockStudent(ctx, q, studentID, apperrors.ErrStudentNotFound); err != nil {
			return err
		}

		held, err := q.ListBookingsByStudents(ctx, []int64{studentID})
		if err != nil {
			return err
		}
		heldSlots := make([]int64, 0, len(held))
		for _, b := range held {
			heldSlots = append(heldSlots, b.SlotID)
		}
		if _, err := q.LockSlots(ctx, unionIDs(heldSlots)); err != nil {
			return err
		}

		released, err := q.DeleteBookingsByStudent(ctx, studentID, nil)
		if err != nil {
			return err
		}

		if err := q.DeleteStudent(ctx, studentID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrStudentNotFound
			}
			return err
		}

		touched, err = q.RecomputeOccupancy(ctx, released)
		return err
	})
	if err != nil {
		err = translateStorageError(err, "failed to delete student")
		s.logFailure(err, "Delete student failed", studentID)
		return err
	}

	s.publish(ctx, touched)

	s.logger.Info().
		Int64("studentID", studentID).
		Int("releasedSlots", len(touched)).
		Msg("Student deleted")

	return nil
}

// publish sends the committed state of the touched slots to the feed. The
// state is re-read under publishMu instead of taken from the transaction, so
// a broadcast never carries older state than the one before it even when
// commits finish publishing out of order.
func (s *bookingServiceImpl) publish(ctx context.Context, touched []*models.Slot) {
	if len(touched) == 0 {
		return
	}
	ids := make([]int64, 0, len(touched))
	for _, slot := range touched {
		ids = append(ids, slot.ID)
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	current, err := s.store.ListSlotsByIDs(context.WithoutCancel(ctx), ids)
	if err != nil {
		s.logger.Warn().Err(err).Ints64("slotIDs", ids).Msg("Failed to read slots for the live feed")
		return
	}
	s.notifier.PublishSlots(current)
}

// ListBookings returns every booking with slot and student, newest first
func (s *bookingServiceImpl) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	bookings, err := s.store.ListBookings(ctx)
	if err != nil {
		return nil, translateStorageError(err, "failed to load bookings")
	}
	return bookings, nil
}

// logFailure logs internal errors loudly and business rejections quietly
func (s *bookingServiceImpl) logFailure(err error, msg string, studentID int64) {
	if errors.Is(err, apperrors.ErrInternal) {
		s.logger.Error().Err(err).Int64("studentID", studentID).Msg(msg)
		return
	}
	s.logger.Info().Int64("studentID", studentID).Str("reason", err.Error()).Msg(msg)
}

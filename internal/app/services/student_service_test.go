package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"github.com/yigit/slotbook/internal/pkg/apperrors"
)

func newStudentFixture(t *testing.T) (*memStore, BookingService, *studentServiceImpl) {
	t.Helper()
	store := newMemStore()
	store.addGrid([]models.Day{models.DayMonday, models.DayFriday}, []string{"09:00", "10:00"})
	coordinator := NewBookingService(store, nil, nil, zerolog.Nop())
	svc := NewStudentService(store, coordinator, zerolog.Nop()).(*studentServiceImpl)
	return store, coordinator, svc
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestCreateStudent(t *testing.T) {
	_, _, svc := newStudentFixture(t)

	student, err := svc.CreateStudent(context.Background(), dto.CreateStudentRequest{
		FirstName: "  Ada ",
		LastName:  "Lovelace",
		MaxSlots:  2,
	})
	require.NoError(t, err)

	assert.NotZero(t, student.ID)
	assert.Equal(t, "Ada", student.FirstName)
	assert.Regexp(t, `^alovelace-[0-9a-f]{4}$`, student.UniqueLink)
	assert.Empty(t, student.Bookings)

	found, err := svc.GetStudentByLink(context.Background(), student.UniqueLink)
	require.NoError(t, err)
	assert.Equal(t, student.ID, found.ID)
}

func TestCreateStudent_RetriesLinkCollision(t *testing.T) {
	store, _, svc := newStudentFixture(t)
	existing := store.addStudent("Ada", "Lovelace", 1)

	links := []string{existing.UniqueLink, existing.UniqueLink, "alovelace-beef"}
	calls := 0
	svc.newLink = func(string, string) string {
		link := links[calls]
		calls++
		return link
	}

	student, err := svc.CreateStudent(context.Background(), dto.CreateStudentRequest{FirstName: "Ada", LastName: "Lovelace", MaxSlots: 1})
	require.NoError(t, err)
	assert.Equal(t, "alovelace-beef", student.UniqueLink)
	assert.Equal(t, 3, calls)
}

func TestCreateStudent_GivesUpAfterRepeatedCollisions(t *testing.T) {
	store, _, svc := newStudentFixture(t)
	existing := store.addStudent("Ada", "Lovelace", 1)
	svc.newLink = func(string, string) string { return existing.UniqueLink }

	_, err := svc.CreateStudent(context.Background(), dto.CreateStudentRequest{FirstName: "Ada", LastName: "Lovelace", MaxSlots: 1})
	assert.ErrorIs(t, err, apperrors.ErrInternal)
}

func TestCreateStudent_Validation(t *testing.T) {
	_, _, svc := newStudentFixture(t)

	tests := []struct {
		name string
		req  dto.CreateStudentRequest
	}{
		{"blank first name", dto.CreateStudentRequest{FirstName: "  ", LastName: "Lovelace", MaxSlots: 1}},
		{"digits in last name", dto.CreateStudentRequest{FirstName: "Ada", LastName: "L0velace", MaxSlots: 1}},
		{"zero quota", dto.CreateStudentRequest{FirstName: "Ada", LastName: "Lovelace", MaxSlots: 0}},
		{"quota too large", dto.CreateStudentRequest{FirstName: "Ada", LastName: "Lovelace", MaxSlots: 51}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateStudent(context.Background(), tt.req)
			assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
		})
	}
}

func TestListStudents_WithBookings(t *testing.T) {
	store, coordinator, svc := newStudentFixture(t)
	ana := store.addStudent("Ana", "Lopez", 3)
	ben := store.addStudent("Ben", "Ito", 3)

	// slot 3 is Friday 09:00, slot 1 is Monday 09:00
	_, err := coordinator.ReplaceBookings(context.Background(), ana.ID, []int64{3, 1})
	require.NoError(t, err)

	students, err := svc.ListStudents(context.Background())
	require.NoError(t, err)
	require.Len(t, students, 2)

	assert.Equal(t, ben.ID, students[0].ID, "newest first")
	assert.Empty(t, students[0].Bookings)
	require.Len(t, students[1].Bookings, 2)
	assert.Equal(t, models.DayMonday, students[1].Bookings[0].Slot.Day)
	assert.Equal(t, models.DayFriday, students[1].Bookings[1].Slot.Day)
}

func TestGetStudent_NotFound(t *testing.T) {
	_, _, svc := newStudentFixture(t)

	_, err := svc.GetStudent(context.Background(), 7)
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	_, err = svc.GetStudentByLink(context.Background(), "  ")
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	_, err = svc.GetStudentByLink(context.Background(), "nobody-0000")
	assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}

func TestUpdateStudent(t *testing.T) {
	store, coordinator, svc := newStudentFixture(t)
	ana := store.addStudent("Ana", "Lopez", 3)

	_, err := coordinator.ReplaceBookings(context.Background(), ana.ID, []int64{1, 2})
	require.NoError(t, err)

	t.Run("partial update keeps omitted fields", func(t *testing.T) {
		updated, err := svc.UpdateStudent(context.Background(), ana.ID, dto.UpdateStudentRequest{LastName: strPtr("Lopez-Ruiz")})
		require.NoError(t, err)
		assert.Equal(t, "Ana", updated.FirstName)
		assert.Equal(t, "Lopez-Ruiz", updated.LastName)
		assert.Equal(t, 3, updated.MaxSlots)
		assert.Equal(t, ana.UniqueLink, updated.UniqueLink)
		assert.Len(t, updated.Bookings, 2)
	})

	t.Run("quota may drop to the held count", func(t *testing.T) {
		updated, err := svc.UpdateStudent(context.Background(), ana.ID, dto.UpdateStudentRequest{MaxSlots: intPtr(2)})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.MaxSlots)
	})

	t.Run("quota below the held count is a conflict", func(t *testing.T) {
		_, err := svc.UpdateStudent(context.Background(), ana.ID, dto.UpdateStudentRequest{MaxSlots: intPtr(1), FirstName: strPtr("Anna")})
		require.ErrorIs(t, err, apperrors.ErrConflict)
		assert.Equal(t, 2, apperrors.Details(err)["bookingsCount"])

		current, err := svc.GetStudent(context.Background(), ana.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", current.FirstName)
		assert.Equal(t, 2, current.MaxSlots)
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := svc.UpdateStudent(context.Background(), ana.ID, dto.UpdateStudentRequest{FirstName: strPtr("")})
		assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	})

	t.Run("missing student", func(t *testing.T) {
		_, err := svc.UpdateStudent(context.Background(), 999, dto.UpdateStudentRequest{MaxSlots: intPtr(2)})
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	})

	store.assertInvariants(t)
}

func TestStudentService_DeleteStudentCascades(t *testing.T) {
	store, coordinator, svc := newStudentFixture(t)
	ana := store.addStudent("Ana", "Lopez", 3)
	_, err := coordinator.ReplaceBookings(context.Background(), ana.ID, []int64{4})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteStudent(context.Background(), ana.ID))
	assert.False(t, store.slot(4).IsBooked)
	store.assertInvariants(t)
}

func TestStudentService_StorageFailure(t *testing.T) {
	store, _, svc := newStudentFixture(t)
	store.failAt["ListStudents"] = errors.New("connection refused")

	_, err := svc.ListStudents(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrInternal)
	assert.Equal(t, "failed to load students", err.Error())
}

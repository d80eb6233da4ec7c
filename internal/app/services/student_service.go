package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/app/models/dto"
	"github.com/yigit/slotbook/internal/app/repositories"
	"github.com/yigit/slotbook/internal/pkg/apperrors"
	"github.com/yigit/slotbook/internal/pkg/helpers"
	"github.com/yigit/slotbook/internal/pkg/validation"
)

// maxLinkAttempts bounds retries when a generated link collides
const maxLinkAttempts = 5

// StudentService defines the interface for the student directory
type StudentService interface {
	CreateStudent(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error)
	ListStudents(ctx context.Context) ([]*models.Student, error)
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	GetStudentByLink(ctx context.Context, link string) (*models.Student, error)
	UpdateStudent(ctx context.Context, id int64, req dto.UpdateStudentRequest) (*models.Student, error)
	DeleteStudent(ctx context.Context, id int64) error
}

// studentServiceImpl implements the StudentService interface
type studentServiceImpl struct {
	store       repositories.Store
	coordinator BookingService
	newLink     func(firstName, lastName string) string
	logger      zerolog.Logger
}

// NewStudentService creates a new student service instance
func NewStudentService(store repositories.Store, coordinator BookingService, logger zerolog.Logger) StudentService {
	return &studentServiceImpl{
		store:       store,
		coordinator: coordinator,
		newLink:     helpers.GenerateStudentLink,
		logger:      logger,
	}
}

// validateStudent validates student fields before database operations
func validateStudent(firstName, lastName string, maxSlots int) error {
	if !validation.IsValidName(firstName) {
		return apperrors.NewValidationError("first name is required and may contain only letters, spaces, hyphens and apostrophes")
	}
	if !validation.IsValidName(lastName) {
		return apperrors.NewValidationError("last name is required and may contain only letters, spaces, hyphens and apostrophes")
	}
	if !validation.IsValidMaxSlots(maxSlots) {
		return apperrors.NewValidationError(fmt.Sprintf("max slots must be between %d and %d", validation.MaxSlotsMin, validation.MaxSlotsMax))
	}
	return nil
}

// CreateStudent creates a student with a freshly generated unique link
func (s *studentServiceImpl) CreateStudent(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
	student := &models.Student{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		MaxSlots:  req.MaxSlots,
	}
	if err := validateStudent(student.FirstName, student.LastName, student.MaxSlots); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxLinkAttempts; attempt++ {
		student.UniqueLink = s.newLink(student.FirstName, student.LastName)

		err := s.store.CreateStudent(ctx, student)
		if err == nil {
			student.Bookings = []*models.Booking{}
			s.logger.Info().
				Int64("studentID", student.ID).
				Str("link", student.UniqueLink).
				Msg("Student created")
			return student, nil
		}
		if !errors.Is(err, repositories.ErrLinkTaken) {
			return nil, translateStorageError(err, "failed to create student")
		}
		s.logger.Warn().Int("attempt", attempt).Msg("Student link collision, regenerating")
	}

	return nil, apperrors.NewInternalError("failed to generate a unique student link", repositories.ErrLinkTaken)
}

// withBookings loads the bookings (with slots) of the given students
func (s *studentServiceImpl) withBookings(ctx context.Context, students ...*models.Student) error {
	if len(students) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(students))
	byID := make(map[int64]*models.Student, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
		byID[st.ID] = st
		st.Bookings = []*models.Booking{}
	}

	bookings, err := s.store.ListBookingsByStudents(ctx, ids)
	if err != nil {
		return translateStorageError(err, "failed to load bookings")
	}

	for _, b := range bookings {
		if st, ok := byID[b.StudentID]; ok {
			st.Bookings = append(st.Bookings, b)
		}
	}
	for _, st := range students {
		sortBookingsBySlot(st.Bookings)
	}
	return nil
}

// ListStudents returns all students, newest first, with their bookings
func (s *studentServiceImpl) ListStudents(ctx context.Context) ([]*models.Student, error) {
	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, translateStorageError(err, "failed to load students")
	}
	if err := s.withBookings(ctx, students...); err != nil {
		return nil, err
	}
	return students, nil
}

// GetStudent returns one student with its bookings
func (s *studentServiceImpl) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	if id <= 0 {
		return nil, apperrors.ErrStudentNotFound
	}
	return s.loadStudent(ctx, func(ctx context.Context) (*models.Student, error) {
		return s.store.GetStudentByID(ctx, id)
	})
}

// GetStudentByLink resolves a private booking link
func (s *studentServiceImpl) GetStudentByLink(ctx context.Context, link string) (*models.Student, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil, apperrors.ErrStudentNotFound
	}
	return s.loadStudent(ctx, func(ctx context.Context) (*models.Student, error) {
		return s.store.GetStudentByLink(ctx, link)
	})
}

func (s *studentServiceImpl) loadStudent(ctx context.Context, get func(context.Context) (*models.Student, error)) (*models.Student, error) {
	student, err := get(ctx)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperrors.ErrStudentNotFound
		}
		return nil, translateStorageError(err, "failed to load student")
	}
	if err := s.withBookings(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}

// UpdateStudent applies a partial update. The quota cannot drop below the
// number of slots the student currently holds.
func (s *studentServiceImpl) UpdateStudent(ctx context.Context, id int64, req dto.UpdateStudentRequest) (*models.Student, error) {
	if id <= 0 {
		return nil, apperrors.ErrStudentNotFound
	}

	var updated *models.Student
	err := s.store.RunInTx(ctx, func(ctx context.Context, q repositories.Queries) error {
		student, err := lockStudent(ctx, q, id, apperrors.ErrStudentNotFound)
		if err != nil {
			return err
		}

		if req.FirstName != nil {
			student.FirstName = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			student.LastName = strings.TrimSpace(*req.LastName)
		}
		if req.MaxSlots != nil {
			student.MaxSlots = *req.MaxSlots
		}
		if err := validateStudent(student.FirstName, student.LastName, student.MaxSlots); err != nil {
			return err
		}

		held, err := q.CountBookingsByStudent(ctx, id)
		if err != nil {
			return err
		}
		if student.MaxSlots < held {
			return (&apperrors.CustomError{
				Err:     apperrors.ErrConflict,
				Message: fmt.Sprintf("student currently holds %d slots; cancel some before lowering the limit to %d", held, student.MaxSlots),
			}).WithDetails(map[string]interface{}{"bookingsCount": held, "maxSlots": student.MaxSlots})
		}

		if err := q.UpdateStudent(ctx, student); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return apperrors.ErrStudentNotFound
			}
			return err
		}

		updated = student
		return nil
	})
	if err != nil {
		return nil, translateStorageError(err, "failed to update student")
	}

	if err := s.withBookings(ctx, updated); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("studentID", id).Msg("Student updated")
	return updated, nil
}

// DeleteStudent delegates to the booking coordinator, which owns the cascade
func (s *studentServiceImpl) DeleteStudent(ctx context.Context, id int64) error {
	return s.coordinator.DeleteStudent(ctx, id)
}

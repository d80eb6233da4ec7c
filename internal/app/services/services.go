package services

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/app/repositories"
	"github.com/yigit/slotbook/internal/pkg/apperrors"
	"github.com/yigit/slotbook/internal/pkg/auth"
	"github.com/yigit/slotbook/internal/pkg/dberrors"
	"github.com/yigit/slotbook/internal/pkg/metrics"
)

// Services defined in this package:
// - BookingService: the booking coordinator (replace, cancel, cascade delete)
// - StudentService: student directory
// - SlotService: slot catalog reads
// - AuthService: admin login and session validation

// SlotNotifier receives the state of slots touched by a committed change
type SlotNotifier interface {
	PublishSlots(slots []*models.Slot)
}

type nopNotifier struct{}

func (nopNotifier) PublishSlots([]*models.Slot) {}

// Services holds all the service instances
type Services struct {
	BookingService BookingService
	StudentService StudentService
	SlotService    SlotService
	AuthService    AuthService
}

// Dependencies are the collaborators shared by the services
type Dependencies struct {
	Store    repositories.Store
	Notifier SlotNotifier
	Metrics  metrics.Recorder
	JWT      *auth.JWTService
	Admin    AdminCredentials
	Logger   zerolog.Logger
}

// NewServices initializes all services
func NewServices(deps Dependencies) *Services {
	bookingService := NewBookingService(deps.Store, deps.Notifier, deps.Metrics, deps.Logger)

	return &Services{
		BookingService: bookingService,
		StudentService: NewStudentService(deps.Store, bookingService, deps.Logger),
		SlotService:    NewSlotService(deps.Store),
		AuthService:    NewAuthService(deps.Admin, deps.JWT, deps.Logger),
	}
}

// translateStorageError maps a failed unit of work onto the application error
// taxonomy. Errors that already carry a category pass through unchanged.
func translateStorageError(err error, message string) error {
	var ce *apperrors.CustomError
	switch {
	case errors.As(err, &ce):
		return err
	case errors.Is(err, repositories.ErrSlotAlreadyBooked), dberrors.IsUniqueViolation(err):
		return apperrors.ErrSlotTaken
	case dberrors.IsConcurrencyFailure(err):
		return apperrors.ErrConcurrentWrite
	case errors.Is(err, repositories.ErrMissingReference), dberrors.IsForeignKeyViolation(err):
		return apperrors.NewNotFoundError("the student or one of the slots no longer exists")
	default:
		return apperrors.NewInternalError(message, err)
	}
}

// outcomeOf classifies an operation result for metrics
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, apperrors.ErrValidationFailed):
		return metrics.OutcomeValidation
	case errors.Is(err, apperrors.ErrResourceNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, apperrors.ErrQuotaExceeded):
		return metrics.OutcomeQuota
	case errors.Is(err, apperrors.ErrConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeInternal
	}
}

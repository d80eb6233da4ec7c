package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/pkg/dberrors"
	"github.com/yigit/slotbook/internal/pkg/logger"
)

var bookingColumns = []string{"id", "student_id", "slot_id", "created_at"}

// BookingRepository handles the booking ledger
type BookingRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{
		db: db,
		sb: newStatementBuilder(),
	}
}

func collectBookings(rows pgx.Rows) ([]*models.Booking, error) {
	bookings := []*models.Booking{}
	for rows.Next() {
		b := &models.Booking{}
		if err := rows.Scan(&b.ID, &b.StudentID, &b.SlotID, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating booking rows: %w", err)
	}
	return bookings, nil
}

func (r *BookingRepository) queryBookings(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Booking, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building booking SQL")
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing booking query")
		return nil, fmt.Errorf("error querying bookings: %w", err)
	}
	defer rows.Close()

	return collectBookings(rows)
}

// queryBookingsWithSlot runs a join of bookings and slots, optionally with students
func (r *BookingRepository) queryBookingsWithSlot(ctx context.Context, q squirrel.SelectBuilder, withStudent bool) ([]*models.Booking, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building booking SQL")
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing booking query")
		return nil, fmt.Errorf("error querying bookings: %w", err)
	}
	defer rows.Close()

	bookings := []*models.Booking{}
	for rows.Next() {
		b := &models.Booking{Slot: &models.Slot{}}
		dest := []interface{}{
			&b.ID, &b.StudentID, &b.SlotID, &b.CreatedAt,
			&b.Slot.ID, &b.Slot.Day, &b.Slot.Hour, &b.Slot.IsBooked,
		}
		if withStudent {
			b.Student = &models.Student{}
			dest = append(dest, &b.Student.ID, &b.Student.FirstName, &b.Student.LastName, &b.Student.MaxSlots, &b.Student.UniqueLink, &b.Student.CreatedAt)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("error scanning booking row: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Msg("Error iterating booking rows")
		return nil, fmt.Errorf("error iterating booking rows: %w", err)
	}

	return bookings, nil
}

// ListBookings returns every booking with its slot and student, newest first
func (r *BookingRepository) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	q := r.sb.Select(
		"b.id", "b.student_id", "b.slot_id", "b.created_at",
		"s.id", "s.day", "s.hour", "s.is_booked",
		"st.id", "st.first_name", "st.last_name", "st.max_slots", "st.unique_link", "st.created_at",
	).
		From("bookings b").
		Join("slots s ON s.id = b.slot_id").
		Join("students st ON st.id = b.student_id").
		OrderBy("b.id DESC")

	return r.queryBookingsWithSlot(ctx, q, true)
}

// ListBookingsByStudents returns the bookings of the given students with their slots
func (r *BookingRepository) ListBookingsByStudents(ctx context.Context, studentIDs []int64) ([]*models.Booking, error) {
	if len(studentIDs) == 0 {
		return []*models.Booking{}, nil
	}

	q := r.sb.Select(
		"b.id", "b.student_id", "b.slot_id", "b.created_at",
		"s.id", "s.day", "s.hour", "s.is_booked",
	).
		From("bookings b").
		Join("slots s ON s.id = b.slot_id").
		Where(squirrel.Eq{"b.student_id": studentIDs}).
		OrderBy("b.id")

	return r.queryBookingsWithSlot(ctx, q, false)
}

// ListBookingsBySlots returns the current holders of the given slots
func (r *BookingRepository) ListBookingsBySlots(ctx context.Context, slotIDs []int64) ([]*models.Booking, error) {
	if len(slotIDs) == 0 {
		return []*models.Booking{}, nil
	}

	return r.queryBookings(ctx, r.sb.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"slot_id": slotIDs}).
		OrderBy("slot_id"))
}

// CountBookingsByStudent returns how many slots a student currently holds
func (r *BookingRepository) CountBookingsByStudent(ctx context.Context, studentID int64) (int, error) {
	sql, args, err := r.sb.Select("COUNT(*)").
		From("bookings").
		Where(squirrel.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count bookings query: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error counting bookings")
		return 0, fmt.Errorf("error counting bookings: %w", err)
	}
	return count, nil
}

func (r *BookingRepository) getBooking(ctx context.Context, id int64, forUpdate bool) (*models.Booking, error) {
	q := r.sb.Select(bookingColumns...).
		From("bookings").
		Where(squirrel.Eq{"id": id})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get booking query: %w", err)
	}

	b := &models.Booking{}
	err = r.db.QueryRow(ctx, sql, args...).Scan(&b.ID, &b.StudentID, &b.SlotID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Int64("bookingID", id).Msg("Error scanning booking row")
		return nil, fmt.Errorf("error getting booking: %w", err)
	}
	return b, nil
}

// GetBookingByID retrieves a booking without locking it
func (r *BookingRepository) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	return r.getBooking(ctx, id, false)
}

// GetBookingForUpdate retrieves a booking and locks its row
func (r *BookingRepository) GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	return r.getBooking(ctx, id, true)
}

// InsertBookings creates one booking per slot for the student
func (r *BookingRepository) InsertBookings(ctx context.Context, studentID int64, slotIDs []int64) ([]*models.Booking, error) {
	if len(slotIDs) == 0 {
		return []*models.Booking{}, nil
	}

	q := r.sb.Insert("bookings").Columns("student_id", "slot_id")
	for _, slotID := range slotIDs {
		q = q.Values(studentID, slotID)
	}

	sql, args, err := q.Suffix("RETURNING id, student_id, slot_id, created_at").ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building insert bookings SQL")
		return nil, fmt.Errorf("failed to build insert bookings query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, r.classifyWriteError(err, studentID)
	}
	defer rows.Close()

	bookings, err := collectBookings(rows)
	if err != nil {
		// constraint violations surface while reading the RETURNING rows
		return nil, r.classifyWriteError(err, studentID)
	}
	return bookings, nil
}

func (r *BookingRepository) classifyWriteError(err error, studentID int64) error {
	switch {
	case dberrors.IsDuplicateConstraintError(err, "bookings_slot_id_key"):
		logger.Warn().Int64("studentID", studentID).Msg("Booking rejected by slot uniqueness constraint")
		return fmt.Errorf("%w: %v", ErrSlotAlreadyBooked, err)
	case dberrors.IsForeignKeyViolation(err):
		logger.Warn().Int64("studentID", studentID).Msg("Booking references a missing student or slot")
		return fmt.Errorf("%w: %v", ErrMissingReference, err)
	default:
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing insert bookings query")
		return fmt.Errorf("error inserting bookings: %w", err)
	}
}

// DeleteBooking deletes a booking and returns the slot it released
func (r *BookingRepository) DeleteBooking(ctx context.Context, id int64) (int64, error) {
	sql, args, err := r.sb.Delete("bookings").
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING slot_id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete booking query: %w", err)
	}

	var slotID int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&slotID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		logger.Error().Err(err).Int64("bookingID", id).Msg("Error executing delete booking query")
		return 0, fmt.Errorf("error deleting booking: %w", err)
	}
	return slotID, nil
}

// DeleteBookingsByStudent removes the bookings of a student except those on
// keepSlotIDs and returns the released slot ids in ascending order.
func (r *BookingRepository) DeleteBookingsByStudent(ctx context.Context, studentID int64, keepSlotIDs []int64) ([]int64, error) {
	q := r.sb.Delete("bookings").
		Where(squirrel.Eq{"student_id": studentID})
	if len(keepSlotIDs) > 0 {
		q = q.Where(squirrel.NotEq{"slot_id": keepSlotIDs})
	}

	sql, args, err := q.Suffix("RETURNING slot_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build delete bookings query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error executing delete bookings query")
		return nil, fmt.Errorf("error deleting bookings: %w", err)
	}

	released, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		logger.Error().Err(err).Int64("studentID", studentID).Msg("Error reading released slots")
		return nil, fmt.Errorf("error deleting bookings: %w", err)
	}

	sortIDs(released)
	return released, nil
}

package repositories

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/pkg/logger"
)

var slotColumns = []string{"id", "day", "hour", "is_booked"}

// SlotRepository handles slot database operations
type SlotRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewSlotRepository creates a new SlotRepository
func NewSlotRepository(db DBTX) *SlotRepository {
	return &SlotRepository{
		db: db,
		sb: newStatementBuilder(),
	}
}

func (r *SlotRepository) querySlots(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Slot, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building slot SQL")
		return nil, fmt.Errorf("failed to build slot query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing slot query")
		return nil, fmt.Errorf("error querying slots: %w", err)
	}
	defer rows.Close()

	return collectSlots(rows)
}

func collectSlots(rows pgx.Rows) ([]*models.Slot, error) {
	slots := []*models.Slot{}
	for rows.Next() {
		slot := &models.Slot{}
		if err := rows.Scan(&slot.ID, &slot.Day, &slot.Hour, &slot.IsBooked); err != nil {
			return nil, fmt.Errorf("error scanning slot row: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slot rows: %w", err)
	}
	return slots, nil
}

// ListSlots returns the grid in week order, optionally only the free slots
func (r *SlotRepository) ListSlots(ctx context.Context, onlyFree bool) ([]*models.Slot, error) {
	q := r.sb.Select(slotColumns...).From("slots")
	if onlyFree {
		q = q.Where(squirrel.Eq{"is_booked": false})
	}

	slots, err := r.querySlots(ctx, q)
	if err != nil {
		return nil, err
	}

	models.SortSlots(slots)
	return slots, nil
}

// ListSlotsWithHolders returns every slot with the name of the student holding it
func (r *SlotRepository) ListSlotsWithHolders(ctx context.Context) ([]*models.Slot, error) {
	sql, args, err := r.sb.Select(
		"s.id", "s.day", "s.hour", "s.is_booked",
		"st.id", "st.first_name", "st.last_name",
	).
		From("slots s").
		LeftJoin("bookings b ON b.slot_id = s.id").
		LeftJoin("students st ON st.id = b.student_id").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list slots with holders SQL")
		return nil, fmt.Errorf("failed to build list slots query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list slots with holders query")
		return nil, fmt.Errorf("error querying slots: %w", err)
	}
	defer rows.Close()

	slots := []*models.Slot{}
	for rows.Next() {
		var (
			slot      = &models.Slot{}
			studentID *int64
			firstName *string
			lastName  *string
		)
		if err := rows.Scan(&slot.ID, &slot.Day, &slot.Hour, &slot.IsBooked, &studentID, &firstName, &lastName); err != nil {
			return nil, fmt.Errorf("error scanning slot row: %w", err)
		}
		if studentID != nil {
			slot.Holder = &models.SlotHolder{StudentID: *studentID}
			if firstName != nil {
				slot.Holder.FirstName = *firstName
			}
			if lastName != nil {
				slot.Holder.LastName = *lastName
			}
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slot rows: %w", err)
	}

	models.SortSlots(slots)
	return slots, nil
}

// ListSlotsByIDs reads the current state of the given slots in ascending id
// order without locking them.
func (r *SlotRepository) ListSlotsByIDs(ctx context.Context, ids []int64) ([]*models.Slot, error) {
	if len(ids) == 0 {
		return []*models.Slot{}, nil
	}

	return r.querySlots(ctx, r.sb.Select(slotColumns...).
		From("slots").
		Where(squirrel.Eq{"id": ids}).
		OrderBy("id"))
}

// LockSlots locks the existing slots among ids in ascending id order.
// Missing ids are simply absent from the result.
func (r *SlotRepository) LockSlots(ctx context.Context, ids []int64) ([]*models.Slot, error) {
	if len(ids) == 0 {
		return []*models.Slot{}, nil
	}

	return r.querySlots(ctx, r.sb.Select(slotColumns...).
		From("slots").
		Where(squirrel.Eq{"id": ids}).
		OrderBy("id").
		Suffix("FOR UPDATE"))
}

// RecomputeOccupancy sets is_booked from the bookings table for the given
// slots and returns their new state.
func (r *SlotRepository) RecomputeOccupancy(ctx context.Context, ids []int64) ([]*models.Slot, error) {
	if len(ids) == 0 {
		return []*models.Slot{}, nil
	}

	sql, args, err := r.sb.Update("slots").
		Set("is_booked", squirrel.Expr("EXISTS (SELECT 1 FROM bookings b WHERE b.slot_id = slots.id)")).
		Where(squirrel.Eq{"id": ids}).
		Suffix("RETURNING id, day, hour, is_booked").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building recompute occupancy SQL")
		return nil, fmt.Errorf("failed to build recompute occupancy query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing recompute occupancy query")
		return nil, fmt.Errorf("error recomputing slot occupancy: %w", err)
	}
	defer rows.Close()

	slots, err := collectSlots(rows)
	if err != nil {
		return nil, err
	}

	models.SortSlots(slots)
	return slots, nil
}

// CountSlots returns the size of the grid
func (r *SlotRepository) CountSlots(ctx context.Context) (int, error) {
	sql, args, err := r.sb.Select("COUNT(*)").From("slots").ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count slots query: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		logger.Error().Err(err).Msg("Error counting slots")
		return 0, fmt.Errorf("error counting slots: %w", err)
	}
	return count, nil
}

// InsertSlots adds free slots, skipping (day, hour) pairs that already exist.
// It returns the number of rows inserted.
func (r *SlotRepository) InsertSlots(ctx context.Context, slots []*models.Slot) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}

	q := r.sb.Insert("slots").Columns("day", "hour", "is_booked")
	for _, slot := range slots {
		q = q.Values(slot.Day, slot.Hour, false)
	}

	sql, args, err := q.Suffix("ON CONFLICT (day, hour) DO NOTHING").ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building insert slots SQL")
		return 0, fmt.Errorf("failed to build insert slots query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing insert slots query")
		return 0, fmt.Errorf("error inserting slots: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}

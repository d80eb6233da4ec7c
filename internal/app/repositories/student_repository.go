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

var studentColumns = []string{"id", "first_name", "last_name", "max_slots", "unique_link", "created_at"}

// StudentRepository handles student database operations
type StudentRepository struct {
	db DBTX
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db DBTX) *StudentRepository {
	return &StudentRepository{
		db: db,
		sb: newStatementBuilder(),
	}
}

func scanStudent(row pgx.Row) (*models.Student, error) {
	s := &models.Student{}
	if err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.MaxSlots, &s.UniqueLink, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateStudent inserts a student and fills in its ID and creation time
func (r *StudentRepository) CreateStudent(ctx context.Context, student *models.Student) error {
	sql, args, err := r.sb.Insert("students").
		Columns("first_name", "last_name", "max_slots", "unique_link").
		Values(student.FirstName, student.LastName, student.MaxSlots, student.UniqueLink).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building create student SQL")
		return fmt.Errorf("failed to build create student query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(&student.ID, &student.CreatedAt)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "students_unique_link_key") {
			logger.Warn().Str("link", student.UniqueLink).Msg("Generated student link already exists")
			return ErrLinkTaken
		}
		logger.Error().Err(err).Msg("Error executing create student query")
		return fmt.Errorf("error creating student: %w", err)
	}

	return nil
}

func (r *StudentRepository) getStudent(ctx context.Context, where squirrel.Sqlizer, forUpdate bool) (*models.Student, error) {
	q := r.sb.Select(studentColumns...).
		From("students").
		Where(where).
		Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building get student SQL")
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	student, err := scanStudent(r.db.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		logger.Error().Err(err).Msg("Error scanning student row")
		return nil, fmt.Errorf("error getting student: %w", err)
	}

	return student, nil
}

// GetStudentByID retrieves a student by ID
func (r *StudentRepository) GetStudentByID(ctx context.Context, id int64) (*models.Student, error) {
	return r.getStudent(ctx, squirrel.Eq{"id": id}, false)
}

// GetStudentByLink retrieves a student by its unique link
func (r *StudentRepository) GetStudentByLink(ctx context.Context, link string) (*models.Student, error) {
	return r.getStudent(ctx, squirrel.Eq{"unique_link": link}, false)
}

// GetStudentForUpdate retrieves a student and locks its row until the
// surrounding transaction ends. Every booking mutation takes this lock first.
func (r *StudentRepository) GetStudentForUpdate(ctx context.Context, id int64) (*models.Student, error) {
	return r.getStudent(ctx, squirrel.Eq{"id": id}, true)
}

// ListStudents retrieves all students, newest first
func (r *StudentRepository) ListStudents(ctx context.Context) ([]*models.Student, error) {
	sql, args, err := r.sb.Select(studentColumns...).
		From("students").
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building list students SQL")
		return nil, fmt.Errorf("failed to build list students query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Msg("Error executing list students query")
		return nil, fmt.Errorf("error querying students: %w", err)
	}
	defer rows.Close()

	students := []*models.Student{}
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning student row: %w", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Msg("Error iterating student rows")
		return nil, fmt.Errorf("error iterating student rows: %w", err)
	}

	return students, nil
}

// UpdateStudent updates the editable fields of a student
func (r *StudentRepository) UpdateStudent(ctx context.Context, student *models.Student) error {
	sql, args, err := r.sb.Update("students").
		SetMap(map[string]interface{}{
			"first_name": student.FirstName,
			"last_name":  student.LastName,
			"max_slots":  student.MaxSlots,
		}).
		Where(squirrel.Eq{"id": student.ID}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building update student SQL")
		return fmt.Errorf("failed to build update student query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", student.ID).Msg("Error executing update student query")
		return fmt.Errorf("error updating student: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteStudent deletes a student by ID
func (r *StudentRepository) DeleteStudent(ctx context.Context, id int64) error {
	sql, args, err := r.sb.Delete("students").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		logger.Error().Err(err).Msg("Error building delete student SQL")
		return fmt.Errorf("failed to build delete student query: %w", err)
	}

	cmdTag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		logger.Error().Err(err).Int64("studentID", id).Msg("Error executing delete student query")
		return fmt.Errorf("error deleting student: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

package repositories

import (
	"context"
	"errors"
	"sort"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/db"
)

// Shared repository errors
var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrSlotAlreadyBooked is returned when the bookings.slot_id unique index rejects an insert
	ErrSlotAlreadyBooked = errors.New("slot already has a booking")
	// ErrLinkTaken is returned when a generated student link collides
	ErrLinkTaken = errors.New("student link already in use")
	// ErrMissingReference is returned on foreign key violations
	ErrMissingReference = errors.New("referenced row does not exist")
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Queries is every data access operation of the application. Inside
// Store.RunInTx it is bound to the transaction, otherwise to the pool.
type Queries interface {
	// Students
	CreateStudent(ctx context.Context, student *models.Student) error
	GetStudentByID(ctx context.Context, id int64) (*models.Student, error)
	GetStudentByLink(ctx context.Context, link string) (*models.Student, error)
	GetStudentForUpdate(ctx context.Context, id int64) (*models.Student, error)
	ListStudents(ctx context.Context) ([]*models.Student, error)
	UpdateStudent(ctx context.Context, student *models.Student) error
	DeleteStudent(ctx context.Context, id int64) error

	// Slots
	ListSlots(ctx context.Context, onlyFree bool) ([]*models.Slot, error)
	ListSlotsWithHolders(ctx context.Context) ([]*models.Slot, error)
	ListSlotsByIDs(ctx context.Context, ids []int64) ([]*models.Slot, error)
	LockSlots(ctx context.Context, ids []int64) ([]*models.Slot, error)
	RecomputeOccupancy(ctx context.Context, ids []int64) ([]*models.Slot, error)
	CountSlots(ctx context.Context) (int, error)
	InsertSlots(ctx context.Context, slots []*models.Slot) (int64, error)

	// Bookings
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	ListBookingsByStudents(ctx context.Context, studentIDs []int64) ([]*models.Booking, error)
	ListBookingsBySlots(ctx context.Context, slotIDs []int64) ([]*models.Booking, error)
	CountBookingsByStudent(ctx context.Context, studentID int64) (int, error)
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error)
	InsertBookings(ctx context.Context, studentID int64, slotIDs []int64) ([]*models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) (int64, error)
	DeleteBookingsByStudent(ctx context.Context, studentID int64, keepSlotIDs []int64) ([]int64, error)
}

// TxFunc is the body of a unit of work
type TxFunc func(ctx context.Context, q Queries) error

// Store gives services pool-backed queries and transactional units of work
type Store interface {
	Queries
	RunInTx(ctx context.Context, fn TxFunc) error
}

// Repositories holds all the repository instances
type Repositories struct {
	*StudentRepository
	*SlotRepository
	*BookingRepository
}

// NewRepositories initializes all repositories over the given connection
func NewRepositories(conn DBTX) *Repositories {
	return &Repositories{
		StudentRepository: NewStudentRepository(conn),
		SlotRepository:    NewSlotRepository(conn),
		BookingRepository: NewBookingRepository(conn),
	}
}

// PostgresStore is the pgx implementation of Store
type PostgresStore struct {
	*Repositories
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store on top of the connection pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		Repositories: NewRepositories(pool),
		pool:         pool,
	}
}

// RunInTx runs fn with repositories bound to a single transaction
func (s *PostgresStore) RunInTx(ctx context.Context, fn TxFunc) error {
	return db.WithTransaction(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}

func newStatementBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

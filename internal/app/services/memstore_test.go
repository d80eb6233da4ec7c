package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yigit/slotbook/internal/app/models"
	"github.com/yigit/slotbook/internal/app/repositories"
)

// memData is the in-memory database behind memStore
type memData struct {
	students map[int64]*models.Student
	slots    map[int64]*models.Slot
	bookings map[int64]*models.Booking

	nextStudentID int64
	nextSlotID    int64
	nextBookingID int64
}

func (d *memData) clone() *memData {
	c := &memData{
		students:      make(map[int64]*models.Student, len(d.students)),
		slots:         make(map[int64]*models.Slot, len(d.slots)),
		bookings:      make(map[int64]*models.Booking, len(d.bookings)),
		nextStudentID: d.nextStudentID,
		nextSlotID:    d.nextSlotID,
		nextBookingID: d.nextBookingID,
	}
	for id, s := range d.students {
		c.students[id] = copyStudent(s)
	}
	for id, s := range d.slots {
		c.slots[id] = copySlot(s)
	}
	for id, b := range d.bookings {
		c.bookings[id] = copyBooking(b)
	}
	return c
}

func copyStudent(s *models.Student) *models.Student {
	c := *s
	c.Bookings = nil
	return &c
}

func copySlot(s *models.Slot) *models.Slot {
	c := *s
	c.Holder = nil
	return &c
}

func copyBooking(b *models.Booking) *models.Booking {
	c := *b
	c.Slot = nil
	c.Student = nil
	return &c
}

// memStore implements repositories.Store. Transactions are serialized by a
// single mutex, which stands in for the row locks of the real database, and
// are rolled back by restoring a snapshot.
type memStore struct {
	mu   sync.Mutex
	data *memData

	// failAt makes the named query fail with the given error
	failAt map[string]error
}

var _ repositories.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		data: &memData{
			students: map[int64]*models.Student{},
			slots:    map[int64]*models.Slot{},
			bookings: map[int64]*models.Booking{},
		},
		failAt: map[string]error{},
	}
}

func (s *memStore) queries() *memQueries {
	return &memQueries{d: s.data, failAt: s.failAt}
}

func (s *memStore) RunInTx(ctx context.Context, fn repositories.TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(ctx, s.queries()); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// seeding helpers

func (s *memStore) addSlot(day models.Day, hour string) *models.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.nextSlotID++
	slot := &models.Slot{ID: s.data.nextSlotID, Day: day, Hour: hour}
	s.data.slots[slot.ID] = slot
	return copySlot(slot)
}

func (s *memStore) addGrid(days []models.Day, hours []string) []int64 {
	ids := []int64{}
	for _, d := range days {
		for _, h := range hours {
			ids = append(ids, s.addSlot(d, h).ID)
		}
	}
	return ids
}

func (s *memStore) addStudent(first, last string, maxSlots int) *models.Student {
	st := &models.Student{FirstName: first, LastName: last, MaxSlots: maxSlots}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.UniqueLink = first + last
	if err := s.queries().CreateStudent(context.Background(), st); err != nil {
		panic(err)
	}
	return st
}

func (s *memStore) slot(id int64) *models.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySlot(s.data.slots[id])
}

func (s *memStore) holder(slotID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.data.bookings {
		if b.SlotID == slotID {
			return b.StudentID
		}
	}
	return 0
}

func (s *memStore) bookingsOf(studentID int64) []*models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Booking{}
	for _, b := range s.data.bookings {
		if b.StudentID == studentID {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotID < out[j].SlotID })
	return out
}

func (s *memStore) bookingIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []int64{}
	for id := range s.data.bookings {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *memStore) studentIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []int64{}
	for id := range s.data.students {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// assertInvariants checks occupancy against the ledger, slot exclusivity and
// every student's quota.
func (s *memStore) assertInvariants(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	perSlot := map[int64]int{}
	perStudent := map[int64]int{}
	for _, b := range s.data.bookings {
		perSlot[b.SlotID]++
		perStudent[b.StudentID]++
		assert.Contains(t, s.data.students, b.StudentID, "booking %d references a missing student", b.ID)
		assert.Contains(t, s.data.slots, b.SlotID, "booking %d references a missing slot", b.ID)
	}
	for id, slot := range s.data.slots {
		assert.LessOrEqual(t, perSlot[id], 1, "slot %d has more than one booking", id)
		assert.Equal(t, perSlot[id] > 0, slot.IsBooked, "slot %d occupancy flag drifted from the ledger", id)
	}
	for id, st := range s.data.students {
		assert.LessOrEqual(t, perStudent[id], st.MaxSlots, "student %d exceeds its quota", id)
	}
}

// Pool-backed reads take the lock themselves

func (s *memStore) locked() (*memQueries, func()) {
	s.mu.Lock()
	return s.queries(), s.mu.Unlock
}

func (s *memStore) CreateStudent(ctx context.Context, st *models.Student) error {
	q, unlock := s.locked()
	defer unlock()
	return q.CreateStudent(ctx, st)
}

func (s *memStore) GetStudentByID(ctx context.Context, id int64) (*models.Student, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.GetStudentByID(ctx, id)
}

func (s *memStore) GetStudentByLink(ctx context.Context, link string) (*models.Student, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.GetStudentByLink(ctx, link)
}

func (s *memStore) GetStudentForUpdate(ctx context.Context, id int64) (*models.Student, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.GetStudentForUpdate(ctx, id)
}

func (s *memStore) ListStudents(ctx context.Context) ([]*models.Student, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.ListStudents(ctx)
}

func (s *memStore) UpdateStudent(ctx context.Context, st *models.Student) error {
	q, unlock := s.locked()
	defer unlock()
	return q.UpdateStudent(ctx, st)
}

func (s *memStore) DeleteStudent(ctx context.Context, id int64) error {
	q, unlock := s.locked()
	defer unlock()
	return q.DeleteStudent(ctx, id)
}

func (s *memStore) ListSlots(ctx context.Context, onlyFree bool) ([]*models.Slot, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.ListSlots(ctx, onlyFree)
}

func (s *memStore) ListSlotsWithHolders(ctx context.Context) ([]*models.Slot, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.ListSlotsWithHolders(ctx)
}

func (s *memStore) ListSlotsByIDs(ctx context.Context, ids []int64) ([]*models.Slot, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.ListSlotsByIDs(ctx, ids)
}

func (s *memStore) LockSlots(ctx context.Context, ids []int64) ([]*models.Slot, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.LockSlots(ctx, ids)
}

func (s *memStore) RecomputeOccupancy(ctx context.Context, ids []int64) ([]*models.Slot, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.RecomputeOccupancy(ctx, ids)
}

func (s *memStore) CountSlots(ctx context.Context) (int, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.CountSlots(ctx)
}

func (s *memStore) InsertSlots(ctx context.Context, slots []*models.Slot) (int64, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.InsertSlots(ctx, slots)
}

func (s *memStore) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.ListBookings(ctx)
}

func (s *memStore) ListBookingsByStudents(ctx context.Context, ids []int64) ([]*models.Booking, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.ListBookingsByStudents(ctx, ids)
}

func (s *memStore) ListBookingsBySlots(ctx context.Context, ids []int64) ([]*models.Booking, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.ListBookingsBySlots(ctx, ids)
}

func (s *memStore) CountBookingsByStudent(ctx context.Context, id int64) (int, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.CountBookingsByStudent(ctx, id)
}

func (s *memStore) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.GetBookingByID(ctx, id)
}

func (s *memStore) GetBookingForUpdate(ctx context.Context, id int64) (*models.Booking, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.GetBookingForUpdate(ctx, id)
}

func (s *memStore) InsertBookings(ctx context.Context, studentID int64, slotIDs []int64) ([]*models.Booking, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.InsertBookings(ctx, studentID, slotIDs)
}

func (s *memStore) DeleteBooking(ctx context.Context, id int64) (int64, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.DeleteBooking(ctx, id)
}

func (s *memStore) DeleteBookingsByStudent(ctx context.Context, studentID int64, keep []int64) ([]int64, error) {
	q, unlock := s.locked()
	defer unlock()
	return q.DeleteBookingsByStudent(ctx, studentID, keep)
}

// memQueries implements repositories.Queries on memData without locking
type memQueries struct {
	d      *memData
	failAt map[string]error
}

var _ repositories.Queries = (*memQueries)(nil)

func (q *memQueries) fail(op string) error {
	return q.failAt[op]
}

func (q *memQueries) CreateStudent(_ context.Context, st *models.Student) error {
	if err := q.fail("CreateStudent"); err != nil {
		return err
	}
	for _, existing := range q.d.students {
		if existing.UniqueLink == st.UniqueLink {
			return repositories.ErrLinkTaken
		}
	}
	q.d.nextStudentID++
	st.ID = q.d.nextStudentID
	st.CreatedAt = time.Unix(1700000000, 0).Add(time.Duration(st.ID) * time.Second)
	q.d.students[st.ID] = copyStudent(st)
	return nil
}

func (q *memQueries) findStudent(op string, match func(*models.Student) bool) (*models.Student, error) {
	if err := q.fail(op); err != nil {
		return nil, err
	}
	for _, st := range q.d.students {
		if match(st) {
			return copyStudent(st), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (q *memQueries) GetStudentByID(_ context.Context, id int64) (*models.Student, error) {
	return q.findStudent("GetStudentByID", func(st *models.Student) bool { return st.ID == id })
}

func (q *memQueries) GetStudentByLink(_ context.Context, link string) (*models.Student, error) {
	return q.findStudent("GetStudentByLink", func(st *models.Student) bool { return st.UniqueLink == link })
}

func (q *memQueries) GetStudentForUpdate(_ context.Context, id int64) (*models.Student, error) {
	return q.findStudent("GetStudentForUpdate", func(st *models.Student) bool { return st.ID == id })
}

func (q *memQueries) ListStudents(_ context.Context) ([]*models.Student, error) {
	if err := q.fail("ListStudents"); err != nil {
		return nil, err
	}
	out := []*models.Student{}
	for _, st := range q.d.students {
		out = append(out, copyStudent(st))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (q *memQueries) UpdateStudent(_ context.Context, st *models.Student) error {
	if err := q.fail("UpdateStudent"); err != nil {
		return err
	}
	existing, ok := q.d.students[st.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	existing.FirstName = st.FirstName
	existing.LastName = st.LastName
	existing.MaxSlots = st.MaxSlots
	return nil
}

func (q *memQueries) DeleteStudent(_ context.Context, id int64) error {
	if err := q.fail("DeleteStudent"); err != nil {
		return err
	}
	if _, ok := q.d.students[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(q.d.students, id)
	// ON DELETE CASCADE
	for bid, b := range q.d.bookings {
		if b.StudentID == id {
			delete(q.d.bookings, bid)
		}
	}
	return nil
}

func (q *memQueries) sortedSlots(match func(*models.Slot) bool) []*models.Slot {
	out := []*models.Slot{}
	for _, slot := range q.d.slots {
		if match(slot) {
			out = append(out, copySlot(slot))
		}
	}
	models.SortSlots(out)
	return out
}

func (q *memQueries) ListSlots(_ context.Context, onlyFree bool) ([]*models.Slot, error) {
	if err := q.fail("ListSlots"); err != nil {
		return nil, err
	}
	return q.sortedSlots(func(s *models.Slot) bool { return !onlyFree || !s.IsBooked }), nil
}

func (q *memQueries) ListSlotsWithHolders(_ context.Context) ([]*models.Slot, error) {
	if err := q.fail("ListSlotsWithHolders"); err != nil {
		return nil, err
	}
	slots := q.sortedSlots(func(*models.Slot) bool { return true })
	for _, slot := range slots {
		for _, b := range q.d.bookings {
			if b.SlotID != slot.ID {
				continue
			}
			if st, ok := q.d.students[b.StudentID]; ok {
				slot.Holder = &models.SlotHolder{StudentID: st.ID, FirstName: st.FirstName, LastName: st.LastName}
			}
		}
	}
	return slots, nil
}

func idSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (q *memQueries) ListSlotsByIDs(_ context.Context, ids []int64) ([]*models.Slot, error) {
	if err := q.fail("ListSlotsByIDs"); err != nil {
		return nil, err
	}
	return q.slotsByIDs(ids), nil
}

func (q *memQueries) LockSlots(_ context.Context, ids []int64) ([]*models.Slot, error) {
	if err := q.fail("LockSlots"); err != nil {
		return nil, err
	}
	return q.slotsByIDs(ids), nil
}

func (q *memQueries) slotsByIDs(ids []int64) []*models.Slot {
	want := idSet(ids)
	out := []*models.Slot{}
	for id, slot := range q.d.slots {
		if want[id] {
			out = append(out, copySlot(slot))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (q *memQueries) RecomputeOccupancy(_ context.Context, ids []int64) ([]*models.Slot, error) {
	if err := q.fail("RecomputeOccupancy"); err != nil {
		return nil, err
	}
	want := idSet(ids)
	out := []*models.Slot{}
	for id, slot := range q.d.slots {
		if !want[id] {
			continue
		}
		slot.IsBooked = false
		for _, b := range q.d.bookings {
			if b.SlotID == id {
				slot.IsBooked = true
				break
			}
		}
		out = append(out, copySlot(slot))
	}
	models.SortSlots(out)
	return out, nil
}

func (q *memQueries) CountSlots(_ context.Context) (int, error) {
	if err := q.fail("CountSlots"); err != nil {
		return 0, err
	}
	return len(q.d.slots), nil
}

func (q *memQueries) InsertSlots(_ context.Context, slots []*models.Slot) (int64, error) {
	if err := q.fail("InsertSlots"); err != nil {
		return 0, err
	}
	var inserted int64
	for _, slot := range slots {
		dup := false
		for _, existing := range q.d.slots {
			if existing.Day == slot.Day && existing.Hour == slot.Hour {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		q.d.nextSlotID++
		q.d.slots[q.d.nextSlotID] = &models.Slot{ID: q.d.nextSlotID, Day: slot.Day, Hour: slot.Hour}
		inserted++
	}
	return inserted, nil
}

func (q *memQueries) ListBookings(_ context.Context) ([]*models.Booking, error) {
	if err := q.fail("ListBookings"); err != nil {
		return nil, err
	}
	out := []*models.Booking{}
	for _, b := range q.d.bookings {
		c := copyBooking(b)
		c.Slot = copySlot(q.d.slots[b.SlotID])
		c.Student = copyStudent(q.d.students[b.StudentID])
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (q *memQueries) ListBookingsByStudents(_ context.Context, ids []int64) ([]*models.Booking, error) {
	if err := q.fail("ListBookingsByStudents"); err != nil {
		return nil, err
	}
	want := idSet(ids)
	out := []*models.Booking{}
	for _, b := range q.d.bookings {
		if want[b.StudentID] {
			c := copyBooking(b)
			c.Slot = copySlot(q.d.slots[b.SlotID])
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q *memQueries) ListBookingsBySlots(_ context.Context, ids []int64) ([]*models.Booking, error) {
	if err := q.fail("ListBookingsBySlots"); err != nil {
		return nil, err
	}
	want := idSet(ids)
	out := []*models.Booking{}
	for _, b := range q.d.bookings {
		if want[b.SlotID] {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotID < out[j].SlotID })
	return out, nil
}

func (q *memQueries) CountBookingsByStudent(_ context.Context, id int64) (int, error) {
	if err := q.fail("CountBookingsByStudent"); err != nil {
		return 0, err
	}
	n := 0
	for _, b := range q.d.bookings {
		if b.StudentID == id {
			n++
		}
	}
	return n, nil
}

func (q *memQueries) getBooking(op string, id int64) (*models.Booking, error) {
	if err := q.fail(op); err != nil {
		return nil, err
	}
	b, ok := q.d.bookings[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyBooking(b), nil
}

func (q *memQueries) GetBookingByID(_ context.Context, id int64) (*models.Booking, error) {
	return q.getBooking("GetBookingByID", id)
}

func (q *memQueries) GetBookingForUpdate(_ context.Context, id int64) (*models.Booking, error) {
	return q.getBooking("GetBookingForUpdate", id)
}

// InsertBookings enforces the foreign keys and UNIQUE(slot_id) like the schema
func (q *memQueries) InsertBookings(_ context.Context, studentID int64, slotIDs []int64) ([]*models.Booking, error) {
	if err := q.fail("InsertBookings"); err != nil {
		return nil, err
	}
	if _, ok := q.d.students[studentID]; !ok && len(slotIDs) > 0 {
		return nil, repositories.ErrMissingReference
	}
	for _, slotID := range slotIDs {
		if _, ok := q.d.slots[slotID]; !ok {
			return nil, repositories.ErrMissingReference
		}
		for _, b := range q.d.bookings {
			if b.SlotID == slotID {
				return nil, repositories.ErrSlotAlreadyBooked
			}
		}
	}

	out := []*models.Booking{}
	for _, slotID := range slotIDs {
		q.d.nextBookingID++
		b := &models.Booking{ID: q.d.nextBookingID, StudentID: studentID, SlotID: slotID, CreatedAt: time.Now()}
		q.d.bookings[b.ID] = b
		out = append(out, copyBooking(b))
	}
	return out, nil
}

func (q *memQueries) DeleteBooking(_ context.Context, id int64) (int64, error) {
	if err := q.fail("DeleteBooking"); err != nil {
		return 0, err
	}
	b, ok := q.d.bookings[id]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	delete(q.d.bookings, id)
	return b.SlotID, nil
}

func (q *memQueries) DeleteBookingsByStudent(_ context.Context, studentID int64, keep []int64) ([]int64, error) {
	if err := q.fail("DeleteBookingsByStudent"); err != nil {
		return nil, err
	}
	kept := idSet(keep)
	released := []int64{}
	for id, b := range q.d.bookings {
		if b.StudentID == studentID && !kept[b.SlotID] {
			released = append(released, b.SlotID)
			delete(q.d.bookings, id)
		}
	}
	sort.Slice(released, func(i, j int) bool { return released[i] < released[j] })
	return released, nil
}

// lockAuditStore checks the slot locking discipline of every transaction:
// a slot is written only after its row was locked, and locks are taken in
// ascending id order.
type lockAuditStore struct {
	*memStore

	auditMu   sync.Mutex
	unlocked  []int64
	backwards []int64
}

func newLockAuditStore() *lockAuditStore {
	return &lockAuditStore{memStore: newMemStore()}
}

func (s *lockAuditStore) RunInTx(ctx context.Context, fn repositories.TxFunc) error {
	return s.memStore.RunInTx(ctx, func(ctx context.Context, q repositories.Queries) error {
		return fn(ctx, &lockAuditQueries{Queries: q, store: s, locked: map[int64]bool{}})
	})
}

type lockAuditQueries struct {
	repositories.Queries
	store   *lockAuditStore
	locked  map[int64]bool
	highest int64
}

func (q *lockAuditQueries) LockSlots(ctx context.Context, ids []int64) ([]*models.Slot, error) {
	q.store.auditMu.Lock()
	for _, id := range ids {
		if id < q.highest && !q.locked[id] {
			q.store.backwards = append(q.store.backwards, id)
		}
		q.locked[id] = true
		if id > q.highest {
			q.highest = id
		}
	}
	q.store.auditMu.Unlock()
	return q.Queries.LockSlots(ctx, ids)
}

func (q *lockAuditQueries) RecomputeOccupancy(ctx context.Context, ids []int64) ([]*models.Slot, error) {
	q.store.auditMu.Lock()
	for _, id := range ids {
		if !q.locked[id] {
			q.store.unlocked = append(q.store.unlocked, id)
		}
	}
	q.store.auditMu.Unlock()
	return q.Queries.RecomputeOccupancy(ctx, ids)
}

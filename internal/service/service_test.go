package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mentor-session-service/internal/models"
	"mentor-session-service/internal/notify"
	"mentor-session-service/pkg/response"

	"github.com/google/uuid"
)

// stubDriver hands out connections whose transactions commit and roll back
// without a database; the in-memory store never routes queries through them.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

var registerStub sync.Once

func stubDB() *sql.DB {
	registerStub.Do(func() {
		sql.Register("stub", stubDriver{})
	})
	db, err := sql.Open("stub", "")
	if err != nil {
		panic(err)
	}
	return db
}

type fakeStore struct {
	db *sql.DB

	users       map[uuid.UUID]*models.User
	mentorships map[string]bool

	availability map[uuid.UUID]*models.MentorAvailability
	dateAvail    map[string]*models.MentorAvailability
	recurAvail   map[string]*models.MentorAvailability

	sessions          map[uuid.UUID]*models.Session
	groupSessions     []*models.GroupSession
	participantGroups map[uuid.UUID][]*models.GroupSession
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		db:                stubDB(),
		users:             make(map[uuid.UUID]*models.User),
		mentorships:       make(map[string]bool),
		availability:      make(map[uuid.UUID]*models.MentorAvailability),
		dateAvail:         make(map[string]*models.MentorAvailability),
		recurAvail:        make(map[string]*models.MentorAvailability),
		sessions:          make(map[uuid.UUID]*models.Session),
		participantGroups: make(map[uuid.UUID][]*models.GroupSession),
	}
}

func mentorshipKey(mentorID, menteeID uuid.UUID) string {
	return mentorID.String() + "|" + menteeID.String()
}

func dateKey(mentorID uuid.UUID, date time.Time) string {
	return mentorID.String() + "|" + date.Format("2006-01-02")
}

func recurKey(mentorID uuid.UUID, dayOfWeek int) string {
	return fmt.Sprintf("%s|%d", mentorID, dayOfWeek)
}

func (f *fakeStore) addUser(role models.Role, timezone string) uuid.UUID {
	id := uuid.New()
	f.users[id] = &models.User{ID: id, Role: role, Timezone: timezone}
	return id
}

func (f *fakeStore) addRecurring(mentorID uuid.UUID, dayOfWeek int, a *models.MentorAvailability) {
	a.ID = uuid.New()
	a.MentorID = mentorID
	a.IsRecurring = true
	a.DayOfWeek = &dayOfWeek
	f.availability[a.ID] = a
	f.recurAvail[recurKey(mentorID, dayOfWeek)] = a
}

func (f *fakeStore) addOverride(mentorID uuid.UUID, date time.Time, a *models.MentorAvailability) {
	a.ID = uuid.New()
	a.MentorID = mentorID
	a.SpecificDate = &date
	f.availability[a.ID] = a
	f.dateAvail[dateKey(mentorID, date)] = a
}

func (f *fakeStore) addSession(sess *models.Session) uuid.UUID {
	cp := *sess
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	f.sessions[cp.ID] = &cp
	return cp.ID
}

func (f *fakeStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return f.db.BeginTx(ctx, nil)
}

func (f *fakeStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) HasAcceptedMentorship(_ context.Context, mentorID, menteeID uuid.UUID) (bool, error) {
	return f.mentorships[mentorshipKey(mentorID, menteeID)], nil
}

func (f *fakeStore) UpsertAvailability(_ context.Context, a *models.MentorAvailability) (uuid.UUID, error) {
	cp := *a
	cp.ID = uuid.New()
	f.availability[cp.ID] = &cp
	if cp.IsRecurring {
		f.recurAvail[recurKey(cp.MentorID, *cp.DayOfWeek)] = &cp
	} else {
		f.dateAvail[dateKey(cp.MentorID, *cp.SpecificDate)] = &cp
	}
	return cp.ID, nil
}

func (f *fakeStore) GetAvailability(_ context.Context, id uuid.UUID) (*models.MentorAvailability, error) {
	a, ok := f.availability[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) ListMentorAvailability(_ context.Context, mentorID uuid.UUID) ([]*models.MentorAvailability, error) {
	var out []*models.MentorAvailability
	for _, a := range f.availability {
		if a.MentorID == mentorID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) GetDateAvailability(_ context.Context, _ *sql.Tx, mentorID uuid.UUID, date time.Time) (*models.MentorAvailability, error) {
	a, ok := f.dateAvail[dateKey(mentorID, date)]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) GetRecurringAvailability(_ context.Context, _ *sql.Tx, mentorID uuid.UUID, dayOfWeek int) (*models.MentorAvailability, error) {
	a, ok := f.recurAvail[recurKey(mentorID, dayOfWeek)]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) DeleteAvailability(_ context.Context, id uuid.UUID) error {
	a, ok := f.availability[id]
	if !ok {
		return response.ErrNotFound
	}
	delete(f.availability, id)
	if a.IsRecurring {
		delete(f.recurAvail, recurKey(a.MentorID, *a.DayOfWeek))
	} else {
		delete(f.dateAvail, dateKey(a.MentorID, *a.SpecificDate))
	}
	return nil
}

func (f *fakeStore) CreateSession(_ context.Context, _ *sql.Tx, sess *models.Session) (uuid.UUID, error) {
	cp := *sess
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	f.sessions[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (f *fakeStore) GetSessionForUpdate(ctx context.Context, _ *sql.Tx, id uuid.UUID) (*models.Session, error) {
	return f.GetSession(ctx, id)
}

func (f *fakeStore) ListSessions(_ context.Context, flt *models.SessionFilters) ([]*models.Session, int, error) {
	var out []*models.Session
	for _, sess := range f.sessions {
		if flt.MentorID != nil && sess.MentorID != *flt.MentorID {
			continue
		}
		if flt.MenteeID != nil && sess.MenteeID != *flt.MenteeID {
			continue
		}
		if flt.Status != nil && sess.Status != *flt.Status {
			continue
		}
		cp := *sess
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })

	total := len(out)
	if flt.Offset < len(out) {
		out = out[flt.Offset:]
	} else {
		out = nil
	}
	if flt.Limit > 0 && len(out) > flt.Limit {
		out = out[:flt.Limit]
	}
	return out, total, nil
}

func (f *fakeStore) UpdateSession(_ context.Context, _ *sql.Tx, sess *models.Session) error {
	if _, ok := f.sessions[sess.ID]; !ok {
		return response.ErrNotFound
	}
	cp := *sess
	f.sessions[sess.ID] = &cp
	return nil
}

func (f *fakeStore) CountUserSessionConflicts(_ context.Context, _ *sql.Tx, userID uuid.UUID, asMentor bool, start, end time.Time, exclude *uuid.UUID) (int, error) {
	count := 0
	for _, sess := range f.sessions {
		if exclude != nil && sess.ID == *exclude {
			continue
		}
		if !sess.IsActive() {
			continue
		}
		party := sess.MenteeID
		if asMentor {
			party = sess.MentorID
		}
		if party != userID {
			continue
		}
		if Overlaps(start, end, sess.ScheduledAt, sess.EndAt()) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountHostGroupConflicts(_ context.Context, _ *sql.Tx, mentorID uuid.UUID, start, end time.Time) (int, error) {
	count := 0
	for _, g := range f.groupSessions {
		if g.MentorID != mentorID {
			continue
		}
		if Overlaps(start, end, g.ScheduledAt, g.EndAt()) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) CountParticipantGroupConflicts(_ context.Context, _ *sql.Tx, userID uuid.UUID, start, end time.Time) (int, error) {
	count := 0
	for _, g := range f.participantGroups[userID] {
		if Overlaps(start, end, g.ScheduledAt, g.EndAt()) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListActiveSessionsInRange(_ context.Context, mentorID uuid.UUID, from, to time.Time) ([]*models.Session, error) {
	var out []*models.Session
	for _, sess := range f.sessions {
		if sess.MentorID != mentorID || !sess.IsActive() {
			continue
		}
		if Overlaps(from, to, sess.ScheduledAt, sess.EndAt()) {
			cp := *sess
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveGroupSessionsInRange(_ context.Context, mentorID uuid.UUID, from, to time.Time) ([]*models.GroupSession, error) {
	var out []*models.GroupSession
	for _, g := range f.groupSessions {
		if g.MentorID != mentorID {
			continue
		}
		if Overlaps(from, to, g.ScheduledAt, g.EndAt()) {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeLocker struct {
	denied  bool
	locks   []string
	unlocks []string
}

func (l *fakeLocker) Lock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.locks = append(l.locks, key)
	return !l.denied, nil
}

func (l *fakeLocker) Unlock(_ context.Context, key string) error {
	l.unlocks = append(l.unlocks, key)
	return nil
}

type fakeDispatcher struct {
	events []notify.Event
}

func (d *fakeDispatcher) Dispatch(event notify.Event, _ *models.Session) {
	d.events = append(d.events, event)
}

// monday is a fixed reference Monday used throughout the suite.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func newTestService(now time.Time) (*Service, *fakeStore, *fakeLocker, *fakeDispatcher) {
	store := newFakeStore()
	locker := &fakeLocker{}
	dispatcher := &fakeDispatcher{}
	s := NewService(store, locker, dispatcher)
	s.now = func() time.Time { return now }
	return s, store, locker, dispatcher
}

// workingMonday installs a mentor with a 09:00-12:00 UTC recurring Monday
// window, 30-minute slots, with a 10:00-10:30 break.
func workingMonday(store *fakeStore) uuid.UUID {
	mentorID := store.addUser(models.RoleMentor, "UTC")
	store.addRecurring(mentorID, 1, &models.MentorAvailability{
		StartTime:    "09:00",
		EndTime:      "12:00",
		Timezone:     "UTC",
		SlotDuration: 30,
		Breaks:       []models.Break{{StartTime: "10:00", EndTime: "10:30", Reason: "lunch"}},
		Status:       models.AvailabilityAvailable,
	})
	return mentorID
}

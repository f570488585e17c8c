package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

const sessionColumns = `s.id, s.studio_id, s.class_type_id, s.teacher_id, s.location_id,
	s.start_time, s.end_time, s.capacity, s.recurring_group_id, s.created_at, s.updated_at`

// ScheduleRepository implements persistence.ScheduleRepository using SQLite
type ScheduleRepository struct {
	catalogQueries
	sessionReads
	pool *ConnectionPool
}

// NewScheduleRepository creates a new SQLite schedule repository
func NewScheduleRepository(pool *ConnectionPool) *ScheduleRepository {
	mapper := NewErrorMapper()
	return &ScheduleRepository{
		catalogQueries: catalogQueries{q: pool.DB(), mapper: mapper},
		sessionReads:   sessionReads{q: pool.DB(), mapper: mapper},
		pool:           pool,
	}
}

var _ persistence.ScheduleRepository = (*ScheduleRepository)(nil)

// WithinTx runs fn in one transaction. With _txlock=immediate the write lock
// is taken at BEGIN, so conflict checks inside fn see no concurrent writer.
func (r *ScheduleRepository) WithinTx(ctx context.Context, fn func(tx persistence.ScheduleTx) error) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		mapper := r.catalogQueries.mapper
		return fn(&scheduleTx{
			catalogQueries: catalogQueries{q: tx, mapper: mapper},
			sessionReads:   sessionReads{q: tx, mapper: mapper},
			sessionWrites:  sessionWrites{q: tx, mapper: mapper},
		})
	})
}

// ListSessions returns the studio's sessions intersecting [from, to) with
// their catalog names and active booking counts.
func (r *ScheduleRepository) ListSessions(ctx context.Context, studioID string, from, to time.Time) ([]persistence.SessionListing, error) {
	query := `
		SELECT ` + sessionColumns + `,
			ct.name,
			TRIM(t.first_name || ' ' || t.last_name),
			l.name,
			(SELECT COUNT(*) FROM bookings b WHERE b.session_id = s.id AND b.status <> 'CANCELLED')
		FROM class_sessions s
		JOIN class_types ct ON ct.id = s.class_type_id
		JOIN teachers t ON t.id = s.teacher_id
		JOIN locations l ON l.id = s.location_id
		WHERE s.studio_id = ? AND s.start_time < ? AND s.end_time > ?
		ORDER BY s.start_time ASC, s.id ASC`

	rows, err := r.sessionReads.q.QueryContext(ctx, query, studioID, formatTime(to), formatTime(from))
	if err != nil {
		return nil, r.sessionReads.mapper.MapError(err)
	}
	defer rows.Close()

	var listings []persistence.SessionListing
	for rows.Next() {
		var listing persistence.SessionListing
		session, err := scanSession(rows, &listing.ClassTypeName, &listing.TeacherName, &listing.LocationName, &listing.ActiveBookings)
		if err != nil {
			return nil, err
		}
		listing.Session = session
		listings = append(listings, listing)
	}
	return listings, rows.Err()
}

// CreateBlockedTime inserts a teacher unavailability window.
func (r *ScheduleRepository) CreateBlockedTime(ctx context.Context, block persistence.BlockedTime) error {
	if block.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.sessionReads.q.ExecContext(ctx,
		`INSERT INTO teacher_blocked_times (id, studio_id, teacher_id, start_time, end_time, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		block.ID, block.StudioID, block.TeacherID, formatTime(block.Start), formatTime(block.End), block.Reason,
		formatTime(createdAtOrNow(block.CreatedAt)),
	)
	return r.sessionReads.mapper.MapError(err)
}

// GetSession retrieves a session owned by studioID.
func (r *ScheduleRepository) GetSession(ctx context.Context, studioID, id string) (persistence.ClassSession, error) {
	row := r.sessionReads.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM class_sessions s WHERE s.id = ? AND s.studio_id = ?`, id, studioID)
	session, err := scanSession(row)
	if err != nil {
		return persistence.ClassSession{}, r.sessionReads.mapper.MapError(err)
	}
	return session, nil
}

type scheduleTx struct {
	catalogQueries
	sessionReads
	sessionWrites
}

var _ persistence.ScheduleTx = (*scheduleTx)(nil)

// sessionReads holds the range queries used by conflict detection.
type sessionReads struct {
	q      querier
	mapper *ErrorMapper
}

// ListSessionsOverlapping returns sessions of any of the given teachers or
// locations that intersect [from, to).
func (r sessionReads) ListSessionsOverlapping(ctx context.Context, studioID string, teacherIDs, locationIDs []string, from, to time.Time) ([]persistence.ClassSession, error) {
	var (
		clauses []string
		args    = []any{studioID, formatTime(to), formatTime(from)}
	)
	if len(teacherIDs) > 0 {
		clauses = append(clauses, "s.teacher_id IN ("+placeholders(len(teacherIDs))+")")
		args = append(args, stringArgs(teacherIDs)...)
	}
	if len(locationIDs) > 0 {
		clauses = append(clauses, "s.location_id IN ("+placeholders(len(locationIDs))+")")
		args = append(args, stringArgs(locationIDs)...)
	}
	if len(clauses) == 0 {
		return nil, nil
	}

	query := `SELECT ` + sessionColumns + `
		FROM class_sessions s
		WHERE s.studio_id = ? AND s.start_time < ? AND s.end_time > ?
		  AND (` + strings.Join(clauses, " OR ") + `)
		ORDER BY s.start_time ASC, s.id ASC`

	return r.querySessions(ctx, query, args...)
}

// ListBlockedTimes returns blocks of the given teachers intersecting [from, to).
func (r sessionReads) ListBlockedTimes(ctx context.Context, studioID string, teacherIDs []string, from, to time.Time) ([]persistence.BlockedTime, error) {
	if len(teacherIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, studio_id, teacher_id, start_time, end_time, reason, created_at
		FROM teacher_blocked_times
		WHERE studio_id = ? AND start_time < ? AND end_time > ?
		  AND teacher_id IN (` + placeholders(len(teacherIDs)) + `)
		ORDER BY start_time ASC, id ASC`
	args := append([]any{studioID, formatTime(to), formatTime(from)}, stringArgs(teacherIDs)...)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var blocks []persistence.BlockedTime
	for rows.Next() {
		var (
			block                       persistence.BlockedTime
			startTime, endTime, created string
		)
		if err := rows.Scan(&block.ID, &block.StudioID, &block.TeacherID, &startTime, &endTime, &block.Reason, &created); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if block.Start, err = parseTime(startTime); err != nil {
			return nil, err
		}
		if block.End, err = parseTime(endTime); err != nil {
			return nil, err
		}
		if block.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

func (r sessionReads) querySessions(ctx context.Context, query string, args ...any) ([]persistence.ClassSession, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var sessions []persistence.ClassSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// sessionWrites holds the mutations only reachable through a transaction.
type sessionWrites struct {
	q      querier
	mapper *ErrorMapper
}

// InsertSessions inserts all sessions. The overlap trigger rejects any row
// that double-books a teacher or location, reported as ErrOverlap.
func (w sessionWrites) InsertSessions(ctx context.Context, sessions []persistence.ClassSession) error {
	const insert = `
		INSERT INTO class_sessions (id, studio_id, class_type_id, teacher_id, location_id,
			start_time, end_time, capacity, recurring_group_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	for _, session := range sessions {
		if session.ID == "" {
			return persistence.ErrConstraintViolation
		}
		_, err := w.q.ExecContext(ctx, insert,
			session.ID,
			session.StudioID,
			session.ClassTypeID,
			session.TeacherID,
			session.LocationID,
			formatTime(session.Start),
			formatTime(session.End),
			session.Capacity,
			nullableString(session.RecurringGroupID),
			formatTime(session.CreatedAt),
			formatTime(session.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert session %s: %w", session.ID, w.mapper.MapError(err))
		}
	}
	return nil
}

// SelectSessions resolves a bulk operation selector to the matching sessions.
func (w sessionWrites) SelectSessions(ctx context.Context, studioID string, selector persistence.SessionSelector) ([]persistence.ClassSession, error) {
	var (
		where = []string{"s.studio_id = ?"}
		args  = []any{studioID}
	)
	switch {
	case len(selector.IDs) > 0:
		where = append(where, "s.id IN ("+placeholders(len(selector.IDs))+")")
		args = append(args, stringArgs(selector.IDs)...)
	case selector.RecurringGroupID != "":
		where = append(where, "s.recurring_group_id = ?")
		args = append(args, selector.RecurringGroupID)
	default:
		return nil, nil
	}
	if selector.FutureOnly {
		where = append(where, "s.start_time > ?")
		args = append(args, formatTime(selector.Now))
	}

	query := `SELECT ` + sessionColumns + ` FROM class_sessions s WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY s.start_time ASC, s.id ASC`

	return sessionReads(w).querySessions(ctx, query, args...)
}

// CountSessionsWithActiveBookings counts sessions among ids holding at least
// one booking that is not CANCELLED.
func (w sessionWrites) CountSessionsWithActiveBookings(ctx context.Context, studioID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		SELECT COUNT(DISTINCT session_id) FROM bookings
		WHERE studio_id = ? AND status <> 'CANCELLED'
		  AND session_id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{studioID}, stringArgs(ids)...)

	var count int
	if err := w.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, w.mapper.MapError(err)
	}
	return count, nil
}

// DeleteSessions removes the given sessions and returns the number deleted.
func (w sessionWrites) DeleteSessions(ctx context.Context, studioID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM class_sessions WHERE studio_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{studioID}, stringArgs(ids)...)

	result, err := w.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, w.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, w.mapper.MapError(err)
	}
	return int(affected), nil
}

// ReassignSessions sets the teacher and/or location of the given sessions.
// A nil argument leaves that column unchanged.
func (w sessionWrites) ReassignSessions(ctx context.Context, studioID string, ids []string, teacherID, locationID *string, updatedAt time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE class_sessions
		SET teacher_id = COALESCE(?, teacher_id),
			location_id = COALESCE(?, location_id),
			updated_at = ?
		WHERE studio_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	args := append([]any{nullableString(teacherID), nullableString(locationID), formatTime(updatedAt), studioID}, stringArgs(ids)...)

	result, err := w.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, w.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, w.mapper.MapError(err)
	}
	return int(affected), nil
}

// sessionRow holds the raw columns selected by sessionColumns.
type sessionRow struct {
	session                              persistence.ClassSession
	startTime, endTime, created, updated string
	groupID                              sql.NullString
}

func (r *sessionRow) dest() []any {
	return []any{
		&r.session.ID, &r.session.StudioID, &r.session.ClassTypeID, &r.session.TeacherID, &r.session.LocationID,
		&r.startTime, &r.endTime, &r.session.Capacity, &r.groupID, &r.created, &r.updated,
	}
}

func (r *sessionRow) decode() (persistence.ClassSession, error) {
	session := r.session
	var err error
	if session.Start, err = parseTime(r.startTime); err != nil {
		return persistence.ClassSession{}, err
	}
	if session.End, err = parseTime(r.endTime); err != nil {
		return persistence.ClassSession{}, err
	}
	if session.CreatedAt, err = parseTime(r.created); err != nil {
		return persistence.ClassSession{}, err
	}
	if session.UpdatedAt, err = parseTime(r.updated); err != nil {
		return persistence.ClassSession{}, err
	}
	session.RecurringGroupID = stringPtr(r.groupID)
	return session, nil
}

func scanSession(row rowScanner, extra ...any) (persistence.ClassSession, error) {
	var raw sessionRow
	if err := row.Scan(append(raw.dest(), extra...)...); err != nil {
		return persistence.ClassSession{}, err
	}
	return raw.decode()
}

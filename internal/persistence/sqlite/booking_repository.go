package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/automation"
	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

// BookingRepository stores bookings and subscriptions and serves the
// automation candidate read model.
type BookingRepository struct {
	db     querier
	mapper *ErrorMapper
}

// NewBookingRepository creates a new SQLite booking repository
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{db: pool.DB(), mapper: NewErrorMapper()}
}

var _ automation.Source = (*BookingRepository)(nil)

// CreateBooking inserts a booking.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if booking.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (id, studio_id, client_id, session_id, status, created_at, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.StudioID, booking.ClientID, booking.SessionID, string(booking.Status),
		formatTime(createdAtOrNow(booking.CreatedAt)), nullableTime(booking.CancelledAt),
	)
	return r.mapper.MapError(err)
}

// CancelBooking marks a booking CANCELLED at the given instant.
func (r *BookingRepository) CancelBooking(ctx context.Context, studioID, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = 'CANCELLED', cancelled_at = ? WHERE id = ? AND studio_id = ?`,
		formatTime(at), id, studioID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return r.mapper.MapError(err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// CreateSubscription inserts a membership subscription.
func (r *BookingRepository) CreateSubscription(ctx context.Context, subscription persistence.Subscription) error {
	if subscription.ID == "" {
		return persistence.ErrConstraintViolation
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, studio_id, client_id, plan_name, status, current_period_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID, subscription.StudioID, subscription.ClientID, subscription.PlanName,
		string(subscription.Status), formatTime(subscription.CurrentPeriodEnd),
		formatTime(createdAtOrNow(subscription.CreatedAt)),
	)
	return r.mapper.MapError(err)
}

// ListClientsCreatedBetween returns clients created in [from, to].
func (r *BookingRepository) ListClientsCreatedBetween(ctx context.Context, studioID string, from, to time.Time) ([]persistence.Client, error) {
	return r.queryClients(ctx,
		`SELECT `+clientColumns("c")+` FROM clients c
		WHERE c.studio_id = ? AND c.created_at >= ? AND c.created_at <= ?
		ORDER BY c.created_at ASC, c.id ASC`,
		studioID, formatTime(from), formatTime(to),
	)
}

// ListClientsWithoutBookingsSince returns clients with no booking created at
// or after since.
func (r *BookingRepository) ListClientsWithoutBookingsSince(ctx context.Context, studioID string, since time.Time) ([]persistence.Client, error) {
	return r.queryClients(ctx,
		`SELECT `+clientColumns("c")+` FROM clients c
		WHERE c.studio_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b WHERE b.client_id = c.id AND b.created_at >= ?
		  )
		ORDER BY c.created_at ASC, c.id ASC`,
		studioID, formatTime(since),
	)
}

// ListClientsByBirthday matches clients whose date of birth ends in one of
// the given "MM-DD" values.
func (r *BookingRepository) ListClientsByBirthday(ctx context.Context, studioID string, monthDays []string) ([]persistence.Client, error) {
	if len(monthDays) == 0 {
		return nil, nil
	}
	args := append([]any{studioID}, stringArgs(monthDays)...)
	return r.queryClients(ctx,
		`SELECT `+clientColumns("c")+` FROM clients c
		WHERE c.studio_id = ? AND c.date_of_birth IS NOT NULL
		  AND substr(c.date_of_birth, 6, 5) IN (`+placeholders(len(monthDays))+`)
		ORDER BY c.id ASC`,
		args...,
	)
}

func (r *BookingRepository) queryClients(ctx context.Context, query string, args ...any) ([]persistence.Client, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()
	return scanClients(rows)
}

// ListBookings returns bookings matching query joined with their client,
// session, and catalog names.
func (r *BookingRepository) ListBookings(ctx context.Context, query persistence.BookingQuery) ([]persistence.BookingDetail, error) {
	where := []string{"b.studio_id = ?"}
	args := []any{query.StudioID}

	if len(query.Statuses) > 0 {
		where = append(where, "b.status IN ("+placeholders(len(query.Statuses))+")")
		for _, status := range query.Statuses {
			args = append(args, string(status))
		}
	}
	if query.LocationID != nil {
		where = append(where, "s.location_id = ?")
		args = append(args, *query.LocationID)
	}
	addRange := func(column string, from, to *time.Time) {
		if from != nil {
			where = append(where, column+" >= ?")
			args = append(args, formatTime(*from))
		}
		if to != nil {
			where = append(where, column+" < ?")
			args = append(args, formatTime(*to))
		}
	}
	addRange("b.created_at", query.CreatedFrom, query.CreatedTo)
	addRange("b.cancelled_at", query.CancelledFrom, query.CancelledTo)
	addRange("s.start_time", query.SessionStartFrom, query.SessionStartTo)
	addRange("s.end_time", query.SessionEndFrom, query.SessionEndTo)

	sqlQuery := `
		SELECT b.id, b.studio_id, b.client_id, b.session_id, b.status, b.created_at, b.cancelled_at,
			` + clientColumns("c") + `,
			` + sessionColumns + `,
			ct.name, TRIM(t.first_name || ' ' || t.last_name), l.name
		FROM bookings b
		JOIN clients c ON c.id = b.client_id
		JOIN class_sessions s ON s.id = b.session_id
		JOIN class_types ct ON ct.id = s.class_type_id
		JOIN teachers t ON t.id = s.teacher_id
		JOIN locations l ON l.id = s.location_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY b.created_at ASC, b.id ASC`

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var details []persistence.BookingDetail
	for rows.Next() {
		var (
			detail     persistence.BookingDetail
			status     string
			created    string
			cancelled  sql.NullString
			clientRaw  clientRow
			sessionRaw sessionRow
		)
		dest := []any{
			&detail.Booking.ID, &detail.Booking.StudioID, &detail.Booking.ClientID, &detail.Booking.SessionID,
			&status, &created, &cancelled,
		}
		dest = append(dest, clientRaw.dest()...)
		dest = append(dest, sessionRaw.dest()...)
		dest = append(dest, &detail.ClassTypeName, &detail.TeacherName, &detail.LocationName)
		if err := rows.Scan(dest...); err != nil {
			return nil, r.mapper.MapError(err)
		}

		detail.Booking.Status = persistence.BookingStatus(status)
		if detail.Booking.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if detail.Booking.CancelledAt, err = parseNullableTime(cancelled); err != nil {
			return nil, err
		}
		if detail.Client, err = clientRaw.decode(); err != nil {
			return nil, err
		}
		if detail.Session, err = sessionRaw.decode(); err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, rows.Err()
}

// ListSubscriptionsEndingBetween returns subscriptions in one of statuses
// whose current period ends in (from, to].
func (r *BookingRepository) ListSubscriptionsEndingBetween(ctx context.Context, studioID string, statuses []persistence.SubscriptionStatus, from, to time.Time) ([]persistence.SubscriptionDetail, error) {
	where := []string{"sub.studio_id = ?", "sub.current_period_end > ?", "sub.current_period_end <= ?"}
	args := []any{studioID, formatTime(from), formatTime(to)}
	if len(statuses) > 0 {
		where = append(where, "sub.status IN ("+placeholders(len(statuses))+")")
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT sub.id, sub.studio_id, sub.client_id, sub.plan_name, sub.status,
			sub.current_period_end, sub.created_at, `+clientColumns("c")+`
		FROM subscriptions sub
		JOIN clients c ON c.id = sub.client_id
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY sub.current_period_end ASC, sub.id ASC`, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var details []persistence.SubscriptionDetail
	for rows.Next() {
		var (
			detail             persistence.SubscriptionDetail
			status             string
			periodEnd, created string
			clientRaw          clientRow
		)
		dest := append([]any{
			&detail.Subscription.ID, &detail.Subscription.StudioID, &detail.Subscription.ClientID,
			&detail.Subscription.PlanName, &status, &periodEnd, &created,
		}, clientRaw.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, r.mapper.MapError(err)
		}
		detail.Subscription.Status = persistence.SubscriptionStatus(status)
		if detail.Subscription.CurrentPeriodEnd, err = parseTime(periodEnd); err != nil {
			return nil, err
		}
		if detail.Subscription.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if detail.Client, err = clientRaw.decode(); err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, rows.Err()
}

package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

// AutomationRepository implements persistence.AutomationRepository using SQLite
type AutomationRepository struct {
	db     querier
	mapper *ErrorMapper
}

// NewAutomationRepository creates a new SQLite automation repository
func NewAutomationRepository(pool *ConnectionPool) *AutomationRepository {
	return &AutomationRepository{db: pool.DB(), mapper: NewErrorMapper()}
}

var _ persistence.AutomationRepository = (*AutomationRepository)(nil)

const automationColumns = `a.id, a.studio_id, a.name, a.trigger_type, a.channel, a.status,
	a.subject, a.body, a.html_body, a.reminder_hours, a.trigger_delay, a.trigger_days,
	a.location_id, a.total_sent, a.total_delivered, a.created_at, a.updated_at`

// CreateAutomation inserts an automation rule.
func (r *AutomationRepository) CreateAutomation(ctx context.Context, a persistence.Automation) error {
	if a.ID == "" {
		return persistence.ErrConstraintViolation
	}
	created := createdAtOrNow(a.CreatedAt)
	updated := a.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO automations (id, studio_id, name, trigger_type, channel, status, subject, body, html_body,
			reminder_hours, trigger_delay, trigger_days, location_id, total_sent, total_delivered, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.StudioID, a.Name, a.Trigger, string(a.Channel), string(a.Status), a.Subject, a.Body, a.HTMLBody,
		nullableInt(a.ReminderHours), nullableInt(a.TriggerDelay), nullableInt(a.TriggerDays),
		nullableString(a.LocationID), a.TotalSent, a.TotalDelivered, formatTime(created), formatTime(updated),
	)
	return r.mapper.MapError(err)
}

// GetAutomation retrieves an automation owned by studioID.
func (r *AutomationRepository) GetAutomation(ctx context.Context, studioID, id string) (persistence.Automation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+automationColumns+` FROM automations a WHERE a.id = ? AND a.studio_id = ?`, id, studioID)
	automation, err := scanAutomation(row)
	if err != nil {
		return persistence.Automation{}, r.mapper.MapError(err)
	}
	return automation, nil
}

// ListActiveAutomations returns every ACTIVE automation across all studios,
// joined with the owning studio.
func (r *AutomationRepository) ListActiveAutomations(ctx context.Context) ([]persistence.AutomationTarget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+automationColumns+`, st.id, st.name, st.timezone, st.created_at
		FROM automations a
		JOIN studios st ON st.id = a.studio_id
		WHERE a.status = ?
		ORDER BY a.studio_id ASC, a.created_at ASC, a.id ASC`, string(persistence.AutomationActive))
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var targets []persistence.AutomationTarget
	for rows.Next() {
		var (
			target        persistence.AutomationTarget
			studioCreated string
		)
		target.Automation, err = scanAutomation(rows,
			&target.Studio.ID, &target.Studio.Name, &target.Studio.Timezone, &studioCreated)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		if target.Studio.CreatedAt, err = parseTime(studioCreated); err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}
	return targets, rows.Err()
}

// IncrementCounters bumps the sent and delivered counters in one statement so
// concurrent runs never lose an update.
func (r *AutomationRepository) IncrementCounters(ctx context.Context, studioID, automationID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE automations
		SET total_sent = total_sent + 1,
			total_delivered = total_delivered + 1,
			updated_at = ?
		WHERE id = ? AND studio_id = ?`,
		formatTime(time.Now()), automationID, studioID)
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

func scanAutomation(row rowScanner, extra ...any) (persistence.Automation, error) {
	var (
		a                                 persistence.Automation
		channel, status, created, updated string
		reminderHours, delay, days        sql.NullInt64
		locationID                        sql.NullString
	)
	dest := append([]any{
		&a.ID, &a.StudioID, &a.Name, &a.Trigger, &channel, &status,
		&a.Subject, &a.Body, &a.HTMLBody, &reminderHours, &delay, &days,
		&locationID, &a.TotalSent, &a.TotalDelivered, &created, &updated,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return persistence.Automation{}, err
	}

	a.Channel = persistence.Channel(channel)
	a.Status = persistence.AutomationStatus(status)
	a.ReminderHours = intPtr(reminderHours)
	a.TriggerDelay = intPtr(delay)
	a.TriggerDays = intPtr(days)
	a.LocationID = stringPtr(locationID)

	var err error
	if a.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Automation{}, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Automation{}, err
	}
	return a, nil
}

package sqlite

import (
	"context"
	"database/sql"

	"github.com/seelobuilds-bit/pilates-v4-sub004/internal/persistence"
)

// MessageRepository implements persistence.MessageRepository using SQLite.
// The unique (studio_id, automation_id, thread_id) index makes ClaimMessage
// the exactly-once gate for automation sends.
type MessageRepository struct {
	db     querier
	mapper *ErrorMapper
}

// NewMessageRepository creates a new SQLite message repository
func NewMessageRepository(pool *ConnectionPool) *MessageRepository {
	return &MessageRepository{db: pool.DB(), mapper: NewErrorMapper()}
}

var _ persistence.MessageRepository = (*MessageRepository)(nil)

const messageColumns = `id, studio_id, automation_id, client_id, thread_id, channel, recipient,
	subject, body, status, provider_message_id, failure_reason, created_at, updated_at, sent_at`

// FindMessage returns the outbox row for a thread, or ErrNotFound.
func (r *MessageRepository) FindMessage(ctx context.Context, studioID, automationID, threadID string) (persistence.Message, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE studio_id = ? AND automation_id = ? AND thread_id = ?`,
		studioID, automationID, threadID)
	message, err := scanMessage(row)
	if err != nil {
		return persistence.Message{}, r.mapper.MapError(err)
	}
	return message, nil
}

// ClaimMessage inserts message as QUEUED.
func (r *MessageRepository) ClaimMessage(ctx context.Context, message persistence.Message) error {
	if message.ID == "" || message.ThreadID == "" {
		return persistence.ErrConstraintViolation
	}
	created := createdAtOrNow(message.CreatedAt)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?, NULL)`,
		message.ID, message.StudioID, message.AutomationID, message.ClientID, message.ThreadID,
		string(message.Channel), message.Recipient, message.Subject, message.Body,
		string(persistence.MessageQueued), formatTime(created), formatTime(created),
	)
	return r.mapper.MapError(err)
}

// ReclaimFailedMessage moves a FAILED row back to QUEUED with the new
// rendered content. The status predicate makes the flip a compare-and-swap,
// so two concurrent runs cannot both reclaim the same row.
func (r *MessageRepository) ReclaimFailedMessage(ctx context.Context, message persistence.Message) (persistence.Message, error) {
	updated := createdAtOrNow(message.UpdatedAt)
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = ?, recipient = ?, subject = ?, body = ?, failure_reason = '', updated_at = ?
		WHERE studio_id = ? AND automation_id = ? AND thread_id = ? AND status = ?`,
		string(persistence.MessageQueued), message.Recipient, message.Subject, message.Body, formatTime(updated),
		message.StudioID, message.AutomationID, message.ThreadID, string(persistence.MessageFailed),
	)
	if err != nil {
		return persistence.Message{}, r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.Message{}, r.mapper.MapError(err)
	}
	if affected == 0 {
		return persistence.Message{}, persistence.ErrNotFound
	}
	return r.FindMessage(ctx, message.StudioID, message.AutomationID, message.ThreadID)
}

// CompleteMessage records the delivery outcome of a claimed message.
func (r *MessageRepository) CompleteMessage(ctx context.Context, message persistence.Message) error {
	updated := createdAtOrNow(message.UpdatedAt)
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET status = ?, provider_message_id = ?, failure_reason = ?, updated_at = ?, sent_at = ?
		WHERE id = ? AND studio_id = ?`,
		string(message.Status), message.ProviderMessageID, message.FailureReason, formatTime(updated),
		nullableTime(message.SentAt), message.ID, message.StudioID,
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

// ListMessages returns the outbox rows of one automation, oldest first.
func (r *MessageRepository) ListMessages(ctx context.Context, studioID, automationID string) ([]persistence.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE studio_id = ? AND automation_id = ?
		ORDER BY created_at ASC, id ASC`, studioID, automationID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var messages []persistence.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func scanMessage(row rowScanner) (persistence.Message, error) {
	var (
		m                                 persistence.Message
		channel, status, created, updated string
		sentAt                            sql.NullString
	)
	if err := row.Scan(
		&m.ID, &m.StudioID, &m.AutomationID, &m.ClientID, &m.ThreadID, &channel, &m.Recipient,
		&m.Subject, &m.Body, &status, &m.ProviderMessageID, &m.FailureReason, &created, &updated, &sentAt,
	); err != nil {
		return persistence.Message{}, err
	}
	m.Channel = persistence.Channel(channel)
	m.Status = persistence.MessageStatus(status)

	var err error
	if m.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Message{}, err
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Message{}, err
	}
	if m.SentAt, err = parseNullableTime(sentAt); err != nil {
		return persistence.Message{}, err
	}
	return m, nil
}

// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"water_billing_service/internal/domain/notification"

	"github.com/lib/pq" // For pq.Array
)

// Custom errors specific to notification repository
var ErrEventNotFound = errors.New("notification event not found")
var ErrNotificationNotFound = errors.New("notification not found")

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// --- Event Methods ---

const eventColumns = `id, reference_code, type, subtype, issuer, status,
                      recipient_count, sent_count, error_count, pending_count, created_at, updated_at`

func (r *PostgresNotificationRepository) CreateEvent(ctx context.Context, event *notification.Event) error {
	query := `INSERT INTO events (id, reference_code, type, subtype, issuer, status, recipient_count)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		event.ID, event.ReferenceCode, event.Type, event.Subtype, event.Issuer, event.Status, event.RecipientCount,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating notification event: %w", err)
	}
	return nil
}

func scanEvent(row interface{ Scan(...any) error }) (*notification.Event, error) {
	e := notification.Event{}
	err := row.Scan(
		&e.ID, &e.ReferenceCode, &e.Type, &e.Subtype, &e.Issuer, &e.Status,
		&e.RecipientCount, &e.SentCount, &e.ErrorCount, &e.PendingCount, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresNotificationRepository) GetEventByID(ctx context.Context, id string) (*notification.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("error getting notification event by ID: %w", err)
	}
	return e, nil
}

// UpdateEventCounts stores the counts and marks the event completed once
// nothing is left awaiting a provider status.
func (r *PostgresNotificationRepository) UpdateEventCounts(ctx context.Context, eventID string, counts notification.StatusCounts) error {
	status := notification.EventStatusPending
	if counts.Sending == 0 {
		status = notification.EventStatusCompleted
	}
	query := `UPDATE events
               SET sent_count = $1, error_count = $2, pending_count = $3, status = $4, updated_at = NOW()
               WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, counts.Sent, counts.Error, counts.Sending, status, eventID)
	if err != nil {
		return fmt.Errorf("error updating notification event counts: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) ListOpenEvents(ctx context.Context, since time.Time) ([]*notification.Event, error) {
	query := `SELECT ` + eventColumns + `
               FROM events e
               WHERE e.created_at >= $1
                 AND EXISTS (
                   SELECT 1 FROM notifications n
                   WHERE n.event_id = e.id AND n.status = $2
                 )
               ORDER BY e.created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, since, notification.StatusSending)
	if err != nil {
		return nil, fmt.Errorf("error querying open notification events: %w", err)
	}
	defer rows.Close()

	events := make([]*notification.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notification event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification event rows: %w", err)
	}
	return events, nil
}

// --- Notification Methods ---

// BulkCreateNotifications inserts one dispatched chunk in a single transaction.
func (r *PostgresNotificationRepository) BulkCreateNotifications(ctx context.Context, notifications []*notification.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for bulk create: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO notifications
                                         (id, event_id, message_type, message_ref, template_id, recipient, personalisation,
                                          licences, status, notify_id, notify_status, notify_error, created_at)
                                         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for bulk create: %w", err)
	}
	defer stmt.Close()

	// A failed send may have no template or provider id; those are stored as
	// NULL so one bad row cannot roll back the rest of the chunk.
	for _, n := range notifications {
		personalisation, err := json.Marshal(n.Personalisation)
		if err != nil {
			return fmt.Errorf("error encoding personalisation for notification %s: %w", n.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			n.ID, n.EventID, n.MessageType, n.MessageRef, nullIfEmpty(n.TemplateID), n.Recipient, personalisation,
			pq.Array(n.LicenceRefs), n.Status, nullIfEmpty(n.NotifyID.String), n.NotifyStatus, n.NotifyError,
		)
		if err != nil {
			return fmt.Errorf("error executing statement for bulk create (notification %s, event %s): %w", n.ID, n.EventID, err)
		}
	}

	return txn.Commit()
}

func (r *PostgresNotificationRepository) ListSendingNotifications(ctx context.Context, eventID string) ([]*notification.Notification, error) {
	query := `SELECT id, event_id, message_type, message_ref, template_id, recipient, personalisation,
                      licences, status, notify_id, notify_status, notify_error, created_at
               FROM notifications
               WHERE event_id = $1 AND status = $2 AND notify_id IS NOT NULL
               ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, eventID, notification.StatusSending)
	if err != nil {
		return nil, fmt.Errorf("error querying sending notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*notification.Notification, 0)
	for rows.Next() {
		var (
			n               notification.Notification
			templateID      sql.NullString
			personalisation []byte
		)
		if err := rows.Scan(
			&n.ID, &n.EventID, &n.MessageType, &n.MessageRef, &templateID, &n.Recipient, &personalisation,
			pq.Array(&n.LicenceRefs), &n.Status, &n.NotifyID, &n.NotifyStatus, &n.NotifyError, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		n.TemplateID = templateID.String
		if len(personalisation) > 0 {
			if err := json.Unmarshal(personalisation, &n.Personalisation); err != nil {
				return nil, fmt.Errorf("error decoding personalisation for notification %s: %w", n.ID, err)
			}
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

func (r *PostgresNotificationRepository) UpdateNotificationStatus(ctx context.Context, n *notification.Notification) error {
	query := `UPDATE notifications SET status = $1, notify_status = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, n.Status, n.NotifyStatus, n.ID)
	if err != nil {
		return fmt.Errorf("error updating notification status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *PostgresNotificationRepository) CountStatusesByEvent(ctx context.Context, eventID string) (notification.StatusCounts, error) {
	query := `SELECT
                 COUNT(*) FILTER (WHERE status = 'sending'),
                 COUNT(*) FILTER (WHERE status = 'sent'),
                 COUNT(*) FILTER (WHERE status = 'error')
               FROM notifications
               WHERE event_id = $1`
	var counts notification.StatusCounts
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&counts.Sending, &counts.Sent, &counts.Error); err != nil {
		return notification.StatusCounts{}, fmt.Errorf("error counting notification statuses: %w", err)
	}
	return counts, nil
}

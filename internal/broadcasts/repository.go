package broadcasts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/martinmuron/prostormat-sub002/internal/models"
	"github.com/martinmuron/prostormat-sub002/pkg/database"
)

const eventRequestConstraint = "broadcasts_event_request_id_key"

// Repository persists broadcasts and their delivery logs.
type Repository struct {
	db database.DB
}

// NewRepository creates a broadcast repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

// CreateWithLogs inserts the broadcast and one log per entry of SentVenues in
// a single transaction. On success b.ID, b.CreatedAt and b.Logs are set.
// A concurrent link of the same event request yields ErrAlreadyLinked.
func (r *Repository) CreateWithLogs(ctx context.Context, b *models.Broadcast, logStatus string) (err error) {
	if len(b.SentVenues) == 0 {
		return ErrNoMatches
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var createdAt *time.Time
	if !b.CreatedAt.IsZero() {
		createdAt = &b.CreatedAt
	}
	const insertBroadcast = `INSERT INTO broadcasts (title, description, event_type, event_date, guest_count,
			location_preference, requirements, contact_name, contact_email, contact_phone,
			sent_venues, status, sent_count, event_request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, $13, COALESCE($14, NOW()))
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, insertBroadcast,
		b.Title, b.Description, b.EventType, b.EventDate, b.GuestCount,
		b.LocationPreference, b.Requirements, b.ContactName, b.ContactEmail, b.ContactPhone,
		b.SentVenues, b.Status, b.EventRequestID, createdAt,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, eventRequestConstraint) {
			return ErrAlreadyLinked
		}
		return fmt.Errorf("insert broadcast: %w", err)
	}

	const insertLogs = `INSERT INTO broadcast_logs (broadcast_id, venue_id, status)
		SELECT $1, venue_id, $3 FROM unnest($2::uuid[]) AS venue_id
		RETURNING id, venue_id, created_at`
	rows, err := tx.Query(ctx, insertLogs, b.ID, b.SentVenues, logStatus)
	if err != nil {
		return fmt.Errorf("insert broadcast logs: %w", err)
	}
	logs := make([]models.BroadcastLog, 0, len(b.SentVenues))
	for rows.Next() {
		l := models.BroadcastLog{BroadcastID: b.ID, Status: logStatus}
		if err = rows.Scan(&l.ID, &l.VenueID, &l.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("scan broadcast log: %w", err)
		}
		logs = append(logs, l)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return fmt.Errorf("insert broadcast logs: %w", err)
	}
	if len(logs) != len(b.SentVenues) {
		err = fmt.Errorf("insert broadcast logs: wrote %d of %d", len(logs), len(b.SentVenues))
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	b.SentCount = 0
	b.Logs = logs
	return nil
}

const selectBroadcast = `SELECT id, title, description, event_type, event_date, guest_count, location_preference,
		requirements, contact_name, contact_email, contact_phone, sent_venues, status, sent_count,
		event_request_id, created_at
	FROM broadcasts`

func scanBroadcast(row pgx.Row) (*models.Broadcast, error) {
	var b models.Broadcast
	err := row.Scan(&b.ID, &b.Title, &b.Description, &b.EventType, &b.EventDate, &b.GuestCount, &b.LocationPreference,
		&b.Requirements, &b.ContactName, &b.ContactEmail, &b.ContactPhone, &b.SentVenues, &b.Status, &b.SentCount,
		&b.EventRequestID, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByID returns the broadcast with its logs.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Broadcast, error) {
	b, err := scanBroadcast(r.db.QueryRow(ctx, selectBroadcast+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get broadcast: %w", err)
	}
	logs, err := r.ListLogs(ctx, id, "")
	if err != nil {
		return nil, err
	}
	b.Logs = logs
	return b, nil
}

// ListLogs returns the logs of a broadcast, optionally only those in status.
func (r *Repository) ListLogs(ctx context.Context, broadcastID uuid.UUID, status string) ([]models.BroadcastLog, error) {
	const q = `SELECT id, broadcast_id, venue_id, status, sent_at, error_message, created_at
		FROM broadcast_logs
		WHERE broadcast_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at, id`
	rows, err := r.db.Query(ctx, q, broadcastID, status)
	if err != nil {
		return nil, fmt.Errorf("list broadcast logs: %w", err)
	}
	defer rows.Close()
	var list []models.BroadcastLog
	for rows.Next() {
		var l models.BroadcastLog
		var errMsg *string
		if err := rows.Scan(&l.ID, &l.BroadcastID, &l.VenueID, &l.Status, &l.SentAt, &errMsg, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan broadcast log: %w", err)
		}
		if errMsg != nil {
			l.ErrorMessage = *errMsg
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// FindByEventRequest returns the id of the broadcast linked to the event
// request, or nil.
func (r *Repository) FindByEventRequest(ctx context.Context, eventRequestID uuid.UUID) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT id FROM broadcasts WHERE event_request_id = $1`, eventRequestID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find broadcast by event request: %w", err)
	}
	return &id, nil
}

// FindUnlinkedByContact returns unlinked broadcasts with exactly this contact
// created within window of at, closest first.
func (r *Repository) FindUnlinkedByContact(ctx context.Context, email, name string, at time.Time, window time.Duration) ([]uuid.UUID, error) {
	const q = `SELECT id FROM broadcasts
		WHERE event_request_id IS NULL
		  AND contact_email = $1 AND contact_name = $2
		  AND created_at BETWEEN $3 AND $4
		ORDER BY ABS(EXTRACT(EPOCH FROM (created_at - $5::timestamptz))), id`
	rows, err := r.db.Query(ctx, q, email, name, at.Add(-window), at.Add(window), at)
	if err != nil {
		return nil, fmt.Errorf("find unlinked broadcasts: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan broadcast id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LinkEventRequest sets the event request of a broadcast only if it has none.
// It reports false when another worker linked the broadcast first.
func (r *Repository) LinkEventRequest(ctx context.Context, broadcastID, eventRequestID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE broadcasts SET event_request_id = $2 WHERE id = $1 AND event_request_id IS NULL`,
		broadcastID, eventRequestID)
	if err != nil {
		if database.IsUniqueViolation(err, eventRequestConstraint) {
			return false, ErrAlreadyLinked
		}
		return false, fmt.Errorf("link broadcast: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkLogSent marks a delivery as sent and bumps the broadcast's sent count
// once per log.
func (r *Repository) MarkLogSent(ctx context.Context, logID uuid.UUID) error {
	const q = `WITH updated AS (
			UPDATE broadcast_logs SET status = $2, sent_at = NOW(), error_message = NULL
			WHERE id = $1 AND status IN ($3, $4)
			RETURNING broadcast_id
		)
		UPDATE broadcasts b SET sent_count = b.sent_count + 1
		FROM updated WHERE b.id = updated.broadcast_id`
	_, err := r.db.Exec(ctx, q, logID, models.BroadcastLogStatusSent,
		models.BroadcastLogStatusPending, models.BroadcastLogStatusFailed)
	if err != nil {
		return fmt.Errorf("mark log sent: %w", err)
	}
	return nil
}

// MarkLogFailed records a failed delivery attempt.
func (r *Repository) MarkLogFailed(ctx context.Context, logID uuid.UUID, reason string) error {
	const q = `UPDATE broadcast_logs SET status = $2, sent_at = NOW(), error_message = $3
		WHERE id = $1 AND status <> $4`
	_, err := r.db.Exec(ctx, q, logID, models.BroadcastLogStatusFailed, reason, models.BroadcastLogStatusSent)
	if err != nil {
		return fmt.Errorf("mark log failed: %w", err)
	}
	return nil
}

// ReopenFailedLogs puts the failed deliveries of a broadcast back to pending
// and, when any were reopened, the broadcast itself. It returns the number of
// reopened logs.
func (r *Repository) ReopenFailedLogs(ctx context.Context, broadcastID uuid.UUID) (n int, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE broadcast_logs SET status = $2, sent_at = NULL, error_message = NULL
		WHERE broadcast_id = $1 AND status = $3`,
		broadcastID, models.BroadcastLogStatusPending, models.BroadcastLogStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("reopen broadcast logs: %w", err)
	}
	n = int(tag.RowsAffected())
	if n > 0 {
		_, err = tx.Exec(ctx, `UPDATE broadcasts SET status = $2 WHERE id = $1`,
			broadcastID, models.BroadcastStatusPending)
		if err != nil {
			return 0, fmt.Errorf("reopen broadcast: %w", err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// UpdateStatus sets the broadcast status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE broadcasts SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update broadcast status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

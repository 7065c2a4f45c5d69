// Package eventrequests reads historical inquiries recorded before every
// inquiry produced a broadcast.
package eventrequests

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

// Cursor is a keyset position in (created_at, id) order.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Repository reads event requests.
type Repository struct {
	db database.DB
}

// NewRepository creates an event request repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const selectEventRequests = `SELECT er.id, er.title, er.description, er.event_type, er.event_date, er.guest_count,
		er.location_preference, er.requirements, er.contact_name, er.contact_email, er.contact_phone, er.created_at
	FROM event_requests er`

func scanEventRequest(row pgx.Row) (*models.EventRequest, error) {
	var er models.EventRequest
	err := row.Scan(&er.ID, &er.Title, &er.Description, &er.EventType, &er.EventDate, &er.GuestCount,
		&er.LocationPreference, &er.Requirements, &er.ContactName, &er.ContactEmail, &er.ContactPhone, &er.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &er, nil
}

// GetByID returns the event request, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EventRequest, error) {
	er, err := scanEventRequest(r.db.QueryRow(ctx, selectEventRequests+` WHERE er.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event request: %w", err)
	}
	return er, nil
}

// ListUnlinked returns up to limit event requests that no broadcast points
// at, strictly after the cursor. A nil cursor starts from the beginning.
func (r *Repository) ListUnlinked(ctx context.Context, after *Cursor, limit int) ([]models.EventRequest, error) {
	if limit <= 0 {
		limit = 100
	}
	q := selectEventRequests + `
		WHERE NOT EXISTS (SELECT 1 FROM broadcasts b WHERE b.event_request_id = er.id)`
	args := []any{limit}
	if after != nil {
		q += ` AND (er.created_at, er.id) > ($2, $3)`
		args = append(args, after.CreatedAt, after.ID)
	}
	q += ` ORDER BY er.created_at, er.id LIMIT $1`

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list unlinked event requests: %w", err)
	}
	defer rows.Close()
	var list []models.EventRequest
	for rows.Next() {
		er, err := scanEventRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event request: %w", err)
		}
		list = append(list, *er)
	}
	return list, rows.Err()
}

// CountUnlinked returns how many event requests still lack a broadcast.
func (r *Repository) CountUnlinked(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM event_requests er
		WHERE NOT EXISTS (SELECT 1 FROM broadcasts b WHERE b.event_request_id = er.id)`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unlinked event requests: %w", err)
	}
	return n, nil
}

// CursorOf returns the keyset position of er.
func CursorOf(er models.EventRequest) *Cursor {
	return &Cursor{CreatedAt: er.CreatedAt, ID: er.ID}
}

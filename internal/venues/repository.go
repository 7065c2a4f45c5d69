package venues

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/martinmuron/prostormat-sub002/internal/location"
	"github.com/martinmuron/prostormat-sub002/internal/models"
	"github.com/martinmuron/prostormat-sub002/pkg/database"
)

// Filter narrows the catalog query. Zero values disable a predicate.
type Filter struct {
	MinCapacity int
	// District matches the district label exactly (case-insensitive) or as a
	// substring of the address.
	District string
	// WholeCity matches every venue in the city and takes precedence over
	// District.
	WholeCity bool
}

// Repository reads and maintains the venue catalog.
type Repository struct {
	db database.DB
}

// NewRepository creates a venue repository.
func NewRepository(db database.DB) *Repository {
	return &Repository{db: db}
}

const selectVenues = `SELECT v.id, v.name, v.slug, v.status, v.contact_email, v.address, v.district,
		v.capacity_seated, v.capacity_standing, v.parent_id, u.name, u.email, v.updated_at
	FROM venues v
	LEFT JOIN users u ON u.id = v.manager_id`

// FindCandidates returns published top-level venues passing the filter.
// The capacity predicate is loose; callers re-check capacity in memory.
func (r *Repository) FindCandidates(ctx context.Context, f Filter) ([]models.Venue, error) {
	q, args := candidateQuery(f)
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query venue candidates: %w", err)
	}
	return scanVenues(rows)
}

// FindByIDs returns the venues with the given ids that still exist, in no
// particular order.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Venue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, selectVenues+` WHERE v.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("find venues by id: %w", err)
	}
	return scanVenues(rows)
}

// ListAll returns every venue, sub-venues included, ordered by name.
func (r *Repository) ListAll(ctx context.Context) ([]models.Venue, error) {
	rows, err := r.db.Query(ctx, selectVenues+` ORDER BY v.name, v.id`)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	return scanVenues(rows)
}

// UpdateDistricts writes all district changes in one transaction.
func (r *Repository) UpdateDistricts(ctx context.Context, changes map[uuid.UUID]string) (err error) {
	if len(changes) == 0 {
		return nil
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

	const q = `UPDATE venues SET district = $2, updated_at = NOW() WHERE id = $1`
	for id, district := range changes {
		if _, err = tx.Exec(ctx, q, id, district); err != nil {
			return fmt.Errorf("update district of %s: %w", id, err)
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func candidateQuery(f Filter) (string, []any) {
	args := []any{models.VenueStatusPublished}
	where := []string{"v.status = $1", "v.parent_id IS NULL"}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch {
	case f.WholeCity:
		where = append(where, fmt.Sprintf("(v.district ILIKE %s OR v.address ILIKE %s)",
			arg(escapeLike(location.City)+"%"), arg("%"+escapeLike(location.City)+"%")))
	case strings.TrimSpace(f.District) != "":
		d := strings.TrimSpace(f.District)
		where = append(where, fmt.Sprintf("(LOWER(v.district) = LOWER(%s) OR v.address ILIKE %s)",
			arg(d), arg("%"+escapeLike(d)+"%")))
	}
	if f.MinCapacity > 0 {
		p := arg(f.MinCapacity)
		where = append(where, fmt.Sprintf("(v.capacity_seated >= %s OR v.capacity_standing >= %s)", p, p))
	}
	return selectVenues + "\n\tWHERE " + strings.Join(where, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func scanVenues(rows pgx.Rows) ([]models.Venue, error) {
	defer rows.Close()
	var list []models.Venue
	for rows.Next() {
		var v models.Venue
		var managerName, managerEmail *string
		if err := rows.Scan(&v.ID, &v.Name, &v.Slug, &v.Status, &v.ContactEmail, &v.Address, &v.District,
			&v.CapacitySeated, &v.CapacityStanding, &v.ParentID, &managerName, &managerEmail, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan venue: %w", err)
		}
		if managerEmail != nil {
			v.Manager = &models.Manager{Email: *managerEmail}
			if managerName != nil {
				v.Manager.Name = *managerName
			}
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate venues: %w", err)
	}
	return list, nil
}

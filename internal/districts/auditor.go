// Package districts re-resolves the stored district of every venue and
// writes corrections back once every venue resolves.
package districts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/location"
	"github.com/martinmuron/prostormat-sub002/internal/models"
)

// ErrUnresolvedLocations blocks Apply while any venue has no district.
var ErrUnresolvedLocations = errors.New("venues with unresolved locations")

// Catalog is the venue storage the auditor reads and updates.
type Catalog interface {
	ListAll(ctx context.Context) ([]models.Venue, error)
	UpdateDistricts(ctx context.Context, changes map[uuid.UUID]string) error
}

// AuditEntry is the resolution of one venue.
type AuditEntry struct {
	VenueID     uuid.UUID         `json:"venueId"`
	Name        string            `json:"name"`
	Address     string            `json:"address"`
	OldDistrict *string           `json:"oldDistrict"`
	NewDistrict *string           `json:"newDistrict"`
	Rule        location.RuleName `json:"rule"`
	Changed     bool              `json:"changed"`
	// OutsideCity marks a resolved district that is not part of the city.
	OutsideCity bool `json:"outsideCity"`
}

// Report is the result of an audit.
type Report struct {
	Entries    []AuditEntry `json:"entries"`
	Unresolved []AuditEntry `json:"unresolved"`
	Changed    int          `json:"changed"`
	Outside    int          `json:"outsideCity"`
}

// Auditor resolves every venue with the normalizer.
type Auditor struct {
	catalog    Catalog
	normalizer *location.Normalizer
	logger     *zap.Logger
}

// NewAuditor creates an auditor.
func NewAuditor(catalog Catalog, normalizer *location.Normalizer, logger *zap.Logger) *Auditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Auditor{catalog: catalog, normalizer: normalizer, logger: logger}
}

// Audit reports the district each venue would get, without writing.
func (a *Auditor) Audit(ctx context.Context) (*Report, error) {
	list, err := a.catalog.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	report := &Report{Entries: make([]AuditEntry, 0, len(list)), Unresolved: []AuditEntry{}}
	for _, v := range list {
		e := a.entry(v)
		report.Entries = append(report.Entries, e)
		if e.NewDistrict == nil {
			report.Unresolved = append(report.Unresolved, e)
		}
		if e.Changed {
			report.Changed++
		}
		if e.OutsideCity {
			report.Outside++
		}
	}
	return report, nil
}

func (a *Auditor) entry(v models.Venue) AuditEntry {
	old := ""
	if v.District != nil {
		old = *v.District
	}
	res := a.normalizer.Resolve(v.Address, old, v.ID.String())
	e := AuditEntry{
		VenueID:     v.ID,
		Name:        v.Name,
		Address:     v.Address,
		OldDistrict: v.District,
		Rule:        res.Rule,
	}
	if res.Resolved {
		d := res.District
		e.NewDistrict = &d
		e.Changed = d != old
		e.OutsideCity = !location.InCity(d)
	}
	return e
}

// Apply writes every changed district in one transaction. It refuses to
// write anything while any venue is unresolved and returns the report with
// ErrUnresolvedLocations so the caller can show the offending venues.
func (a *Auditor) Apply(ctx context.Context) (*Report, error) {
	report, err := a.Audit(ctx)
	if err != nil {
		return nil, err
	}
	if len(report.Unresolved) > 0 {
		return report, ErrUnresolvedLocations
	}
	changes := make(map[uuid.UUID]string, report.Changed)
	for _, e := range report.Entries {
		if e.Changed {
			changes[e.VenueID] = *e.NewDistrict
		}
	}
	if len(changes) == 0 {
		return report, nil
	}
	if err := a.catalog.UpdateDistricts(ctx, changes); err != nil {
		return nil, fmt.Errorf("apply districts: %w", err)
	}
	a.logger.Info("venue districts updated", zap.Int("changed", len(changes)))
	return report, nil
}

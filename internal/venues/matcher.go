package venues

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/location"
	"github.com/martinmuron/prostormat-sub002/internal/models"
)

// Catalog is the store query the matcher runs.
type Catalog interface {
	FindCandidates(ctx context.Context, f Filter) ([]models.Venue, error)
}

// MatchResult is the outcome of matching one inquiry.
type MatchResult struct {
	Venues           []models.Venue    `json:"venues"`
	MinCapacity      int               `json:"minCapacity"`
	District         *string           `json:"district"`
	LocationResolved bool              `json:"locationResolved"`
	Rule             location.RuleName `json:"rule"`
}

// Matcher selects the venues an inquiry is sent to.
type Matcher struct {
	catalog    Catalog
	normalizer *location.Normalizer
	logger     *zap.Logger
}

// NewMatcher creates a matcher.
func NewMatcher(catalog Catalog, normalizer *location.Normalizer, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if normalizer == nil {
		normalizer = location.NewNormalizer(nil)
	}
	return &Matcher{catalog: catalog, normalizer: normalizer, logger: logger}
}

// Match returns published top-level venues with an effective capacity of at
// least minCapacity located in district. A nil district disables the
// location filter; the whole-city value matches every venue in the city.
// The result has no duplicates and no particular order.
func (m *Matcher) Match(ctx context.Context, minCapacity int, district *string) ([]models.Venue, error) {
	f := Filter{MinCapacity: max(minCapacity, 0)}
	if district != nil {
		d := strings.TrimSpace(*district)
		switch {
		case d == "":
		case location.IsWholeCity(d) || location.Fold(d) == location.Fold(location.City):
			f.WholeCity = true
		default:
			f.District = d
		}
	}

	candidates, err := m.catalog.FindCandidates(ctx, f)
	if err != nil {
		return nil, err
	}
	venues := eligible(candidates, f.MinCapacity)
	m.logger.Debug("venues matched",
		zap.Int("min_capacity", f.MinCapacity),
		zap.String("district", f.District),
		zap.Bool("whole_city", f.WholeCity),
		zap.Int("candidates", len(candidates)),
		zap.Int("matched", len(venues)),
	)
	return venues, nil
}

// MatchRequest derives the capacity threshold and district from the inquiry
// and matches it.
func (m *Matcher) MatchRequest(ctx context.Context, c models.MatchCriteria) (*MatchResult, error) {
	res := &MatchResult{MinCapacity: c.GuestCount.MinimumCapacity()}
	res.District, res.Rule = m.ResolveLocation(c)
	res.LocationResolved = res.District != nil

	venues, err := m.Match(ctx, res.MinCapacity, res.District)
	if err != nil {
		return nil, err
	}
	res.Venues = venues
	return res, nil
}

// ResolveLocation picks the district to filter on. The free-text preference
// wins when it resolves; otherwise the structured district is used. A nil
// district means no location filter.
func (m *Matcher) ResolveLocation(c models.MatchCriteria) (*string, location.RuleName) {
	pref := strings.TrimSpace(deref(c.LocationPreference))
	structured := strings.TrimSpace(deref(c.District))

	if pref != "" {
		if location.IsWholeCity(pref) {
			return strPtr(location.WholeCity), location.RuleKeyword
		}
		if r := m.normalizer.Resolve(pref, "", ""); r.Resolved {
			return strPtr(r.District), r.Rule
		}
		m.logger.Info("location preference not resolved", zap.String("location", pref))
	}
	if structured != "" {
		if location.IsWholeCity(structured) {
			return strPtr(location.WholeCity), location.RuleKeyword
		}
		r := m.normalizer.Resolve(structured, structured, "")
		return strPtr(r.District), r.Rule
	}
	return nil, location.RuleNone
}

// eligible is the authoritative filter over store candidates.
func eligible(candidates []models.Venue, minCapacity int) []models.Venue {
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	out := make([]models.Venue, 0, len(candidates))
	for _, v := range candidates {
		if v.IsSubVenue() {
			continue
		}
		if minCapacity > 0 && v.EffectiveCapacity() < minCapacity {
			continue
		}
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		out = append(out, v)
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string { return &s }

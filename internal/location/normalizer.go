// Package location turns free-text addresses and district labels into a
// canonical district: a numbered city district ("Praha 5"), a named region
// ("Praha-západ") or a named city ("Brno").
//
// Resolution is an ordered list of rules; the first rule that yields a value
// wins. Unresolvable input is not an error, Resolve reports Resolved=false and
// Normalize returns nil.
package location

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// RuleName identifies the rule that produced a resolution.
type RuleName string

const (
	RuleOverride       RuleName = "override"
	RuleDistrictNumber RuleName = "district_number"
	RulePostalCode     RuleName = "postal_code"
	RuleKeyword        RuleName = "keyword"
	RuleFallback       RuleName = "fallback"
	RuleNone           RuleName = "none"
)

// Resolution is the outcome of resolving one address.
type Resolution struct {
	District string   `json:"district,omitempty"`
	Rule     RuleName `json:"rule"`
	Resolved bool     `json:"resolved"`
}

// input is what every rule sees. Text is already folded; an empty VenueID
// or Label disables the rules that read them.
type input struct {
	Text    string
	Label   string
	VenueID string
}

// rule resolves an input to a district or reports no match.
type rule struct {
	Name    RuleName
	Resolve func(in input) (string, bool)
}

var (
	districtNumberRe = regexp.MustCompile(`\b` + strings.ToLower(City) + `\s*-?\s*(\d{1,2})\b`)
	postalCodeRe     = regexp.MustCompile(`\b(\d{3}) ?(\d{2})\b`)
)

// Normalizer resolves locations. It is immutable after construction and safe
// for concurrent use.
type Normalizer struct {
	overrides map[string]string
	rules     []rule
}

// NewNormalizer builds a Normalizer with the given venue-id to district
// overrides. The map is copied.
func NewNormalizer(overrides map[string]string) *Normalizer {
	o := make(map[string]string, len(overrides))
	for id, d := range overrides {
		o[strings.TrimSpace(id)] = d
	}
	n := &Normalizer{overrides: o}
	n.rules = []rule{
		{Name: RuleOverride, Resolve: n.override},
		{Name: RuleDistrictNumber, Resolve: districtNumber},
		{Name: RulePostalCode, Resolve: postalCode},
		{Name: RuleKeyword, Resolve: keywordMatch},
		{Name: RuleFallback, Resolve: fallback},
	}
	return n
}

// LoadOverrides reads a JSON object of venue id to forced district.
// An empty path yields an empty table.
func LoadOverrides(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read district overrides: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse district overrides %s: %w", path, err)
	}
	return m, nil
}

// Overrides returns the number of configured overrides.
func (n *Normalizer) Overrides() int { return len(n.overrides) }

// Normalize returns the canonical district for the address, or nil when no
// rule matches.
func (n *Normalizer) Normalize(address, existingLabel, venueID *string) *string {
	res := n.Resolve(deref(address), deref(existingLabel), deref(venueID))
	if !res.Resolved {
		return nil
	}
	d := res.District
	return &d
}

// Resolve runs the rule chain and reports which rule fired. The address is
// resolved before the existing label, so a stale label never outranks what
// the address says; the label is only title-cased when neither text matches.
func (n *Normalizer) Resolve(address, existingLabel, venueID string) Resolution {
	label := strings.TrimSpace(existingLabel)
	passes := []input{
		{Text: Fold(address), VenueID: strings.TrimSpace(venueID)},
		{Text: Fold(label), Label: label},
	}
	for _, in := range passes {
		if res := firstMatch(n.rules, in); res.Resolved {
			return res
		}
	}
	return Resolution{Rule: RuleNone}
}

func firstMatch(rules []rule, in input) Resolution {
	for _, r := range rules {
		if d, ok := r.Resolve(in); ok {
			return Resolution{District: d, Rule: r.Name, Resolved: true}
		}
	}
	return Resolution{Rule: RuleNone}
}

func (n *Normalizer) override(in input) (string, bool) {
	if in.VenueID == "" {
		return "", false
	}
	d, ok := n.overrides[in.VenueID]
	return d, ok
}

func districtNumber(in input) (string, bool) {
	for _, m := range districtNumberRe.FindAllStringSubmatch(in.Text, -1) {
		num, err := strconv.Atoi(m[1])
		if err != nil || num < 1 || num > maxDistrict {
			continue
		}
		return district(num), true
	}
	return "", false
}

func postalCode(in input) (string, bool) {
	for _, m := range postalCodeRe.FindAllStringSubmatch(in.Text, -1) {
		if d, ok := LookupPostalCode(m[1] + m[2]); ok {
			return d, true
		}
	}
	return "", false
}

// LookupPostalCode maps a five-digit postal code to its district. Exact codes
// take precedence over their three-digit range.
func LookupPostalCode(code string) (string, bool) {
	code = strings.ReplaceAll(code, " ", "")
	if len(code) != 5 {
		return "", false
	}
	if d, ok := postalExceptions[code]; ok {
		return d, true
	}
	d, ok := postalPrefixes[code[:3]]
	return d, ok
}

func keywordMatch(in input) (string, bool) {
	for _, k := range keywords {
		if strings.Contains(in.Text, k.fragment) {
			return k.district, true
		}
	}
	return "", false
}

func fallback(in input) (string, bool) {
	if in.Label == "" {
		return "", false
	}
	return titleCase(in.Label), true
}

// IsWholeCity reports whether a location preference means the whole city.
func IsWholeCity(pref string) bool {
	return Fold(pref) == Fold(WholeCity)
}

// InCity reports whether a district belongs to the city (numbered district
// or the bare city name).
func InCity(d string) bool {
	f := Fold(d)
	city := strings.ToLower(City)
	return f == city || strings.HasPrefix(f, city+" ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

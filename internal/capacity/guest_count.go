// Package capacity turns the guest count of an inquiry into the capacity
// threshold used for matching.
//
// Guest counts arrive as a number, a numeric string, one of the historical
// range labels or nothing at all. They are parsed once into a GuestCount and
// nothing downstream looks at the raw value again.
package capacity

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/martinmuron/prostormat-sub002/internal/location"
)

// Kind tells which variant a GuestCount holds.
type Kind int

const (
	Absent Kind = iota
	Numeric
	LegacyRange
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case LegacyRange:
		return "legacy_range"
	default:
		return "absent"
	}
}

// legacyRanges maps the range labels the old inquiry form produced to their
// lower bound. "do-25" means "up to 25" and carries no constraint.
var legacyRanges = map[string]int{
	"do-25":   0,
	"1-25":    1,
	"26-50":   26,
	"51-100":  51,
	"101-200": 101,
	"201-500": 201,
	"500+":    500,
}

// GuestCount is the parsed guest count of a request.
type GuestCount struct {
	kind  Kind
	n     int
	label string
}

// NewNumeric returns a numeric guest count. Zero and negative values are kept
// as given; the accessors decide how to treat them.
func NewNumeric(n int) GuestCount { return GuestCount{kind: Numeric, n: n} }

// Parse reads the textual form used by forms and the database. Anything that
// is neither an integer nor a known range label is Absent.
func Parse(raw string) GuestCount {
	s := strings.TrimSpace(raw)
	if s == "" {
		return GuestCount{}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return NewNumeric(n)
	}
	label := rangeLabel(s)
	if _, ok := legacyRanges[label]; ok {
		return GuestCount{kind: LegacyRange, label: label}
	}
	return GuestCount{}
}

// rangeLabel folds a range label to its map key: spaces dropped, dashes
// unified and "do 25" written as "do-25".
func rangeLabel(s string) string {
	label := strings.ReplaceAll(location.Fold(s), " ", "")
	if rest, ok := strings.CutPrefix(label, "do"); ok && !strings.HasPrefix(rest, "-") {
		label = "do-" + rest
	}
	return label
}

// Kind returns the variant.
func (g GuestCount) Kind() Kind { return g.kind }

// MinimumCapacity is the threshold used as a matching filter. Zero means no
// capacity constraint.
func (g GuestCount) MinimumCapacity() int {
	switch g.kind {
	case Numeric:
		if g.n > 0 {
			return g.n
		}
	case LegacyRange:
		return legacyRanges[g.label]
	}
	return 0
}

// RecordValue is the guest count stored on a persisted request. It is never
// below 1.
func (g GuestCount) RecordValue() int {
	v := g.MinimumCapacity()
	if g.kind == Numeric {
		v = g.n
	}
	if v < 1 {
		return 1
	}
	return v
}

// String returns the canonical text form: the number, the range label, or ""
// when absent.
func (g GuestCount) String() string {
	switch g.kind {
	case Numeric:
		return strconv.Itoa(g.n)
	case LegacyRange:
		return g.label
	default:
		return ""
	}
}

// MarshalJSON writes a number, a string label or null.
func (g GuestCount) MarshalJSON() ([]byte, error) {
	switch g.kind {
	case Numeric:
		return json.Marshal(g.n)
	case LegacyRange:
		return json.Marshal(g.label)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a number, a string or null. Malformed values,
// fractions and numbers outside the int32 range decode to Absent instead of
// failing the whole payload.
func (g *GuestCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*g = GuestCount{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*g = Parse(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
		return nil
	}
	*g = NewNumeric(int(f))
	return nil
}

package location

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// dashes lists the unicode dash variants folded to an ASCII hyphen.
var dashes = []rune{
	'\u2010', '\u2011', '\u2012', '\u2013', '\u2014', '\u2015',
	'\u2212', '\ufe58', '\ufe63', '\uff0d',
}

// spaces lists the non-breaking space variants folded to a regular space.
var spaces = []rune{'\u00a0', '\u2007', '\u202f'}

// Fold prepares text for every comparison the resolver makes: non-breaking
// spaces become spaces, dash variants become '-', diacritics are stripped via
// canonical decomposition, the result is lower-cased and whitespace collapsed.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.Map(func(r rune) rune {
		for _, d := range dashes {
			if r == d {
				return '-'
			}
		}
		for _, sp := range spaces {
			if r == sp {
				return ' '
			}
		}
		return r
	}, s)

	// transform.Chain keeps state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err == nil {
		s = stripped
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// titleCase capitalises the first letter of each word of a label and leaves
// the other letters as written.
func titleCase(s string) string {
	return cases.Title(language.Czech, cases.NoLower).String(strings.Join(strings.Fields(s), " "))
}

package addressbook

import (
	"fmt"
	"strings"

	"github.com/emersion/go-vcard"
)

// FilterTest combines the results of several filters.
type FilterTest string

const (
	FilterAnyOf FilterTest = "anyof"
	FilterAllOf FilterTest = "allof"
)

// MatchType is the kind of comparison of a TextMatch.
type MatchType string

const (
	MatchEquals     MatchType = "equals"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts-with"
	MatchEndsWith   MatchType = "ends-with"
)

// Query selects cards by their vCard properties, following the filter
// model of RFC 6352 section 10.5.
type Query struct {
	FilterTest  FilterTest
	PropFilters []PropFilter
	// Limit caps the number of results. Zero or less means no limit.
	Limit int
}

// PropFilter matches a vCard property.
type PropFilter struct {
	Name        string
	Test        FilterTest
	TextMatches []TextMatch
}

// TextMatch compares a property value against a string.
type TextMatch struct {
	Text            string
	NegateCondition bool
	MatchType       MatchType
}

// ParseTextMatch parses a "FIELD=TEXT" expression into a property filter
// looking for TEXT in FIELD.
func ParseTextMatch(s string) (PropFilter, error) {
	name, text, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return PropFilter{}, fmt.Errorf("addressbook: invalid match %q, expected FIELD=TEXT", s)
	}
	return PropFilter{
		Name:        strings.ToUpper(name),
		TextMatches: []TextMatch{{Text: text}},
	}, nil
}

// Filter returns the cards matching the provided query. A nil query returns
// all cards.
func Filter(query *Query, cards []Card) ([]Card, error) {
	if query == nil {
		return cards, nil
	}

	n := query.Limit
	if n <= 0 {
		n = len(cards)
	}
	out := make([]Card, 0, n)
	for i := range cards {
		if len(out) >= n {
			break
		}
		ok, err := Match(query, &cards[i])
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cards[i])
		}
	}
	return out, nil
}

// Match reports whether the card matches the query.
func Match(query *Query, card *Card) (matched bool, err error) {
	if query == nil {
		return true, nil
	}

	vc, err := card.VCard()
	if err != nil {
		return false, err
	}

	switch query.FilterTest {
	default:
		return false, fmt.Errorf("addressbook: unknown query filter test %q", query.FilterTest)

	case FilterAnyOf, "":
		for _, prop := range query.PropFilters {
			ok, err := matchPropFilter(prop, vc)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil

	case FilterAllOf:
		for _, prop := range query.PropFilters {
			ok, err := matchPropFilter(prop, vc)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

func matchPropFilter(prop PropFilter, vc vcard.Card) (bool, error) {
	fields := vc[prop.Name]
	if len(fields) == 0 {
		return false, nil
	}

	// a property matches if any of its instances does
	for _, field := range fields {
		ok, err := matchFieldTextMatches(prop, field)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func matchFieldTextMatches(prop PropFilter, field *vcard.Field) (bool, error) {
	switch prop.Test {
	default:
		return false, fmt.Errorf("addressbook: unknown property filter test %q", prop.Test)

	case FilterAnyOf, "":
		for _, txt := range prop.TextMatches {
			ok, err := matchTextMatch(txt, field)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil

	case FilterAllOf:
		for _, txt := range prop.TextMatches {
			ok, err := matchTextMatch(txt, field)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

func matchTextMatch(txt TextMatch, field *vcard.Field) (bool, error) {
	// Comparisons use the i;unicode-casemap collation.
	value := strings.ToLower(field.Value)
	text := strings.ToLower(txt.Text)

	var ok bool
	switch txt.MatchType {
	default:
		return false, fmt.Errorf("addressbook: unknown textmatch type %q", txt.MatchType)

	case MatchEquals:
		ok = text == value

	case MatchContains, "":
		ok = strings.Contains(value, text)

	case MatchStartsWith:
		ok = strings.HasPrefix(value, text)

	case MatchEndsWith:
		ok = strings.HasSuffix(value, text)
	}

	if txt.NegateCondition {
		ok = !ok
	}
	return ok, nil
}

// Package filter implements the inventory list query: search, facet filters
// and sorting over a resource slice.
package filter

import (
	"cmp"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/yairfalse/nimbus/pkg/resource"
)

// All is the facet value that disables a filter.
const All = "All"

// SortField names a sortable resource attribute.
type SortField string

// Sortable fields.
const (
	SortCost      SortField = "costPerMonth"
	SortName      SortField = "name"
	SortID        SortField = "id"
	SortType      SortField = "type"
	SortRegion    SortField = "region"
	SortProvider  SortField = "provider"
	SortStatus    SortField = "status"
	SortRisk      SortField = "riskLevel"
	SortCreatedAt SortField = "createdAt"
)

var sortFields = []SortField{
	SortCost, SortName, SortID, SortType, SortRegion,
	SortProvider, SortStatus, SortRisk, SortCreatedAt,
}

// ParseSortField matches a field name case-insensitively. "cost" is
// accepted as an alias of costPerMonth.
func ParseSortField(s string) (SortField, bool) {
	if s == "" || strings.EqualFold(s, "cost") {
		return SortCost, true
	}
	for _, f := range sortFields {
		if strings.EqualFold(string(f), s) {
			return f, true
		}
	}
	return "", false
}

// Query selects and orders resources. The zero value matches everything and
// sorts by cost descending.
type Query struct {
	Search    string
	Provider  string
	Status    string
	Risk      string
	Tags      string
	From      time.Time // inclusive lower bound on creation time
	To        time.Time // inclusive upper bound, extended to end of day
	SortField SortField
	SortAsc   bool
}

// ActiveFilters counts the filters that narrow the result, excluding search.
func (q Query) ActiveFilters() int {
	n := 0
	for _, on := range []bool{
		isSet(q.Provider), isSet(q.Status), isSet(q.Risk),
		q.Tags != "", !q.From.IsZero(), !q.To.IsZero(),
	} {
		if on {
			n++
		}
	}
	return n
}

// Apply returns the matching resources in query order. The input is not
// modified.
func (q Query) Apply(resources []resource.Resource) []resource.Resource {
	out := make([]resource.Resource, 0, len(resources))
	for _, r := range resources {
		if q.Match(r) {
			out = append(out, r)
		}
	}

	field := q.SortField
	if field == "" {
		field = SortCost
	}
	slices.SortStableFunc(out, func(a, b resource.Resource) int {
		c := compare(field, a, b)
		if q.SortAsc {
			return c
		}
		return -c
	})
	return out
}

// Match reports whether r passes every filter of q.
func (q Query) Match(r resource.Resource) bool {
	if q.Search != "" {
		term := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(r.Name), term) && !strings.Contains(strings.ToLower(r.ID), term) {
			return false
		}
	}
	if isSet(q.Provider) && string(r.Provider) != q.Provider {
		return false
	}
	if isSet(q.Status) && string(r.Status) != q.Status {
		return false
	}
	if isSet(q.Risk) && string(r.RiskLevel) != q.Risk {
		return false
	}
	if q.Tags != "" && !matchTags(r.Tags, q.Tags) {
		return false
	}
	return q.matchDates(r)
}

func (q Query) matchDates(r resource.Resource) bool {
	if q.From.IsZero() && q.To.IsZero() {
		return true
	}
	created := r.Created()
	if created.IsZero() {
		return false
	}
	if !q.From.IsZero() && created.Before(q.From) {
		return false
	}
	if !q.To.IsZero() {
		y, m, d := q.To.Date()
		end := time.Date(y, m, d, 23, 59, 59, int(time.Millisecond*999), q.To.Location())
		if created.After(end) {
			return false
		}
	}
	return true
}

// matchTags accepts "key:value" (both substrings of one tag) or a bare term
// matching any key or value. Matching is case-insensitive. A "key:" or
// ":value" expression with one side empty matches everything.
func matchTags(tags map[string]string, expr string) bool {
	expr = strings.ToLower(expr)
	if k, v, ok := strings.Cut(expr, ":"); ok {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			return true
		}
		for tk, tv := range tags {
			if strings.Contains(strings.ToLower(tk), k) && strings.Contains(strings.ToLower(tv), v) {
				return true
			}
		}
		return false
	}
	for tk, tv := range tags {
		if strings.Contains(strings.ToLower(tk), expr) || strings.Contains(strings.ToLower(tv), expr) {
			return true
		}
	}
	return false
}

func compare(field SortField, a, b resource.Resource) int {
	switch field {
	case SortCost:
		return cmp.Compare(a.CostPerMonth, b.CostPerMonth)
	case SortRisk:
		return cmp.Compare(a.RiskLevel.Rank(), b.RiskLevel.Rank())
	case SortCreatedAt:
		return a.Created().Compare(b.Created())
	default:
		return compareText(textField(field, a), textField(field, b))
	}
}

func textField(field SortField, r resource.Resource) string {
	switch field {
	case SortName:
		return r.Name
	case SortID:
		return r.ID
	case SortType:
		return string(r.Type)
	case SortRegion:
		return r.Region
	case SortProvider:
		return string(r.Provider)
	case SortStatus:
		return string(r.Status)
	default:
		return ""
	}
}

// compareText orders case-insensitively, falling back to byte order for ties.
func compareText(a, b string) int {
	if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}

func isSet(facet string) bool {
	return facet != "" && facet != All
}

// FromValues builds a query from URL parameters: q, provider, status, risk,
// tags, from, to (YYYY-MM-DD), sort and order (asc|desc).
func FromValues(v url.Values) (Query, error) {
	q := Query{
		Search:   v.Get("q"),
		Provider: v.Get("provider"),
		Status:   v.Get("status"),
		Risk:     v.Get("risk"),
		Tags:     v.Get("tags"),
	}

	field, ok := ParseSortField(v.Get("sort"))
	if !ok {
		return Query{}, fmt.Errorf("unknown sort field %q", v.Get("sort"))
	}
	q.SortField = field

	switch strings.ToLower(v.Get("order")) {
	case "", "desc":
	case "asc":
		q.SortAsc = true
	default:
		return Query{}, fmt.Errorf("unknown sort order %q", v.Get("order"))
	}

	var err error
	if q.From, err = parseDate(v.Get("from")); err != nil {
		return Query{}, fmt.Errorf("from: %w", err)
	}
	if q.To, err = parseDate(v.Get("to")); err != nil {
		return Query{}, fmt.Errorf("to: %w", err)
	}
	return q, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %s: %w", strconv.Quote(s), err)
	}
	return t, nil
}

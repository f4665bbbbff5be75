// Package query assembles parameterized SQL for filtered, searchable,
// paginated list endpoints and for allow-listed partial updates.
//
// A Spec is declared once per resource. The WHERE clause and its
// arguments are built a single time per request and shared verbatim by
// the page, count and analytics statements, so the total reported by
// the count always matches what the pages enumerate.
package query

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Dialect renders bind placeholders for a SQL driver.
type Dialect interface {
	// Placeholder returns the marker for the n-th argument (1-based).
	Placeholder(n int) string
}

// FilterKind selects how a query parameter constrains its column.
type FilterKind int

const (
	// Equals binds the raw parameter value: column = value.
	Equals FilterKind = iota
	// Flag parses "true"/"false" and binds a boolean.
	Flag
	// OnlyTrue constrains column = TRUE when the parameter is "true" and
	// is ignored otherwise.
	OnlyTrue
)

// Filter maps a query parameter onto a column.
type Filter struct {
	Param  string
	Column string
	Kind   FilterKind
}

// Aggregate is one analytics value computed over the filtered set.
type Aggregate struct {
	Key   string // response key
	Expr  string // SQL aggregate expression
	Money bool   // float result; otherwise an integer count
}

// Spec describes one listable resource.
type Spec struct {
	Resource      string   // response key for the rows
	From          string   // table expression, joins included
	Columns       []string // selected columns, in scan order
	SearchColumns []string // OR-ed substring match targets
	Filters       []Filter
	TimeColumn    string // ordering and date-range column
	IDColumn      string // ordering tie-break
	Analytics     []Aggregate
}

// Params are the parsed list inputs.
type Params struct {
	Search  string
	Filters map[string]string
	Start   time.Time // zero when unset
	End     time.Time // zero when unset
	// EndExclusive is set when end_date was a bare date; End is then the
	// start of the following day.
	EndExclusive bool
	Limit        int
	Offset       int
}

// Parse reads the list inputs the spec understands from q. Only
// malformed dates and booleans are errors; pagination never is.
func (s *Spec) Parse(q url.Values) (Params, error) {
	p := Params{
		Search:  strings.TrimSpace(q.Get("search")),
		Filters: make(map[string]string),
	}
	p.Limit, p.Offset = ParsePagination(q)

	errs := FieldErrors{}
	for _, f := range s.Filters {
		v := strings.TrimSpace(q.Get(f.Param))
		if v == "" {
			continue
		}
		if f.Kind == Flag && v != "true" && v != "false" {
			errs[f.Param] = "must be true or false"
			continue
		}
		p.Filters[f.Param] = v
	}

	if v := q.Get("start_date"); v != "" {
		t, _, err := parseBound(v)
		if err != nil {
			errs["start_date"] = "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"
		}
		p.Start = t
	}
	if v := q.Get("end_date"); v != "" {
		t, dateOnly, err := parseBound(v)
		if err != nil {
			errs["end_date"] = "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1)
			p.EndExclusive = true
		}
		p.End = t
	}

	if len(errs) > 0 {
		return Params{}, errs
	}
	return p, nil
}

func parseBound(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t.UTC(), true, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", time.DateTime} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized time %q", v)
}

// Predicate is a rendered WHERE clause with its arguments.
type Predicate struct {
	Clause string // empty, or " WHERE ..."
	Args   []any
}

type binder struct {
	d    Dialect
	args []any
}

func (b *binder) bind(v any) string {
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args))
}

// Where renders the predicate for p. Unset inputs add no condition.
func (s *Spec) Where(d Dialect, p Params) Predicate {
	b := &binder{d: d}
	var conds []string

	if p.Search != "" && len(s.SearchColumns) > 0 {
		pattern := "%" + p.Search + "%"
		ors := make([]string, 0, len(s.SearchColumns))
		for _, col := range s.SearchColumns {
			ors = append(ors, fmt.Sprintf("LOWER(%s) LIKE LOWER(%s)", col, b.bind(pattern)))
		}
		conds = append(conds, "("+strings.Join(ors, " OR ")+")")
	}

	for _, f := range s.Filters {
		v, ok := p.Filters[f.Param]
		if !ok {
			continue
		}
		switch f.Kind {
		case Equals:
			conds = append(conds, fmt.Sprintf("%s = %s", f.Column, b.bind(v)))
		case Flag:
			conds = append(conds, fmt.Sprintf("%s = %s", f.Column, b.bind(v == "true")))
		case OnlyTrue:
			if v == "true" {
				conds = append(conds, f.Column+" = TRUE")
			}
		}
	}

	if !p.Start.IsZero() {
		conds = append(conds, fmt.Sprintf("%s >= %s", s.TimeColumn, b.bind(p.Start)))
	}
	if !p.End.IsZero() {
		op := "<="
		if p.EndExclusive {
			op = "<"
		}
		conds = append(conds, fmt.Sprintf("%s %s %s", s.TimeColumn, op, b.bind(p.End)))
	}

	if len(conds) == 0 {
		return Predicate{}
	}
	return Predicate{
		Clause: " WHERE " + strings.Join(conds, " AND "),
		Args:   b.args,
	}
}

// PageQuery returns the row query for one page of the predicate.
func (s *Spec) PageQuery(d Dialect, pred Predicate, limit, offset int) (string, []any) {
	args := slices.Clone(pred.Args)
	args = append(args, limit, offset)
	n := len(pred.Args)
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s DESC, %s DESC LIMIT %s OFFSET %s",
		strings.Join(s.Columns, ", "), s.From, pred.Clause,
		s.TimeColumn, s.IDColumn,
		d.Placeholder(n+1), d.Placeholder(n+2))
	return q, args
}

// CountQuery returns the query counting every row matching the predicate.
func (s *Spec) CountQuery(pred Predicate) (string, []any) {
	return "SELECT COUNT(*) FROM " + s.From + pred.Clause, slices.Clone(pred.Args)
}

// AnalyticsQuery returns the aggregate query over the predicate, or ""
// when the spec declares no analytics.
func (s *Spec) AnalyticsQuery(pred Predicate) (string, []any) {
	if len(s.Analytics) == 0 {
		return "", nil
	}
	exprs := make([]string, len(s.Analytics))
	for i, a := range s.Analytics {
		exprs[i] = a.Expr
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM " + s.From + pred.Clause, slices.Clone(pred.Args)
}

// AnalyticsResult converts scanned aggregate values into the response object.
// vals must be in the order of s.Analytics; NULL sums become 0.
func (s *Spec) AnalyticsResult(vals []float64) map[string]any {
	out := make(map[string]any, len(s.Analytics))
	for i, a := range s.Analytics {
		var v float64
		if i < len(vals) {
			v = vals[i]
		}
		if a.Money {
			out[a.Key] = v
		} else {
			out[a.Key] = int64(v)
		}
	}
	return out
}

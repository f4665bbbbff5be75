package query

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoFields is returned when an update body names no updatable column.
var ErrNoFields = errors.New("no valid fields to update")

// FieldErrors maps input fields to validation messages.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := slices.Sorted(maps.Keys(e))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// Kind is the value type an updatable column accepts.
type Kind int

const (
	Text Kind = iota
	Int
	Decimal
	Bool
	Timestamp
	Enum
)

// Column is one allow-listed column.
type Column struct {
	Name     string
	Kind     Kind
	Nullable bool
	Values   []string // permitted values for Enum
}

// Assignment is a column set to an already-typed value.
type Assignment struct {
	Column string
	Value  any
}

// Update builds UPDATE statements restricted to an allow-list. Values
// are always bound, never interpolated.
type Update struct {
	Table   string
	Key     string
	Columns []Column
}

// Coerce keeps the allow-listed keys of body and converts their JSON
// values to the column types. Unknown keys are ignored. The result is
// in column declaration order.
func (u *Update) Coerce(body map[string]any) ([]Assignment, error) {
	var out []Assignment
	errs := FieldErrors{}
	for _, c := range u.Columns {
		raw, ok := body[c.Name]
		if !ok {
			continue
		}
		v, err := c.coerce(raw)
		if err != nil {
			errs[c.Name] = err.Error()
			continue
		}
		out = append(out, Assignment{Column: c.Name, Value: v})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if len(out) == 0 {
		return nil, ErrNoFields
	}
	return out, nil
}

// Build renders the UPDATE for id. The key is bound last.
func (u *Update) Build(d Dialect, set []Assignment, id any) (string, []any, error) {
	if len(set) == 0 {
		return "", nil, ErrNoFields
	}
	b := &binder{d: d}
	parts := make([]string, len(set))
	for i, a := range set {
		parts[i] = a.Column + " = " + b.bind(a.Value)
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		u.Table, strings.Join(parts, ", "), u.Key, b.bind(id))
	return q, b.args, nil
}

// Lookup returns the value assigned to column, if any.
func Lookup(set []Assignment, column string) (any, bool) {
	for _, a := range set {
		if a.Column == column {
			return a.Value, true
		}
	}
	return nil, false
}

func (c Column) coerce(raw any) (any, error) {
	if raw == nil {
		if c.Nullable {
			return nil, nil
		}
		return nil, errors.New("must not be null")
	}
	switch c.Kind {
	case Text:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.New("must be a string")
		}
		return s, nil
	case Enum:
		s, ok := raw.(string)
		if !ok || !slices.Contains(c.Values, s) {
			return nil, fmt.Errorf("must be one of %s", strings.Join(c.Values, ", "))
		}
		return s, nil
	case Int:
		switch v := raw.(type) {
		case float64:
			if v != math.Trunc(v) {
				return nil, errors.New("must be an integer")
			}
			return int64(v), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, errors.New("must be an integer")
			}
			return n, nil
		}
		return nil, errors.New("must be an integer")
	case Decimal:
		d, err := ParseDecimal(raw)
		if err != nil {
			return nil, err
		}
		return d, nil
	case Bool:
		b, ok := raw.(bool)
		if !ok {
			return nil, errors.New("must be a boolean")
		}
		return b, nil
	case Timestamp:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.New("must be a timestamp")
		}
		t, _, err := parseBound(s)
		if err != nil {
			return nil, errors.New("must be a timestamp")
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported column kind %d", c.Kind)
}

// ParseDecimal accepts a JSON number or numeric string.
func ParseDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, errors.New("must be a number")
		}
		return d, nil
	case decimal.Decimal:
		return v, nil
	}
	return decimal.Zero, errors.New("must be a number")
}

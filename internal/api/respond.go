package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paydesk/paydesk/internal/query"
	"github.com/paydesk/paydesk/internal/store"
	"github.com/paydesk/paydesk/pkg/webcore"
)

const maxBodyBytes = 1 << 20

// errBadBody marks a request body that is not the expected JSON object.
var errBadBody = errors.New("invalid JSON body")

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return query.FieldErrors{typeErr.Field: "must be a " + jsonKind(typeErr.Type.Kind().String())}
		}
		return fmt.Errorf("%w: %w", errBadBody, err)
	}
	return nil
}

// amount is a decimal request field. A value that does not parse is
// reported as a type error so decode can name the field.
type amount struct{ decimal.Decimal }

func (a *amount) UnmarshalJSON(b []byte) error {
	if err := a.Decimal.UnmarshalJSON(b); err != nil {
		return numberError(b)
	}
	return nil
}

// nullAmount is an optional decimal request field; null leaves it invalid.
type nullAmount struct{ decimal.NullDecimal }

func (a *nullAmount) UnmarshalJSON(b []byte) error {
	if err := a.NullDecimal.UnmarshalJSON(b); err != nil {
		return numberError(b)
	}
	return nil
}

// numberError is filled in with the offending field by encoding/json.
func numberError(b []byte) error {
	return &json.UnmarshalTypeError{Value: string(b), Type: reflect.TypeFor[decimal.Decimal]()}
}

func jsonKind(goKind string) string {
	switch {
	case goKind == "bool":
		return "boolean"
	case goKind == "string":
		return "string"
	case strings.HasPrefix(goKind, "int"), strings.HasPrefix(goKind, "float"), goKind == "struct":
		return "number"
	}
	return "valid value"
}

// fail writes the response for err. Validation, lookup and constraint
// failures map to 4xx; anything else is logged and answered with msg.
func (h *Handler) fail(w http.ResponseWriter, err error, msg string, notFound string) {
	var fields query.FieldErrors
	switch {
	case errors.As(err, &fields):
		webcore.ValidationError(w, "Validation failed", fields)
	case errors.Is(err, errBadBody):
		webcore.Error(w, http.StatusBadRequest, "Invalid JSON body")
	case errors.Is(err, store.ErrNotFound) && notFound != "":
		webcore.Error(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrForeignKey):
		webcore.ValidationError(w, "Merchant not found", map[string]string{"merchant_id": "Merchant not found"})
	default:
		h.logger.Error(msg, "err", err)
		webcore.Error(w, http.StatusInternalServerError, msg)
	}
}

// enum records a field error when v is set and not one of allowed.
func enum(errs query.FieldErrors, field, v string, allowed []string) {
	if v != "" && !slices.Contains(allowed, v) {
		errs[field] = "must be one of " + strings.Join(allowed, ", ")
	}
}

// listResponse renders a store page as {<resource>, pagination[, analytics]}.
func listResponse[T any](spec *query.Spec, page store.Page[T]) map[string]any {
	out := map[string]any{
		spec.Resource: page.Rows,
		"pagination":  page.Pagination,
	}
	if page.Analytics != nil {
		out["analytics"] = page.Analytics
	}
	return out
}

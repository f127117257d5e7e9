package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/leengari/dyntable/internal/domain/data"
	"github.com/leengari/dyntable/internal/domain/errors"
	"github.com/leengari/dyntable/internal/domain/schema"
)

// validateRow checks a row payload against spec and returns a normalized copy
// holding exactly the spec's fields.
// - every spec field is required
// - integers accept int types, json.Number and whole float64
// - strings are bounded by rune count
// - unknown keys are rejected; a supplied identity is ignored
// All offending fields are reported together in one *errors.ValidationError.
func validateRow(tableID string, spec schema.TableSpec, row data.Row) (data.Row, error) {
	out := data.Row{Columns: spec.Names(), Data: make(map[string]interface{}, len(spec.Fields))}
	var problems []errors.FieldError

	for _, f := range spec.Fields {
		val, exists := row.Data[f.Name]
		if !exists || val == nil {
			problems = append(problems, errors.FieldError{
				Field:      f.Name,
				Constraint: "required",
				Reason:     "missing required value",
			})
			continue
		}

		v, problem := coerce(f, val)
		if problem != nil {
			problems = append(problems, *problem)
			continue
		}
		out.Data[f.Name] = v
	}

	for _, key := range payloadKeys(row) {
		if key == schema.IdentityColumn {
			continue
		}
		if _, ok := spec.Lookup(key); !ok {
			problems = append(problems, errors.FieldError{
				Field:      key,
				Value:      row.Data[key],
				Constraint: "unknown_field",
				Reason:     "field is not declared on the table",
			})
		}
	}

	if len(problems) > 0 {
		return data.Row{}, &errors.ValidationError{TableID: tableID, Fields: problems}
	}
	return out, nil
}

// payloadKeys returns the row's keys in payload order when known, sorted otherwise.
func payloadKeys(row data.Row) []string {
	if len(row.Columns) > 0 {
		return row.Columns
	}
	keys := make([]string, 0, len(row.Data))
	for k := range row.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func coerce(f schema.Field, val interface{}) (interface{}, *errors.FieldError) {
	switch f.Type.Kind {
	case schema.KindInteger:
		if n, ok := normalizeToInt64(val); ok {
			return n, nil
		}
		return nil, typeMismatch(f, val, "integer")

	case schema.KindBoolean:
		if b, ok := val.(bool); ok {
			return b, nil
		}
		return nil, typeMismatch(f, val, "boolean")

	case schema.KindString:
		s, ok := val.(string)
		if !ok {
			return nil, typeMismatch(f, val, "string")
		}
		if n := utf8.RuneCountInString(s); n > f.Type.MaxLength {
			return nil, &errors.FieldError{
				Field:      f.Name,
				Value:      val,
				Constraint: "max_length",
				Reason:     fmt.Sprintf("length %d exceeds maximum %d", n, f.Type.MaxLength),
			}
		}
		return s, nil
	}
	return nil, &errors.FieldError{
		Field:      f.Name,
		Value:      val,
		Constraint: "type_mismatch",
		Reason:     fmt.Sprintf("unsupported column type %s", f.Type),
	}
}

// normalizeToInt64 accepts Go integer types, json.Number and whole float64 values.
func normalizeToInt64(val interface{}) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		if n, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return n, true
		}
		// 3.0 and 1e2 are whole numbers too
		return exactInt64(v.String())
	case float64:
		return wholeFloat(v)
	}
	return 0, false
}

// maxExponent bounds the decimal exponent parsed exactly; anything larger is
// out of int64 range or not whole anyway.
const maxExponent = 400

// exactInt64 parses a decimal literal without going through float64.
func exactInt64(s string) (int64, bool) {
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		exp, err := strconv.Atoi(s[i+1:])
		if err != nil || exp > maxExponent || exp < -maxExponent {
			return 0, false
		}
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok || !r.IsInt() || !r.Num().IsInt64() {
		return 0, false
	}
	return r.Num().Int64(), true
}

func wholeFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func typeMismatch(f schema.Field, val interface{}, expected string) *errors.FieldError {
	return &errors.FieldError{
		Field:      f.Name,
		Value:      val,
		Constraint: "type_mismatch",
		Reason:     fmt.Sprintf("expected %s, got %T", expected, val),
	}
}

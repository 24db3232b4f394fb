package oaskema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/reoring/oaskema/schema"
)

// matchesType reports whether the runtime shape of v fits the primitive type t.
func matchesType(t schema.Type, v any) bool {
	switch t {
	case schema.TypeString:
		_, ok := v.(string)
		return ok
	case schema.TypeBoolean:
		_, ok := v.(bool)
		return ok
	case schema.TypeNull:
		return v == nil
	case schema.TypeNumber:
		return isNumber(v)
	case schema.TypeInteger:
		return isInteger(v)
	}
	return false
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	}
	return false
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return isIntegral(float64(n))
	case float64:
		return isIntegral(n)
	case json.Number:
		if _, err := n.Int64(); err == nil {
			return true
		}
		f, err := n.Float64()
		return err == nil && isIntegral(f)
	}
	return false
}

func isIntegral(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f) && f == math.Trunc(f)
}

// typeName names the JSON type of a runtime value.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	if isInteger(v) {
		return "integer"
	}
	if isNumber(v) {
		return "number"
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}

const maxDescribed = 40

// describeValue renders a short, deterministic form of v for messages.
func describeValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		if len(t) > maxDescribed {
			cut := maxDescribed
			for cut > 0 && !utf8.RuneStart(t[cut]) {
				cut--
			}
			t = t[:cut] + "..."
		}
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	if isNumber(v) {
		return fmt.Sprint(v)
	}
	return typeName(v)
}

func invalidType(v any, expected string, path Path) *ValidationError {
	got := typeName(v)
	return &ValidationError{
		Kind:    InvalidType,
		Path:    path,
		Message: fmt.Sprintf("%s of type %s is not a valid %s at %s", describeValue(v), got, expected, path),
	}
}

// asObject returns v as a JSON object. Maps with string keys of other element
// types are copied into map[string]any.
func asObject(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// asArray returns v as a JSON array. Typed slices are copied into []any; byte
// slices are not arrays.
func asArray(v any) ([]any, bool) {
	if a, ok := v.([]any); ok {
		return a, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// joinNames renders a list of property names for messages.
func joinNames(names []string) string { return strings.Join(names, ", ") }

// Package payload gives typed, optional-value access to the schemaless JSON
// objects posted by the upstream platform.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNotObject is returned when a body decodes to something other than a JSON object.
var ErrNotObject = errors.New("payload is not a JSON object")

// Payload is a decoded webhook body.
type Payload map[string]any

// Path addresses a possibly nested key, e.g. Path{"ip_info", "city"}.
type Path []string

// P is shorthand for building a Path.
func P(keys ...string) Path {
	return Path(keys)
}

// String renders the path in dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Decode parses data as a JSON object. Numbers are kept as json.Number so
// identifiers keep their textual form.
func Decode(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode payload: trailing data after JSON value")
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return Payload(obj), nil
}

// Keys returns the top-level keys, for logging without values.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	return keys
}

// Lookup walks path through nested objects. Values the upstream producer
// treats as unset (nil, "", false, zero numbers, empty arrays and objects)
// are reported as absent.
func (p Payload) Lookup(path ...string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}

	var cur any = map[string]any(p)
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}

	if !present(cur) {
		return nil, false
	}
	return cur, true
}

// String returns the value at path rendered as a string.
func (p Payload) String(path ...string) (string, bool) {
	v, ok := p.Lookup(path...)
	if !ok {
		return "", false
	}
	return Stringify(v)
}

// FirstString returns the first present candidate.
func (p Payload) FirstString(paths ...Path) (string, bool) {
	for _, path := range paths {
		if s, ok := p.String(path...); ok {
			return s, true
		}
	}
	return "", false
}

// First returns the first present raw value among paths.
func (p Payload) First(paths ...Path) (any, bool) {
	for _, path := range paths {
		if v, ok := p.Lookup(path...); ok {
			return v, true
		}
	}
	return nil, false
}

// Float coerces the value at path to a float64. An absent value reports
// ok=false; a present value that is not numeric is an error.
func (p Payload) Float(path ...string) (float64, bool, error) {
	v, ok := p.Lookup(path...)
	if !ok {
		return 0, false, nil
	}
	f, err := ToFloat(v)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", Path(path), err)
	}
	return f, true, nil
}

// Stringify renders scalar JSON values. Objects and arrays are not strings.
func Stringify(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// ToFloat converts a JSON number or numeric string to float64.
func ToFloat(v any) (float64, error) {
	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

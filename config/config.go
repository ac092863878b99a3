/*
Copyright (C) 2024 The locator-ros-bridge Authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as
published by the Free Software Foundation, either version 3 of the
License, or (at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package config models the locator's live key-value configuration and
// reconciles it with locally supplied overrides.
package config

import (
	"fmt"
	"math"
)

// Value types a configuration entry can declare. Arrays are
// homogeneous.
const (
	TypeBool        = "bool"
	TypeInt         = "int"
	TypeFloat       = "float"
	TypeString      = "string"
	TypeBoolArray   = "bool[]"
	TypeIntArray    = "int[]"
	TypeFloatArray  = "float[]"
	TypeStringArray = "string[]"
)

// Entry is one typed configuration value. Value holds bool, int64,
// float64, string or a slice thereof, matching Type.
type Entry struct {
	Type  string
	Value interface{}
}

// String formats the value the way the locator prints it.
func (e Entry) String() string {
	switch v := e.Value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", e.Value)
	}
}

// Map is an ordered mapping from dotted configuration key to typed
// value. Keys are unique; iteration follows insertion order so that a
// round-trip through the bridge preserves the locator's ordering.
type Map struct {
	keys    []string
	entries map[string]Entry
}

// NewMap returns an empty configuration map.
func NewMap() *Map {
	return &Map{
		entries: make(map[string]Entry),
	}
}

// Set stores entry under key, keeping the key's original position if
// it is already present.
func (m *Map) Set(key string, e Entry) {
	if _, ok := m.entries[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.entries[key] = e
}

// Get returns the entry stored under key.
func (m *Map) Get(key string) (Entry, bool) {
	e, ok := m.entries[key]
	return e, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	keys := make([]string, len(m.keys))
	copy(keys, m.keys)
	return keys
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.keys)
}

// StringOf returns the formatted value of key, or "" if absent.
func (m *Map) StringOf(key string) string {
	e, ok := m.entries[key]
	if !ok {
		return ""
	}

	return e.String()
}

// ConfigTypeError reports an override whose type cannot be represented
// by the target entry's declared type. It aborts the affected key
// only, never the whole sync.
type ConfigTypeError struct {
	Key  string
	Want string
	Got  interface{}
}

func (e *ConfigTypeError) Error() string {
	return fmt.Sprintf("config: key %v: cannot represent %T as %v", e.Key, e.Got, e.Want)
}

// Coerce converts an override value to the declared type of the target
// entry, preserving the locator's representation across the round
// trip.
func Coerce(key string, target Entry, override interface{}) (Entry, error) {
	fail := func() (Entry, error) {
		return Entry{}, &ConfigTypeError{Key: key, Want: target.Type, Got: override}
	}

	switch target.Type {
	case TypeBool:
		if v, ok := override.(bool); ok {
			return Entry{Type: TypeBool, Value: v}, nil
		}
	case TypeInt:
		if v, ok := toInt64(override); ok {
			return Entry{Type: TypeInt, Value: v}, nil
		}
	case TypeFloat:
		if v, ok := toFloat64(override); ok {
			return Entry{Type: TypeFloat, Value: v}, nil
		}
	case TypeString:
		if v, ok := override.(string); ok {
			return Entry{Type: TypeString, Value: v}, nil
		}
	case TypeBoolArray:
		vs, ok := toSlice(override)
		if !ok {
			return fail()
		}
		out := make([]bool, len(vs))
		for i, x := range vs {
			v, ok := x.(bool)
			if !ok {
				return fail()
			}
			out[i] = v
		}
		return Entry{Type: TypeBoolArray, Value: out}, nil
	case TypeIntArray:
		vs, ok := toSlice(override)
		if !ok {
			return fail()
		}
		out := make([]int64, len(vs))
		for i, x := range vs {
			v, ok := toInt64(x)
			if !ok {
				return fail()
			}
			out[i] = v
		}
		return Entry{Type: TypeIntArray, Value: out}, nil
	case TypeFloatArray:
		vs, ok := toSlice(override)
		if !ok {
			return fail()
		}
		out := make([]float64, len(vs))
		for i, x := range vs {
			v, ok := toFloat64(x)
			if !ok {
				return fail()
			}
			out[i] = v
		}
		return Entry{Type: TypeFloatArray, Value: out}, nil
	case TypeStringArray:
		vs, ok := toSlice(override)
		if !ok {
			return fail()
		}
		out := make([]string, len(vs))
		for i, x := range vs {
			v, ok := x.(string)
			if !ok {
				return fail()
			}
			out[i] = v
		}
		return Entry{Type: TypeStringArray, Value: out}, nil
	default:
		return Entry{}, &ConfigTypeError{Key: key, Want: target.Type, Got: override}
	}

	return fail()
}

func toInt64(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) {
			return int64(x), true
		}
	}

	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}

	return 0, false
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch x := v.(type) {
	case []interface{}:
		return x, true
	case []bool:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, true
	case []int64:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, true
	case []string:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = e
		}
		return out, true
	}

	return nil, false
}

// ParseEntry builds a typed entry from a declared type and a decoded
// JSON value, as received from the locator's configList response.
func ParseEntry(key, typ string, raw interface{}) (Entry, error) {
	return Coerce(key, Entry{Type: typ}, raw)
}

package config_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/sishi44/locator-ros-bridge/config"
)

func TestMapOrdering(t *testing.T) {
	m := config.NewMap()
	m.Set("b", config.Entry{Type: config.TypeInt, Value: int64(1)})
	m.Set("a", config.Entry{Type: config.TypeInt, Value: int64(2)})
	m.Set("c", config.Entry{Type: config.TypeInt, Value: int64(3)})

	// overwriting must not move the key
	m.Set("b", config.Entry{Type: config.TypeInt, Value: int64(9)})

	want := []string{"b", "a", "c"}
	if got := m.Keys(); !reflect.DeepEqual(got, want) {
		t.Fatalf("wanted key order %v, found %v", want, got)
	}

	e, ok := m.Get("b")
	if !ok || e.Value.(int64) != 9 {
		t.Fatalf("wanted 9, found %+v", e)
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name     string
		target   config.Entry
		override interface{}
		want     interface{}
		fails    bool
	}{
		{"bool", config.Entry{Type: config.TypeBool}, true, true, false},
		{"int from int64", config.Entry{Type: config.TypeInt}, int64(7), int64(7), false},
		{"int from integral float", config.Entry{Type: config.TypeInt}, 7.0, int64(7), false},
		{"int from fractional float", config.Entry{Type: config.TypeInt}, 7.5, nil, true},
		{"float from int", config.Entry{Type: config.TypeFloat}, int64(2), 2.0, false},
		{"string", config.Entry{Type: config.TypeString}, "simple", "simple", false},
		{"string from bool", config.Entry{Type: config.TypeString}, true, nil, true},
		{"float array", config.Entry{Type: config.TypeFloatArray}, []interface{}{1.0, int64(2)}, []float64{1, 2}, false},
		{"string array mixed", config.Entry{Type: config.TypeStringArray}, []interface{}{"a", 1.0}, nil, true},
	}

	for _, tt := range tests {
		got, err := config.Coerce("k", tt.target, tt.override)
		if tt.fails {
			if err == nil {
				t.Fatalf("%v: coercion succeeded, wanted ConfigTypeError", tt.name)
			}
			var cte *config.ConfigTypeError
			if !errors.As(err, &cte) {
				t.Fatalf("%v: wanted ConfigTypeError, found %T", tt.name, err)
			}
			continue
		}

		if err != nil {
			t.Fatalf("%v: %v", tt.name, err)
		}
		if !reflect.DeepEqual(got.Value, tt.want) {
			t.Fatalf("%v: wanted %v (%T), found %v (%T)", tt.name, tt.want, tt.want, got.Value, got.Value)
		}
		if got.Type != tt.target.Type {
			t.Fatalf("%v: type changed from %v to %v", tt.name, tt.target.Type, got.Type)
		}
	}
}

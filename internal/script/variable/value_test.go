package variable

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func TestToString(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil", nil, "null"},
		{"string", "abc", "abc"},
		{"int64", int64(-7), "-7"},
		{"int", 3, "3"},
		{"float", 2.5, "2.5"},
		{"bool", true, "true"},
		{"buffer", NewBuffer("buf"), "buf"},
		{"error", errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToString(tt.in); got != tt.want {
				t.Errorf("ToString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestToIntFromText(t *testing.T) {
	got, err := ToInt(" 42 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
	if _, err := ToInt("x"); err == nil {
		t.Error("expected error for non-numeric text")
	}
	if got, _ := ToInt(NewBuffer("5")); got != 5 {
		t.Errorf("buffer: got %d, want 5", got)
	}
}

func TestToBool(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want bool
	}{
		{"nil", nil, false},
		{"zero", int64(0), false},
		{"one", int64(1), true},
		{"empty string", "", false},
		{"text", "x", true},
		{"empty buffer", NewBuffer(""), false},
		{"empty list", []interface{}{}, false},
		{"list", []interface{}{1}, true},
		{"empty ordered map", NewOrderedMap(), false},
		{"object", struct{}{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToBool(tt.in); got != tt.want {
				t.Errorf("ToBool = %v, want %v", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Arithmetic
// ---------------------------------------------------------------------------

func TestArith(t *testing.T) {
	tests := []struct {
		name string
		op   byte
		a, b interface{}
		want interface{}
	}{
		{"int+int", '+', int64(2), int64(3), int64(5)},
		{"int+float", '+', int64(2), 0.5, 2.5},
		{"text+int", '+', "n=", int64(1), "n=1"},
		{"buffer+text", '+', NewBuffer("a"), "b", "ab"},
		{"int-int", '-', int64(2), int64(5), int64(-3)},
		{"int*float", '*', int64(3), 0.5, 1.5},
		{"int/int truncates", '/', int64(7), int64(2), int64(3)},
		{"float/int", '/', 7.0, int64(2), 3.5},
		{"int%int", '%', int64(7), int64(3), int64(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Arith(tt.op, tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestArithErrors(t *testing.T) {
	tests := []struct {
		name string
		op   byte
		a, b interface{}
	}{
		{"bool+int", '+', true, int64(1)},
		{"text-int", '-', "x", int64(1)},
		{"divide by zero", '/', int64(1), int64(0)},
		{"float divide by zero", '/', 1.5, 0.0},
		{"modulo by zero", '%', int64(1), int64(0)},
		{"modulo float", '%', 1.5, int64(1)},
		{"unknown operator", '^', int64(1), int64(1)},
	}
	for _, tt := range tests {
		if _, err := Arith(tt.op, tt.a, tt.b); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestCompareAndEqual(t *testing.T) {
	if c, err := Compare("a", "b"); err != nil || c != -1 {
		t.Errorf("Compare(a, b) = %d, %v", c, err)
	}
	if c, err := Compare(int64(2), 1.5); err != nil || c != 1 {
		t.Errorf("Compare(2, 1.5) = %d, %v", c, err)
	}
	if _, err := Compare("a", int64(1)); err == nil {
		t.Error("expected error comparing text and int")
	}
	if !Equal(NewBuffer("x"), "x") {
		t.Error("buffer should equal string with same content")
	}
	if !Equal(int64(1), 1.0) {
		t.Error("1 should equal 1.0")
	}
	if Equal(nil, "null") {
		t.Error("nil must not equal the text null")
	}
}

func TestNegate(t *testing.T) {
	got, err := Negate(int64(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != int64(-4) {
		t.Errorf("got %v, want -4", got)
	}
	if _, err := Negate("x"); err == nil {
		t.Error("expected error negating text")
	}
}

// ---------------------------------------------------------------------------
// Containers
// ---------------------------------------------------------------------------

func TestIterateOrder(t *testing.T) {
	om := NewOrderedMap()
	om.Put("z", 1)
	om.Put("a", 2)
	om.Put("z", 3)

	tests := []struct {
		name string
		in   interface{}
		keys []string
	}{
		{"ordered map keeps insertion order", om, []string{"z", "a"}},
		{"plain map sorted", map[string]interface{}{"b": 1, "a": 2, "c": 3}, []string{"a", "b", "c"}},
		{"typed map sorted", map[string]int{"y": 1, "x": 2}, []string{"x", "y"}},
		{"list", []interface{}{"p", "q"}, []string{"", ""}},
		{"typed slice", []string{"p"}, []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !IsContainer(tt.in) {
				t.Fatal("expected a container")
			}
			entries, err := Iterate(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(entries) != len(tt.keys) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.keys))
			}
			for i, k := range tt.keys {
				if entries[i].Key != k {
					t.Errorf("entry %d: key %q, want %q", i, entries[i].Key, k)
				}
			}
		})
	}
	if v, _ := om.Get("z"); v != 3 {
		t.Errorf("Put on existing key: got %v, want 3", v)
	}
}

func TestIterateNonContainer(t *testing.T) {
	for _, v := range []interface{}{nil, "text", int64(1)} {
		if IsContainer(v) {
			t.Errorf("%v must not be a container", v)
		}
		if _, err := Iterate(v); err == nil {
			t.Errorf("expected error iterating %v", v)
		}
	}
}

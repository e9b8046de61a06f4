package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestNewPetKeyCanonicalForms(t *testing.T) {
	tests := []struct {
		in        any
		canonical string
		native    any
	}{
		{int64(7), "7", int64(7)},
		{7, "7", int64(7)},
		{int32(7), "7", int64(7)},
		{uint32(7), "7", int64(7)},
		{uint64(7), "7", uint64(7)},
		{float64(7), "7", int64(7)},
		{"7", "7", "7"},
		{" 7 ", "7", " 7 "},
		{[]byte("7"), "7", "7"},
		{stringer("A-17"), "A-17", "A-17"},
	}
	for _, tt := range tests {
		k, err := NewPetKey(tt.in)
		if err != nil {
			t.Errorf("NewPetKey(%#v): %v", tt.in, err)
			continue
		}
		if k.Canonical() != tt.canonical {
			t.Errorf("NewPetKey(%#v) canonical = %q, want %q", tt.in, k.Canonical(), tt.canonical)
		}
		if k.Native() != tt.native {
			t.Errorf("NewPetKey(%#v) native = %#v, want %#v", tt.in, k.Native(), tt.native)
		}
	}
}

func TestNewPetKeyRejects(t *testing.T) {
	for _, in := range []any{nil, "", "   ", 1.5, struct{}{}} {
		if _, err := NewPetKey(in); !errors.Is(err, ErrMalformedPetID) {
			t.Errorf("NewPetKey(%#v) err = %v, want ErrMalformedPetID", in, err)
		}
	}
}

func TestPetKeyMarshalEchoesNative(t *testing.T) {
	rows := []PetKey{MustPetKey(int64(3)), MustPetKey("3"), {}}
	got, err := json.Marshal(rows)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `[3,"3",null]` {
		t.Errorf("json = %s", got)
	}
}

func TestDistinctCanonicalSortsNumericFirst(t *testing.T) {
	keys := []PetKey{
		MustPetKey("b"), MustPetKey(int64(10)), MustPetKey("2"),
		MustPetKey(int32(2)), MustPetKey("a"), MustPetKey(1),
	}
	got := fmt.Sprint(distinctCanonical(keys))
	if got != "[1 2 10 a b]" {
		t.Errorf("distinctCanonical = %s", got)
	}
}

type stringer string

func (s stringer) String() string { return string(s) }

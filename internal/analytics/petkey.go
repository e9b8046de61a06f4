package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ErrMalformedPetID is returned when a store hands back a pet identifier that
// cannot be brought to canonical form.
var ErrMalformedPetID = errors.New("malformed pet identifier")

// PetKey is a pet identifier as one store typed it, plus the canonical string
// form used to compare it with the other stores. PetKeys are only built by
// NewPetKey at the store adapter edge; merge logic compares Canonical() and
// never looks at the native value.
type PetKey struct {
	canonical string
	native    any
}

// NewPetKey canonicalizes a pet identifier as scanned or decoded by a store
// driver. Integers (any width), integral floats, strings, byte slices and
// fmt.Stringer values are accepted.
func NewPetKey(v any) (PetKey, error) {
	switch id := v.(type) {
	case int64:
		return PetKey{canonical: strconv.FormatInt(id, 10), native: id}, nil
	case int:
		return PetKey{canonical: strconv.Itoa(id), native: int64(id)}, nil
	case int32:
		return PetKey{canonical: strconv.FormatInt(int64(id), 10), native: int64(id)}, nil
	case uint32:
		return PetKey{canonical: strconv.FormatUint(uint64(id), 10), native: int64(id)}, nil
	case uint64:
		return PetKey{canonical: strconv.FormatUint(id, 10), native: id}, nil
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) || id != math.Trunc(id) {
			return PetKey{}, fmt.Errorf("%w: non-integral number %v", ErrMalformedPetID, id)
		}
		return PetKey{canonical: strconv.FormatFloat(id, 'f', -1, 64), native: int64(id)}, nil
	case []byte:
		return stringKey(string(id))
	case string:
		return stringKey(id)
	case fmt.Stringer:
		return stringKey(id.String())
	case nil:
		return PetKey{}, fmt.Errorf("%w: null", ErrMalformedPetID)
	default:
		return PetKey{}, fmt.Errorf("%w: unsupported type %T", ErrMalformedPetID, v)
	}
}

// MustPetKey is NewPetKey for literals known to be valid.
func MustPetKey(v any) PetKey {
	k, err := NewPetKey(v)
	if err != nil {
		panic(err)
	}
	return k
}

func stringKey(s string) (PetKey, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return PetKey{}, fmt.Errorf("%w: empty string", ErrMalformedPetID)
	}
	return PetKey{canonical: trimmed, native: s}, nil
}

// Canonical returns the comparison form of the identifier.
func (k PetKey) Canonical() string { return k.canonical }

// Native returns the identifier exactly as its store typed it.
func (k PetKey) Native() any { return k.native }

// IsZero reports whether k was never set.
func (k PetKey) IsZero() bool { return k.canonical == "" }

func (k PetKey) String() string { return k.canonical }

// MarshalJSON echoes the native value so API consumers see the identifier in
// the type its owning store uses.
func (k PetKey) MarshalJSON() ([]byte, error) {
	if k.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(k.native)
}

// Int64 returns the canonical form as an integer when it is one.
func (k PetKey) Int64() (int64, bool) {
	n, err := strconv.ParseInt(k.canonical, 10, 64)
	return n, err == nil
}

// lessPetKey orders identifiers numerically when both are integers and
// lexically otherwise; integers sort before non-integers.
func lessPetKey(a, b PetKey) bool {
	an, aok := a.Int64()
	bn, bok := b.Int64()
	switch {
	case aok && bok:
		return an < bn
	case aok != bok:
		return aok
	default:
		return a.canonical < b.canonical
	}
}

// distinctCanonical returns the canonical forms of keys with duplicates
// removed, sorted with lessPetKey so batches are deterministic.
func distinctCanonical(keys []PetKey) []string {
	seen := make(map[string]PetKey, len(keys))
	for _, k := range keys {
		if _, ok := seen[k.canonical]; !ok {
			seen[k.canonical] = k
		}
	}
	uniq := make([]PetKey, 0, len(seen))
	for _, k := range seen {
		uniq = append(uniq, k)
	}
	sort.Slice(uniq, func(i, j int) bool { return lessPetKey(uniq[i], uniq[j]) })
	out := make([]string, len(uniq))
	for i, k := range uniq {
		out[i] = k.canonical
	}
	return out
}

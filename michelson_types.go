package tezbridge

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnexpectedShape is returned when canonical JSON does not hold the
// sentinel a typed binding expects.
var ErrUnexpectedShape = errors.New("tezbridge: unexpected canonical shape")

// MichelsonMap is a map that marshals in the canonical map sentinel form,
// {"MichelsonMap":{...}}, so it binds to a map or big_map field of a
// contract's storage. Keys must be strings, integers, or implement
// encoding.TextMarshaler, as with any map encoding/json can handle.
//
// Integer values of the map should use a string type or a type marshalling
// as a JSON string, since canonical numbers are strings.
type MichelsonMap[K comparable, V any] map[K]V

type michelsonMapJSON[K comparable, V any] struct {
	Entries map[K]V `json:"MichelsonMap"`
}

func (m MichelsonMap[K, V]) MarshalJSON() ([]byte, error) {
	entries := map[K]V(m)
	if entries == nil {
		entries = map[K]V{}
	}
	return json.Marshal(michelsonMapJSON[K, V]{Entries: entries})
}

func (m *MichelsonMap[K, V]) UnmarshalJSON(data []byte) error {
	value, err := ParseValue(data)
	if err != nil {
		return err
	}
	if value.Kind() != KindMap {
		return fmt.Errorf("%w: expected a %s, got %s", ErrUnexpectedShape, MapMarker, value.Kind())
	}

	var wrapped michelsonMapJSON[K, V]
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Entries == nil {
		wrapped.Entries = map[K]V{}
	}
	*m = wrapped.Entries
	return nil
}

// JSONUnit binds to a unit field. It always marshals as {"__unit__":null}.
type JSONUnit struct{}

func (JSONUnit) MarshalJSON() ([]byte, error) {
	return []byte(`{"` + UnitMarker + `":null}`), nil
}

func (u *JSONUnit) UnmarshalJSON(data []byte) error {
	value, err := ParseValue(data)
	if err != nil {
		return err
	}
	if value.Kind() != KindUnit {
		return fmt.Errorf("%w: expected unit, got %s", ErrUnexpectedShape, value.Kind())
	}
	return nil
}

// JSONEnum binds an or-tree of unit leaves to a string type listing its
// variants, marshalling as {"__enum__":"Variant"}.
type JSONEnum[E ~string] struct {
	Variant E
}

// WrapEnum returns the JSONEnum holding variant.
func WrapEnum[E ~string](variant E) JSONEnum[E] {
	return JSONEnum[E]{Variant: variant}
}

func (e JSONEnum[E]) MarshalJSON() ([]byte, error) {
	return Enum(string(e.Variant)).MarshalJSON()
}

func (e *JSONEnum[E]) UnmarshalJSON(data []byte) error {
	value, err := ParseValue(data)
	if err != nil {
		return err
	}
	if value.Kind() != KindEnum {
		return fmt.Errorf("%w: expected an enum, got %s", ErrUnexpectedShape, value.Kind())
	}
	e.Variant = E(value.Text())
	return nil
}

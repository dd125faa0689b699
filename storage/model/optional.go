package model

import (
	"encoding/json"
)

// Optional holds a value together with the information whether it was set.
// When decoding JSON a field is set as soon as its key is present, even if
// the value is null.
type Optional[T any] struct {
	value T
	set   bool
}

// Some returns a set Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{
		value: v,
		set:   true,
	}
}

// Get returns the value and whether it was set
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the value was set
func (o Optional[T]) IsSet() bool {
	return o.set
}

// IsZero is used by the omitzero json option
func (o Optional[T]) IsZero() bool {
	return !o.set
}

// MarshalJSON implements the json.Marshaler interface
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.value)
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	return json.Unmarshal(data, &o.value)
}

package internal

import (
	"bytes"
	"encoding/json"
)

// Optional is a value which may not have been sent at all. The zero value is "not sent", which is
// distinct from a sent zero value e.g `"highlight_count": 0`.
//
// JSON keys which are missing never call UnmarshalJSON, so they stay unset. An explicit `null` is
// treated the same as a missing key.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns an Optional which holds v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Get returns the value and whether it was set.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Set
}

// Or returns the value if it is set, else dft.
func (o Optional[T]) Or(dft T) T {
	if !o.Set {
		return dft
	}
	return o.Value
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte(`null`), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		var zero T
		o.Value = zero
		o.Set = false
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

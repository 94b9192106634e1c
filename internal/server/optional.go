package server

import "encoding/json"

// optional records whether a JSON field was present, so that an absent field
// and an explicit null or zero value can be told apart.
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// ptr returns nil when the field was absent and the zero value for null.
func (o optional[T]) ptr() *T {
	if !o.Set {
		return nil
	}
	if o.Value == nil {
		var zero T
		return &zero
	}
	return o.Value
}

package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// FieldError reports one field that could not be decoded. The field keeps its
// default value; decoding of the surrounding document continues.
type FieldError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FieldError) Unwrap() error { return e.Err }

// ErrNotObject is the structural error returned when a schema-typed value is not a JSON object.
var ErrNotObject = errors.New("expected a JSON object")

type field[T any] struct {
	name   string
	encode func(*T) (any, bool)
	decode func(*T, json.RawMessage) error
}

// Schema is the explicit field map of one persisted type: field name to typed
// accessor. Fields are encoded and decoded in declaration order; keys in saved
// data that no field claims are ignored.
type Schema[T any] struct {
	typeName string
	fields   []field[T]
}

// NewSchema returns an empty schema for the named type.
func NewSchema[T any](typeName string) *Schema[T] {
	return &Schema[T]{typeName: typeName}
}

// TypeName returns the schema's type name.
func (s *Schema[T]) TypeName() string { return s.typeName }

// Field declares a field. encode returns the value to write and whether to write it
// at all; decode must only assign on success so a failed field keeps its default.
//
// Precondition: name is unique within the schema.
func (s *Schema[T]) Field(name string, encode func(*T) (any, bool), decode func(*T, json.RawMessage) error) *Schema[T] {
	for _, f := range s.fields {
		if f.name == name {
			panic(fmt.Sprintf("persist.Schema %q: duplicate field %q", s.typeName, name))
		}
	}
	s.fields = append(s.fields, field[T]{name: name, encode: encode, decode: decode})
	return s
}

// Simple declares a field whose JSON form is the Go value V itself.
func Simple[T, V any](s *Schema[T], name string, get func(*T) V, set func(*T, V)) *Schema[T] {
	return s.Field(name,
		func(t *T) (any, bool) { return get(t), true },
		func(t *T, raw json.RawMessage) error {
			var v V
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			set(t, v)
			return nil
		})
}

// Encode writes v as a JSON object with keys in declaration order.
func (s *Schema[T]) Encode(v *T) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, f := range s.fields {
		val, ok := f.encode(v)
		if !ok {
			continue
		}
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("persist.Schema %q: encoding %s: %w", s.typeName, f.name, err)
		}
		key, _ := json.Marshal(f.name)
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Decode reads data into v. Field failures are collected with paths rooted at path;
// the returned error is non-nil only when data is not an object at all.
func (s *Schema[T]) Decode(data json.RawMessage, v *T, path string) ([]*FieldError, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("persist.Schema %q at %s: %w", s.typeName, path, ErrNotObject)
	}
	var errs []*FieldError
	for _, f := range s.fields {
		raw, ok := obj[f.name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		if err := f.decode(v, raw); err != nil {
			errs = append(errs, &FieldError{Path: path + "." + f.name, Err: err})
		}
	}
	return errs, nil
}

package recordstore

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
)

// IDField is the JSON name every record type must expose as a string field.
const IDField = "id"

var (
	timeType         = reflect.TypeFor[time.Time]()
	collectionNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
)

// Schema describes how records of type T are stored: the collection name and
// which JSON fields hold timestamps. Temporal fields are kept as RFC 3339 UTC
// text in snapshots and normalized on every write and query.
type Schema[T any] struct {
	name     string
	fields   map[string]reflect.Type
	temporal map[string]struct{}
}

// NewSchema validates T against the declared temporal fields.
// T must be a struct with a string field tagged `json:"id"`; each temporal
// field must exist and be a time.Time or *time.Time.
func NewSchema[T any](name string, temporal ...string) (Schema[T], error) {
	if !collectionNameRe.MatchString(name) {
		return Schema[T]{}, errors.Join(ErrInvalidSchema, fmt.Errorf("collection name %q", name))
	}

	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		return Schema[T]{}, errors.Join(ErrInvalidSchema, fmt.Errorf("%s is not a struct", typ))
	}

	fields := make(map[string]reflect.Type)
	collectFields(typ, fields)

	if idType, ok := fields[IDField]; !ok || idType.Kind() != reflect.String {
		return Schema[T]{}, errors.Join(ErrInvalidSchema, fmt.Errorf("%s has no string %q field", typ, IDField))
	}

	s := Schema[T]{
		name:     name,
		fields:   fields,
		temporal: make(map[string]struct{}, len(temporal)),
	}
	for _, field := range temporal {
		ft, ok := fields[field]
		if !ok {
			return Schema[T]{}, errors.Join(ErrInvalidSchema, fmt.Errorf("temporal field %q not found on %s", field, typ))
		}
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft != timeType {
			return Schema[T]{}, errors.Join(ErrInvalidSchema, fmt.Errorf("temporal field %q is %s, want time.Time", field, ft))
		}
		s.temporal[field] = struct{}{}
	}

	return s, nil
}

// MustSchema is like NewSchema but panics on error.
// Schemas are package-level declarations, so a bad one is a programming error.
func MustSchema[T any](name string, temporal ...string) Schema[T] {
	s, err := NewSchema[T](name, temporal...)
	if err != nil {
		panic(err)
	}
	return s
}

// Name returns the collection name.
func (s Schema[T]) Name() string {
	return s.name
}

// HasField reports whether T exposes the JSON field.
func (s Schema[T]) HasField(field string) bool {
	_, ok := s.fields[field]
	return ok
}

// IsTemporal reports whether field is declared as a timestamp.
func (s Schema[T]) IsTemporal(field string) bool {
	_, ok := s.temporal[field]
	return ok
}

// collectFields maps JSON names to Go types, flattening untagged embedded structs
// the way encoding/json does.
func collectFields(typ reflect.Type, out map[string]reflect.Type) {
	for i := range typ.NumField() {
		f := typ.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		if f.Anonymous && name == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectFields(ft, out)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		out[name] = f.Type
	}
}

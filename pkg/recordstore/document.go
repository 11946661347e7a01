package recordstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// document is the canonical form of a record: decoded JSON with numbers kept
// as json.Number and temporal fields as RFC 3339 UTC text.
type document map[string]any

func (d document) id() string {
	id, _ := d[IDField].(string)
	return id
}

func (d document) clone() document {
	return maps.Clone(d)
}

// encode converts a record into its canonical document.
func (s Schema[T]) encode(rec T) (document, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Join(ErrInvalidRecord, err)
	}
	var doc document
	if err := decodeJSON(raw, &doc); err != nil {
		return nil, errors.Join(ErrInvalidRecord, err)
	}
	if err := s.normalize(doc); err != nil {
		return nil, errors.Join(ErrInvalidRecord, err)
	}
	return doc, nil
}

// decode converts a canonical document back into a record.
func (s Schema[T]) decode(doc document) (T, error) {
	var rec T
	raw, err := json.Marshal(doc)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// canonicalize round-trips a raw snapshot entry through T so loaded documents
// look exactly like freshly written ones.
func (s Schema[T]) canonicalize(raw json.RawMessage) (document, error) {
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return s.encode(rec)
}

// normalize rewrites temporal fields to RFC 3339 UTC text in place.
func (s Schema[T]) normalize(doc document) error {
	for field := range s.temporal {
		v, ok := doc[field]
		if !ok || v == nil {
			continue
		}
		normalized, err := normalizeTime(field, v)
		if err != nil {
			return err
		}
		doc[field] = normalized
	}
	return nil
}

// value converts an arbitrary Go value for field into its canonical form.
func (s Schema[T]) value(field string, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if s.IsTemporal(field) {
		switch t := v.(type) {
		case time.Time:
			return formatTime(t), nil
		case *time.Time:
			if t == nil {
				return nil, nil
			}
			return formatTime(*t), nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := decodeJSON(raw, &out); err != nil {
		return nil, err
	}
	if s.IsTemporal(field) && out != nil {
		return normalizeTime(field, out)
	}
	return out, nil
}

func normalizeTime(field string, v any) (string, error) {
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected timestamp text, got %T", field, v)
	}
	t, err := time.Parse(time.RFC3339Nano, str)
	if err != nil {
		return "", fmt.Errorf("field %q: %w", field, err)
	}
	return formatTime(t), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

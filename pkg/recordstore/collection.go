package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"sync"
)

// Criteria selects records whose fields equal every given value (AND).
// Keys are JSON field names; a nil value matches absent or null fields.
type Criteria map[string]any

// Patch holds JSON field names and their new values for a shallow merge.
type Patch map[string]any

// Repository is the record access surface services depend on.
// *Collection[T] implements it.
type Repository[T any] interface {
	FindAll(ctx context.Context) ([]T, error)
	FindByID(ctx context.Context, id string) (T, error)
	FindBy(ctx context.Context, criteria Criteria) ([]T, error)
	FindOne(ctx context.Context, criteria Criteria) (T, error)
	Create(ctx context.Context, rec T) (T, error)
	Update(ctx context.Context, id string, patch Patch) (T, error)
	Replace(ctx context.Context, id string, rec T) (T, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Collection is a durable, id-keyed set of records of type T.
//
// Every mutation serializes the full collection and hands it to the Backend
// before the in-memory state changes, so a failed save leaves both the memory
// view and the durable snapshot as they were.
type Collection[T any] struct {
	schema  Schema[T]
	backend Backend
	opts    options

	mu    sync.RWMutex
	docs  []document
	index map[string]int
}

// Open loads the collection snapshot from the backend.
func Open[T any](ctx context.Context, backend Backend, schema Schema[T], opts ...Option) (*Collection[T], error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if schema.name == "" {
		return nil, errors.Join(ErrInvalidSchema, errors.New("schema is not initialized"))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Collection[T]{
		schema:  schema,
		backend: backend,
		opts:    o,
		index:   make(map[string]int),
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// MustOpen is like Open but panics on error.
func MustOpen[T any](ctx context.Context, backend Backend, schema Schema[T], opts ...Option) *Collection[T] {
	c, err := Open(ctx, backend, schema, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.schema.name
}

func (c *Collection[T]) load(ctx context.Context) error {
	raw, err := c.backend.Load(ctx, c.schema.name)
	if err != nil {
		return errors.Join(ErrLoad, fmt.Errorf("collection %s: %w", c.schema.name, err))
	}
	if len(raw) == 0 {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return errors.Join(ErrCorruptSnapshot, fmt.Errorf("collection %s: %w", c.schema.name, err))
	}

	docs := make([]document, 0, len(entries))
	index := make(map[string]int, len(entries))
	for i, entry := range entries {
		doc, err := c.schema.canonicalize(entry)
		if err != nil {
			return errors.Join(ErrCorruptSnapshot, fmt.Errorf("collection %s entry %d: %w", c.schema.name, i, err))
		}
		id := doc.id()
		if id == "" {
			return errors.Join(ErrCorruptSnapshot, fmt.Errorf("collection %s entry %d: missing id", c.schema.name, i))
		}
		if _, dup := index[id]; dup {
			return errors.Join(ErrCorruptSnapshot, fmt.Errorf("collection %s: duplicate id %s", c.schema.name, id))
		}
		index[id] = len(docs)
		docs = append(docs, doc)
	}

	c.docs = docs
	c.index = index
	return nil
}

// FindAll returns every record in insertion order.
func (c *Collection[T]) FindAll(ctx context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.decodeAll(c.docs, nil)
}

// FindByID returns the record with the given id or ErrNotFound.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return c.decodeOne(c.docs[i])
}

// FindBy returns records matching every criterion, in insertion order.
// Temporal criteria may be passed as time.Time; they are compared in UTC.
func (c *Collection[T]) FindBy(ctx context.Context, criteria Criteria) ([]T, error) {
	want, err := c.canonicalCriteria(criteria)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.decodeAll(c.docs, func(doc document) bool { return matches(doc, want) })
}

// FindOne returns the first record matching criteria or ErrNotFound.
func (c *Collection[T]) FindOne(ctx context.Context, criteria Criteria) (T, error) {
	var zero T
	want, err := c.canonicalCriteria(criteria)
	if err != nil {
		return zero, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, doc := range c.docs {
		if matches(doc, want) {
			return c.decodeOne(doc)
		}
	}
	return zero, ErrNotFound
}

// Count returns the number of records.
func (c *Collection[T]) Count(ctx context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs)
}

// Create stores rec under a freshly generated id and returns the stored record.
// Any id already set on rec is replaced.
func (c *Collection[T]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	doc, err := c.schema.encode(rec)
	if err != nil {
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.opts.newID()
	if _, exists := c.index[id]; exists {
		return zero, errors.Join(ErrDuplicateID, fmt.Errorf("collection %s: id %s", c.schema.name, id))
	}
	doc[IDField] = id

	next := append(slices.Clone(c.docs), doc)
	if err := c.commit(ctx, next); err != nil {
		return zero, err
	}
	return c.decodeOne(doc)
}

// Update shallow-merges patch into the record and returns the result.
// The id cannot be changed and every key must be a field of T.
func (c *Collection[T]) Update(ctx context.Context, id string, patch Patch) (T, error) {
	var zero T

	canonical := make(map[string]any, len(patch))
	for field, v := range patch {
		if field == IDField {
			return zero, errors.Join(ErrImmutableField, fmt.Errorf("field %q", field))
		}
		if !c.schema.HasField(field) {
			return zero, errors.Join(ErrUnknownField, fmt.Errorf("collection %s: field %q", c.schema.name, field))
		}
		cv, err := c.schema.value(field, v)
		if err != nil {
			return zero, errors.Join(ErrInvalidPatch, err)
		}
		canonical[field] = cv
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return zero, ErrNotFound
	}

	doc := c.docs[i].clone()
	for field, v := range canonical {
		doc[field] = v
	}
	// Re-encode through T so a patch cannot store a value T cannot hold.
	rec, err := c.schema.decode(doc)
	if err != nil {
		return zero, errors.Join(ErrInvalidPatch, err)
	}
	if doc, err = c.schema.encode(rec); err != nil {
		return zero, errors.Join(ErrInvalidPatch, err)
	}

	next := slices.Clone(c.docs)
	next[i] = doc
	if err := c.commit(ctx, next); err != nil {
		return zero, err
	}
	return rec, nil
}

// Replace overwrites the whole record with rec, keeping the id.
func (c *Collection[T]) Replace(ctx context.Context, id string, rec T) (T, error) {
	var zero T
	doc, err := c.schema.encode(rec)
	if err != nil {
		return zero, err
	}
	doc[IDField] = id

	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return zero, ErrNotFound
	}
	next := slices.Clone(c.docs)
	next[i] = doc
	if err := c.commit(ctx, next); err != nil {
		return zero, err
	}
	return c.decodeOne(doc)
}

// Delete removes the record and reports whether it existed.
func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return false, nil
	}
	next := slices.Delete(slices.Clone(c.docs), i, i+1)
	if err := c.commit(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

// commit persists next and, only on success, makes it the current state.
// Callers hold the write lock.
func (c *Collection[T]) commit(ctx context.Context, next []document) error {
	snapshot, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return errors.Join(ErrPersistence, err)
	}
	if err := c.backend.Save(ctx, c.schema.name, snapshot); err != nil {
		c.opts.logger.ErrorContext(ctx, "failed to persist collection",
			slog.String("collection", c.schema.name),
			slog.Int("records", len(next)),
			slog.String("error", err.Error()),
		)
		return errors.Join(ErrPersistence, fmt.Errorf("collection %s: %w", c.schema.name, err))
	}

	index := make(map[string]int, len(next))
	for i, doc := range next {
		index[doc.id()] = i
	}
	c.docs = next
	c.index = index
	return nil
}

func (c *Collection[T]) canonicalCriteria(criteria Criteria) (map[string]any, error) {
	want := make(map[string]any, len(criteria))
	for field, v := range criteria {
		if !c.schema.HasField(field) {
			return nil, errors.Join(ErrUnknownField, fmt.Errorf("collection %s: field %q", c.schema.name, field))
		}
		cv, err := c.schema.value(field, v)
		if err != nil {
			return nil, errors.Join(ErrInvalidPatch, err)
		}
		want[field] = cv
	}
	return want, nil
}

func matches(doc document, want map[string]any) bool {
	for field, v := range want {
		if !reflect.DeepEqual(doc[field], v) {
			return false
		}
	}
	return true
}

func (c *Collection[T]) decodeOne(doc document) (T, error) {
	rec, err := c.schema.decode(doc)
	if err != nil {
		return rec, errors.Join(ErrCorruptSnapshot, err)
	}
	return rec, nil
}

func (c *Collection[T]) decodeAll(docs []document, keep func(document) bool) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		if keep != nil && !keep(doc) {
			continue
		}
		rec, err := c.decodeOne(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Package recordstore is a generic, durable, id-keyed collection of records.
//
// A Collection[T] keeps its records in memory and persists the full collection
// snapshot through a Backend on every mutation. Backends in the subpackages
// store snapshots in files (filestore), PostgreSQL (pgstore), Redis
// (redisstore), MongoDB (mongostore) or S3 (s3store); MemoryBackend covers
// tests.
//
// # Schema
//
// A Schema names the collection and lists the JSON fields that hold
// timestamps. NewSchema checks them against T by reflection, so a typo fails
// at startup rather than silently skipping date normalization:
//
//	var subscriptions = recordstore.MustSchema[Subscription]("subscriptions",
//	    "start_date", "current_period_end", "created_at", "updated_at")
//
// Temporal fields are stored as RFC 3339 UTC text and the same normalization
// is applied to Update patches and FindBy criteria, so a time.Time in any zone
// matches the stored instant.
//
// # Semantics
//
//   - Create assigns a UUIDv7 id; a colliding id fails with ErrDuplicateID.
//   - Update is a shallow merge of JSON fields; the id is immutable and the
//     merged document must still decode into T.
//   - FindBy is exact-match AND over the given fields.
//   - A failed Backend.Save returns ErrPersistence and leaves memory unchanged.
//   - A snapshot that does not decode into T fails Open with ErrCorruptSnapshot.
//
// A Collection serializes its own calls with a mutex. It assumes it is the
// only writer of its snapshot.
package recordstore

// Package pgstore persists record store snapshots in PostgreSQL.
//
// Each collection is one row of the record_snapshots table holding the whole
// collection as JSONB. Saves are a single upsert statement, so readers never
// see a partially written collection.
//
//	pool, err := pgstore.Connect(ctx, cfg)
//	if err != nil { ... }
//	if err := pgstore.Migrate(ctx, pool, cfg, log); err != nil { ... }
//	backend := pgstore.New(pool)
//
// Connect retries with a linearly growing interval; Healthcheck adapts the
// pool to a func(context.Context) error probe.
package pgstore

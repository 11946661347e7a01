// Package mongostore persists record store snapshots in MongoDB.
//
// One document per record collection, keyed by the collection name, holds the
// snapshot text. Saves use ReplaceOne with upsert.
//
//	client, err := mongostore.Connect(ctx, cfg)
//	if err != nil { ... }
//	backend := mongostore.New(mongostore.SnapshotCollection(client, cfg))
package mongostore

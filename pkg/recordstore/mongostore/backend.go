package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection is the subset of *mongo.Collection the backend uses.
type Collection interface {
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) *mongo.SingleResult
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...options.Lister[options.ReplaceOptions]) (*mongo.UpdateResult, error)
}

type snapshotDoc struct {
	ID        string    `bson:"_id"`
	Snapshot  string    `bson:"snapshot"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Backend stores each record collection as one document keyed by its name.
// ReplaceOne with upsert swaps the whole document in a single write.
type Backend struct {
	coll Collection
	now  func() time.Time
}

// New wraps a mongo collection, typically SnapshotCollection(client, cfg).
func New(coll Collection) *Backend {
	if coll == nil {
		panic(ErrNilCollection)
	}
	return &Backend{coll: coll, now: time.Now}
}

func (b *Backend) Load(ctx context.Context, collection string) ([]byte, error) {
	var doc snapshotDoc
	err := b.coll.FindOne(ctx, bson.D{{Key: "_id", Value: collection}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Snapshot), nil
}

func (b *Backend) Save(ctx context.Context, collection string, snapshot []byte) error {
	doc := snapshotDoc{
		ID:        collection,
		Snapshot:  string(snapshot),
		UpdatedAt: b.now().UTC(),
	}
	_, err := b.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: collection}},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

// Package mongo provides a store.Store on MongoDB via Grove ORM.
//
// Keys are stored hex-encoded in _id so the collection's default index
// orders them bytewise. Each document carries its own usage size so Usage is
// a single $sum aggregation.
package mongo

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/multitoken/store"
)

const colKV = "multitoken_kv"

// compile-time interface check
var _ store.Store = (*Store)(nil)

type kvModel struct {
	grove.BaseModel `grove:"table:multitoken_kv"`

	Key   string `grove:"id,pk" bson:"_id"`
	Value []byte `grove:"value" bson:"value"`
	Size  int64  `grove:"size"  bson:"size"`
}

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate is a no-op: the default _id index serves every query.
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var m kvModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": hex.EncodeToString(key)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("multitoken/mongo: get: %w", err)
	}
	return m.Value, nil
}

// Scan implements store.Store.
func (s *Store) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	rng := bson.M{"$gte": hex.EncodeToString(prefix)}
	if end := store.PrefixEnd(prefix); end != nil {
		rng["$lt"] = hex.EncodeToString(end)
	}

	var models []kvModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"_id": rng}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("multitoken/mongo: scan: %w", err)
	}

	for i := range models {
		key, err := hex.DecodeString(models[i].Key)
		if err != nil {
			return fmt.Errorf("multitoken/mongo: decode key %q: %w", models[i].Key, err)
		}
		if err := fn(key, models[i].Value); err != nil {
			return err
		}
	}
	return nil
}

// Apply implements store.Store. The batch is one ordered bulk write inside a
// session transaction, so the deployment must be a replica set or sharded
// cluster.
func (s *Store) Apply(ctx context.Context, b *store.Batch) error {
	if b.Len() == 0 {
		return nil
	}

	coll := s.mdb.Collection(colKV)
	sess, err := coll.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("multitoken/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	writes := writeModels(b)
	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	})
	if err != nil {
		return fmt.Errorf("multitoken/mongo: apply batch: %w", err)
	}
	return nil
}

// writeModels maps each staged operation to a delete or an upserting replace.
func writeModels(b *store.Batch) []mongo.WriteModel {
	writes := make([]mongo.WriteModel, 0, b.Len())
	for _, op := range b.Ops() {
		filter := bson.M{"_id": hex.EncodeToString(op.Key)}
		if op.Delete {
			writes = append(writes, mongo.NewDeleteOneModel().SetFilter(filter))
			continue
		}
		doc := bson.M{
			"_id":   hex.EncodeToString(op.Key),
			"value": op.Value,
			"size":  int64(store.RecordSize(op.Key, op.Value)),
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(filter).
			SetReplacement(doc).
			SetUpsert(true))
	}
	return writes
}

// Usage implements store.Store.
func (s *Store) Usage(ctx context.Context) (uint64, error) {
	pipeline := bson.A{
		bson.M{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": "$size"},
		}},
	}

	cursor, err := s.mdb.Collection(colKV).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("multitoken/mongo: usage: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("multitoken/mongo: usage decode: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return uint64(results[0].Total), nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

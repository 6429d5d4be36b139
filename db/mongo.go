package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OpenMongo connects and pings before returning the database handle.
func OpenMongo(ctx context.Context, uri, name string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("OpenMongo: failed to connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("OpenMongo: failed to ping: %w", err)
	}
	return client.Database(name), nil
}

// EnsureIndexes creates the unique key index of each collection and the TTL
// index that lets mongo expire records at time_to_live.
func EnsureIndexes(ctx context.Context, mdb *mongo.Database) error {
	for _, c := range []struct {
		collection string
		keys       []string
	}{
		{StatusKind.Table, StatusKind.KeyColumns},
		{ParkingLotKind.Table, ParkingLotKind.KeyColumns},
	} {
		keys := bson.D{}
		for _, k := range c.keys {
			keys = append(keys, bson.E{Key: k, Value: 1})
		}
		_, err := mdb.Collection(c.collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: keys, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "time_to_live", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		})
		if err != nil {
			return fmt.Errorf("EnsureIndexes: %s: %w", c.collection, err)
		}
	}
	return nil
}

// MongoBackend stores one record kind in a collection. Expiry is native, so
// it does not implement Expirer.
type MongoBackend[R any] struct {
	coll *mongo.Collection
	kind Kind[R]
}

func NewMongoBackend[R any](mdb *mongo.Database, kind Kind[R]) *MongoBackend[R] {
	return &MongoBackend[R]{coll: mdb.Collection(kind.Table), kind: kind}
}

func (b *MongoBackend[R]) Put(ctx context.Context, r *R) error {
	_, err := b.coll.ReplaceOne(ctx, bson.M(b.kind.Key(r)), r, options.Replace().SetUpsert(true))
	return err
}

func (b *MongoBackend[R]) Update(ctx context.Context, key Key, r *R) error {
	set, err := presentFields(r, b.kind.KeyColumns)
	if err != nil {
		return err
	}
	update := bson.M{"$set": set}
	if created, ok := set["created_at"]; ok {
		delete(set, "created_at")
		update["$setOnInsert"] = bson.M{"created_at": created}
	}
	_, err = b.coll.UpdateOne(ctx, bson.M(key), update, options.Update().SetUpsert(true))
	return err
}

func (b *MongoBackend[R]) Get(ctx context.Context, key Key) (*R, error) {
	var r R
	err := b.coll.FindOne(ctx, bson.M(key)).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (b *MongoBackend[R]) Query(ctx context.Context, partition Key) ([]R, error) {
	sortKey := b.kind.KeyColumns[len(b.kind.KeyColumns)-1]
	cursor, err := b.coll.Find(ctx, bson.M(partition), options.Find().SetSort(bson.D{{Key: sortKey, Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []R
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (b *MongoBackend[R]) Delete(ctx context.Context, key Key) error {
	_, err := b.coll.DeleteOne(ctx, bson.M(key))
	return err
}

// presentFields encodes r and keeps only the fields an update should write:
// omitempty drops zero scalars and times, and nil pointers and slices encode
// as null and are dropped here. Key columns are matched, not set.
func presentFields[R any](r *R, keyColumns []string) (bson.M, error) {
	raw, err := bson.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("presentFields: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("presentFields: %w", err)
	}
	for _, k := range keyColumns {
		delete(doc, k)
	}
	for k, v := range doc {
		if v == nil {
			delete(doc, k)
		}
	}
	return doc, nil
}

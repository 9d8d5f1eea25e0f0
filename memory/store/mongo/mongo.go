// Package mongo is a store.Backend on MongoDB. IDs come from a counters
// collection incremented with FindOneAndUpdate.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/store"
)

const closeTimeout = 5 * time.Second

// Backend keeps one collection per store and a shared "counters" collection.
type Backend struct {
	uri      string
	database string

	client   *mongo.Client
	records  *mongo.Collection
	counters *mongo.Collection
}

type recordDocument struct {
	ID         int64     `bson:"_id"`
	Embedding  []float64 `bson:"embedding"`
	Metadata   string    `bson:"metadata"`
	InsertedAt int64     `bson:"inserted_at"`
}

// New creates a backend for the given connection URI and database.
func New(uri, database string) *Backend {
	return &Backend{uri: uri, database: database}
}

func (b *Backend) Open(ctx context.Context, name string) error {
	if b.uri == "" {
		return errors.New("mongo uri is required")
	}
	if b.database == "" {
		return errors.New("mongo database name is required")
	}
	if b.client == nil {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(b.uri))
		if err != nil {
			return err
		}
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return err
		}
		b.client = client
	}
	db := b.client.Database(b.database)
	b.records = db.Collection(name)
	b.counters = db.Collection("counters")
	return nil
}

func (b *Backend) nextID(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	res := b.counters.FindOneAndUpdate(ctx, bson.M{"_id": b.records.Name()}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts)
	if res.Err() != nil {
		return 0, res.Err()
	}
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	if err := res.Decode(&doc); err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

func (b *Backend) Insert(ctx context.Context, rec memory.VectorRecord) (int64, error) {
	id, err := b.nextID(ctx)
	if err != nil {
		return 0, fmt.Errorf("next id: %w", err)
	}
	meta, err := store.EncodeMetadata(rec.Metadata)
	if err != nil {
		return 0, err
	}
	emb := make([]float64, len(rec.Embedding))
	for i, v := range rec.Embedding {
		emb[i] = float64(v)
	}
	doc := recordDocument{
		ID:         id,
		Embedding:  emb,
		Metadata:   string(meta),
		InsertedAt: rec.InsertedAt.UnixNano(),
	}
	if _, err := b.records.InsertOne(ctx, doc); err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	return id, nil
}

func (b *Backend) All(ctx context.Context) ([]memory.VectorRecord, error) {
	cur, err := b.records.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	var docs []recordDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	records := make([]memory.VectorRecord, 0, len(docs))
	for _, d := range docs {
		meta, err := store.DecodeMetadata([]byte(d.Metadata))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", d.ID, err)
		}
		emb := make([]float32, len(d.Embedding))
		for i, v := range d.Embedding {
			emb[i] = float32(v)
		}
		records = append(records, memory.VectorRecord{
			ID:         d.ID,
			Embedding:  emb,
			Metadata:   meta,
			InsertedAt: time.Unix(0, d.InsertedAt).UTC(),
		})
	}
	return records, nil
}

func (b *Backend) OldestIDs(ctx context.Context, n int) ([]int64, error) {
	ids := []int64{}
	if n <= 0 {
		return ids, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(n)).
		SetProjection(bson.M{"_id": 1})
	cur, err := b.records.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find oldest ids: %w", err)
	}
	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode oldest ids: %w", err)
	}
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (b *Backend) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := b.records.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

func (b *Backend) Count(ctx context.Context) (int, error) {
	n, err := b.records.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return int(n), nil
}

// Clear empties the collection; the counter document survives.
func (b *Backend) Clear(ctx context.Context) error {
	if _, err := b.records.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

func (b *Backend) Close() error {
	if b.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return b.client.Disconnect(ctx)
}

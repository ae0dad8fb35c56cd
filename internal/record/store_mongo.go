package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "city_records"

// MongoStore keeps one document per key with the lookup form as _id. Each
// merged field is a separate $set path, so concurrent submissions for
// different indicators never overwrite each other.
type MongoStore struct {
	coll *mongo.Collection
}

type mongoRecord struct {
	Lookup    string         `bson:"_id"`
	ID        string         `bson:"id"`
	City      string         `bson:"city"`
	Country   string         `bson:"country"`
	UserID    string         `bson:"user_id"`
	Fields    map[string]any `bson:"fields"`
	CreatedAt int64          `bson:"created_at"`
	UpdatedAt int64          `bson:"updated_at"`
}

func (m mongoRecord) record() Record {
	f := m.Fields
	if f == nil {
		f = map[string]any{}
	}
	return Record{
		ID: m.ID, City: m.City, Country: m.Country, UserID: m.UserID,
		Fields: f, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

// ConnectMongo dials uri and pings the primary.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// NewMongoStore uses the city_records collection of db and ensures the
// user_id index exists.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*MongoStore, error) {
	coll := db.Collection(mongoCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	if err != nil {
		return nil, storeErr("init", err)
	}
	return &MongoStore{coll: coll}, nil
}

func (s *MongoStore) Merge(ctx context.Context, key Key, userID string, fields map[string]any) (Record, error) {
	now := time.Now().Unix()
	set := bson.M{
		"user_id":    userID,
		"updated_at": now,
	}
	for k, v := range fields {
		if k == "" || strings.ContainsAny(k, ".$") {
			return Record{}, storeErr("merge", fmt.Errorf("field name %q not storable", k))
		}
		set["fields."+k] = v
	}
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{
			"id":         uuid.NewString(),
			"city":       key.City,
			"country":    key.Country,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc mongoRecord
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": key.lookup()}, update, opts).Decode(&doc)
	if err != nil {
		return Record{}, storeErr("merge", err)
	}
	return doc.record(), nil
}

func (s *MongoStore) Get(ctx context.Context, key Key) (Record, error) {
	var doc mongoRecord
	err := s.coll.FindOne(ctx, bson.M{"_id": key.lookup()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Record{}, storeErr("get", err)
	}
	return doc.record(), nil
}

func (s *MongoStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	return s.find(ctx, "list", bson.M{"user_id": userID})
}

func (s *MongoStore) ListAll(ctx context.Context) ([]Record, error) {
	return s.find(ctx, "list", bson.M{})
}

func (s *MongoStore) find(ctx context.Context, op string, filter bson.M) ([]Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "country", Value: 1}, {Key: "city", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr(op, err)
	}
	var docs []mongoRecord
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(op, err)
	}
	out := make([]Record, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.record())
	}
	return out, nil
}

func (s *MongoStore) GetMany(ctx context.Context, keys []Key) ([]Record, error) {
	if len(keys) == 0 {
		return []Record{}, nil
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.lookup()
	}
	cur, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, storeErr("get_many", err)
	}
	var docs []mongoRecord
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr("get_many", err)
	}
	found := make(map[string]Record, len(docs))
	for _, d := range docs {
		found[d.Lookup] = d.record()
	}
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		r, ok := found[k.lookup()]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, k)
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *MongoStore) Delete(ctx context.Context, key Key) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": key.lookup()})
	if err != nil {
		return storeErr("delete", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

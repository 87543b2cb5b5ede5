package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoDocument is the stored shape of a document. _id is the full path
// "<collection>/<id>" so that change stream events, which only carry the
// key for deletes, can be matched to their collection.
type mongoDocument struct {
	Path       string `bson:"_id"`
	Collection string `bson:"collection"`
	Key        string `bson:"key"`
	Doc        bson.M `bson:"doc"`
}

// MongoStore keeps all collections in one MongoDB collection and uses
// change streams for subscriptions. Change streams require a replica set.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{coll: db.Collection(collection)}
}

// EnsureIndexes creates the index used by List.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "collection", Value: 1}},
	})
	if err != nil {
		return unavailable("create index", err)
	}
	return nil
}

func documentPath(collection, id string) string {
	return collection + "/" + id
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var md mongoDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": documentPath(collection, id)}).Decode(&md)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return encodeMongoDoc(collection, id, md.Doc)
}

func (s *MongoStore) Put(ctx context.Context, collection, id string, doc []byte) error {
	md, err := newMongoDocument(collection, id, doc)
	if err != nil {
		return err
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": md.Path}, md, opts); err != nil {
		return unavailable("put", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, collection, id string, doc []byte) error {
	md, err := newMongoDocument(collection, id, doc)
	if err != nil {
		return err
	}

	if _, err := s.coll.InsertOne(ctx, md); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return unavailable("create", err)
	}
	return nil
}

func (s *MongoStore) Merge(ctx context.Context, collection, id string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range fields {
		set["doc."+k] = v
	}

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": documentPath(collection, id)}, bson.M{"$set": set})
	if err != nil {
		return unavailable("merge", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": documentPath(collection, id)})
	if err != nil {
		return unavailable("delete", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, collection string) (Documents, error) {
	cur, err := s.coll.Find(ctx, bson.M{"collection": collection})
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer cur.Close(ctx)

	docs := Documents{}
	for cur.Next(ctx) {
		var md mongoDocument
		if err := cur.Decode(&md); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, collection, err)
		}
		raw, err := encodeMongoDoc(collection, md.Key, md.Doc)
		if err != nil {
			return nil, err
		}
		docs[md.Key] = raw
	}
	if err := cur.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return docs, nil
}

func (s *MongoStore) Subscribe(ctx context.Context, collection string, fn SnapshotFunc) (Subscription, error) {
	stream, err := s.watch(ctx, collection)
	if err != nil {
		return nil, err
	}

	signals := make(chan error, 1)
	fetch := func(ctx context.Context) (Documents, error) {
		return s.List(ctx, collection)
	}
	sub := startFeed(ctx, fetch, signals, fn)

	go s.relay(sub, stream, collection, signals)

	return sub, nil
}

func (s *MongoStore) watch(ctx context.Context, collection string) (*mongo.ChangeStream, error) {
	pattern := "^" + regexp.QuoteMeta(collection+"/")
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": bson.M{"$regex": pattern}}}},
	}

	stream, err := s.coll.Watch(ctx, pipeline)
	if err != nil {
		return nil, unavailable("watch", err)
	}
	return stream, nil
}

// relay turns change events into feed signals and reopens the change
// stream after failures.
func (s *MongoStore) relay(sub *subscription, stream *mongo.ChangeStream, collection string, signals chan<- error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-sub.done
		cancel()
	}()

	for {
		for stream == nil {
			var err error
			if stream, err = s.watch(ctx, collection); err != nil {
				if ctx.Err() != nil {
					return
				}
				signal(signals, err)
				if !sleepCtx(ctx, reconnectDelay) {
					return
				}
				continue
			}
			signal(signals, nil)
		}

		for stream.Next(ctx) {
			signal(signals, nil)
		}
		err := stream.Err()
		_ = stream.Close(context.Background())
		stream = nil
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errFeedClosed
		}
		signal(signals, unavailable("watch", err))
	}
}

func newMongoDocument(collection, id string, doc []byte) (mongoDocument, error) {
	var fields bson.M
	if err := json.Unmarshal(doc, &fields); err != nil {
		return mongoDocument{}, fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, collection, id, err)
	}
	return mongoDocument{
		Path:       documentPath(collection, id),
		Collection: collection,
		Key:        id,
		Doc:        fields,
	}, nil
}

func encodeMongoDoc(collection, id string, doc bson.M) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrInvalidDocument, collection, id, err)
	}
	return raw, nil
}

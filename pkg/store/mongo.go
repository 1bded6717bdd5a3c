package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/maskatlas/pkg/errors"
)

// defaultMongoDB is the database used when none is configured.
const defaultMongoDB = "maskatlas"

// MongoStore persists one document per atlas in a named collection, keyed by
// the atlas name as _id. Writes upsert, so the collection is created on first
// use.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
}

// mongoDoc is the on-disk document shape.
type mongoDoc struct {
	Name   string `bson:"_id"`
	Frames []int  `bson:"frames"`
	XDim   int    `bson:"xdim"`
	YDim   int    `bson:"ydim"`
}

// NewMongoStore wraps an already-connected client. The caller keeps ownership
// of the connection.
func NewMongoStore(client *mongo.Client, db, table string) (*MongoStore, error) {
	if client == nil {
		return nil, errors.New(errors.ErrCodeMissingOption, "mongo client is required")
	}
	if db == "" {
		db = defaultMongoDB
	}
	if table == "" {
		table = DefaultTable
	}
	if err := errors.ValidateTableName(table); err != nil {
		return nil, err
	}
	return &MongoStore{client: client, coll: client.Database(db).Collection(table)}, nil
}

// OpenMongoStore connects to uri and returns a store that owns the
// connection, disconnecting it on Close.
func OpenMongoStore(ctx context.Context, uri, db, table string) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New(errors.ErrCodeMissingOption, "mongo URI is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "connect to mongo")
	}
	s, err := NewMongoStore(client, db, table)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	s.owned = true
	return s, nil
}

// Read fetches and validates the document stored under name.
func (s *MongoStore) Read(ctx context.Context, name string, frameW, frameH int) (*Metadata, bool, error) {
	var doc mongoDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": name}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeStore, err, "read %q from collection %q", name, s.coll.Name())
	}
	meta := &Metadata{Frames: doc.Frames, XDim: doc.XDim, YDim: doc.YDim}
	if !meta.Usable(frameW, frameH) {
		return nil, false, nil
	}
	return meta, true, nil
}

// Write upserts the document for name.
func (s *MongoStore) Write(ctx context.Context, meta *Metadata, name string) error {
	doc := mongoDoc{Name: name, Frames: meta.Frames, XDim: meta.XDim, YDim: meta.YDim}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": name}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "write %q to collection %q", name, s.coll.Name())
	}
	return nil
}

// Close disconnects the client if this store opened it.
func (s *MongoStore) Close() error {
	if s.owned {
		return s.client.Disconnect(context.Background())
	}
	return nil
}

// Ensure MongoStore implements Store.
var _ Store = (*MongoStore)(nil)

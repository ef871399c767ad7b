// Package mongostore implements core.Store and core.Ledger on MongoDB.
package mongostore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/JonMunkholm/restoimport/internal/core"
)

// DefaultRunsCollection receives the run ledger unless Options says otherwise.
const DefaultRunsCollection = "import_runs"

// Options configures a Store.
type Options struct {
	RunsCollection   string        // Ledger collection (default: import_runs)
	OperationTimeout time.Duration // Bounds each insert, index build and ledger call; 0 disables
}

// Store writes entity documents and run records into one database.
type Store struct {
	client *mongo.Client // nil when built from an existing database
	db     *mongo.Database
	runs   *mongo.Collection
	opts   Options
}

// Connect dials uri, verifies the primary is reachable and returns a store for
// database. connectTimeout bounds both dialling and the initial ping.
func Connect(ctx context.Context, uri, database string, connectTimeout time.Duration, opts Options) (*Store, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetAppName("restoimport")
	if connectTimeout > 0 {
		clientOpts.SetConnectTimeout(connectTimeout).SetServerSelectionTimeout(connectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb")
	}

	pingCtx := ctx
	if connectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongodb")
	}

	s := New(client.Database(database), opts)
	s.client = client
	return s, nil
}

// New returns a store over an already connected database. Close is a no-op
// for such stores.
func New(db *mongo.Database, opts Options) *Store {
	if opts.RunsCollection == "" {
		opts.RunsCollection = DefaultRunsCollection
	}
	return &Store{
		db:   db,
		runs: db.Collection(opts.RunsCollection),
		opts: opts,
	}
}

// Database returns the name of the target database.
func (s *Store) Database() string { return s.db.Name() }

// InsertMany writes docs with one ordered bulk write. On a write error the
// count is the number of documents before the first rejected one.
func (s *Store) InsertMany(ctx context.Context, collection string, docs []bson.D) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	models := make([]mongo.WriteModel, len(docs))
	for i, doc := range docs {
		models[i] = mongo.NewInsertOneModel().SetDocument(doc)
	}

	res, err := s.db.Collection(collection).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return insertedBefore(res, err), errors.Wrapf(err, "bulk insert into %s", collection)
	}
	if res == nil {
		return 0, errors.Errorf("bulk insert into %s returned no result", collection)
	}
	return int(res.InsertedCount), nil
}

// insertedBefore works out how much of a failed ordered bulk write landed.
func insertedBefore(res *mongo.BulkWriteResult, err error) int {
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) && len(bwe.WriteErrors) > 0 {
		first := bwe.WriteErrors[0].Index
		for _, we := range bwe.WriteErrors[1:] {
			if we.Index < first {
				first = we.Index
			}
		}
		return first
	}
	if res != nil {
		return int(res.InsertedCount)
	}
	return 0
}

// EnsureIndex creates spec on collection. The server treats an identical
// index as already present and rejects a different one under the same name.
func (s *Store) EnsureIndex(ctx context.Context, collection string, spec core.IndexSpec) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	model := mongo.IndexModel{
		Keys:    indexKeys(spec.Keys),
		Options: options.Index().SetName(spec.Name),
	}
	if spec.Unique {
		model.Options.SetUnique(true)
	}

	if _, err := s.db.Collection(collection).Indexes().CreateOne(ctx, model); err != nil {
		return errors.Wrapf(err, "create index %s", spec.Name)
	}
	return nil
}

func indexKeys(keys []core.IndexKey) bson.D {
	out := make(bson.D, 0, len(keys))
	for _, k := range keys {
		var v any
		switch k.Order {
		case core.Descending:
			v = -1
		case core.Text:
			v = "text"
		default:
			v = 1
		}
		out = append(out, bson.E{Key: k.Field, Value: v})
	}
	return out
}

// DropCollection drops a collection and its indexes. A missing collection is
// not an error.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return errors.Wrapf(s.db.Collection(name).Drop(ctx), "drop collection %s", name)
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// RecordRun upserts the ledger document of a run.
func (s *Store) RecordRun(ctx context.Context, rec core.RunRecord) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.runs.ReplaceOne(ctx, bson.D{{Key: "_id", Value: rec.ID}}, rec,
		options.Replace().SetUpsert(true))
	return errors.Wrap(err, "record import run")
}

// ListRuns returns up to limit ledger entries, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.RunRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.runs.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list import runs")
	}

	out := []core.RunRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode import runs")
	}
	return out, nil
}

// Close disconnects the client opened by Connect.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.OperationTimeout)
}

package core

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/JonMunkholm/restoimport/internal/logging"
)

// Loader writes batches of documents into an entity's collection. A batch is
// either fully accepted or the load fails; nothing is retried.
type Loader struct {
	store Store
}

// NewLoader returns a loader writing to store.
func NewLoader(store Store) *Loader {
	return &Loader{store: store}
}

// Load inserts docs with one ordered multi-insert and returns how many were
// persisted. Any shortfall is a PartialInsertError; documents before the
// failing one remain in the collection.
func (l *Loader) Load(ctx context.Context, def EntityDefinition, batch int, docs []bson.D) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	start := time.Now()
	inserted, err := l.store.InsertMany(ctx, def.Collection, docs)
	if err != nil || inserted < len(docs) {
		return inserted, &PartialInsertError{
			Kind:       def.Kind,
			Collection: def.Collection,
			Batch:      batch,
			Submitted:  len(docs),
			Inserted:   inserted,
			Err:        err,
		}
	}

	logging.FromContext(ctx).Debug("batch loaded",
		"kind", def.Kind,
		"collection", def.Collection,
		"batch", batch,
		"documents", inserted,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return inserted, nil
}

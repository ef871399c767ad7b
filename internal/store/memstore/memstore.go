// Package memstore is an in-memory core.Store and core.Ledger. It backs dry
// runs, which validate a data set end to end without touching a database,
// and the package tests of core and web.
//
// Ordered inserts stop at the first document violating a unique index, the
// way the document store reports a partial batch.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/JonMunkholm/restoimport/internal/core"
)

// Store keeps collections, indexes and run records in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]bson.D
	indexes     map[string]map[string]core.IndexSpec
	runs        []core.RunRecord

	// Fault injection for tests
	insertErr map[string]error
	indexErr  map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string][]bson.D),
		indexes:     make(map[string]map[string]core.IndexSpec),
		insertErr:   make(map[string]error),
		indexErr:    make(map[string]error),
	}
}

// FailInserts makes every insert into collection fail with err.
func (s *Store) FailInserts(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr[collection] = err
}

// FailIndex makes creating the named index fail with err.
func (s *Store) FailIndex(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexErr[name] = err
}

// InsertMany implements core.Store.
func (s *Store) InsertMany(ctx context.Context, collection string, docs []bson.D) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertErr[collection]; err != nil {
		return 0, err
	}

	for i, doc := range docs {
		if err := s.checkUnique(collection, doc); err != nil {
			return i, err
		}
		s.collections[collection] = append(s.collections[collection], doc)
	}
	return len(docs), nil
}

// EnsureIndex implements core.Store. Re-creating an index with the same name
// and definition is a no-op; a different definition under the same name is
// an error.
func (s *Store) EnsureIndex(ctx context.Context, collection string, spec core.IndexSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.indexErr[spec.Name]; err != nil {
		return err
	}

	if existing, ok := s.indexes[collection][spec.Name]; ok {
		if !reflect.DeepEqual(existing, spec) {
			return fmt.Errorf("index %q already exists with different options", spec.Name)
		}
		return nil
	}

	if spec.Unique {
		seen := make(map[string]bool)
		for _, doc := range s.collections[collection] {
			key := indexKey(doc, spec)
			if seen[key] {
				return fmt.Errorf("E11000 duplicate key error collection: %s index: %s dup key: %s",
					collection, spec.Name, key)
			}
			seen[key] = true
		}
	}

	if s.indexes[collection] == nil {
		s.indexes[collection] = make(map[string]core.IndexSpec)
	}
	s.indexes[collection][spec.Name] = spec
	return nil
}

// DropCollection removes a collection with its documents and indexes.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	delete(s.indexes, name)
	return nil
}

// Ping implements core.Pinger.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// RecordRun implements core.Ledger.
func (s *Store) RecordRun(ctx context.Context, rec core.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, rec)
	return nil
}

// ListRuns implements core.Ledger, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.RunRecord, len(s.runs))
	copy(out, s.runs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Documents returns a copy of a collection's documents in insertion order.
func (s *Store) Documents(collection string) []bson.D {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]bson.D(nil), s.collections[collection]...)
}

// Count returns the number of documents in a collection.
func (s *Store) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

// Counts returns the document count of every non-empty collection.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.collections))
	for name, docs := range s.collections {
		out[name] = len(docs)
	}
	return out
}

// IndexNames returns the sorted index names of a collection.
func (s *Store) IndexNames(collection string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.indexes[collection]))
	for name := range s.indexes[collection] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Find returns the first document whose field at path equals value.
func (s *Store) Find(collection, path string, value any) (bson.D, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.collections[collection] {
		if v, ok := Lookup(doc, path); ok && reflect.DeepEqual(v, value) {
			return doc, true
		}
	}
	return nil, false
}

func (s *Store) checkUnique(collection string, doc bson.D) error {
	for _, spec := range s.indexes[collection] {
		if !spec.Unique {
			continue
		}
		key := indexKey(doc, spec)
		for _, existing := range s.collections[collection] {
			if indexKey(existing, spec) == key {
				return fmt.Errorf("E11000 duplicate key error collection: %s index: %s dup key: %s",
					collection, spec.Name, key)
			}
		}
	}
	return nil
}

func indexKey(doc bson.D, spec core.IndexSpec) string {
	parts := make([]string, len(spec.Keys))
	for i, k := range spec.Keys {
		v, _ := Lookup(doc, k.Field)
		parts[i] = fmt.Sprint(v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Lookup returns the value at a dotted path inside doc.
func Lookup(doc bson.D, path string) (any, bool) {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		d, ok := cur.(bson.D)
		if !ok {
			return nil, false
		}
		found := false
		for _, e := range d {
			if e.Key == key {
				cur, found = e.Value, true
				break
			}
		}
		if !found {
			return nil, false
		}
	}
	return cur, true
}

package core

import (
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Allocator maps transient identifiers to stable ObjectIDs, one mapping per
// entity kind. Allocations made while a stage runs stay pending until
// Commit(kind); Resolve only sees committed mappings, so a record can never
// reference a kind whose load has not fully succeeded.
//
// An Allocator belongs to a single run.
type Allocator struct {
	mu        sync.RWMutex
	committed map[Kind]map[string]primitive.ObjectID
	pending   map[Kind]map[string]primitive.ObjectID
	newID     func() primitive.ObjectID
}

// NewAllocator returns an empty allocator minting fresh ObjectIDs.
func NewAllocator() *Allocator {
	return &Allocator{
		committed: make(map[Kind]map[string]primitive.ObjectID),
		pending:   make(map[Kind]map[string]primitive.ObjectID),
		newID:     primitive.NewObjectID,
	}
}

// Allocate mints the stable id for transientID. Allocating the same transient
// id twice within a kind, committed or not, is a DuplicateAllocationError.
func (a *Allocator) Allocate(kind Kind, transientID string) (primitive.ObjectID, error) {
	transientID = strings.TrimSpace(transientID)
	if transientID == "" {
		return primitive.NilObjectID, &MalformedRecordError{Kind: kind, Reason: "empty transient id"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.committed[kind][transientID]; ok {
		return primitive.NilObjectID, &DuplicateAllocationError{Kind: kind, TransientID: transientID}
	}
	if _, ok := a.pending[kind][transientID]; ok {
		return primitive.NilObjectID, &DuplicateAllocationError{Kind: kind, TransientID: transientID}
	}

	id := a.newID()
	if a.pending[kind] == nil {
		a.pending[kind] = make(map[string]primitive.ObjectID)
	}
	a.pending[kind][transientID] = id
	return id, nil
}

// Resolve returns the committed stable id for transientID.
func (a *Allocator) Resolve(kind Kind, transientID string) (primitive.ObjectID, error) {
	transientID = strings.TrimSpace(transientID)

	a.mu.RLock()
	defer a.mu.RUnlock()

	if id, ok := a.committed[kind][transientID]; ok {
		return id, nil
	}
	return primitive.NilObjectID, &UnresolvedReferenceError{Target: kind, TransientID: transientID}
}

// Commit publishes every pending allocation of kind.
func (a *Allocator) Commit(kind Kind) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pending := a.pending[kind]
	delete(a.pending, kind)
	if len(pending) == 0 {
		return
	}

	if a.committed[kind] == nil {
		a.committed[kind] = pending
		return
	}
	for k, v := range pending {
		a.committed[kind][k] = v
	}
}

// Len returns the number of committed mappings for kind.
func (a *Allocator) Len(kind Kind) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.committed[kind])
}

// Package core provides the import pipeline: reading the generator's CSV files,
// allocating stable identifiers, rewriting references, bulk loading and index
// provisioning.
//
// The package has no transport dependencies. It is driven by the CLI and the
// run-control HTTP server alike, and by tests through an in-memory store.
//
// # Entity Registry
//
// Entity kinds are registered at init time using [Register]. Each
// [EntityDefinition] names its input file, target collection, columns and
// indexes:
//
//	core.Register(core.EntityDefinition{
//	    Kind:       core.KindMenuItems,
//	    File:       "menu_items.csv",
//	    Collection: "menu_items",
//	    IDColumn:   "temp_id",
//	    Fields: []core.FieldSpec{
//	        {Column: "precio", Type: core.FieldFloat},
//	        {Column: "restaurante_id", Type: core.FieldRef, Ref: core.PlainRef{Target: core.KindRestaurants}},
//	    },
//	})
//
// [Plan] orders the definitions and checks every kind is loaded after the
// kinds it references.
//
// # Pipeline
//
// A [Pipeline] moves through one state per entity kind, then indexing:
//
//  1. The [Reader] streams records from the kind's file
//  2. The [Allocator] mints an ObjectID for the record's transient id
//  3. The [Rewriter] converts cells and resolves references to earlier kinds
//  4. The [Loader] inserts full batches while the next batch is prepared
//  5. The kind's allocations are committed once every batch is stored
//
// Any error halts the pipeline in [StateFailed]. Stages already loaded are not
// rolled back.
//
// # Error Handling
//
// Failures are typed ([MalformedRecordError], [UnresolvedReferenceError],
// [PartialInsertError] and friends) and wrapped in a [StageError] naming the
// state. [MapError] turns them into user messages with a support code:
//
//   - ETL001-ETL005: Pipeline errors
//   - DB004, DB006: Store connectivity and timeouts
//   - RUN001-RUN003: Run control
package core

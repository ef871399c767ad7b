package core

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Kind names an entity kind. It doubles as the pipeline state for the stage
// that loads that kind.
type Kind string

const (
	KindUsers       Kind = "users"
	KindRestaurants Kind = "restaurants"
	KindMenuItems   Kind = "menu_items"
	KindOrders      Kind = "orders"
	KindReviews     Kind = "reviews"
)

// FieldType represents the persisted type of a CSV column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldFloat
	FieldInt
	FieldBool
	FieldList // comma separated strings
	FieldRef  // resolved through the allocator, see FieldSpec.Ref
)

func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldFloat:
		return "float"
	case FieldInt:
		return "int"
	case FieldBool:
		return "bool"
	case FieldList:
		return "list"
	case FieldRef:
		return "reference"
	default:
		return "unknown"
	}
}

// Bounds limits a numeric field to [Min, Max].
type Bounds struct {
	Min float64
	Max float64
}

// FieldSpec describes one input column and how it is persisted.
type FieldSpec struct {
	Column     string              // Header name in the input file
	Target     string              // Dotted path in the persisted document; defaults to Column
	Type       FieldType           // Persisted type
	AllowEmpty bool                // Empty cells are stored as null instead of failing
	EnumValues []string            // Valid values for FieldEnum (case-insensitive)
	Bounds     *Bounds             // Optional range check for FieldInt and FieldFloat
	Normalizer func(string) string // Applied to the raw cell before conversion
	Ref        Reference           // Required when Type is FieldRef
}

// TargetPath returns where the field lands in the persisted document.
func (f FieldSpec) TargetPath() string {
	if f.Target != "" {
		return f.Target
	}
	return f.Column
}

// Reference is the tagged union of foreign-key shapes: PlainRef, PackedRef or
// PolymorphicRef.
type Reference interface {
	// Targets lists every kind the reference may resolve into.
	Targets() []Kind
	isReference()
}

// PlainRef is a single transient identifier of the Target kind.
type PlainRef struct {
	Target Kind
}

// PackedRef is a delimited list of fixed-arity tuples, for example an order's
// line items "R1:2:99.50:0.10|R2:1:20.00:0.00". Items describes the tuple
// positions; exactly one of them is a FieldRef holding a PlainRef.
type PackedRef struct {
	ItemSep  string
	FieldSep string
	Items    []FieldSpec
}

// PolymorphicRef resolves against the kind selected by the value of the
// Discriminator column. Keys of Kinds are matched case-insensitively.
type PolymorphicRef struct {
	Discriminator string
	Kinds         map[string]Kind
}

func (r PlainRef) Targets() []Kind { return []Kind{r.Target} }

func (r PackedRef) Targets() []Kind {
	var out []Kind
	for _, item := range r.Items {
		if item.Ref != nil {
			out = append(out, item.Ref.Targets()...)
		}
	}
	return out
}

func (r PolymorphicRef) Targets() []Kind {
	seen := make(map[Kind]bool)
	var out []Kind
	for _, k := range r.Kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func (PlainRef) isReference()       {}
func (PackedRef) isReference()      {}
func (PolymorphicRef) isReference() {}

// Arity is the number of sub-fields per packed item.
func (r PackedRef) Arity() int { return len(r.Items) }

// IndexOrder is the direction or kind of one index key.
type IndexOrder int

const (
	Ascending IndexOrder = iota
	Descending
	Text
)

// IndexKey is one field of an index definition. An ascending key on a path
// inside an array (items.item_id) is stored by the server as a multikey index.
type IndexKey struct {
	Field string
	Order IndexOrder
}

// IndexSpec declares one named index. Creation is idempotent by name.
type IndexSpec struct {
	Name   string
	Keys   []IndexKey
	Unique bool
}

// EntityDefinition contains everything needed to load one entity kind.
type EntityDefinition struct {
	Kind       Kind
	Label      string      // Display name: "Usuarios"
	Order      int         // Position in the stage sequence
	File       string      // Input file name, relative to the import directory
	Collection string      // Target collection
	IDColumn   string      // Column holding the transient identifier
	Fields     []FieldSpec // Every other column, in header order
	Indexes    []IndexSpec
}

// Columns returns the full expected header: the id column then every field.
func (d EntityDefinition) Columns() []string {
	cols := make([]string, 0, len(d.Fields)+1)
	cols = append(cols, d.IDColumn)
	for _, f := range d.Fields {
		cols = append(cols, f.Column)
	}
	return cols
}

// DependsOn returns the kinds referenced by this entity's fields.
func (d EntityDefinition) DependsOn() []Kind {
	seen := make(map[Kind]bool)
	var out []Kind
	for _, f := range d.Fields {
		if f.Ref == nil {
			continue
		}
		for _, k := range f.Ref.Targets() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// Record is one parsed input row.
type Record struct {
	Row    int               // 1-based data row, header excluded
	Line   int               // 1-based line in the file
	Fields map[string]string // Column name -> raw cell
}

// Store is the target document store.
type Store interface {
	// InsertMany writes docs with one ordered multi-insert and reports how many
	// were persisted. A non-nil error may accompany a partial count.
	InsertMany(ctx context.Context, collection string, docs []bson.D) (int, error)

	// EnsureIndex creates the index unless one with the same name and
	// definition already exists.
	EnsureIndex(ctx context.Context, collection string, spec IndexSpec) error
}

// Ledger keeps one entry per finished run.
type Ledger interface {
	RecordRun(ctx context.Context, rec RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// StageReport summarizes one loaded entity kind.
type StageReport struct {
	Kind       Kind          `json:"kind" bson:"kind"`
	Collection string        `json:"collection" bson:"collection"`
	File       string        `json:"file" bson:"file"`
	Records    int           `json:"records" bson:"records"`
	Batches    int           `json:"batches" bson:"batches"`
	Duration   time.Duration `json:"-" bson:"-"`
	DurationMS int64         `json:"duration_ms" bson:"duration_ms"`
}

// RunReport summarizes a pipeline run, complete or not.
type RunReport struct {
	Stages     []StageReport `json:"stages"`
	Indexes    int           `json:"indexes"`
	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

func (r *RunReport) finish(start time.Time) {
	r.Duration = time.Since(start)
	r.DurationMS = r.Duration.Milliseconds()
}

// Records returns the total number of documents loaded across stages.
func (r *RunReport) Records() int {
	total := 0
	for _, s := range r.Stages {
		total += s.Records
	}
	return total
}

// RunStatus is the terminal state recorded in the ledger.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is the ledger document for one run.
type RunRecord struct {
	ID         string        `json:"id" bson:"_id"`
	StartedAt  time.Time     `json:"started_at" bson:"started_at"`
	FinishedAt time.Time     `json:"finished_at" bson:"finished_at"`
	Status     RunStatus     `json:"status" bson:"status"`
	Stages     []StageReport `json:"stages" bson:"stages"`
	Indexes    int           `json:"indexes" bson:"indexes"`
	Error      string        `json:"error,omitempty" bson:"error,omitempty"`
	ErrorCode  string        `json:"error_code,omitempty" bson:"error_code,omitempty"`
}

package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/restoimport/internal/logging"
)

// State is a pipeline state. Entity stages use their Kind as the state name.
type State string

const (
	StateUsers       = State(KindUsers)
	StateRestaurants = State(KindRestaurants)
	StateMenuItems   = State(KindMenuItems)
	StateOrders      = State(KindOrders)
	StateReviews     = State(KindReviews)
	StateIndexing    State = "indexing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Phase is the kind of progress event.
type Phase string

const (
	PhaseStageStarted   Phase = "stage_started"
	PhaseBatchLoaded    Phase = "batch_loaded"
	PhaseStageCompleted Phase = "stage_completed"
	PhaseIndexing       Phase = "indexing"
	PhaseDone           Phase = "done"
	PhaseFailed         Phase = "failed"
)

// Progress is reported at every pipeline milestone.
type Progress struct {
	State       State  `json:"state"`
	Phase       Phase  `json:"phase"`
	Kind        Kind   `json:"kind,omitempty"`
	Collection  string `json:"collection,omitempty"`
	Records     int    `json:"records"`      // Loaded so far in the current stage
	Batches     int    `json:"batches"`      // Loaded so far in the current stage
	FilePercent int    `json:"file_percent"` // Read progress through the current file
	Indexes     int    `json:"indexes,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ProgressFunc receives progress events. It is called from pipeline
// goroutines and must not block for long.
type ProgressFunc func(Progress)

// DefaultBatchSize is used when PipelineOptions.BatchSize is not positive.
const DefaultBatchSize = 1000

// PipelineOptions configures one run.
type PipelineOptions struct {
	Dir         string // Directory holding the input files
	BatchSize   int
	SkipIndexes bool
	Progress    ProgressFunc
}

// Pipeline loads every entity kind in dependency order and then provisions
// indexes. It is a state machine advanced by Step; any error moves it to
// StateFailed and halts it. Nothing loaded before a failure is rolled back.
//
// A Pipeline runs once.
type Pipeline struct {
	stages    []EntityDefinition
	store     Store
	loader    *Loader
	indexer   *IndexProvisioner
	ids       *Allocator
	opts      PipelineOptions
	state     State
	next      int // index into stages of the next entity stage
	report    RunReport
	startedAt time.Time
	err       error
}

// NewPipeline validates the stage order and returns a pipeline in its first
// state with a fresh allocator.
func NewPipeline(stages []EntityDefinition, store Store, opts PipelineOptions) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, errors.New("pipeline has no stages")
	}
	if err := ValidatePlan(stages); err != nil {
		return nil, errors.Wrap(err, "invalid stage order")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	return &Pipeline{
		stages:  stages,
		store:   store,
		loader:  NewLoader(store),
		indexer: NewIndexProvisioner(store),
		ids:     NewAllocator(),
		opts:    opts,
		state:   State(stages[0].Kind),
	}, nil
}

// State returns the current state.
func (p *Pipeline) State() State { return p.state }

// Allocator returns the run's identifier allocator.
func (p *Pipeline) Allocator() *Allocator { return p.ids }

// Report returns what has been loaded so far.
func (p *Pipeline) Report() RunReport { return p.report }

// Err returns the error that failed the pipeline, if any.
func (p *Pipeline) Err() error { return p.err }

// Run steps the pipeline until it is done or failed.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	p.startedAt = time.Now()
	for p.state != StateDone && p.state != StateFailed {
		if err := p.Step(ctx); err != nil {
			break
		}
	}
	p.report.finish(p.startedAt)
	report := p.report
	return &report, p.err
}

// Step executes the current state and advances to the next one.
func (p *Pipeline) Step(ctx context.Context) error {
	if p.startedAt.IsZero() {
		p.startedAt = time.Now()
	}

	switch p.state {
	case StateDone:
		return nil
	case StateFailed:
		return p.err
	case StateIndexing:
		if err := p.provisionIndexes(ctx); err != nil {
			return p.fail(ctx, err)
		}
		p.state = StateDone
		p.emit(Progress{State: StateDone, Phase: PhaseDone, Indexes: p.report.Indexes})
		return nil
	}

	if p.next >= len(p.stages) || State(p.stages[p.next].Kind) != p.state {
		return p.fail(ctx, errors.Errorf("no stage for state %s", p.state))
	}
	def := p.stages[p.next]

	stage, err := p.runStage(ctx, def)
	p.report.Stages = append(p.report.Stages, stage)
	if err != nil {
		return p.fail(ctx, err)
	}

	p.next++
	if p.next < len(p.stages) {
		p.state = State(p.stages[p.next].Kind)
	} else {
		p.state = StateIndexing
	}
	return nil
}

func (p *Pipeline) fail(ctx context.Context, err error) error {
	se := &StageError{State: p.state, Err: err}
	p.err = se
	p.emit(Progress{State: p.state, Phase: PhaseFailed, Error: err.Error()})
	logging.FromContext(ctx).Debug("pipeline halted", "state", p.state)
	p.state = StateFailed
	return se
}

// runStage streams def's file through the rewriter into the loader, after
// creating the kind's unique indexes. Reading and rewriting run one batch
// ahead of loading. The kind's allocations are committed only after every
// batch was loaded.
func (p *Pipeline) runStage(ctx context.Context, def EntityDefinition) (StageReport, error) {
	start := time.Now()
	report := StageReport{Kind: def.Kind, Collection: def.Collection, File: def.File}
	logger := logging.WithFields(ctx, "kind", def.Kind, "collection", def.Collection)
	logger.Info("stage started", "file", def.File)

	progress := Progress{State: p.state, Kind: def.Kind, Collection: def.Collection}
	p.emitPhase(progress, PhaseStageStarted)

	// Unique indexes are created even with SkipIndexes
	if err := p.indexer.EnsureUnique(ctx, def); err != nil {
		report.Duration = time.Since(start)
		report.DurationMS = report.Duration.Milliseconds()
		return report, err
	}

	reader := NewReader(p.opts.Dir, def)
	var filePercent atomic.Int32
	reader.Progress = func(pct int) { filePercent.Store(int32(pct)) }
	rewriter := NewRewriter(def, p.ids)

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan []bson.D, 1)

	g.Go(func() error {
		defer close(batches)

		batch := make([]bson.D, 0, p.opts.BatchSize)
		for rec, err := range reader.Records(gctx) {
			if err != nil {
				return err
			}

			id, err := p.ids.Allocate(def.Kind, rec.Fields[def.IDColumn])
			if err != nil {
				return annotateAllocation(err, def, rec)
			}
			doc, err := rewriter.Rewrite(rec, id)
			if err != nil {
				return err
			}

			batch = append(batch, doc)
			if len(batch) < p.opts.BatchSize {
				continue
			}
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
			batch = make([]bson.D, 0, p.opts.BatchSize)
		}

		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for batch := range batches {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := p.loader.Load(gctx, def, report.Batches+1, batch)
			report.Records += n
			if err != nil {
				return err
			}
			report.Batches++

			progress.Records = report.Records
			progress.Batches = report.Batches
			progress.FilePercent = int(filePercent.Load())
			p.emitPhase(progress, PhaseBatchLoaded)
		}
		return nil
	})

	err := g.Wait()
	report.Duration = time.Since(start)
	report.DurationMS = report.Duration.Milliseconds()
	if err != nil {
		return report, err
	}

	p.ids.Commit(def.Kind)

	progress.FilePercent = 100
	p.emitPhase(progress, PhaseStageCompleted)
	logger.Info("stage completed",
		"records", report.Records,
		"batches", report.Batches,
		"duration_ms", report.DurationMS,
	)
	return report, nil
}

func (p *Pipeline) provisionIndexes(ctx context.Context) error {
	if p.opts.SkipIndexes {
		logging.FromContext(ctx).Info("index provisioning skipped")
		return nil
	}
	p.emit(Progress{State: StateIndexing, Phase: PhaseIndexing})
	n, err := p.indexer.Provision(ctx, p.stages)
	p.report.Indexes = n
	return err
}

func (p *Pipeline) emitPhase(pr Progress, phase Phase) {
	pr.Phase = phase
	p.emit(pr)
}

func (p *Pipeline) emit(pr Progress) {
	if p.opts.Progress != nil {
		p.opts.Progress(pr)
	}
}

// annotateAllocation adds the record position to allocator errors.
func annotateAllocation(err error, def EntityDefinition, rec Record) error {
	var dup *DuplicateAllocationError
	if errors.As(err, &dup) {
		dup.Row = rec.Row
		return dup
	}
	var malformed *MalformedRecordError
	if errors.As(err, &malformed) {
		malformed.File = def.File
		malformed.Row = rec.Row
		malformed.Line = rec.Line
		malformed.Column = def.IDColumn
		return malformed
	}
	return err
}

package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/JonMunkholm/restoimport/internal/logging"
)

// DefaultRetainFor is how long a finished run stays queryable in memory.
const DefaultRetainFor = 30 * time.Minute

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Stages      []EntityDefinition // Stage plan, usually from Plan
	Dir         string             // Directory holding the input files
	BatchSize   int
	SkipIndexes bool
	RetainFor   time.Duration
}

// Service runs imports on behalf of the CLI and the run-control server. It
// admits one run at a time and records every finished run in the ledger.
type Service struct {
	store   Store
	ledger  Ledger
	opts    ServiceOptions
	limiter *RunLimiter

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID        string
	StartedAt time.Time
	Cancel    context.CancelFunc
	Done      chan struct{}

	mu       sync.RWMutex
	progress Progress
	stages   []StageReport
	result   *RunResult
}

// RunResult is the outcome of a finished run.
type RunResult struct {
	RunID       string      `json:"run_id"`
	Status      RunStatus   `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Report      RunReport   `json:"report"`
	FailedState State       `json:"failed_state,omitempty"`
	Error       string      `json:"error,omitempty"`
	UserError   UserMessage `json:"user_error"`
}

// RunProgress is a snapshot of a run for polling clients.
type RunProgress struct {
	RunID     string        `json:"run_id"`
	Status    RunStatus     `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Current   Progress      `json:"current"`
	Completed []StageReport `json:"completed"`
}

// Pinger is implemented by stores that can check connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewService creates a new Service. ledger may be nil, in which case runs are
// not recorded.
func NewService(store Store, ledger Ledger, opts ServiceOptions) (*Service, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if len(opts.Stages) == 0 {
		return nil, errors.New("stage plan is empty")
	}
	if err := ValidatePlan(opts.Stages); err != nil {
		return nil, errors.Wrap(err, "invalid stage plan")
	}
	if opts.RetainFor <= 0 {
		opts.RetainFor = DefaultRetainFor
	}

	return &Service{
		store:   store,
		ledger:  ledger,
		opts:    opts,
		limiter: NewRunLimiter(1),
		runs:    make(map[string]*activeRun),
	}, nil
}

// Stages returns the stage plan.
func (s *Service) Stages() []EntityDefinition { return s.opts.Stages }

// Limiter returns a snapshot of the run limiter.
func (s *Service) Limiter() RunLimiterStatus { return s.limiter.Status() }

// Run executes an import synchronously. progress may be nil. The returned
// result is non-nil whenever a run was started, including failed runs.
func (s *Service) Run(ctx context.Context, progress ProgressFunc) (*RunResult, error) {
	if err := s.limiter.TryAcquire(); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	run := s.track(nil)
	defer s.cleanup(run.ID, s.opts.RetainFor)
	defer close(run.Done)

	return s.execute(ctx, run, progress)
}

// StartRun begins an import in the background and returns its id. The run is
// detached from ctx cancellation; use Shutdown to stop it.
//
// Returns ErrRunInProgress if another run holds the slot.
func (s *Service) StartRun(ctx context.Context) (string, error) {
	if err := s.limiter.TryAcquire(); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := s.track(cancel)

	go func() {
		defer s.limiter.Release()
		defer s.cleanup(run.ID, s.opts.RetainFor)
		defer close(run.Done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import run", "run_id", run.ID, "panic", r)
				run.finish(&RunResult{
					RunID:      run.ID,
					Status:     RunFailed,
					StartedAt:  run.StartedAt,
					FinishedAt: time.Now(),
					Error:      fmt.Sprintf("internal error: %v", r),
					UserError:  defaultMessage,
				})
			}
		}()
		_, _ = s.execute(runCtx, run, nil)
	}()

	return run.ID, nil
}

// GetRunProgress returns the current progress without blocking.
func (s *Service) GetRunProgress(runID string) (RunProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return RunProgress{}, err
	}
	return run.snapshot(), nil
}

// GetRunResult returns the result of a run, blocking until it finishes or
// ctx is done.
func (s *Service) GetRunResult(ctx context.Context, runID string) (*RunResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.Done:
	default:
		select {
		case <-run.Done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	run.mu.RLock()
	defer run.mu.RUnlock()
	return run.result, nil
}

// ProvisionIndexes creates the declared indexes without loading anything.
func (s *Service) ProvisionIndexes(ctx context.Context) (int, error) {
	return NewIndexProvisioner(s.store).Provision(ctx, s.opts.Stages)
}

// Ping checks store connectivity when the store supports it.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Shutdown cancels running imports and waits for them to stop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, run := range s.runs {
		if run.Cancel != nil {
			run.Cancel()
		}
	}
	s.mu.RUnlock()
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) execute(ctx context.Context, run *activeRun, progress ProgressFunc) (*RunResult, error) {
	ctx = logging.ContextWithRunID(ctx, run.ID)
	logger := logging.FromContext(ctx)
	logger.Info("import run started", "stages", len(s.opts.Stages), "dir", s.opts.Dir)

	pipeline, err := NewPipeline(s.opts.Stages, s.store, PipelineOptions{
		Dir:         s.opts.Dir,
		BatchSize:   s.opts.BatchSize,
		SkipIndexes: s.opts.SkipIndexes,
		Progress: func(p Progress) {
			run.update(p)
			if progress != nil {
				progress(p)
			}
		},
	})

	var report *RunReport
	if err == nil {
		report, err = pipeline.Run(ctx)
	}

	result := &RunResult{
		RunID:      run.ID,
		Status:     RunSucceeded,
		StartedAt:  run.StartedAt,
		FinishedAt: time.Now(),
	}
	if report != nil {
		result.Report = *report
	}
	if err != nil {
		result.Status = RunFailed
		result.FailedState = FailedState(err)
		result.Error = err.Error()
		result.UserError = MapError(err)
		logger.Error("import run failed", "error", err, "code", result.UserError.Code)
	} else {
		logger.Info("import run finished",
			"records", result.Report.Records(),
			"indexes", result.Report.Indexes,
			"duration_ms", result.Report.DurationMS,
		)
	}

	s.recordRun(ctx, result)
	run.finish(result)
	return result, err
}

func (s *Service) track(cancel context.CancelFunc) *activeRun {
	run := &activeRun{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Cancel:    cancel,
		Done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()
	return run
}

func (s *Service) lookup(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.Wrap(ErrRunNotFound, runID)
	}
	return run, nil
}

// cleanup removes the run from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

func (r *activeRun) update(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = p
	if p.Phase == PhaseStageCompleted {
		r.stages = append(r.stages, StageReport{
			Kind:       p.Kind,
			Collection: p.Collection,
			Records:    p.Records,
			Batches:    p.Batches,
		})
	}
}

func (r *activeRun) finish(result *RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		r.result = result
	}
}

func (r *activeRun) snapshot() RunProgress {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := RunRunning
	if r.result != nil {
		status = r.result.Status
	}
	return RunProgress{
		RunID:     r.ID,
		Status:    status,
		StartedAt: r.StartedAt,
		Current:   r.progress,
		Completed: append([]StageReport(nil), r.stages...),
	}
}

package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/restoimport/internal/logging"
)

// ledgerWriteTimeout bounds the ledger write after a run. The write uses a
// context detached from the run so cancelled runs are still recorded.
const ledgerWriteTimeout = 10 * time.Second

// DefaultHistoryLimit is used when History is called with a non-positive limit.
const DefaultHistoryLimit = 20

// recordRun appends result to the ledger. Ledger failures are logged, never
// returned: the import itself already finished.
func (s *Service) recordRun(ctx context.Context, result *RunResult) {
	if s.ledger == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
	defer cancel()

	if err := s.ledger.RecordRun(ctx, RecordFromResult(result)); err != nil {
		logging.FromContext(ctx).Warn("failed to record import run", "error", err)
	}
}

// RecordFromResult converts a run result into its ledger document.
func RecordFromResult(result *RunResult) RunRecord {
	rec := RunRecord{
		ID:         result.RunID,
		StartedAt:  result.StartedAt.UTC(),
		FinishedAt: result.FinishedAt.UTC(),
		Status:     result.Status,
		Stages:     result.Report.Stages,
		Indexes:    result.Report.Indexes,
		Error:      result.Error,
		ErrorCode:  result.UserError.Code,
	}
	if rec.Stages == nil {
		rec.Stages = []StageReport{}
	}
	return rec
}

// History returns the most recent ledger entries, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]RunRecord, error) {
	if s.ledger == nil {
		return []RunRecord{}, nil
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.ledger.ListRuns(ctx, limit)
}

// Package admin provides destructive maintenance operations on the target
// database.
package admin

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/JonMunkholm/restoimport/internal/core"
	"github.com/JonMunkholm/restoimport/internal/logging"
)

// ResetTimeout is the maximum duration for a reset.
const ResetTimeout = 30 * time.Second

// Dropper is implemented by stores that can drop a collection. Dropping a
// collection that does not exist is not an error.
type Dropper interface {
	DropCollection(ctx context.Context, name string) error
}

type resetFn func(ctx context.Context) error

// Reset drops the target collection of every stage, last stage first, so a
// failed run can be repeated against the same input files. It returns the
// collections dropped before any failure.
//
// This is a destructive operation - use with caution.
func Reset(ctx context.Context, store Dropper, stages []core.EntityDefinition) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	names := make([]string, 0, len(stages))
	resets := make([]resetFn, 0, len(stages))
	for i := len(stages) - 1; i >= 0; i-- {
		name := stages[i].Collection
		names = append(names, name)
		resets = append(resets, func(ctx context.Context) error {
			return store.DropCollection(ctx, name)
		})
	}

	n, err := runResets(ctx, resets)
	return names[:n], err
}

func runResets(ctx context.Context, resets []resetFn) (int, error) {
	logger := logging.FromContext(ctx)
	for i, reset := range resets {
		if err := reset(ctx); err != nil {
			return i, errors.Wrap(err, "reset collections")
		}
		logger.Debug("reset step done", "step", i+1, "of", len(resets))
	}
	logger.Info("collections reset", "count", len(resets))
	return len(resets), nil
}

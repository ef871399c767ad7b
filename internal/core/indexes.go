package core

import (
	"context"

	"github.com/JonMunkholm/restoimport/internal/logging"
)

// IndexProvisioner creates the declared indexes of every entity. Indexes are
// named, so provisioning an already indexed database changes nothing.
type IndexProvisioner struct {
	store Store
}

// NewIndexProvisioner returns a provisioner creating indexes through store.
func NewIndexProvisioner(store Store) *IndexProvisioner {
	return &IndexProvisioner{store: store}
}

// Provision ensures every index of defs exists and returns how many were
// ensured. It stops at the first index the store rejects.
func (p *IndexProvisioner) Provision(ctx context.Context, defs []EntityDefinition) (int, error) {
	logger := logging.FromContext(ctx)
	count := 0

	for _, def := range defs {
		for _, spec := range def.Indexes {
			if err := p.ensure(ctx, def, spec); err != nil {
				return count, err
			}
			count++
		}
	}

	logger.Info("indexes provisioned", "count", count)
	return count, nil
}

// EnsureUnique creates the unique indexes of def. Stages call it before their
// first insert, so a duplicate fails the batch that carries it.
func (p *IndexProvisioner) EnsureUnique(ctx context.Context, def EntityDefinition) error {
	for _, spec := range def.Indexes {
		if !spec.Unique {
			continue
		}
		if err := p.ensure(ctx, def, spec); err != nil {
			return err
		}
	}
	return nil
}

func (p *IndexProvisioner) ensure(ctx context.Context, def EntityDefinition, spec IndexSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.store.EnsureIndex(ctx, def.Collection, spec); err != nil {
		return &IndexProvisioningError{
			Collection: def.Collection,
			Index:      spec.Name,
			Err:        err,
		}
	}
	logging.FromContext(ctx).Debug("index ensured", "collection", def.Collection, "index", spec.Name)
	return nil
}

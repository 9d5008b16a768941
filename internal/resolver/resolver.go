// Package resolver turns curation workshop ids into catalog entry details.
//
// Resolve never fails: transport, decoding and not-found errors are logged
// with the attempted id and reported as "not found", so a single bad
// response cannot abort an index build. Cancellation is not a failure and is
// only logged at debug level.
package resolver

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/potooio/curator/internal/catalog"
	"github.com/potooio/curator/internal/types"
)

// Resolver resolves workshop ids through a catalog client.
type Resolver struct {
	client catalog.Client
	logger *zap.Logger
}

// New creates a Resolver.
func New(client catalog.Client, logger *zap.Logger) *Resolver {
	return &Resolver{
		client: client,
		logger: logger.Named("resolver"),
	}
}

// Resolve fetches the entry for id. The boolean is false when the entry could
// not be resolved for any reason.
func (r *Resolver) Resolve(ctx context.Context, id int64) (*types.EntryDetails, bool) {
	if ctx.Err() != nil {
		resolveTotal.WithLabelValues("cancelled").Inc()
		return nil, false
	}

	result, err := r.client.GetEntryByID(ctx, id)
	if err != nil {
		if isCancellation(ctx, err) {
			resolveTotal.WithLabelValues("cancelled").Inc()
			r.logger.Debug("Entry resolution cancelled", zap.Int64("workshop_id", id))
			return nil, false
		}
		resolveTotal.WithLabelValues("failed").Inc()
		r.logger.Error("Failed to resolve workshop entry",
			zap.Int64("workshop_id", id),
			zap.Error(err),
		)
		return nil, false
	}

	if result == nil || result.Data.Entry == nil {
		resolveTotal.WithLabelValues("not_found").Inc()
		r.logger.Error("Workshop entry not found", zap.Int64("workshop_id", id))
		return nil, false
	}

	resolveTotal.WithLabelValues("resolved").Inc()
	return result.Data.Entry, true
}

// isCancellation reports whether the lookup ended because ctx is done or is
// about to reach its deadline. A context error from the transport while ctx is
// still live is a failure.
func isCancellation(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, catalog.ErrRateLimitDeadline)
}

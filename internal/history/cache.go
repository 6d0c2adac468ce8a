package history

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/player"
)

// CachingResolver serves metadata from the store while it is younger
// than TTL and falls back to the wrapped resolver otherwise
type CachingResolver struct {
	next   player.Resolver
	store  *Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachingResolver wraps next with a cache in store
func NewCachingResolver(next player.Resolver, store *Store, ttl time.Duration, logger zerolog.Logger) *CachingResolver {
	return &CachingResolver{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "metadata_cache").Logger(),
	}
}

func (c *CachingResolver) Resolve(ctx context.Context, id catalog.TrackID) (*catalog.ExtendedInfo, error) {
	info, err := c.store.Metadata(ctx, id, c.ttl)
	switch {
	case err == nil:
		c.logger.Debug().Int64("track_id", int64(id)).Msg("Metadata cache hit")
		return info, nil
	case !errors.Is(err, ErrNotFound):
		c.logger.Warn().Err(err).Msg("Metadata cache read failed")
	}

	info, err = c.next.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := c.store.PutMetadata(ctx, id, *info); err != nil {
		c.logger.Warn().Err(err).Int64("track_id", int64(id)).Msg("Failed to cache metadata")
	}
	return info, nil
}

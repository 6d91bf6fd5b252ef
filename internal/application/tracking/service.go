package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/threadline/fulfillment/internal/domain/shipment"
	"github.com/threadline/fulfillment/internal/observability"
	"github.com/threadline/fulfillment/internal/observability/logctx"
)

const componentTracking = "tracking_cache"

// Store is the time-boxed cache behind the tracking service. Staleness
// is the store's concern: a stale entry reads as a miss.
type Store interface {
	Get(ctx context.Context, trackingCode string) (*shipment.TrackingStatus, bool, error)
	Set(ctx context.Context, trackingCode string, status *shipment.TrackingStatus) error
}

// Service answers tracking lookups from the cache, falling back to a
// live fetch through the carrier gateway on a miss or stale entry.
type Service struct {
	store   Store
	gateway shipment.Gateway
	log     observability.Logger
}

func NewService(store Store, gateway shipment.Gateway, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Service{
		store:   store,
		gateway: gateway,
		log:     logger.With(observability.F("component", componentTracking)),
	}
}

// Get returns the cached payload when present and fresh; otherwise it
// fetches live and stores the result with a fresh timestamp.
func (s *Service) Get(ctx context.Context, trackingCode string) (*shipment.TrackingStatus, error) {
	if trackingCode == "" {
		return nil, errors.New("tracking: tracking code is required")
	}
	logger := logctx.FromOr(ctx, s.log).With(observability.F("tracking_code", trackingCode))

	cached, ok, err := s.store.Get(ctx, trackingCode)
	if err != nil {
		// A broken cache degrades to a live fetch.
		logger.Warn("tracking_cache_read_failed", observability.F("error", err.Error()))
	} else if ok {
		return cached, nil
	}

	live, err := s.gateway.Tracking(ctx, trackingCode)
	if err != nil {
		return nil, fmt.Errorf("tracking: live fetch: %w", err)
	}

	if err := s.store.Set(ctx, trackingCode, live); err != nil {
		logger.Warn("tracking_cache_write_failed", observability.F("error", err.Error()))
	}
	return live, nil
}

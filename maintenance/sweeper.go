/*
Copyright © 2026 GuideVox OÜ.

Released under MIT license.
*/

// Package maintenance runs the periodic sweeps the admission controller and the
// content cache require but do not schedule themselves: reclaiming expired
// requests and removing expired or over-budget cache entries.
package maintenance

import (
	"context"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/service"

	"github.com/guidevox/go-loadkit/admission"
	"github.com/guidevox/go-loadkit/contentcache"
)

// DefaultSweepInterval is the default delay between two sweep passes.
const DefaultSweepInterval = time.Minute

// Sweeper periodically reclaims expired admission requests and cleans up the
// content cache. Either component may be nil, in which case its sweep is skipped.
type Sweeper struct {
	logger     log.FieldLogger
	controller *admission.Controller
	cache      *contentcache.Manager
}

var _ service.Worker = (*Sweeper)(nil)

// NewSweeper creates a new Sweeper.
func NewSweeper(logger log.FieldLogger, controller *admission.Controller, cache *contentcache.Manager) *Sweeper {
	return &Sweeper{logger: logger, controller: controller, cache: cache}
}

// Run performs one sweep pass.
// Implements service.Worker interface.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.controller != nil {
		if removed := s.controller.CleanupExpired(); removed > 0 {
			s.logger.Info("expired admission requests reclaimed", log.Int("removed", removed))
		}
	}
	if s.cache != nil {
		result, err := s.cache.Cleanup(ctx)
		if err != nil {
			return err
		}
		if result.Expired > 0 || result.Evicted > 0 {
			s.logger.Info("cache cleanup finished",
				log.Int("expired", result.Expired), log.Int("evicted", result.Evicted))
		}
	}
	return nil
}

// NewSweeperUnit wraps the Sweeper into a service.Unit running it every interval.
// Zero interval means DefaultSweepInterval.
func NewSweeperUnit(
	logger log.FieldLogger, controller *admission.Controller, cache *contentcache.Manager, interval time.Duration,
) *service.WorkerUnit {
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	sweeper := NewSweeper(logger, controller, cache)
	return service.NewWorkerUnit(service.NewPeriodicWorker(sweeper, interval, logger))
}

package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/hangarlink/market_layer/internal/app/system"
	"github.com/hangarlink/market_layer/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher periodically re-fetches reference prices for every item type
// already known to the price store.
type Refresher struct {
	service  *Service
	log      *logger.Logger
	interval time.Duration
	fetcher  Fetcher

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed price refresher.
func NewRefresher(service *Service, interval time.Duration, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("pricing-refresher")
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Refresher{
		service:  service,
		log:      log,
		interval: interval,
	}
}

// WithFetcher assigns the fetcher used to retrieve external prices.
func (r *Refresher) WithFetcher(fetcher Fetcher) {
	r.mu.Lock()
	r.fetcher = fetcher
	r.mu.Unlock()
}

func (r *Refresher) Name() string { return "pricing-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("price refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("price refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.service == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	r.mu.Lock()
	fetcher := r.fetcher
	r.mu.Unlock()

	if fetcher == nil {
		r.log.Debug("no price fetcher configured, skipping tick")
		return
	}

	known, err := r.service.List(ctx, nil)
	if err != nil {
		r.log.WithError(err).Warn("price refresher tick failed")
		return
	}
	if len(known) == 0 {
		return
	}

	itemTypeIDs := make([]int64, 0, len(known))
	for _, p := range known {
		itemTypeIDs = append(itemTypeIDs, p.ItemTypeID)
	}

	fetched, err := fetcher.Fetch(ctx, itemTypeIDs)
	if err != nil {
		r.log.WithError(err).Warn("price fetch failed")
		return
	}
	for _, p := range fetched {
		if _, err := r.service.Upsert(ctx, p); err != nil {
			r.log.WithError(err).
				WithField("item_type_id", p.ItemTypeID).
				Warn("record fetched price failed")
		}
	}
}

package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	monitor "reachstacker-monitor/internal/monitor/domain"
	"reachstacker-monitor/internal/observability/metrics"
	telemetry "reachstacker-monitor/internal/telemetry/domain"
)

const (
	defaultRefreshInterval = 10 * time.Second
	defaultFetchTimeout    = 8 * time.Second
)

// Fetcher reads the latest rows of one unit from the store.
type Fetcher interface {
	Unit(ctx context.Context, unitID string) ([]telemetry.Row, error)
}

// Target is one fetch to perform on a tick.
type Target struct {
	UnitID string
	Scope  Scope
}

// TargetSource lists the fetches of the next tick.
type TargetSource func() []Target

// Poller runs fetches on a fixed interval. Every fetch runs independently and
// reports an Observation tagged with its tick.
type Poller struct {
	fetcher  Fetcher
	targets  TargetSource
	interval time.Duration
	timeout  time.Duration
	clock    Clock
	logger   *log.Logger
	trigger  chan struct{}
	tick     atomic.Uint64
	wg       sync.WaitGroup
}

// PollerOption customizes the poller.
type PollerOption func(*Poller)

// WithInterval sets the refresh interval.
func WithInterval(interval time.Duration) PollerOption {
	return func(p *Poller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithFetchTimeout bounds each fetch.
func WithFetchTimeout(timeout time.Duration) PollerOption {
	return func(p *Poller) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// WithPollerClock assigns a clock.
func WithPollerClock(clock Clock) PollerOption {
	return func(p *Poller) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithPollerLogger assigns a logger.
func WithPollerLogger(logger *log.Logger) PollerOption {
	return func(p *Poller) {
		p.logger = logger
	}
}

// NewPoller constructs a poller.
func NewPoller(fetcher Fetcher, targets TargetSource, opts ...PollerOption) (*Poller, error) {
	if fetcher == nil {
		return nil, errors.New("monitor: nil fetcher")
	}
	if targets == nil {
		return nil, errors.New("monitor: nil target source")
	}
	p := &Poller{
		fetcher:  fetcher,
		targets:  targets,
		interval: defaultRefreshInterval,
		timeout:  defaultFetchTimeout,
		clock:    systemClock{},
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Trigger requests an immediate tick. Extra triggers collapse into one.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Run ticks immediately and then on every interval until ctx is done. It
// waits for in-flight fetches before returning; their results are dropped
// once ctx is done.
func (p *Poller) Run(ctx context.Context, out chan<- Observation) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	defer p.wg.Wait()

	p.runTick(ctx, out)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runTick(ctx, out)
		case <-p.trigger:
			p.runTick(ctx, out)
		}
	}
}

func (p *Poller) runTick(ctx context.Context, out chan<- Observation) {
	tick := p.tick.Add(1)
	for _, target := range p.targets() {
		if target.UnitID == "" {
			continue
		}
		p.wg.Add(1)
		go func(target Target) {
			defer p.wg.Done()
			obs := p.fetch(ctx, tick, target)
			select {
			case out <- obs:
			case <-ctx.Done():
			}
		}(target)
	}
}

func (p *Poller) fetch(ctx context.Context, tick uint64, target Target) Observation {
	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	rows, err := p.fetcher.Unit(fetchCtx, target.UnitID)
	obs := Observation{
		UnitID: target.UnitID,
		Scope:  target.Scope,
		Tick:   tick,
		At:     p.clock.Now(),
	}
	if err != nil {
		metrics.ObservePollFetch(string(target.Scope), metrics.ResultError, time.Since(start))
		if p.logger != nil && ctx.Err() == nil {
			p.logger.Printf("monitor: fetch failed unit=%s scope=%s tick=%d err=%v", target.UnitID, target.Scope, tick, err)
		}
		obs.Err = err
		return obs
	}
	metrics.ObservePollFetch(string(target.Scope), metrics.ResultSuccess, time.Since(start))
	obs.Readings = monitor.ParseReadings(target.UnitID, rows)
	return obs
}

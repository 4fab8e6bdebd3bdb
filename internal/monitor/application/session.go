package application

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
)

// ErrUnknownUnit indicates a unit the session does not monitor.
var ErrUnknownUnit = errors.New("monitor: unknown unit")

// Session owns one dashboard: a poller feeding a single consumer that applies
// every observation through the dispatcher.
type Session struct {
	dispatcher *Dispatcher
	registry   *Registry
	poller     *Poller
	logger     *log.Logger
	results    chan Observation

	mu       sync.RWMutex
	selected string
}

// NewSession constructs a session. The initial selection falls back to the
// first registered unit.
func NewSession(fetcher Fetcher, dispatcher *Dispatcher, registry *Registry, selected string, logger *log.Logger, opts ...PollerOption) (*Session, error) {
	if dispatcher == nil {
		return nil, errors.New("monitor: nil dispatcher")
	}
	if registry == nil {
		return nil, errors.New("monitor: nil registry")
	}
	units := registry.Units()
	if len(units) == 0 {
		return nil, errors.New("monitor: no units configured")
	}
	selected = strings.TrimSpace(selected)
	if selected == "" {
		selected = units[0]
	}
	if !registry.Known(selected) {
		return nil, ErrUnknownUnit
	}
	s := &Session{
		dispatcher: dispatcher,
		registry:   registry,
		logger:     logger,
		results:    make(chan Observation, len(units)*2),
		selected:   selected,
	}
	opts = append([]PollerOption{WithPollerLogger(logger)}, opts...)
	poller, err := NewPoller(fetcher, s.targets, opts...)
	if err != nil {
		return nil, err
	}
	s.poller = poller
	return s, nil
}

// Run polls and applies results until ctx is done.
func (s *Session) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.poller.Run(ctx, s.results)
	}()
	if s.logger != nil {
		s.logger.Printf("monitor: session started selected=%s units=%d", s.Selected(), len(s.registry.Units()))
	}
	for {
		select {
		case obs := <-s.results:
			s.dispatcher.Observe(ctx, obs)
		case <-ctx.Done():
			<-done
			if s.logger != nil {
				s.logger.Printf("monitor: session stopped")
			}
			return
		}
	}
}

// Selected returns the unit shown in detail.
func (s *Session) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Select changes the detail unit and refreshes immediately.
func (s *Session) Select(unitID string) error {
	unitID = strings.TrimSpace(unitID)
	if !s.registry.Known(unitID) {
		return ErrUnknownUnit
	}
	s.mu.Lock()
	changed := s.selected != unitID
	s.selected = unitID
	s.mu.Unlock()
	if changed {
		if s.logger != nil {
			s.logger.Printf("monitor: selection changed unit=%s", unitID)
		}
		s.poller.Trigger()
	}
	return nil
}

// Refresh requests an immediate tick.
func (s *Session) Refresh() {
	s.poller.Trigger()
}

// Registry exposes the unit states.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Dispatcher exposes the alert dispatcher.
func (s *Session) Dispatcher() *Dispatcher {
	return s.dispatcher
}

func (s *Session) targets() []Target {
	selected := s.Selected()
	units := s.registry.Units()
	targets := make([]Target, 0, len(units)+1)
	targets = append(targets, Target{UnitID: selected, Scope: ScopeDetail})
	for _, unitID := range units {
		targets = append(targets, Target{UnitID: unitID, Scope: ScopeOverview})
	}
	return targets
}

package application

import (
	"context"
	"errors"
	"sync"
)

// ErrNotificationsDenied indicates the permission request was refused.
var ErrNotificationsDenied = errors.New("monitor: notification permission denied")

// PermissionRequester asks the presentation side whether notifications may be shown.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) (bool, error)
}

// Preference is the session switch for notifications. It starts disabled and
// is never persisted.
type Preference struct {
	mu        sync.RWMutex
	enabled   bool
	requester PermissionRequester
}

// NewPreference constructs a disabled preference. A nil requester grants every request.
func NewPreference(requester PermissionRequester) *Preference {
	return &Preference{requester: requester}
}

// Enabled reports whether notifications may be dispatched.
func (p *Preference) Enabled() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Enable asks for permission and turns notifications on when granted. A denial
// leaves the preference disabled and is not retried.
func (p *Preference) Enable(ctx context.Context) error {
	if p == nil {
		return errors.New("monitor: nil preference")
	}
	if p.requester != nil {
		granted, err := p.requester.RequestPermission(ctx)
		if err != nil {
			return err
		}
		if !granted {
			return ErrNotificationsDenied
		}
	}
	p.mu.Lock()
	p.enabled = true
	p.mu.Unlock()
	return nil
}

// Disable turns notifications off.
func (p *Preference) Disable() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()
}

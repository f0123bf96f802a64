package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Timeout bounds for dispatch. Out-of-range configured values are clamped.
const (
	DefaultTimeout = 60 * time.Second
	MinTimeout     = 30 * time.Second
	MaxTimeout     = 90 * time.Second
)

// Router dispatches requests to registered providers.
//
// The provider table is built once at startup via Register; dispatch then
// resolves the identifier through the table rather than branching on the
// name. Each provider carries a health state that gates dispatch.
type Router struct {
	timeout time.Duration

	mu        sync.RWMutex
	providers map[string]Provider
	status    map[string]Status

	log *logrus.Entry
}

// NewRouter creates a router with the given dispatch timeout, clamped into
// [MinTimeout, MaxTimeout]. Pass 0 for DefaultTimeout.
func NewRouter(timeout time.Duration) *Router {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if timeout < MinTimeout {
		timeout = MinTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	return &Router{
		timeout:   timeout,
		providers: make(map[string]Provider),
		status:    make(map[string]Status),
		log:       logrus.WithField("component", "provider-router"),
	}
}

// Register adds a provider to the table in the available state.
// Registering the same name again replaces the previous provider.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	r.status[p.Name()] = StatusAvailable
}

// Dispatch sends the request to the named provider.
//
// The call runs under the router's timeout; deadline expiry cancels the
// in-flight call and returns ErrTimeout. There is no automatic retry.
// Dispatch fails with ErrUnknownProvider for an unregistered name and
// ErrUnavailable when the provider's health state forbids dispatch.
func (r *Router) Dispatch(ctx context.Context, name string, req *Request) (*Response, error) {
	r.mu.RLock()
	p, ok := r.providers[name]
	status := r.status[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("Dispatch: %q: %w", name, ErrUnknownProvider)
	}
	if !status.CanDispatch() {
		return nil, fmt.Errorf("Dispatch: %q is %s: %w", name, status, ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.Dispatch(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
			return nil, fmt.Errorf("Dispatch: %q after %s: %w", name, time.Since(start).Round(time.Millisecond), ErrTimeout)
		}
		return nil, fmt.Errorf("Dispatch: %q: %w", name, err)
	}

	if resp.ResponseTime == 0 {
		resp.ResponseTime = time.Since(start)
	}
	return resp, nil
}

// Status returns the provider's health state.
func (r *Router) Status(name string) Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if status, ok := r.status[name]; ok {
		return status
	}
	return StatusError
}

// SetStatus sets a provider's health state administratively (busy,
// maintenance).
func (r *Router) SetStatus(name string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; ok {
		r.status[name] = status
	}
}

// CheckHealth probes one provider and updates its state: failure moves it
// to error, success back to available. A provider in maintenance is left
// untouched.
func (r *Router) CheckHealth(ctx context.Context, name string) error {
	r.mu.RLock()
	p, ok := r.providers[name]
	current := r.status[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("CheckHealth: %q: %w", name, ErrUnknownProvider)
	}
	if current == StatusMaintenance {
		return nil
	}

	err := p.HealthCheck(ctx)

	r.mu.Lock()
	if err != nil {
		r.status[name] = StatusError
	} else {
		r.status[name] = StatusAvailable
	}
	r.mu.Unlock()

	if err != nil {
		r.log.WithError(err).WithField("provider", name).Warn("health check failed")
		return fmt.Errorf("CheckHealth: %q: %w", name, err)
	}
	return nil
}

// CheckAll probes every registered provider.
func (r *Router) CheckAll(ctx context.Context) {
	r.mu.RLock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		_ = r.CheckHealth(ctx, name)
	}
}

// Close closes every registered provider.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, p := range r.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

package alerts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Fanout is a Notifier that publishes to every registered notifier.
type Fanout struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
	order     []string
}

// NewFanout creates an empty fan-out notifier.
func NewFanout() *Fanout {
	return &Fanout{
		notifiers: make(map[string]Notifier),
	}
}

// Register adds a notifier. Names must be unique.
func (f *Fanout) Register(n Notifier) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := n.Name()
	if _, exists := f.notifiers[name]; exists {
		return fmt.Errorf("notifier %q already registered", name)
	}
	f.notifiers[name] = n
	f.order = append(f.order, name)
	return nil
}

// Get returns a notifier by name.
func (f *Fanout) Get(name string) (Notifier, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n, ok := f.notifiers[name]
	if !ok {
		return nil, fmt.Errorf("notifier %q not found", name)
	}
	return n, nil
}

// List returns registered notifier names in registration order.
func (f *Fanout) List() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.order...)
}

func (f *Fanout) Name() string { return "fanout" }

// Publish sends alert to every notifier. A failing notifier does not stop the rest;
// all failures are joined into the returned error.
func (f *Fanout) Publish(ctx context.Context, alert Alert) error {
	f.mu.RLock()
	targets := make([]Notifier, 0, len(f.order))
	for _, name := range f.order {
		targets = append(targets, f.notifiers[name])
	}
	f.mu.RUnlock()

	var errs []error
	for _, n := range targets {
		if err := n.Publish(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier that holds a connection.
func (f *Fanout) Close() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var errs []error
	for _, name := range f.order {
		if c, ok := f.notifiers[name].(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

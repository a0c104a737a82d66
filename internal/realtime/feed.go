// Package realtime turns "something changed" signals into guest-list reloads
// and pushes the result to connected browsers.
package realtime

import (
	"sync"

	"github.com/AlexTLDR/seatplan/internal/roster"
)

// Feed delivers change signals without payload. Changes is closed when the
// feed stops.
type Feed interface {
	Changes() <-chan struct{}
	Close() error
}

// LocalFeed is an in-process Feed for stores that have no notification
// channel of their own. It also acts as a roster.Notifier that publishes on
// every successful mutation.
type LocalFeed struct {
	mu      sync.Mutex
	changes chan struct{}
	closed  bool
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{changes: make(chan struct{}, 1)}
}

// Publish signals a change. Signals not yet consumed are coalesced.
func (f *LocalFeed) Publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.changes <- struct{}{}:
	default:
	}
}

func (f *LocalFeed) Notify(n roster.Notice) {
	if n.Level == roster.LevelSuccess {
		f.Publish()
	}
}

func (f *LocalFeed) Changes() <-chan struct{} {
	return f.changes
}

func (f *LocalFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.changes)
	}
	return nil
}

// Notifiers fans a notice out to several notifiers.
type Notifiers []roster.Notifier

func (ns Notifiers) Notify(n roster.Notice) {
	for _, x := range ns {
		x.Notify(n)
	}
}

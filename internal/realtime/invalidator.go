package realtime

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/logger"
)

type Reloader interface {
	Reload(ctx context.Context) error
}

type Reconciler interface {
	Reconcile(ctx context.Context) ([]int64, error)
}

type Broadcaster interface {
	Broadcast(stream string, msg Message)
}

// Invalidator reloads the guest list whenever the feed signals a change.
// Signals arriving within the debounce window are folded into one reload.
type Invalidator struct {
	feed     Feed
	roster   Reloader
	seating  Reconciler
	hub      Broadcaster
	debounce time.Duration
	log      *zap.Logger
}

func NewInvalidator(feed Feed, roster Reloader, seating Reconciler, hub Broadcaster, debounce time.Duration) *Invalidator {
	return &Invalidator{
		feed:     feed,
		roster:   roster,
		seating:  seating,
		hub:      hub,
		debounce: debounce,
		log:      logger.WithModule("invalidator"),
	}
}

// Run consumes the feed until ctx is done or the feed is closed.
func (i *Invalidator) Run(ctx context.Context) error {
	changes := i.feed.Changes()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
		}

		if i.debounce > 0 {
			timer := time.NewTimer(i.debounce)
		wait:
			for {
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil
				case _, ok := <-changes:
					if !ok {
						changes = nil
					}
				case <-timer.C:
					break wait
				}
			}
		}

		i.Refresh(ctx)
		if changes == nil {
			return nil
		}
	}
}

// Refresh reloads the guest list, releases seats that no longer apply and
// tells clients to fetch again.
func (i *Invalidator) Refresh(ctx context.Context) {
	if err := i.roster.Reload(ctx); err != nil {
		i.log.Error("reload failed", zap.Error(err))
		return
	}
	if i.hub != nil {
		i.hub.Broadcast(StreamGuests, Message{Event: EventChanged})
	}

	if i.seating == nil {
		return
	}
	released, err := i.seating.Reconcile(ctx)
	if err != nil {
		i.log.Error("seating reconcile failed", zap.Error(err))
	}
	if len(released) > 0 && i.hub != nil {
		i.hub.Broadcast(StreamSeating, Message{Event: EventChanged, Data: map[string]any{"released": released}})
	}
}

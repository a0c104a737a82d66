package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/AlexTLDR/seatplan/internal/logger"
)

// PersonsChannel is the notification channel fed by the persons trigger.
const PersonsChannel = "persons_changed"

// Listener turns Postgres notifications on PersonsChannel into a stream of
// change signals. Payloads are ignored: every signal means "reload".
type Listener struct {
	pl      *pq.Listener
	changes chan struct{}
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	log     *zap.Logger
}

// Listen subscribes to PersonsChannel using a dedicated connection.
func Listen(ctx context.Context, databaseURL string) (*Listener, error) {
	log := logger.WithModule("listener")

	pl := pq.NewListener(databaseURL, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("listener connection event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := pl.Listen(PersonsChannel); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to listen on %s: %w", PersonsChannel, err), pl.Close())
	}

	l := &Listener{
		pl:      pl,
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
		log:     log,
	}

	l.wg.Add(1)
	go l.run(ctx)

	log.Info("listening for person changes", zap.String("channel", PersonsChannel))
	return l, nil
}

func (l *Listener) run(ctx context.Context) {
	defer l.wg.Done()
	defer close(l.changes)

	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case n, ok := <-l.pl.Notify:
			if !ok {
				return
			}
			// A nil notification follows a reconnect; events may have been
			// missed, so it counts as a change too.
			if n == nil {
				l.log.Info("listener reconnected")
			}
			l.signal()
		case <-ping.C:
			if err := l.pl.Ping(); err != nil {
				l.log.Warn("listener ping failed", zap.Error(err))
			}
		}
	}
}

func (l *Listener) signal() {
	select {
	case l.changes <- struct{}{}:
	default:
		// A signal is already pending; coalesce.
	}
}

// Changes yields one value per (coalesced) change. It is closed when the
// listener stops.
func (l *Listener) Changes() <-chan struct{} {
	return l.changes
}

// Close stops the listener and releases its connection.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.done)
		err = multierr.Append(err, l.pl.UnlistenAll())
		err = multierr.Append(err, l.pl.Close())
		l.wg.Wait()
	})
	return err
}

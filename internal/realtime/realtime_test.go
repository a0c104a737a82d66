package realtime

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/AlexTLDR/seatplan/internal/roster"
)

type fakeRoster struct {
	mu      sync.Mutex
	reloads int
	err     error
}

func (f *fakeRoster) Reload(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.err
}

func (f *fakeRoster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reloads
}

type fakeSeating struct {
	released []int64
}

func (f *fakeSeating) Reconcile(context.Context) ([]int64, error) {
	return f.released, nil
}

type fakeHub struct {
	mu   sync.Mutex
	msgs []Message
}

func (f *fakeHub) Broadcast(stream string, msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.Stream = stream
	f.msgs = append(f.msgs, msg)
}

func (f *fakeHub) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.msgs...)
}

func TestLocalFeedCoalesces(t *testing.T) {
	f := NewLocalFeed()
	f.Publish()
	f.Publish()
	f.Notify(roster.Notice{Level: roster.LevelError})

	require.Len(t, f.Changes(), 1)
	<-f.Changes()

	f.Notify(roster.Notice{Level: roster.LevelSuccess})
	require.Len(t, f.Changes(), 1)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	f.Publish()
}

func TestInvalidatorDebounces(t *testing.T) {
	feed := NewLocalFeed()
	r := &fakeRoster{}
	s := &fakeSeating{released: []int64{7}}
	hub := &fakeHub{}
	inv := NewInvalidator(feed, r, s, hub, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- inv.Run(ctx) }()

	for i := 0; i < 5; i++ {
		feed.Publish()
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return r.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, 1, r.count())

	msgs := hub.messages()
	require.Len(t, msgs, 2)
	require.Equal(t, StreamGuests, msgs[0].Stream)
	require.Equal(t, EventChanged, msgs[0].Event)
	require.Equal(t, StreamSeating, msgs[1].Stream)

	require.NoError(t, feed.Close())
	require.NoError(t, <-done)
}

func TestInvalidatorReloadFailureSkipsBroadcast(t *testing.T) {
	r := &fakeRoster{err: errors.New("db down")}
	hub := &fakeHub{}
	inv := NewInvalidator(NewLocalFeed(), r, &fakeSeating{}, hub, 0)

	inv.Refresh(context.Background())
	require.Equal(t, 1, r.count())
	require.Empty(t, hub.messages())
}

func TestInvalidatorStopsOnContext(t *testing.T) {
	inv := NewInvalidator(NewLocalFeed(), &fakeRoster{}, nil, nil, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, inv.Run(ctx))
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?streams=guests"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(StreamSeating, Message{Event: EventChanged})
	hub.Broadcast(StreamGuests, Message{Event: EventChanged})

	var msg Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, StreamGuests, msg.Stream)
	require.Equal(t, EventChanged, msg.Event)

	require.NoError(t, conn.WriteJSON(control{Action: "subscribe", Streams: []string{"notices"}}))
	require.NoError(t, conn.WriteJSON(control{Action: "ping"}))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, EventPong, msg.Event)

	hub.Notify(roster.Notice{ID: "n1", Level: roster.LevelError, Code: roster.CodeSaveFailed})
	var notice struct {
		Stream string        `json:"stream"`
		Event  string        `json:"event"`
		Data   roster.Notice `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&notice))
	require.Equal(t, StreamNotices, notice.Stream)
	require.Equal(t, "n1", notice.Data.ID)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestClosedClientCannotResubscribe(t *testing.T) {
	hub := NewHub(nil)
	c := &client{hub: hub, send: make(chan Message, sendBuffer), subs: make(map[string]struct{})}
	hub.subscribe(c, []string{StreamGuests})
	require.Equal(t, 1, hub.Clients())

	// The write loop failed while the read loop still handles a frame.
	hub.unregister(c)
	close(c.send)
	hub.subscribe(c, []string{StreamGuests, StreamNotices})

	require.Zero(t, hub.Clients())
	require.NotPanics(t, func() {
		hub.Broadcast(StreamGuests, Message{Event: EventChanged})
		hub.Notify(roster.Notice{ID: "n2", Level: roster.LevelSuccess})
	})
}

func TestHostOf(t *testing.T) {
	require.Equal(t, "example.com", hostOf("https://example.com:8443"))
	require.Equal(t, "localhost", hostOf("localhost:8080"))
	require.True(t, isLoopback("127.0.0.1"))
	require.False(t, isLoopback("example.com"))
}

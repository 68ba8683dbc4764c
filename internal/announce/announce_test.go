package announce

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/door-monitor/internal/history"
	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/metrics"
	"github.com/sweeney/door-monitor/internal/persist"
	"github.com/sweeney/door-monitor/internal/receiver"
	"github.com/sweeney/door-monitor/internal/registry"
	"github.com/sweeney/door-monitor/internal/status"
	"github.com/sweeney/door-monitor/internal/surface"
)

type fixture struct {
	a       *Announcer
	data    *status.DataHandler
	hist    *history.Store
	reg     *registry.Registry
	surf    *surface.Fake
	store   *persist.FileStore
	metrics *metrics.Metrics
	now     time.Time
}

func newFixture(t *testing.T, surf *surface.Fake, store *persist.FileStore) *fixture {
	t.Helper()
	f := &fixture{
		hist:    history.New(3, 2),
		reg:     registry.New(),
		surf:    surf,
		store:   store,
		metrics: metrics.New(prometheus.NewRegistry()),
		now:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.data = status.NewDataHandlerWithClock(clock)
	f.a = New(Config{Title: "Lab Door"}, Deps{
		Data:     f.data,
		History:  f.hist,
		Registry: f.reg,
		Surface:  surf,
		Store:    store,
		Metrics:  f.metrics,
		Log:      logger.Nop(),
	}, WithClock(clock))
	return f
}

func (f *fixture) record(t *testing.T, subscriber string) surface.FakeRecord {
	t.Helper()
	tg, ok := f.reg.Get(subscriber)
	require.True(t, ok, "subscriber %s not linked", subscriber)
	rec, ok := f.surf.Record(tg.ChannelID, tg.MessageID)
	require.True(t, ok)
	return rec
}

func TestLinkDefaultsClosed(t *testing.T) {
	f := newFixture(t, surface.NewFake("general"), persist.NewFileStore(t.TempDir()))

	require.NoError(t, f.a.Link(context.Background(), "guild-1", "general"))

	assert.True(t, f.a.IsLinked("guild-1"))
	rec := f.record(t, "guild-1")
	require.Len(t, rec.Displays, 1)
	assert.False(t, rec.Last().Open)
	assert.Equal(t, "Lab Door", rec.Last().Title)
	assert.Equal(t, f.now, rec.Last().At)
}

func TestLinkSeedsFromLatestHistory(t *testing.T) {
	f := newFixture(t, surface.NewFake("general"), persist.NewFileStore(t.TempDir()))
	f.hist.Append(history.Point{Timestamp: 1, IsOpen: false})
	f.hist.Append(history.Point{Timestamp: 2, IsOpen: true})

	require.NoError(t, f.a.Link(context.Background(), "guild-1", "general"))

	assert.True(t, f.record(t, "guild-1").Last().Open)
}

func TestLinkUnknownChannel(t *testing.T) {
	f := newFixture(t, surface.NewFake("general"), persist.NewFileStore(t.TempDir()))

	err := f.a.Link(context.Background(), "guild-1", "nowhere")
	assert.ErrorIs(t, err, ErrChannelNotFound)
	assert.False(t, f.a.IsLinked("guild-1"))
	assert.Equal(t, 0, f.surf.Sent())
}

func TestLinkSendFailure(t *testing.T) {
	surf := surface.NewFake("general")
	surf.SendErr = errors.New("rate limited")
	f := newFixture(t, surf, persist.NewFileStore(t.TempDir()))

	err := f.a.Link(context.Background(), "guild-1", "general")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrChannelNotFound)
	assert.False(t, f.a.IsLinked("guild-1"))
}

func TestLinkPersists(t *testing.T) {
	store := persist.NewFileStore(t.TempDir())
	f := newFixture(t, surface.NewFake("general"), store)

	require.NoError(t, f.a.Link(context.Background(), "guild-1", "general"))

	st, err := store.Load(context.Background(), Component)
	require.NoError(t, err)
	tg, _ := f.reg.Get("guild-1")
	assert.Equal(t, map[string]persist.TrackedMessage{
		"guild-1": {Channel: "general", Message: tg.MessageID},
	}, st.TrackedMessages)
}

func TestRelinkReplacesTarget(t *testing.T) {
	f := newFixture(t, surface.NewFake("a", "b"), persist.NewFileStore(t.TempDir()))
	ctx := context.Background()

	require.NoError(t, f.a.Link(ctx, "guild-1", "a"))
	require.NoError(t, f.a.Link(ctx, "guild-1", "b"))

	tg, _ := f.reg.Get("guild-1")
	assert.Equal(t, "b", tg.ChannelID)
	assert.Equal(t, 1, f.reg.Len())
}

func TestTickEditsEveryTargetEveryTick(t *testing.T) {
	f := newFixture(t, surface.NewFake("a", "b"), persist.NewFileStore(t.TempDir()))
	ctx := context.Background()
	require.NoError(t, f.a.Link(ctx, "guild-1", "a"))
	require.NoError(t, f.a.Link(ctx, "guild-2", "b"))

	require.NoError(t, f.a.Tick(ctx))
	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.a.Tick(ctx))

	for _, sub := range []string{"guild-1", "guild-2"} {
		rec := f.record(t, sub)
		assert.Len(t, rec.Displays, 3, sub)
		assert.Equal(t, f.now, rec.Last().At, sub)
	}
	assert.Equal(t, 0, f.hist.Len(), "no change, no history")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.FanoutTicks))
}

func TestTickRecordsHistoryOnlyOnChange(t *testing.T) {
	store := persist.NewFileStore(t.TempDir())
	f := newFixture(t, surface.NewFake("a"), store)
	ctx := context.Background()

	f.data.Set(true)
	require.NoError(t, f.a.Tick(ctx))
	require.Equal(t, 1, f.hist.Len())

	require.NoError(t, f.a.Tick(ctx))
	assert.Equal(t, 1, f.hist.Len())

	f.data.Set(true)
	require.NoError(t, f.a.Tick(ctx))
	assert.Equal(t, 1, f.hist.Len(), "repeated value is not a change")

	f.now = f.now.Add(time.Second)
	f.data.Set(false)
	require.NoError(t, f.a.Tick(ctx))

	assert.Equal(t, []history.Point{
		{Timestamp: f.now.Add(-time.Second).Unix(), IsOpen: true},
		{Timestamp: f.now.Unix(), IsOpen: false},
	}, f.hist.Points())

	st, err := store.Load(ctx, Component)
	require.NoError(t, err)
	assert.Equal(t, f.hist.Points(), st.History)
}

// pushingMessage delivers a push while its edit is in flight.
type pushingMessage struct {
	data  *status.DataHandler
	open  bool
	shown []bool
}

func (m *pushingMessage) ID() string        { return "m-push" }
func (m *pushingMessage) ChannelID() string { return "a" }

func (m *pushingMessage) Edit(_ context.Context, d surface.Display) (surface.Message, error) {
	m.shown = append(m.shown, d.Open)
	if m.data != nil {
		m.data.Set(m.open)
		m.data = nil
	}
	return m, nil
}

func TestTickPushDuringEditsIsRecordedNextTick(t *testing.T) {
	f := newFixture(t, surface.NewFake("a"), persist.NewFileStore(t.TempDir()))
	ctx := context.Background()

	f.data.Set(true)
	msg := &pushingMessage{data: f.data, open: false}
	f.reg.Link("guild-1", msg)

	require.NoError(t, f.a.Tick(ctx))
	require.Equal(t, []history.Point{{Timestamp: f.now.Unix(), IsOpen: true}}, f.hist.Points())

	f.now = f.now.Add(time.Minute)
	require.NoError(t, f.a.Tick(ctx))

	assert.Equal(t, []history.Point{
		{Timestamp: f.now.Add(-time.Minute).Unix(), IsOpen: true},
		{Timestamp: f.now.Unix(), IsOpen: false},
	}, f.hist.Points())
	assert.Equal(t, []bool{true, false}, msg.shown)
}

func TestTickShowsCurrentValue(t *testing.T) {
	f := newFixture(t, surface.NewFake("a"), persist.NewFileStore(t.TempDir()))
	ctx := context.Background()
	require.NoError(t, f.a.Link(ctx, "guild-1", "a"))

	f.data.Set(true)
	require.NoError(t, f.a.Tick(ctx))

	assert.True(t, f.record(t, "guild-1").Last().Open)
}

func TestTickEditFailureContinues(t *testing.T) {
	surf := surface.NewFake("a", "b")
	f := newFixture(t, surf, persist.NewFileStore(t.TempDir()))
	ctx := context.Background()
	require.NoError(t, f.a.Link(ctx, "guild-1", "a"))
	require.NoError(t, f.a.Link(ctx, "guild-2", "b"))

	surf.EditErr = errors.New("gone")
	f.data.Set(true)
	require.NoError(t, f.a.Tick(ctx))

	assert.Equal(t, 1, f.hist.Len(), "history still recorded")
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.EditFailures))
	assert.True(t, f.a.IsLinked("guild-1"), "targets are kept on edit failure")
}

type failingStore struct{ persist.Store }

func (failingStore) Save(context.Context, string, persist.State) error {
	return errors.New("disk full")
}

func TestTickPersistFailure(t *testing.T) {
	f := newFixture(t, surface.NewFake("a"), nil)
	f.a.Store = failingStore{}

	f.data.Set(true)
	err := f.a.Tick(context.Background())
	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, f.hist.Len())
}

func TestPersistReloadRoundTrip(t *testing.T) {
	store := persist.NewFileStore(t.TempDir())
	surf := surface.NewFake("a", "b")
	f := newFixture(t, surf, store)
	ctx := context.Background()

	require.NoError(t, f.a.Link(ctx, "guild-1", "a"))
	require.NoError(t, f.a.Link(ctx, "guild-2", "b"))
	for _, v := range []bool{true, false, true, false} {
		f.data.Set(v)
		f.now = f.now.Add(time.Second)
		require.NoError(t, f.a.Tick(ctx))
	}

	g := newFixture(t, surf, store)
	require.NoError(t, g.a.Load(ctx))

	assert.Equal(t, f.hist.Points(), g.hist.Points())
	assert.Len(t, g.hist.Points(), 3)
	assert.Equal(t, f.reg.Records(), g.reg.Records())
	assert.Equal(t, 3.0, testutil.ToFloat64(g.metrics.HistoryLength))
	assert.Equal(t, 2.0, testutil.ToFloat64(g.metrics.LinkedTargets))
}

func TestLoadDropsUnresolvableTargets(t *testing.T) {
	store := persist.NewFileStore(t.TempDir())
	surf := surface.NewFake("a", "b")
	f := newFixture(t, surf, store)
	ctx := context.Background()
	require.NoError(t, f.a.Link(ctx, "guild-1", "a"))
	require.NoError(t, f.a.Link(ctx, "guild-2", "b"))

	tg, _ := f.reg.Get("guild-2")
	surf.DeleteMessage(tg.ChannelID, tg.MessageID)

	g := newFixture(t, surf, store)
	require.NoError(t, g.a.Load(ctx))

	assert.True(t, g.a.IsLinked("guild-1"))
	assert.False(t, g.a.IsLinked("guild-2"))
}

func TestLoadMalformedState(t *testing.T) {
	store := persist.NewFileStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.Path(Component), []byte("{not json"), 0o644))

	f := newFixture(t, surface.NewFake(), store)
	assert.Error(t, f.a.Load(context.Background()))
}

func TestLoadEmpty(t *testing.T) {
	f := newFixture(t, surface.NewFake(), persist.NewFileStore(t.TempDir()))
	require.NoError(t, f.a.Load(context.Background()))
	assert.Equal(t, 0, f.hist.Len())
	assert.Equal(t, 0, f.reg.Len())
}

func TestHistoryPage(t *testing.T) {
	f := newFixture(t, surface.NewFake(), persist.NewFileStore(t.TempDir()))
	for i := int64(1); i <= 3; i++ {
		f.hist.Append(history.Point{Timestamp: i})
	}

	page, total := f.a.HistoryPage(0)
	assert.Equal(t, 2, total)
	assert.Equal(t, []history.Point{{Timestamp: 3}, {Timestamp: 2}}, page)

	page, _ = f.a.HistoryPage(5)
	assert.Empty(t, page)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, surface.NewFake("a"), persist.NewFileStore(t.TempDir()))
	ctx := context.Background()

	h := f.a.Health("guild-1", f.now)
	assert.Equal(t, status.Health{}, h)

	require.NoError(t, f.a.Link(ctx, "guild-1", "a"))
	f.data.Set(true)

	h = f.a.Health("guild-1", f.now.Add(5*time.Second))
	assert.True(t, h.Linked)
	assert.True(t, h.Receiving)
	assert.False(t, h.Started, "no receiver bound")
	assert.False(t, h.Healthy())

	h = f.a.Health("guild-1", f.now.Add(status.DefaultHealthThreshold))
	assert.False(t, h.Receiving, "threshold is exclusive")
}

func push(t *testing.T, addr string, payload string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestStartStopLifecycle(t *testing.T) {
	f := newFixture(t, surface.NewFake("a"), persist.NewFileStore(t.TempDir()))
	recv := receiver.New(f.data, logger.Nop())
	f.a.Receiver = recv
	f.a.cfg.ListenAddr = "127.0.0.1:0"
	f.a.cfg.Interval = time.Hour
	ctx := context.Background()

	require.NoError(t, f.a.Link(ctx, "guild-1", "a"))
	assert.False(t, f.a.Running())

	require.NoError(t, f.a.Start(ctx))
	require.NoError(t, f.a.Start(ctx), "second start is a no-op")
	assert.True(t, f.a.Running())
	assert.True(t, recv.Bound())

	// the first tick runs immediately
	assert.Eventually(t, func() bool {
		rec, _ := f.surf.Record("a", "m1")
		return len(rec.Displays) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	push(t, recv.Addr().String(), "True")
	assert.Eventually(t, func() bool { return f.data.Snapshot().Open }, 2*time.Second, 10*time.Millisecond)

	assert.True(t, f.a.Health("guild-1", f.now).Healthy())
	assert.True(t, f.a.View(f.now).Listening)

	require.NoError(t, f.a.Stop())
	assert.False(t, f.a.Running())
	assert.False(t, recv.Bound())
	require.NoError(t, f.a.Stop(), "second stop is a no-op")

	require.NoError(t, f.a.Start(ctx), "restart after stop")
	assert.True(t, recv.Bound())
	require.NoError(t, f.a.Stop())
}

func TestStartCallerContextDoesNotStopLoop(t *testing.T) {
	f := newFixture(t, surface.NewFake(), persist.NewFileStore(t.TempDir()))
	f.a.cfg.Interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, f.a.Start(ctx))
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, f.a.Running())
	require.NoError(t, f.a.Stop())
}

func TestStartListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	f := newFixture(t, surface.NewFake(), persist.NewFileStore(t.TempDir()))
	f.a.Receiver = receiver.New(f.data, logger.Nop())
	f.a.cfg.ListenAddr = ln.Addr().String()

	assert.Error(t, f.a.Start(context.Background()))
	assert.False(t, f.a.Running())
}

// Package announce runs the periodic fanout that keeps every subscriber's
// status message current and records state changes into the history.
package announce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sweeney/door-monitor/internal/history"
	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/metrics"
	"github.com/sweeney/door-monitor/internal/persist"
	"github.com/sweeney/door-monitor/internal/receiver"
	"github.com/sweeney/door-monitor/internal/registry"
	"github.com/sweeney/door-monitor/internal/status"
	"github.com/sweeney/door-monitor/internal/surface"
)

// Component is the name state is persisted under.
const Component = "monitor"

// Defaults for Config.
const (
	DefaultInterval = 60 * time.Second
	DefaultTitle    = "Door Status"
)

// ErrChannelNotFound is returned by Link when the channel cannot be resolved.
var ErrChannelNotFound = errors.New("channel not found")

// Config holds announcer settings.
type Config struct {
	ListenAddr      string
	Interval        time.Duration
	HealthThreshold time.Duration
	Title           string
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.HealthThreshold <= 0 {
		c.HealthThreshold = status.DefaultHealthThreshold
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	return c
}

// Deps are the collaborators an Announcer drives. Receiver and Metrics may
// be nil.
type Deps struct {
	Data     *status.DataHandler
	History  *history.Store
	Registry *registry.Registry
	Surface  surface.Surface
	Store    persist.Store
	Receiver *receiver.Server
	Metrics  *metrics.Metrics
	Log      *logger.Logger
}

// Announcer is Idle until Start and returns to Idle on Stop.
type Announcer struct {
	cfg Config
	Deps
	now func() time.Time

	// lifecycle
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// serializes ticks, links and persistence
	work sync.Mutex
}

// Option configures an Announcer.
type Option func(*Announcer)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Announcer) { a.now = now }
}

// New creates an idle Announcer.
func New(cfg Config, deps Deps, opts ...Option) *Announcer {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	a := &Announcer{
		cfg:  cfg.withDefaults(),
		Deps: deps,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load restores history and rehydrates tracked targets from the store.
// A corrupt document is returned as an error.
func (a *Announcer) Load(ctx context.Context) error {
	st, err := a.Store.Load(ctx, Component)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	a.History.Restore(st.History)
	restored := a.Registry.Rehydrate(ctx, a.Surface, st.TrackedMessages, a.Log)
	a.Metrics.SetSizes(a.History.Len(), a.Registry.Len())

	a.Log.Infow("state loaded",
		"history", a.History.Len(),
		"targets", restored,
		"dropped", len(st.TrackedMessages)-restored,
	)
	return nil
}

// Start binds the receiver and schedules the fanout. The first tick runs
// immediately. It is a no-op if already running.
func (a *Announcer) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}
	if a.Receiver != nil {
		if err := a.Receiver.Listen(a.cfg.ListenAddr); err != nil {
			return fmt.Errorf("start receiver: %w", err)
		}
	}

	// The loop outlives the caller's request.
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	a.cancel = cancel
	a.done = done

	go a.run(ctx, done)

	a.Log.Infow("announcer started", "interval", a.cfg.Interval)
	return nil
}

// Stop cancels the fanout, waits for an in-flight tick, then closes the
// receiver. It is a no-op if not running.
func (a *Announcer) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return nil
	}
	a.cancel()
	<-a.done
	a.cancel = nil
	a.done = nil

	var err error
	if a.Receiver != nil {
		err = a.Receiver.Close()
	}
	a.Log.Infow("announcer stopped")
	return err
}

// Running reports whether the fanout is scheduled.
func (a *Announcer) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

func (a *Announcer) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	// Ticks are not interrupted by Stop.
	tickCtx := context.WithoutCancel(ctx)

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := a.Tick(tickCtx); err != nil {
			a.Log.Errorw("persist state", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick edits every tracked message with the current state, then, if the
// state changed since the last tick, appends a history point and persists.
// Edit failures are logged and do not stop the tick.
func (a *Announcer) Tick(ctx context.Context) error {
	a.work.Lock()
	defer a.work.Unlock()

	now := a.now()
	// Value and flag are taken together; a push during the edits is
	// recorded by the next tick.
	snap, changed := a.Data.Consume()
	d := a.display(snap.Open, now)

	failures := 0
	for _, t := range a.Registry.Targets() {
		msg, err := t.Message().Edit(ctx, d)
		if err != nil {
			failures++
			a.Log.Warnw("status edit failed",
				"subscriber", t.SubscriberID,
				"channel", t.ChannelID,
				"err", err,
			)
			continue
		}
		a.Registry.Refresh(t.SubscriberID, t.Message(), msg)
	}
	a.Metrics.ObserveTick(failures)

	if !changed {
		return nil
	}

	a.History.Append(history.Point{Timestamp: now.Unix(), IsOpen: snap.Open})
	a.Log.Infow("door state recorded", "state", snap.State(), "history", a.History.Len())
	return a.persist(ctx)
}

// Link sends a fresh status message to channelID and tracks it for
// subscriberID, replacing any previous target. The initial display shows
// the latest recorded state, or closed if there is none.
func (a *Announcer) Link(ctx context.Context, subscriberID, channelID string) error {
	a.work.Lock()
	defer a.work.Unlock()

	ch, err := a.Surface.Channel(ctx, channelID)
	if err != nil {
		a.Log.Debugw("link: channel lookup failed", "channel", channelID, "err", err)
		return fmt.Errorf("%w: %s", ErrChannelNotFound, channelID)
	}

	open := false
	if p, ok := a.History.Latest(); ok {
		open = p.IsOpen
	}

	msg, err := ch.Send(ctx, a.display(open, a.now()))
	if err != nil {
		return fmt.Errorf("send status message: %w", err)
	}
	a.Registry.Link(subscriberID, msg)
	a.Log.Infow("subscriber linked", "subscriber", subscriberID, "channel", channelID, "message", msg.ID())

	return a.persist(ctx)
}

// IsLinked reports whether subscriberID has a tracked target.
func (a *Announcer) IsLinked(subscriberID string) bool {
	return a.Registry.IsLinked(subscriberID)
}

// Health answers a status query for subscriberID.
func (a *Announcer) Health(subscriberID string, now time.Time) status.Health {
	return status.Health{
		Started:   a.Receiver != nil && a.Receiver.Bound(),
		Linked:    a.Registry.IsLinked(subscriberID),
		Receiving: status.Receiving(a.Data.Snapshot(), now, a.cfg.HealthThreshold),
	}
}

// HistoryPage returns the index'th page newest first and the page count.
func (a *Announcer) HistoryPage(index int) ([]history.Point, int) {
	return a.History.Page(index)
}

// View returns the current state for display.
func (a *Announcer) View(now time.Time) status.View {
	return status.View{
		Snapshot:      a.Data.Snapshot(),
		Now:           now,
		Running:       a.Running(),
		Listening:     a.Receiver != nil && a.Receiver.Bound(),
		HistoryLen:    a.History.Len(),
		LinkedTargets: a.Registry.Len(),
	}
}

// Title is the configured display title.
func (a *Announcer) Title() string {
	return a.cfg.Title
}

func (a *Announcer) display(open bool, at time.Time) surface.Display {
	return surface.Display{Title: a.cfg.Title, Open: open, At: at}
}

// persist must be called with work held.
func (a *Announcer) persist(ctx context.Context) error {
	st := persist.State{
		History:         a.History.Points(),
		TrackedMessages: a.Registry.Records(),
	}
	a.Metrics.SetSizes(len(st.History), len(st.TrackedMessages))

	if err := a.Store.Save(ctx, Component, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

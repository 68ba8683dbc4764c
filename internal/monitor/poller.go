// Package monitor runs the sensor polling loop.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/door-monitor/internal/gpio"
	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/logic"
)

// Callback receives each detected transition. Errors are logged and the
// loop carries on.
type Callback func(ctx context.Context, event logic.Event) error

// Poller samples a Reader at a fixed interval and invokes a Callback on change.
type Poller struct {
	reader    gpio.Reader
	interval  time.Duration
	heartbeat time.Duration
	callback  Callback
	log       *logger.Logger
	now       func() time.Time
	detector  *logic.Detector

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Poller.
type Option func(*Poller)

// WithHeartbeat logs a heartbeat line every interval (0 disables).
func WithHeartbeat(interval time.Duration) Option {
	return func(p *Poller) { p.heartbeat = interval }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Poller) { p.now = now }
}

// New creates a stopped Poller.
func New(reader gpio.Reader, interval time.Duration, callback Callback, log *logger.Logger, opts ...Option) *Poller {
	p := &Poller{
		reader:   reader,
		interval: interval,
		callback: callback,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.detector = logic.NewDetector(p.now())
	return p
}

// Start begins polling in a new goroutine. It is a no-op if already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		p.loop(ctx)
	}()
}

// Stop cancels the loop and waits for it to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Done returns a channel closed when the current loop exits, or nil if stopped.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *Poller) loop(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Stop waits for an in-flight push instead of cancelling it.
		p.sample(context.WithoutCancel(ctx))
		timer.Reset(p.interval)
	}
}

func (p *Poller) sample(ctx context.Context) {
	open, err := p.reader.Read()
	if err != nil {
		p.log.Warnw("sensor read error", "err", err)
		return
	}

	t := p.now()
	if event, ok := p.detector.Process(open, t); ok {
		p.log.Infow("door state changed", "state", event.State())
		if err := p.callback(ctx, event); err != nil {
			p.log.Warnw("change callback failed", "state", event.State(), "err", err)
		}
	}

	if hb := p.detector.CheckHeartbeat(t, p.heartbeat); hb != nil {
		p.log.Infow("heartbeat",
			"uptime", hb.Uptime.Truncate(time.Second),
			"state", hb.Current,
			"opened", hb.Counts.Opened,
			"closed", hb.Counts.Closed)
	}
}

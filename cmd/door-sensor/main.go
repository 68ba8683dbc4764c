// Command door-sensor polls the door switch and pushes state changes to the monitor.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sweeney/door-monitor/internal/config"
	"github.com/sweeney/door-monitor/internal/gpio"
	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/logic"
	"github.com/sweeney/door-monitor/internal/monitor"
	"github.com/sweeney/door-monitor/internal/transport"
)

func main() {
	cfg, err := config.LoadSensor(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(cfg.LogLevel).Named("sensor")
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		os.Exit(exitCode(log, err))
	}
}

// exitCode logs err and flushes the logger, since deferred calls do not run
// past os.Exit.
func exitCode(log *logger.Logger, err error) int {
	log.Errorw("fatal", "err", err)
	_ = log.Sync()
	return 1
}

func run(cfg config.Sensor, log *logger.Logger) error {
	reader, kind, err := gpio.Probe(cfg.Pin, cfg.Simulate)
	if err != nil {
		log.Warnw("gpio unavailable, using simulated sensor", "pin", cfg.Pin, "err", err)
	}
	defer reader.Close()

	if cfg.PrintState {
		return printState(os.Stdout, reader, kind)
	}

	poller := monitor.New(reader, cfg.Poll, pushCallback(newPusher(cfg, log), log), log,
		monitor.WithHeartbeat(cfg.Heartbeat))

	log.Infow("started",
		"sensor", kind,
		"pin", cfg.Pin,
		"poll", cfg.Poll,
		"receiver", cfg.Receiver,
		"secondary", cfg.SecondaryURL,
		"heartbeat", cfg.Heartbeat,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runUntil(ctx, poller, log)
	return nil
}

// runUntil polls until ctx is cancelled, then waits for the loop to exit.
func runUntil(ctx context.Context, poller *monitor.Poller, log *logger.Logger) {
	poller.Start(ctx)
	<-ctx.Done()
	log.Infow("shutting down", "cause", context.Cause(ctx))
	poller.Stop()
}

func newPusher(cfg config.Sensor, log *logger.Logger) transport.Pusher {
	primary := transport.NewTCPPusher(cfg.Receiver, cfg.DialTimeout, log)
	if cfg.SecondaryURL == "" {
		return primary
	}
	return &transport.Dual{
		Primary:   primary,
		Secondary: transport.NewHTTPPusher(cfg.SecondaryURL, cfg.DialTimeout),
		Log:       log,
	}
}

// pushCallback forwards each change. The TCP pusher logs failure transitions
// itself, so a failed push is only noted at debug and never retried.
func pushCallback(p transport.Pusher, log *logger.Logger) monitor.Callback {
	return func(ctx context.Context, ev logic.Event) error {
		if err := p.Push(ctx, ev.Open); err != nil {
			log.Debugw("push failed", "state", ev.State(), "err", err)
		}
		return nil
	}
}

func printState(w io.Writer, r gpio.Reader, kind gpio.Kind) error {
	open, err := r.Read()
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	_, err = fmt.Fprintf(w, "Door: %s (%s)\n", logic.StateOf(open), kind)
	return err
}

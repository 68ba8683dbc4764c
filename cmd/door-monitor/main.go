// Command door-monitor receives door state pushes, keeps the state history and
// keeps every linked subscriber's status message up to date.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/door-monitor/internal/announce"
	"github.com/sweeney/door-monitor/internal/config"
	"github.com/sweeney/door-monitor/internal/history"
	"github.com/sweeney/door-monitor/internal/logger"
	"github.com/sweeney/door-monitor/internal/logic"
	"github.com/sweeney/door-monitor/internal/metrics"
	"github.com/sweeney/door-monitor/internal/mqtt"
	"github.com/sweeney/door-monitor/internal/persist"
	"github.com/sweeney/door-monitor/internal/receiver"
	"github.com/sweeney/door-monitor/internal/registry"
	"github.com/sweeney/door-monitor/internal/status"
	"github.com/sweeney/door-monitor/internal/surface"
	"github.com/sweeney/door-monitor/internal/web"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadMonitor(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	log := logger.New(cfg.LogLevel).Named("monitor")
	defer log.Sync()

	gin.SetMode(gin.ReleaseMode)

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

func run(cfg config.Monitor, log *logger.Logger) error {
	store, err := persist.Open(cfg.Storage, cfg.StateDir)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	surf, err := mqtt.NewSurface(cfg.Broker, cfg.TopicPrefix, cfg.ClientID, log.Named("mqtt"))
	if err != nil {
		return err
	}
	defer surf.Close()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ann := newAnnouncer(cfg, surf, store, metrics.New(promReg), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ann.Load(ctx); err != nil {
		return err
	}

	var httpLn net.Listener
	if cfg.HTTP != "" {
		httpLn, err = net.Listen("tcp", cfg.HTTP)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", cfg.HTTP, err)
		}
	}

	log.Infow("started",
		"listen", cfg.Listen,
		"http", cfg.HTTP,
		"broker", cfg.Broker,
		"storage", cfg.Storage,
		"state_dir", cfg.StateDir,
		"interval", cfg.TrackingInterval,
	)
	return serve(ctx, cfg, ann, httpLn, promReg, log)
}

func newAnnouncer(cfg config.Monitor, surf surface.Surface, store persist.Store, m *metrics.Metrics, log *logger.Logger) *announce.Announcer {
	data := status.NewDataHandler()
	recv := receiver.New(data, log.Named("receiver"), receiver.WithUpdateHook(func(open bool) {
		m.ObservePush(string(logic.StateOf(open)))
	}))

	return announce.New(announce.Config{
		ListenAddr:      cfg.Listen,
		Interval:        cfg.TrackingInterval,
		HealthThreshold: cfg.HealthThreshold,
		Title:           cfg.Title,
	}, announce.Deps{
		Data:     data,
		History:  history.New(cfg.MaxHistory, cfg.PageSize),
		Registry: registry.New(),
		Surface:  surf,
		Store:    store,
		Receiver: recv,
		Metrics:  m,
		Log:      log.Named("announce"),
	})
}

// serve runs the announcer and, if httpLn is set, the HTTP server until ctx
// is cancelled or the server fails.
func serve(ctx context.Context, cfg config.Monitor, ann *announce.Announcer, httpLn net.Listener, gatherer prometheus.Gatherer, log *logger.Logger) error {
	if cfg.Autostart {
		if err := ann.Start(ctx); err != nil {
			if httpLn != nil {
				httpLn.Close()
			}
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var srv *web.Server
	if httpLn != nil {
		srv = web.New(httpLn.Addr().String(), ann, log.Named("http"),
			web.WithGatherer(gatherer),
			web.WithLogFile(cfg.LogFile),
		)
		g.Go(func() error {
			log.Infow("http server listening", "addr", httpLn.Addr().String())
			if err := srv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if srv != nil {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		errs = append(errs, ann.Stop())
		return errors.Join(errs...)
	})

	return g.Wait()
}

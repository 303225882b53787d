package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/dockyard/api/server"
	"github.com/kilianp07/dockyard/auth"
	"github.com/kilianp07/dockyard/config"
	"github.com/kilianp07/dockyard/core/allocator"
	"github.com/kilianp07/dockyard/core/dispatch"
	"github.com/kilianp07/dockyard/core/events"
	"github.com/kilianp07/dockyard/core/lifecycle"
	coremetrics "github.com/kilianp07/dockyard/core/metrics"
	coremon "github.com/kilianp07/dockyard/core/monitoring"
	coremqtt "github.com/kilianp07/dockyard/core/mqtt"
	"github.com/kilianp07/dockyard/core/queue"
	corestore "github.com/kilianp07/dockyard/core/store"
	"github.com/kilianp07/dockyard/infra/logger"
	"github.com/kilianp07/dockyard/infra/metrics"
	"github.com/kilianp07/dockyard/infra/monitoring"
	"github.com/kilianp07/dockyard/infra/mqtt"
	"github.com/kilianp07/dockyard/infra/notify"
	"github.com/kilianp07/dockyard/infra/store"
	"github.com/kilianp07/dockyard/internal/eventbus"
)

const shutdownTimeout = 5 * time.Second

// Service wires the scheduler, its store and every outer surface.
type Service struct {
	Scheduler *dispatch.Scheduler
	API       *server.Server

	cfg       *config.Config
	store     corestore.Store
	bus       *eventbus.TypedBus[events.Event]
	sink      coremetrics.MetricsSink
	hub       *server.Hub
	forwarder *notify.Forwarder
	mqtt      *mqtt.PahoClient
	redis     *notify.RedisNotifier
	log       logger.Logger
}

// New creates a Service from the configuration. The dock pool is topped up
// to the configured counts before the scheduler starts.
func New(ctx context.Context, cfg *config.Config) (svc *Service, err error) {
	logger.Configure(cfg.Logging.Options())
	s := &Service{cfg: cfg, log: logger.New("service")}
	defer func() {
		if err != nil {
			s.release()
		}
	}()

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	s.store, err = store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	alloc := allocator.New(s.store, allocator.WithLogger(logger.New("allocator")))
	if _, err := alloc.Provision(ctx, cfg.Docks.Counts()); err != nil {
		return nil, fmt.Errorf("provision docks: %w", err)
	}

	s.bus = eventbus.NewTyped[events.Event]()
	life := lifecycle.New(s.store, lifecycle.WithPublisher(s.bus), lifecycle.WithLogger(logger.New("lifecycle")))
	q := queue.New(s.store, queue.WithPublisher(s.bus), queue.WithLogger(logger.New("queue")))

	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	s.Scheduler, err = dispatch.New(cfg.Scheduler, alloc, life, q, s.store,
		dispatch.WithPublisher(s.bus),
		dispatch.WithMetricsSink(s.sink),
		dispatch.WithLogger(logger.New("dispatch")),
	)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	var notifiers []notify.Notifier
	if cfg.MQTT.Enabled {
		s.mqtt, err = mqtt.NewPahoClient(cfg.MQTT, s.checkIn)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		notifiers = append(notifiers, notify.NewMQTTNotifier(s.mqtt, cfg.MQTT.TopicPrefix))
	}
	if cfg.Redis.Enabled {
		s.redis, err = notify.NewRedisNotifier(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		notifiers = append(notifiers, s.redis)
	}
	s.forwarder = notify.NewForwarder(s.bus, notifiers...)

	s.hub = server.NewHub()
	opts := []server.Option{
		server.WithHub(s.hub),
		server.WithGatherer(prometheus.DefaultGatherer),
		server.WithHealthCheck(s.health),
	}
	if cfg.Auth.Enabled {
		opts = append(opts, server.WithAuth(auth.NewIssuer(cfg.Auth)))
	}
	s.API = server.New(cfg.Server, s.Scheduler, opts...)
	return s, nil
}

// checkIn turns an MQTT gate check-in into an arrival.
func (s *Service) checkIn(ci coremqtt.CheckIn) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Scheduler.OpTimeout)
	defer cancel()
	if _, err := s.Scheduler.Arrive(ctx, ci.TruckID, ci.AppointmentID); err != nil {
		s.log.Warnf("check-in %s/%s: %v", ci.TruckID, ci.AppointmentID, err)
	}
}

func (s *Service) health(ctx context.Context) error {
	_, err := s.store.ListDocks(ctx, corestore.DockFilter{})
	return err
}

// Run recovers open assignments, starts the background workers and serves
// HTTP until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	n, err := s.Scheduler.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	if n > 0 {
		s.log.Infof("re-armed %d release timers", n)
	}

	s.forwarder.Start(ctx)
	s.hub.Start(ctx, s.bus)
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	sweeping := make(chan struct{})
	go func() {
		defer close(sweeping)
		if err := s.Scheduler.Run(ctx); err != nil {
			s.log.Errorf("scheduler: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() { errCh <- s.API.Listen() }()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}
	stop()
	<-sweeping
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(serveErr, s.API.Shutdown(sctx))
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.Scheduler != nil {
		errs = append(errs, s.Scheduler.Close())
	}
	if s.forwarder != nil {
		s.forwarder.Wait()
	}
	if s.hub != nil {
		s.hub.Wait()
	}
	errs = append(errs, s.release())
	coremon.Flush(time.Duration(s.cfg.Sentry.FlushSeconds) * time.Second)
	return errors.Join(errs...)
}

func (s *Service) release() error {
	var errs []error
	if s.bus != nil {
		s.bus.Close()
	}
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

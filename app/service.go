package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/darkstore/app/plugins"
	"github.com/kilianp07/darkstore/config"
	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/batch"
	"github.com/kilianp07/darkstore/core/control"
	"github.com/kilianp07/darkstore/core/events"
	"github.com/kilianp07/darkstore/core/fleet"
	coremetrics "github.com/kilianp07/darkstore/core/metrics"
	coremon "github.com/kilianp07/darkstore/core/monitoring"
	"github.com/kilianp07/darkstore/core/pool"
	"github.com/kilianp07/darkstore/core/reconcile"
	"github.com/kilianp07/darkstore/core/route"
	"github.com/kilianp07/darkstore/core/store"
	"github.com/kilianp07/darkstore/infra/logger"
	"github.com/kilianp07/darkstore/infra/metrics"
	"github.com/kilianp07/darkstore/infra/monitoring"
	"github.com/kilianp07/darkstore/infra/mqtt"
	"github.com/kilianp07/darkstore/internal/eventbus"
)

// Service wires the store, the assignment queues, the simulator and the
// reconciliation loop behind one control surface.
type Service struct {
	Controller *control.Controller
	Loop       *reconcile.Loop
	Repo       *pool.Repository
	Sim        *fleet.Simulator

	cfg     *config.Config
	store   store.Store
	bus     *eventbus.TypedBus[events.Event]
	sink    coremetrics.Sink
	monitor coremon.Monitor
	tracker *mqtt.TrackingPublisher
	log     logger.Logger
}

// New creates a Service from the configuration. The MQTT feed is connected
// here so that a bad broker fails at startup.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	st, err := plugins.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	provider, err := plugins.NewProvider(cfg.Routing)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("routing: %w", err)
	}
	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}

	bus := eventbus.NewTyped[events.Event]()
	depot := cfg.Dispatch.DepotPoint()
	repo := pool.NewRepository(st, cfg.Store.Timeout(), logger.New("pool"))
	picking := assign.NewQueue(assign.Picking, pool.NewPickerRoster(repo), repo, logger.New("picking"), assign.WithPublisher(bus))
	delivery := assign.NewQueue(assign.Delivery, pool.NewAgentRoster(repo, depot), repo, logger.New("delivery"), assign.WithPublisher(bus))
	batcher := batch.NewBatcher(repo, delivery, logger.New("batcher"))
	planner := route.NewPlanner(provider, cfg.Routing.Timeout(), logger.New("routing"))
	sim := fleet.New(cfg.Simulation.Fleet(), repo, delivery, bus, logger.New("simulator"))

	loop := reconcile.New(cfg.Dispatch.Loop(cfg.Routing.ThresholdMinutes), reconcile.Deps{
		Pool:    pool.New(repo),
		Picking: picking,
		Batcher: batcher,
		Router:  planner,
		Sim:     sim,
		Depot:   depot,
		Monitor: mon,
		Sink:    sink,
		Bus:     bus,
		Log:     logger.New("reconcile"),
	})

	svc := &Service{
		Controller: control.New(repo, picking, delivery, batcher, sim, loop, logger.New("control")),
		Loop:       loop,
		Repo:       repo,
		Sim:        sim,
		cfg:        cfg,
		store:      st,
		bus:        bus,
		sink:       sink,
		monitor:    mon,
		log:        logg,
	}
	if cfg.MQTT.Enabled {
		tracker, err := mqtt.NewTrackingPublisher(cfg.MQTT, logger.New("mqtt"), mon)
		if err != nil {
			_ = svc.Close()
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		svc.tracker = tracker
	}
	return svc, nil
}

// Run starts the background consumers and the reconciliation loop and
// blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.tracker != nil {
		s.tracker.Start(ctx, s.bus)
	}
	if s.promEnabled() {
		addr := fmt.Sprintf(":%d", s.cfg.Metrics.PrometheusPort)
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.Simulation.AutoStart {
		if res := s.Controller.StartSimulation(ctx); !res.Success {
			s.log.Warnf("simulation: %s", res.Message)
		}
	}
	s.log.Infof("darkstore running: store=%s routing=%s mode=%s", s.cfg.Store.Backend, s.cfg.Routing.Provider, s.cfg.Dispatch.Mode)
	err := s.Loop.Run(ctx)
	s.Sim.CancelAll()
	s.Sim.Wait()
	return err
}

func (s *Service) promEnabled() bool {
	for _, c := range s.cfg.Metrics.Sinks {
		if c.Type == "prometheus" {
			return true
		}
	}
	return false
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.tracker != nil {
		s.tracker.Close()
	}
	s.bus.Close()
	s.monitor.Flush(2 * time.Second)
	return s.store.Close()
}

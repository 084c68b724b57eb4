// Package app wires the configured adapters into a running dispatch
// service.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/config"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/analytics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/forecast"
	coremetrics "github.com/CWILDMOUNTAIN/ha-wattwise/core/metrics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/optimizer"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/runner"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/homeassistant"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/metrics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/mqtt"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/store"
	"github.com/CWILDMOUNTAIN/ha-wattwise/internal/eventbus"
)

const (
	consumptionHistoryKey = "consumption_history"

	// startupDelay gives Home Assistant time to settle its sensors
	// after a restart before the first run fires.
	startupDelay = 30 * time.Second
)

// Service owns the periodic dispatch loop plus the trigger sources.
type Service struct {
	runner    *runner.Runner
	step      time.Duration
	triggers  *eventbus.Bus[eventbus.TriggerEvent]
	Completed *eventbus.Bus[eventbus.RunCompletedEvent]
	mqtt      *mqtt.Client
	log       logger.Logger

	promEnabled bool
	promAddr    string
}

// New assembles a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	st, err := store.NewJSONFileStore(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	ha, err := homeassistant.NewClient(cfg.HomeAssistant)
	if err != nil {
		return nil, fmt.Errorf("homeassistant: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken,
			cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	stepsPerHour := 60 / cfg.Runner.StepMinutes
	deps := runner.Deps{
		Device: homeassistant.NewDeviceAdapter(ha, cfg.Battery, cfg.HomeAssistant),
		Consumption: forecast.NewConsumptionForecaster(
			ha, st, cfg.HomeAssistant.ConsumptionEntity, consumptionHistoryKey,
			logger.New("consumption")),
		Solar: forecast.NewSolarForecaster(
			homeassistant.NewSolarForecastSource(ha, cfg.HomeAssistant, logger.New("solar")),
			logger.New("solar")),
		Price: forecast.NewPriceForecaster(
			homeassistant.NewPriceTableSource(ha, cfg.HomeAssistant, stepsPerHour),
			logger.New("price")),
		Optimizer: optimizer.New(cfg.Optimizer, logger.New("optimizer")),
		Cheap: analytics.NewFinder(st, cfg.Windows.CheapKey, analytics.Cheapest,
			cfg.Windows.PersistAfterHour, logger.New("windows")),
		Expensive: analytics.NewFinder(st, cfg.Windows.ExpensiveKey, analytics.MostExpensive,
			cfg.Windows.PersistAfterHour, logger.New("windows")),
		Sinks:   []runner.OutputSink{homeassistant.NewSensorSink(ha, cfg.HomeAssistant, logger.New("ha-sink"))},
		Metrics: sink,
		Log:     logger.New("runner"),
	}

	triggers := eventbus.New[eventbus.TriggerEvent]()
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(cfg.MQTT, triggers, logger.New("mqtt"))
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		deps.Sinks = append(deps.Sinks, mqttClient)
	}

	run, err := runner.New(cfg.Runner, deps)
	if err != nil {
		return nil, err
	}

	return &Service{
		runner:      run,
		step:        time.Duration(cfg.Runner.StepMinutes) * time.Minute,
		triggers:    triggers,
		Completed:   eventbus.New[eventbus.RunCompletedEvent](),
		mqtt:        mqttClient,
		log:         log,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    cfg.Metrics.PrometheusAddr,
	}, nil
}

// Run starts the dispatch loop and blocks until the context is
// canceled. A run fires shortly after startup, then on every step
// boundary, then on every external trigger.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	trig, cancel := s.triggers.Subscribe()
	defer cancel()

	startup := time.NewTimer(startupDelay)
	defer startup.Stop()
	tick := time.NewTimer(time.Until(s.nextBoundary(time.Now())))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-startup.C:
			s.runOnce(ctx, "startup")
		case <-tick.C:
			s.runOnce(ctx, "schedule")
			tick.Reset(time.Until(s.nextBoundary(time.Now())))
		case ev, ok := <-trig:
			if !ok {
				return nil
			}
			s.runOnce(ctx, ev.Source)
		}
	}
}

// nextBoundary works on the local wall clock so ticks land on whole
// local steps even in zones with fractional UTC offsets.
func (s *Service) nextBoundary(now time.Time) time.Time {
	stepMin := int(s.step / time.Minute)
	aligned := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(),
		now.Minute()-now.Minute()%stepMin, 0, 0, now.Location())
	return aligned.Add(s.step)
}

func (s *Service) runOnce(ctx context.Context, source string) {
	s.log.Infof("dispatch run triggered by %s", source)
	res, err := s.runner.Run(ctx, time.Now())
	if err != nil {
		s.log.Warnf("run skipped: %v", err)
		return
	}
	if res.Err != nil {
		s.log.Errorf("run %s finished with status %s: %v", res.RunID, res.Status, res.Err)
	} else {
		s.log.Infof("run %s finished with status %s over %d steps", res.RunID, res.Status, res.Horizon)
	}
	s.Completed.Publish(eventbus.RunCompletedEvent{
		RunID:  res.RunID,
		Status: res.Status,
		Time:   time.Now(),
	})
}

// RunOnce executes a single dispatch run outside the loop.
func (s *Service) RunOnce(ctx context.Context) (runner.Result, error) {
	return s.runner.Run(ctx, time.Now())
}

// Close releases the MQTT connection and the trigger buses.
func (s *Service) Close() {
	if s.mqtt != nil {
		s.mqtt.Close()
	}
	s.triggers.Close()
	s.Completed.Close()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/CWILDMOUNTAIN/ha-wattwise/core/metrics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// PromSink records dispatch runs in Prometheus metrics.
type PromSink struct {
	runs         *prometheus.CounterVec
	runSeconds   prometheus.Histogram
	solveSeconds prometheus.Histogram
	horizon      prometheus.Gauge
	planCost     prometheus.Gauge
	power        *prometheus.GaugeVec
}

// NewPromSink registers the run metrics on the default Prometheus
// registerer. The exposition server is started separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wattwise_runs_total",
		Help: "Total number of dispatch runs by outcome",
	}, []string{"status"})
	runSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wattwise_run_duration_seconds",
		Help:    "Wall-clock duration of a full dispatch run",
		Buckets: prometheus.DefBuckets,
	})
	solveSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wattwise_solve_duration_seconds",
		Help:    "Duration of the MILP solve within a run",
		Buckets: prometheus.DefBuckets,
	})
	horizon := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wattwise_forecast_horizon_steps",
		Help: "Effective forecast horizon of the last run",
	})
	planCost := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wattwise_plan_cost_ct",
		Help: "Forecast grid cost of the last published plan in cents",
	})
	power := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wattwise_schedule_power_kw",
		Help: "Current-step power of the last published schedule",
	}, []string{"field"})

	if err := reg.Register(runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runs = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(runSeconds); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runSeconds = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(solveSeconds); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			solveSeconds = are.ExistingCollector.(prometheus.Histogram)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(horizon); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			horizon = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(planCost); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			planCost = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(power); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			power = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		runs:         runs,
		runSeconds:   runSeconds,
		solveSeconds: solveSeconds,
		horizon:      horizon,
		planCost:     planCost,
		power:        power,
	}, nil
}

// RecordRun updates the run counters and duration histograms.
func (s *PromSink) RecordRun(ev coremetrics.RunEvent) error {
	s.runs.WithLabelValues(ev.Status.String()).Inc()
	s.runSeconds.Observe(ev.Duration.Seconds())
	s.solveSeconds.Observe(ev.SolveDuration.Seconds())
	s.horizon.Set(float64(ev.HorizonSteps))
	if ev.Status == model.RunSucceeded {
		s.planCost.Set(ev.PlanCostCt)
	}
	return nil
}

// RecordSchedule exposes the first-step powers of the new schedule.
func (s *PromSink) RecordSchedule(_ string, sched model.Schedule) error {
	if len(sched.Entries) == 0 {
		return nil
	}
	e := sched.Entries[0]
	s.power.WithLabelValues("charge_solar").Set(e.ChargeSolarKW)
	s.power.WithLabelValues("charge_grid").Set(e.ChargeGridKW)
	s.power.WithLabelValues("discharge").Set(e.DischargeKW)
	s.power.WithLabelValues("grid_export").Set(e.ExportKW)
	s.power.WithLabelValues("grid_import").Set(e.GridImportKW)
	return nil
}

var _ coremetrics.Sink = (*PromSink)(nil)

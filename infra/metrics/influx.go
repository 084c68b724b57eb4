package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/CWILDMOUNTAIN/ha-wattwise/core/metrics"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
	"github.com/CWILDMOUNTAIN/ha-wattwise/infra/logger"
)

// InfluxSink persists run outcomes and dispatch schedules to an InfluxDB
// instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a NopSink
// when the health check fails, so a down database never blocks dispatch runs.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one point per optimization run.
func (s *InfluxSink) RecordRun(ev coremetrics.RunEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_run").
		AddTag("run_id", ev.RunID).
		AddTag("status", ev.Status.String()).
		AddField("duration_s", round3(ev.Duration.Seconds())).
		AddField("solve_duration_s", round3(ev.SolveDuration.Seconds())).
		AddField("horizon_steps", ev.HorizonSteps).
		SetTime(ev.Start)
	if ev.Status == model.RunSucceeded {
		p.AddField("plan_cost_ct", round3(ev.PlanCostCt))
	}
	if ev.Err != "" {
		p.AddField("error", ev.Err)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedule writes one point per schedule step so the planned power
// flows can be graphed alongside the measured ones.
func (s *InfluxSink) RecordSchedule(runID string, sched model.Schedule) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, e := range sched.Entries {
		p := write.NewPointWithMeasurement("schedule_step").
			AddTag("run_id", runID).
			AddField("charge_solar_kw", round3(e.ChargeSolarKW)).
			AddField("charge_grid_kw", round3(e.ChargeGridKW)).
			AddField("discharge_kw", round3(e.DischargeKW)).
			AddField("grid_export_kw", round3(e.ExportKW)).
			AddField("grid_import_kw", round3(e.GridImportKW)).
			AddField("soc_kwh", round3(e.SoCKWh)).
			AddField("full_charge", e.FullCharge).
			SetTime(e.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

var _ coremetrics.Sink = (*InfluxSink)(nil)

package homeassistant

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/forecast"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// SolarForecastSource maps the per-day solar forecast entities onto
// the sparse point-estimate port. Each entity carries a
// "detailedHourly" attribute of (period_start, pv_estimate) rows.
type SolarForecastSource struct {
	client   *Client
	entities map[forecast.Day]string
	log      logger.Logger
}

func NewSolarForecastSource(c *Client, cfg Config, log logger.Logger) *SolarForecastSource {
	return &SolarForecastSource{
		client: c,
		entities: map[forecast.Day]string{
			forecast.Today:    cfg.SolarTodayEntity,
			forecast.Tomorrow: cfg.SolarTomorrowEntity,
			forecast.DayAfter: cfg.SolarDayAfterEntity,
		},
		log: log,
	}
}

type solarRow struct {
	PeriodStart string  `json:"period_start"`
	PvEstimate  float64 `json:"pv_estimate"`
}

func (s *SolarForecastSource) SolarPoints(ctx context.Context, day forecast.Day) ([]forecast.SolarPoint, bool, error) {
	entity := s.entities[day]
	if entity == "" {
		return nil, false, nil
	}
	var rows []solarRow
	ok, err := s.client.Attribute(ctx, entity, "detailedHourly", &rows)
	if err != nil || !ok {
		return nil, false, err
	}

	points := make([]forecast.SolarPoint, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse(time.RFC3339, r.PeriodStart)
		if err != nil {
			s.log.Debugf("solar point with bad timestamp %q dropped", r.PeriodStart)
			continue
		}
		points = append(points, forecast.SolarPoint{Time: ts, PowerKW: r.PvEstimate})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, len(points) > 0, nil
}

// PriceTableSource reads the day-ahead tariff tables from the price
// entity's "today"/"tomorrow" attributes. The upstream tables are
// hourly; each value is repeated to cover all grid steps of its hour.
type PriceTableSource struct {
	client       *Client
	entity       string
	stepsPerHour int
}

func NewPriceTableSource(c *Client, cfg Config, stepsPerHour int) *PriceTableSource {
	if stepsPerHour < 1 {
		stepsPerHour = 1
	}
	return &PriceTableSource{client: c, entity: cfg.PriceEntity, stepsPerHour: stepsPerHour}
}

type priceRow struct {
	Total float64 `json:"total"`
}

func (p *PriceTableSource) Prices(ctx context.Context, day forecast.Day) ([]float64, bool, error) {
	var attr string
	switch day {
	case forecast.Today:
		attr = "today"
	case forecast.Tomorrow:
		attr = "tomorrow"
	default:
		// The tariff upstream publishes at most two days.
		return nil, false, nil
	}

	var rows []priceRow
	ok, err := p.client.Attribute(ctx, p.entity, attr, &rows)
	if err != nil || !ok || len(rows) == 0 {
		return nil, false, err
	}

	out := make([]float64, 0, len(rows)*p.stepsPerHour)
	for _, r := range rows {
		for i := 0; i < p.stepsPerHour; i++ {
			out = append(out, r.Total)
		}
	}
	return out, true, nil
}

// DeviceAdapter supplies the statically configured battery parameters
// and the live state of charge, converted from the SoC percent sensor.
type DeviceAdapter struct {
	client    *Client
	base      model.DeviceParameters
	socEntity string
}

func NewDeviceAdapter(c *Client, base model.DeviceParameters, cfg Config) *DeviceAdapter {
	return &DeviceAdapter{client: c, base: base, socEntity: cfg.SoCEntity}
}

func (d *DeviceAdapter) Parameters(context.Context) (model.DeviceParameters, error) {
	if err := d.base.Validate(); err != nil {
		return model.DeviceParameters{}, fmt.Errorf("device parameters: %w", err)
	}
	return d.base, nil
}

func (d *DeviceAdapter) StateOfCharge(ctx context.Context) (float64, error) {
	raw, ok, err := d.client.Read(ctx, d.socEntity)
	if err != nil {
		return 0, fmt.Errorf("soc %s: %w", d.socEntity, err)
	}
	if !ok {
		return 0, fmt.Errorf("soc %s: %w", d.socEntity, model.ErrMissingInput)
	}
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("soc %s: unparseable state %q: %w", d.socEntity, raw, model.ErrMissingInput)
	}
	return pct / 100 * d.base.CapacityKWh, nil
}

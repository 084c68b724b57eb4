package homeassistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/logger"
	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// SensorSink publishes output channels as Home Assistant sensors:
// numeric channels become sensor.<prefix>_<name> with the forecast
// series in a "forecast" attribute of [ISO-timestamp, value] pairs,
// binary channels become binary_sensor.<prefix>_<name> carrying
// "on"/"off" states.
type SensorSink struct {
	client *Client
	prefix string
	log    logger.Logger
}

func NewSensorSink(c *Client, cfg Config, log logger.Logger) *SensorSink {
	cfg.SetDefaults()
	return &SensorSink{client: c, prefix: cfg.SensorPrefix, log: log}
}

func (s *SensorSink) Publish(ctx context.Context, channels []model.Channel) error {
	var errs []error
	for _, ch := range channels {
		if err := s.publish(ctx, ch); err != nil {
			s.log.Errorf("publish %s: %v", ch.Name, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *SensorSink) publish(ctx context.Context, ch model.Channel) error {
	switch ch.Kind {
	case model.ChannelBinary:
		entity := fmt.Sprintf("binary_sensor.%s_%s", s.prefix, ch.Name)
		forecast := make([][2]any, len(ch.States))
		for i, p := range ch.States {
			forecast[i] = [2]any{p.Time.Format(time.RFC3339), onOff(p.On)}
		}
		return s.client.SetState(ctx, entity, onOff(ch.On), map[string]any{
			"forecast": forecast,
		})
	default:
		entity := fmt.Sprintf("sensor.%s_%s", s.prefix, ch.Name)
		forecast := make([][2]any, len(ch.Series))
		for i, p := range ch.Series {
			forecast[i] = [2]any{p.Time.Format(time.RFC3339), p.Value}
		}
		attrs := map[string]any{"forecast": forecast}
		if ch.Unit != "" {
			attrs["unit_of_measurement"] = ch.Unit
		}
		return s.client.SetState(ctx, entity, ch.Value, attrs)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

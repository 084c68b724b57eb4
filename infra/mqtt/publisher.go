package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// Publish writes every output channel as a retained JSON message under
// the configured topic prefix, one topic per channel name. Implements
// the runner output sink.
func (c *Client) Publish(ctx context.Context, channels []model.Channel) error {
	var errs []error
	for _, ch := range channels {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		payload, err := json.Marshal(ch)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", ch.Name, err))
			continue
		}
		topic := c.cfg.TopicPrefix + "/" + ch.Name
		if token := c.cli.Publish(topic, c.cfg.QoS, true, payload); token.Wait() && token.Error() != nil {
			c.log.Errorf("publish %s: %v", topic, token.Error())
			errs = append(errs, fmt.Errorf("publish %s: %w", topic, token.Error()))
		}
	}
	return errors.Join(errs...)
}

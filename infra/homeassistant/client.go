package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/CWILDMOUNTAIN/ha-wattwise/core/model"
)

// Config holds the connection settings and entity bindings of one
// Home Assistant instance.
type Config struct {
	BaseURL        string `json:"base_url" koanf:"base_url"`
	Token          string `json:"token" koanf:"token"`
	TimeoutSeconds int    `json:"timeout_seconds" koanf:"timeout_seconds"`

	ConsumptionEntity   string `json:"consumption_entity" koanf:"consumption_entity"`
	SoCEntity           string `json:"soc_entity" koanf:"soc_entity"`
	SolarTodayEntity    string `json:"solar_today_entity" koanf:"solar_today_entity"`
	SolarTomorrowEntity string `json:"solar_tomorrow_entity" koanf:"solar_tomorrow_entity"`
	SolarDayAfterEntity string `json:"solar_day_after_entity" koanf:"solar_day_after_entity"`
	PriceEntity         string `json:"price_entity" koanf:"price_entity"`
	SensorPrefix        string `json:"sensor_prefix" koanf:"sensor_prefix"`
}

func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.SensorPrefix == "" {
		c.SensorPrefix = "wattwise"
	}
}

func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("homeassistant base_url is required")
	}
	return nil
}

// Client talks to the Home Assistant REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}, nil
}

type stateDoc struct {
	EntityID   string                     `json:"entity_id"`
	State      string                     `json:"state"`
	Attributes map[string]json.RawMessage `json:"attributes"`
}

func (c *Client) get(ctx context.Context, path string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("unexpected status %d for %s: %s", resp.StatusCode, path, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

// Read returns the raw state of an entity. Implements the point-in-time
// state source: absent entities and the literal "unknown"/"unavailable"
// states report ok=false.
func (c *Client) Read(ctx context.Context, ref string) (string, bool, error) {
	var doc stateDoc
	ok, err := c.get(ctx, "/api/states/"+url.PathEscape(ref), &doc)
	if err != nil || !ok {
		return "", false, err
	}
	if doc.State == "unknown" || doc.State == "unavailable" {
		return "", false, nil
	}
	return doc.State, true, nil
}

// Attribute decodes one attribute of an entity into out. ok=false when
// the entity or the attribute is absent.
func (c *Client) Attribute(ctx context.Context, entity, attr string, out any) (bool, error) {
	var doc stateDoc
	ok, err := c.get(ctx, "/api/states/"+url.PathEscape(entity), &doc)
	if err != nil || !ok {
		return false, err
	}
	raw, present := doc.Attributes[attr]
	if !present || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("attribute %s.%s: %w", entity, attr, err)
	}
	return true, nil
}

type historyRow struct {
	State       string    `json:"state"`
	LastChanged time.Time `json:"last_changed"`
}

// Fetch returns the state changes of an entity in [start, end].
// Implements the historical sample source.
func (c *Client) Fetch(ctx context.Context, entity string, start, end time.Time) ([]model.HistorySample, error) {
	path := fmt.Sprintf("/api/history/period/%s?filter_entity_id=%s&end_time=%s",
		url.PathEscape(start.Format(time.RFC3339)),
		url.QueryEscape(entity),
		url.QueryEscape(end.Format(time.RFC3339)))

	var rows [][]historyRow
	ok, err := c.get(ctx, path, &rows)
	if err != nil || !ok {
		return nil, err
	}

	var samples []model.HistorySample
	for _, series := range rows {
		for _, r := range series {
			samples = append(samples, model.HistorySample{Time: r.LastChanged, State: r.State})
		}
	}
	return samples, nil
}

// SetState writes an entity state with attributes.
func (c *Client) SetState(ctx context.Context, entity string, state any, attributes map[string]any) error {
	payload, err := json.Marshal(map[string]any{
		"state":      state,
		"attributes": attributes,
	})
	if err != nil {
		return fmt.Errorf("encode state %s: %w", entity, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/states/"+url.PathEscape(entity), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("set state %s: %w", entity, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("set state %s: unexpected status %d: %s", entity, resp.StatusCode, body)
	}
	return nil
}

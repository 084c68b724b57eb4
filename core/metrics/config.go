package metrics

// Config selects and parameterizes the metrics backends.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled" koanf:"prometheus_enabled"`
	PrometheusAddr    string `json:"prometheus_addr" koanf:"prometheus_addr"`
	InfluxEnabled     bool   `json:"influx_enabled" koanf:"influx_enabled"`
	InfluxURL         string `json:"influx_url" koanf:"influx_url"`
	InfluxToken       string `json:"influx_token" koanf:"influx_token"`
	InfluxOrg         string `json:"influx_org" koanf:"influx_org"`
	InfluxBucket      string `json:"influx_bucket" koanf:"influx_bucket"`
}

// SetDefaults fills unset fields with sane values.
func (c *Config) SetDefaults() {
	if c.PrometheusAddr == "" {
		c.PrometheusAddr = ":9090"
	}
}

// Package appconf loads the ledmap YAML configuration.
package appconf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	"ledmap.transitboard.org/internal/display"
	"ledmap.transitboard.org/internal/feed"
)

// DefaultPath is where the daemon looks for its configuration.
const DefaultPath = "ledmap.yml"

// Env is the operating environment.
type Env string

const (
	Development Env = "development"
	Test        Env = "test"
	Production  Env = "production"
)

// minProductionInterval keeps real deployments inside the feed's rate limits.
const minProductionInterval = 1000

const (
	// defaultLatchLine is the Pi GPIO wired to the TLC5947 latch (D5).
	defaultLatchLine          = 5
	defaultTransitlandRetries = 3
)

// FeedConfig describes the live vehicle feed.
type FeedConfig struct {
	URL          string `yaml:"url" validate:"required,url"`
	Format       string `yaml:"format" validate:"oneof=jsonapi gtfsrt"`
	APIKey       string `yaml:"api_key"`
	APIKeyHeader string `yaml:"api_key_header"`
	TimeoutMS    int    `yaml:"timeout_ms" validate:"gt=0"`
	FilterRoutes bool   `yaml:"filter_routes"`
}

type RefreshConfig struct {
	IntervalMS int `yaml:"interval_ms" validate:"gt=0"`
}

// DisplayConfig selects the LED driver.
type DisplayConfig struct {
	Driver     string `yaml:"driver" validate:"oneof=tlc5947 memory"`
	Brightness int    `yaml:"brightness" validate:"gte=1,lte=4095"`
	Boards     int    `yaml:"boards" validate:"gte=1"`
	SPIDevice  string `yaml:"spi_device" validate:"required_if=Driver tlc5947"`
	LatchChip  string `yaml:"latch_chip" validate:"required_if=Driver tlc5947"`
	LatchLine  int    `yaml:"latch_line" validate:"gte=0"`
}

type StatusConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port|startswith=:"`
	// RateLimit is requests per second per client; -1 disables limiting.
	RateLimit int `yaml:"rate_limit" validate:"gte=-1"`
}

type GotifyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Token    string `yaml:"token" validate:"required_if=Enabled true"`
	Priority int    `yaml:"priority" validate:"gte=0,lte=10"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker" validate:"required_if=Enabled true"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// NotifyConfig controls alerting on degraded ticks.
type NotifyConfig struct {
	DegradedAfter int          `yaml:"degraded_after" validate:"gte=1"`
	Gotify        GotifyConfig `yaml:"gotify"`
	MQTT          MQTTConfig   `yaml:"mqtt"`
}

// TransitlandConfig is used by the offline stop resolution tool only.
type TransitlandConfig struct {
	URL       string `yaml:"url" validate:"required,url"`
	APIKey    string `yaml:"api_key"`
	TimeoutMS int    `yaml:"timeout_ms" validate:"gt=0"`
	Retries   int    `yaml:"retries" validate:"gte=0"`
}

// Config is the root configuration.
type Config struct {
	Env         Env               `yaml:"env" validate:"oneof=development test production"`
	LogLevel    string            `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	StopTable   string            `yaml:"stop_table" validate:"required"`
	Lines       string            `yaml:"lines" validate:"required"`
	Feed        FeedConfig        `yaml:"feed"`
	Refresh     RefreshConfig     `yaml:"refresh"`
	Display     DisplayConfig     `yaml:"display"`
	Status      StatusConfig      `yaml:"status"`
	Notify      NotifyConfig      `yaml:"notify"`
	Transitland TransitlandConfig `yaml:"transitland"`
}

// Load reads, defaults and validates the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	cfg.ResolvePaths(filepath.Dir(path))
	return cfg, nil
}

// resolverFields are the keys the offline stop resolver reads.
var resolverFields = []string{
	"Env",
	"LogLevel",
	"StopTable",
	"Lines",
	"Transitland.URL",
	"Transitland.TimeoutMS",
	"Transitland.Retries",
}

// LoadResolver reads the file at path like Load but validates only the keys
// the offline stop resolver uses, so feed and display sections may be absent.
func LoadResolver(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := decode(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := validator.New().StructPartial(cfg, resolverFields...); err != nil {
		return Config{}, fmt.Errorf("%s: invalid config: %w", path, err)
	}
	cfg.ResolvePaths(filepath.Dir(path))
	return cfg, nil
}

// ResolvePaths makes relative data file paths relative to dir.
func (c *Config) ResolvePaths(dir string) {
	for _, p := range []*string{&c.StopTable, &c.Lines} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Parse decodes YAML, fills defaults for unset keys and validates.
func Parse(data []byte) (Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode unmarshals over presetConfig, so keys whose zero value is meaningful
// keep their default only when absent, then fills the remaining defaults.
func decode(data []byte) (Config, error) {
	cfg := presetConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// presetConfig holds defaults for keys where 0 is a valid setting.
func presetConfig() Config {
	return Config{
		Display:     DisplayConfig{LatchLine: defaultLatchLine},
		Transitland: TransitlandConfig{Retries: defaultTransitlandRetries},
	}
}

func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = Production
	}
	if c.Feed.Format == "" {
		c.Feed.Format = string(feed.FormatJSONAPI)
	}
	if c.Feed.APIKeyHeader == "" {
		c.Feed.APIKeyHeader = feed.DefaultAPIKeyHeader
	}
	if c.Feed.TimeoutMS == 0 {
		c.Feed.TimeoutMS = int(feed.DefaultTimeout / time.Millisecond)
	}
	if c.Refresh.IntervalMS == 0 {
		c.Refresh.IntervalMS = 10000
	}
	if c.Display.Driver == "" {
		c.Display.Driver = display.KindTLC5947
	}
	if c.Display.Brightness == 0 {
		c.Display.Brightness = int(display.DefaultBrightness)
	}
	if c.Display.Boards == 0 {
		c.Display.Boards = 7
	}
	if c.Display.SPIDevice == "" {
		c.Display.SPIDevice = "/dev/spidev0.0"
	}
	if c.Display.LatchChip == "" {
		c.Display.LatchChip = "gpiochip0"
	}
	if c.Status.RateLimit == 0 {
		c.Status.RateLimit = 10
	}
	if c.Notify.DegradedAfter == 0 {
		c.Notify.DegradedAfter = 3
	}
	if c.Notify.Gotify.Priority == 0 {
		c.Notify.Gotify.Priority = 5
	}
	if c.Notify.MQTT.ClientID == "" {
		c.Notify.MQTT.ClientID = "ledmap"
	}
	if c.Notify.MQTT.Topic == "" {
		c.Notify.MQTT.Topic = "ledmap/status"
	}
	if c.Transitland.URL == "" {
		c.Transitland.URL = "https://transit.land/api/v2/rest/"
	}
	if c.Transitland.TimeoutMS == 0 {
		c.Transitland.TimeoutMS = 5000
	}
}

// Validate checks struct tags and the rules that span fields. It is called
// again by the commands after flag overrides.
func (c Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Env == Production && c.Refresh.IntervalMS < minProductionInterval {
		return errors.New("invalid config: refresh.interval_ms must be at least 1000 in production")
	}
	return nil
}

// RefreshInterval is the hold time between ticks.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalMS) * time.Millisecond
}

// FeedClientConfig builds the feed client configuration. trackedRoutes is
// only sent upstream when filter_routes is set.
func (c Config) FeedClientConfig(trackedRoutes []string) feed.Config {
	out := feed.Config{
		URL:          c.Feed.URL,
		Format:       feed.Format(c.Feed.Format),
		APIKey:       c.Feed.APIKey,
		APIKeyHeader: c.Feed.APIKeyHeader,
		Timeout:      time.Duration(c.Feed.TimeoutMS) * time.Millisecond,
	}
	if c.Feed.FilterRoutes {
		out.RouteIDs = trackedRoutes
	}
	return out
}

// DisplayDeviceConfig builds the device configuration.
func (c Config) DisplayDeviceConfig() display.Config {
	return display.Config{
		Kind:      c.Display.Driver,
		Boards:    c.Display.Boards,
		SPIDevice: c.Display.SPIDevice,
		LatchChip: c.Display.LatchChip,
		LatchLine: c.Display.LatchLine,
	}
}

// TransitlandTimeout is the per-request timeout for the metadata API.
func (c Config) TransitlandTimeout() time.Duration {
	return time.Duration(c.Transitland.TimeoutMS) * time.Millisecond
}

const redacted = "[redacted]"

// Redacted returns a copy with credentials masked, for display.
func (c Config) Redacted() Config {
	for _, secret := range []*string{
		&c.Feed.APIKey,
		&c.Notify.Gotify.Token,
		&c.Notify.MQTT.Password,
		&c.Transitland.APIKey,
	} {
		if *secret != "" {
			*secret = redacted
		}
	}
	return c
}

package config

import (
	"fmt"
	"net/url"
	"time"
)

type Global struct {
	// The origin that the persistent cache is scoped to, e.g.
	// "https://perfil.example.com". Two origins never see each other's
	// cached values.
	Origin string `yaml:"origin"`

	// Global pool of database connections. If a component does not specify
	// any database options of its own, then this pool of connections will be
	// used instead.
	DatabaseOptions DatabaseOptions `yaml:"database"`

	// Configuration for in-memory caches.
	Cache Cache `yaml:"cache"`

	// JetStream configuration
	JetStream JetStream `yaml:"jetstream"`

	// Metrics configuration
	Metrics Metrics `yaml:"metrics"`

	// Sentry configuration
	Sentry Sentry `yaml:"sentry"`
}

func (c *Global) Defaults(generate bool) {
	if generate {
		c.Origin = "http://localhost:3000"
	}
	c.JetStream.Defaults(generate)
	c.Metrics.Defaults(generate)
	c.Cache.Defaults()
	c.Sentry.Defaults()
}

func (c *Global) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "global.origin", c.Origin)
	if c.Origin != "" {
		if u, err := url.Parse(c.Origin); err != nil || u.Scheme == "" || u.Host == "" {
			configErrs.Add(fmt.Sprintf("invalid value for config key \"global.origin\": %s", c.Origin))
		}
	}

	c.JetStream.Verify(configErrs)
	c.Metrics.Verify(configErrs)
	c.Cache.Verify(configErrs)
	c.Sentry.Verify(configErrs)
}

// The configuration to use for Prometheus metrics
type Metrics struct {
	// Whether or not the metrics are enabled
	Enabled bool `yaml:"enabled"`
	// Use BasicAuth for Authorization
	BasicAuth struct {
		// Authorization via Static Username & Password
		// Hardcoded Username and Password
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"basic_auth"`
}

func (c *Metrics) Defaults(generate bool) {
	c.Enabled = false
	if generate {
		c.BasicAuth.Username = "metrics"
		c.BasicAuth.Password = "metrics"
	}
}

func (c *Metrics) Verify(configErrs *ConfigErrors) {
}

// The configuration to use for Sentry error reporting
type Sentry struct {
	Enabled bool `yaml:"enabled"`
	// The DSN to connect to e.g "https://examplePublicKey@o0.ingest.sentry.io/0"
	// See https://docs.sentry.io/platforms/go/configuration/options/
	DSN string `yaml:"dsn"`
	// The environment e.g "production"
	// See https://docs.sentry.io/platforms/go/configuration/environments/
	Environment string `yaml:"environment"`
}

func (c *Sentry) Defaults() {
	c.Enabled = false
}

func (c *Sentry) Verify(configErrs *ConfigErrors) {
	if c.Enabled {
		checkNotEmpty(configErrs, "global.sentry.dsn", c.DSN)
	}
}

type DatabaseOptions struct {
	// The connection string, file:filename.db or postgres://server....
	ConnectionString DataSource `yaml:"connection_string"`
	// Maximum open connections to the DB (0 = use default, negative means unlimited)
	MaxOpenConnections int `yaml:"max_open_conns"`
	// Maximum idle connections to the DB (0 = use default, negative means unlimited)
	MaxIdleConnections int `yaml:"max_idle_conns"`
	// maximum amount of time (in seconds) a connection may be reused (<= 0 means unlimited)
	ConnMaxLifetimeSeconds int `yaml:"conn_max_lifetime"`
}

func (c *DatabaseOptions) Defaults(conns int) {
	c.MaxOpenConnections = conns
	c.MaxIdleConnections = 2
	c.ConnMaxLifetimeSeconds = -1
}

func (c *DatabaseOptions) Verify(configErrs *ConfigErrors) {
}

// MaxIdleConns returns maximum idle connections to the DB
func (c DatabaseOptions) MaxIdleConns() int {
	return c.MaxIdleConnections
}

// MaxOpenConns returns maximum open connections to the DB
func (c DatabaseOptions) MaxOpenConns() int {
	return c.MaxOpenConnections
}

// ConnMaxLifetime returns maximum amount of time a connection may be reused
func (c DatabaseOptions) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeSeconds) * time.Second
}

type Cache struct {
	EstimatedMaxSize DataUnit      `yaml:"max_size_estimated"`
	MaxAge           time.Duration `yaml:"max_age"`
}

func (c *Cache) Defaults() {
	c.EstimatedMaxSize = 32 * 1024 * 1024 // 32 MB
	c.MaxAge = time.Hour
}

func (c *Cache) Verify(errors *ConfigErrors) {
	checkPositive(errors, "max_size_estimated", int64(c.EstimatedMaxSize))
	checkNotZero(errors, "max_size_estimated", int64(c.EstimatedMaxSize))
}

// DataUnit is a number of bytes, written in config files as e.g. "512kb".
type DataUnit int64

func (d *DataUnit) UnmarshalText(text []byte) error {
	var magnitude float64
	s := string(text)
	for suffix, unit := range map[string]float64{
		"tb": 1024 * 1024 * 1024 * 1024,
		"gb": 1024 * 1024 * 1024,
		"mb": 1024 * 1024,
		"kb": 1024,
	} {
		if len(s) > len(suffix) && s[len(s)-len(suffix):] == suffix {
			magnitude = unit
			s = s[:len(s)-len(suffix)]
			break
		}
	}
	if magnitude == 0 {
		magnitude = 1
	}
	var value float64
	if _, err := fmt.Sscanf(s, "%g", &value); err != nil {
		return fmt.Errorf("invalid data unit %q: %w", string(text), err)
	}
	*d = DataUnit(value * magnitude)
	return nil
}

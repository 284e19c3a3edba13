// Package telemetry provides OpenTelemetry metrics for the snippet daemon.
// Metrics are exposed on the /metrics endpoint via Prometheus and can
// additionally be pushed to an OTLP collector.
package telemetry

import (
	"fmt"
)

const (
	// DefaultServiceName is the default service name for telemetry
	DefaultServiceName = "snipmux"

	// DefaultMetricsPath is where the Prometheus handler is mounted
	DefaultMetricsPath = "/metrics"
)

// Config represents the telemetry configuration.
type Config struct {
	// Enabled controls whether metrics are collected at all.
	// When false, a no-op meter provider is used and /metrics is not mounted.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this service in exported metrics.
	// Defaults to "snipmux" if not specified.
	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion identifies the running version in exported metrics.
	// Defaults to the build version if not specified.
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// OTLPEndpoint optionally enables pushing metrics to an OTLP HTTP
	// collector ("host:port"). Prometheus scraping works regardless.
	OTLPEndpoint string `yaml:"otlpEndpoint,omitempty"`

	// Insecure allows HTTP connections to the OTLP collector.
	// Should only be true for development environments.
	Insecure bool `yaml:"insecure,omitempty"`
}

// GetServiceName returns the service name, using the default if not specified.
func (c *Config) GetServiceName() string {
	if c == nil || c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// GetServiceVersion returns the service version, using "unknown" if not specified.
func (c *Config) GetServiceVersion() string {
	if c == nil || c.ServiceVersion == "" {
		return "unknown"
	}
	return c.ServiceVersion
}

// IsEnabled reports whether metrics collection is on. A nil config means
// disabled.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled
}

// Validate validates the telemetry configuration.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil // disabled telemetry needs no further validation
	}

	if c.Insecure && c.OTLPEndpoint == "" {
		return fmt.Errorf("insecure requires otlpEndpoint to be set")
	}

	return nil
}

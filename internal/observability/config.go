package observability

import (
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/config"
	"github.com/smallbiznis/kilekitabu/internal/observability/logger"
	"github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"github.com/smallbiznis/kilekitabu/internal/observability/tracing"
)

const defaultServiceName = "kilekitabu"

// Config is the observability view of the application config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

// LoadConfig resolves service identity with the deployment overrides
// (DEPLOYMENT_ENV, SERVICE_VERSION, OTEL_EXPORTER_OTLP_ENDPOINT) taking
// precedence over the app defaults.
func LoadConfig(cfg config.Config) Config {
	obs := cfg.Observability
	return Config{
		ServiceName:          firstNonEmpty(cfg.AppName, defaultServiceName),
		Environment:          firstNonEmpty(obs.DeployEnv, cfg.Environment),
		Version:              firstNonEmpty(obs.ServiceVersion, cfg.AppVersion),
		LogLevel:             firstNonEmpty(obs.LogLevel, "info"),
		LogFormat:            firstNonEmpty(obs.LogFormat, "json"),
		OtelEnabled:          obs.OtelEnabled,
		OtelExporterEndpoint: firstNonEmpty(obs.OtelEndpoint, cfg.OTLPEndpoint),
		OtelExporterProtocol: firstNonEmpty(obs.OtelProtocol, "grpc"),
		OtelSamplingRatio:    obs.OtelSamplingRate,
	}
}

// Debug turns on development logging for debug level or a dev environment.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) Logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) Metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelExporterEndpoint,
		ExporterProtocol: c.OtelExporterProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

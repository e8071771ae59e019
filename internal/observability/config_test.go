package observability

import (
	"testing"

	"github.com/smallbiznis/kay/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigDerivesTelemetry(t *testing.T) {
	cfg := config.Config{
		AppVersion:  "1.2.0",
		Environment: "production",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "info",
			LogFormat:     "json",
			OTLPEndpoint:  "collector:4317",
			OTLPProtocol:  "grpc",
			OTelEnabled:   true,
			SamplingRatio: 0.5,
		},
	}

	obs := NewConfig(cfg)
	assert.Equal(t, "kay", obs.ServiceName)
	assert.False(t, obs.Debug())

	tr := obs.Tracing()
	assert.True(t, tr.Enabled)
	assert.Equal(t, "collector:4317", tr.ExporterEndpoint)
	assert.Equal(t, 0.5, tr.SamplingRatio)
	assert.Equal(t, "1.2.0", tr.ServiceVersion)

	m := obs.Metrics()
	assert.True(t, m.Enabled)
	assert.Equal(t, "production", m.Environment)
}

func TestDebugFollowsEnvironmentOrLevel(t *testing.T) {
	assert.True(t, NewConfig(config.Config{Environment: "local"}).Debug())

	prod := config.Config{Environment: "production"}
	prod.Telemetry.LogLevel = "debug"
	assert.True(t, NewConfig(prod).Debug())
	assert.True(t, NewConfig(prod).Logger().IncludeStackOnError)
}

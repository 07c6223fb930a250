package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, ExporterPrometheus, cfg.MetricsExporter)
	assert.Equal(t, ExporterNone, cfg.TracingExporter)
	assert.InDelta(t, 0.1, cfg.TraceSamplingRate, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSamplingRate: 0.1}},
		{name: "empty exporters", cfg: Config{}},
		{name: "negative sampling", cfg: Config{TraceSamplingRate: -0.1}, wantErr: true},
		{name: "sampling above one", cfg: Config{TraceSamplingRate: 1.5}, wantErr: true},
		{name: "unknown metrics exporter", cfg: Config{MetricsExporter: "statsd"}, wantErr: true},
		{name: "unknown tracing exporter", cfg: Config{TracingExporter: "jaeger"}, wantErr: true},
		{name: "otlp without endpoint", cfg: Config{TracingExporter: ExporterOTLP}, wantErr: true},
		{name: "otlp with endpoint", cfg: Config{MetricsExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

package telemetry

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnv_GKEDetection(t *testing.T) { //nolint:paralleltest // uses t.Setenv
	tests := []struct {
		name             string
		kubernetesHost   string
		customEndpoint   string
		expectedEndpoint string
	}{
		{
			name:             "GKE environment detected",
			kubernetesHost:   "10.0.0.1",
			expectedEndpoint: gkeCollectorEndpoint,
		},
		{
			name:             "Non-GKE environment",
			expectedEndpoint: "",
		},
		{
			name:             "Custom endpoint overrides GKE default",
			kubernetesHost:   "10.0.0.1",
			customEndpoint:   "http://custom-collector:4318",
			expectedEndpoint: "http://custom-collector:4318",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			unsetEnv(t, "KUBERNETES_SERVICE_HOST", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")

			if test.kubernetesHost != "" {
				t.Setenv("KUBERNETES_SERVICE_HOST", test.kubernetesHost)
			}

			if test.customEndpoint != "" {
				t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", test.customEndpoint)
			}

			config, err := LoadConfigFromEnv(t.Context(), "dev")
			require.NoError(t, err)

			assert.Equal(t, test.expectedEndpoint, config.Endpoint)
			assert.Equal(t, test.expectedEndpoint, config.LogsEndpoint)
		})
	}
}

func TestLoadConfigFromEnv_DefaultValues(t *testing.T) { //nolint:paralleltest // uses t.Setenv
	unsetEnv(t, "OTEL_ENABLED", "OTEL_LOGS_ENABLED", "OTEL_SERVICE_VERSION", "ENVIRONMENT", "OTEL_EXPORTER_OTLP_TIMEOUT")

	config, err := LoadConfigFromEnv(t.Context(), "test")
	require.NoError(t, err)

	assert.False(t, config.Enabled)
	assert.False(t, config.LogsEnabled)
	assert.Equal(t, defaultServiceVersion, config.ServiceVersion)
	assert.Equal(t, "test", config.Environment)
	assert.Equal(t, 5*time.Second, config.Timeout)
}

func TestInitialize_DisabledIsNoop(t *testing.T) { //nolint:paralleltest // touches package providers
	require.NoError(t, Initialize(t.Context(), nil))
	require.NoError(t, Initialize(t.Context(), &Config{Enabled: true}))
	require.NoError(t, Shutdown(t.Context()))
}

// unsetEnv removes variables for the duration of the test; t.Setenv restores them afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()

	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

package telemetry

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryIsolation(t *testing.T) {
	// Two registries must not collide; nothing global is registered.
	a := NewRegistry()
	b := NewRegistry()

	a.PollErrors.WithLabelValues("SOL/USDC").Inc()
	b.ActiveInstruments.Set(3)

	assert.NotNil(t, a.Handler())
	assert.NotNil(t, b.Handler())
}

func TestRegistryExposesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RegimeSwitches.WithLabelValues("QUIET", "ACCUMULATION").Inc()
	r.TxSynthesized.WithLabelValues("SOL/USDC", "BUY").Add(5)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flowpulse_regime_switches_total")
	assert.Contains(t, string(body), "flowpulse_tx_synthesized_total")
}

package observability

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcmflow/pcmflow/internal/conf"
	"github.com/pcmflow/pcmflow/internal/engine"
)

// stubBackend satisfies engine.Backend without touching any hardware.
// It keeps the handler so tests can drive the render callback.
type stubBackend struct {
	handler engine.StreamHandler
}

func (b *stubBackend) Open(cfg engine.Config, handler engine.StreamHandler) (engine.StreamInfo, error) {
	b.handler = handler
	return engine.StreamInfo{
		DeviceID:         "stub:0",
		DeviceName:       "stub device",
		DeviceSampleRate: cfg.DeviceSampleRate,
		BufferFrames:     cfg.BufferFrames,
	}, nil
}
func (b *stubBackend) Start() error { return nil }
func (b *stubBackend) Stop() error  { return nil }
func (b *stubBackend) Close() error { return nil }

func TestNewMetricsRegistersCollectors(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Engine)

	// Publish something so the vectors materialize.
	m.Engine.AddUnderruns("test", 3)
	m.Engine.UpdateState("test", 2)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["pcmflow_engine_underruns_total"])
	assert.True(t, names["pcmflow_engine_state"])
}

func TestMetricsHandlers(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewEndpointRequiresTelemetry(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	settings := &conf.Settings{}
	_, err = NewEndpoint(settings, m)
	assert.Error(t, err)

	settings.Telemetry.Enabled = true
	settings.Telemetry.Listen = "127.0.0.1:0"
	endpoint, err := NewEndpoint(settings, m)
	require.NoError(t, err)
	assert.Same(t, m, endpoint.GetMetrics())
}

func TestEngineWatcherPublishesSnapshot(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	e := engine.New(&stubBackend{})
	require.NoError(t, e.Initialize(engine.Config{
		SampleRate:   48000,
		Channels:     2,
		BufferFrames: 512,
		EnableOutput: true,
	}))
	defer func() { _ = e.Close() }()

	watcher := NewEngineWatcher(e, m, time.Hour)
	quit := make(chan struct{})
	var wg sync.WaitGroup
	watcher.Start(&wg, quit)

	// Closing quit triggers the final sample before the goroutine exits.
	close(quit)
	wg.Wait()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	var stateSeen bool
	for _, mf := range families {
		if mf.GetName() == "pcmflow_engine_state" {
			stateSeen = true
			require.NotEmpty(t, mf.GetMetric())
			assert.Equal(t, float64(engine.StateIdle), mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, stateSeen)
}

func TestEngineWatcherFaultBurstHook(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	backend := &stubBackend{}
	e := engine.New(backend)
	require.NoError(t, e.Initialize(engine.Config{
		SampleRate:   48000,
		Channels:     2,
		BufferFrames: 512,
		EnableOutput: true,
	}))
	defer func() { _ = e.Close() }()
	require.NoError(t, e.Start())

	var reasons []string
	watcher := NewEngineWatcher(e, m, time.Hour)
	watcher.SetFaultBurstHook(func(reason string) { reasons = append(reasons, reason) })

	// The first period is served by the silence pre-fill, so this
	// interval is clean.
	period := make([]float32, 512*2)
	backend.handler.Render(period)
	watcher.sample()
	require.Empty(t, reasons)

	// Consecutive fault intervals trip the hook exactly once.
	for i := 0; i < faultBurstIntervals; i++ {
		backend.handler.Render(period)
		watcher.sample()
	}
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "consecutive intervals")

	// A clean interval re-arms the hook; a single new fault interval
	// is not yet a burst.
	watcher.sample()
	backend.handler.Render(period)
	watcher.sample()
	assert.Len(t, reasons, 1)
}

// Package metrics provides Prometheus collectors for the audio engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains Prometheus metrics for engine transport
// operations. All values are fed from counter snapshots taken off the
// real-time path; the callbacks themselves never touch Prometheus.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Transport fault counters
	underrunsTotal *prometheus.CounterVec
	overrunsTotal  *prometheus.CounterVec
	slowSendsTotal *prometheus.CounterVec

	// Throughput counters
	framesRenderedTotal *prometheus.CounterVec
	framesCapturedTotal *prometheus.CounterVec

	// Lifecycle and buffer state
	engineStateGauge      *prometheus.GaugeVec
	sendBlockDuration     *prometheus.HistogramVec
	poolFallbacksTotal    *prometheus.CounterVec
	poolRentsTotal        *prometheus.CounterVec
	deviceSampleRateGauge *prometheus.GaugeVec
}

// NewEngineMetrics creates and registers new engine metrics.
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *EngineMetrics) initMetrics() error {
	m.underrunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmflow_engine_underruns_total",
			Help: "Total number of render callbacks that ran short and substituted silence",
		},
		[]string{"engine_id"},
	)

	m.overrunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmflow_engine_overruns_total",
			Help: "Total number of capture callbacks that dropped samples on a full buffer",
		},
		[]string{"engine_id"},
	)

	m.slowSendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmflow_engine_slow_sends_total",
			Help: "Total number of Send calls that reached the sleeping backoff tier",
		},
		[]string{"engine_id"},
	)

	m.framesRenderedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmflow_engine_frames_rendered_total",
			Help: "Total frames delivered to the output device",
		},
		[]string{"engine_id"},
	)

	m.framesCapturedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmflow_engine_frames_captured_total",
			Help: "Total frames received from the input device",
		},
		[]string{"engine_id"},
	)

	m.engineStateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pcmflow_engine_state",
			Help: "Current engine lifecycle state (0=uninitialized, 1=idle, 2=active, 3=error, 4=disposed)",
		},
		[]string{"engine_id"},
	)

	m.sendBlockDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pcmflow_engine_send_block_duration_seconds",
			Help:    "Time Send calls spent blocked on a full output buffer, aggregated per sampling interval",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 0.1ms to ~400ms
		},
		[]string{"engine_id"},
	)

	m.poolFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmflow_engine_pool_fallbacks_total",
			Help: "Total receive buffer requests that exceeded the slot size and fell back to allocation",
		},
		[]string{"engine_id"},
	)

	m.poolRentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmflow_engine_pool_rents_total",
			Help: "Total receive buffers handed out by the pool",
		},
		[]string{"engine_id"},
	)

	m.deviceSampleRateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pcmflow_engine_device_sample_rate_hz",
			Help: "Sample rate granted by the audio device",
		},
		[]string{"engine_id", "device"},
	)

	return nil
}

// Describe implements the Collector interface.
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.underrunsTotal.Describe(ch)
	m.overrunsTotal.Describe(ch)
	m.slowSendsTotal.Describe(ch)
	m.framesRenderedTotal.Describe(ch)
	m.framesCapturedTotal.Describe(ch)
	m.engineStateGauge.Describe(ch)
	m.sendBlockDuration.Describe(ch)
	m.poolFallbacksTotal.Describe(ch)
	m.poolRentsTotal.Describe(ch)
	m.deviceSampleRateGauge.Describe(ch)
}

// Collect implements the Collector interface.
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.underrunsTotal.Collect(ch)
	m.overrunsTotal.Collect(ch)
	m.slowSendsTotal.Collect(ch)
	m.framesRenderedTotal.Collect(ch)
	m.framesCapturedTotal.Collect(ch)
	m.engineStateGauge.Collect(ch)
	m.sendBlockDuration.Collect(ch)
	m.poolFallbacksTotal.Collect(ch)
	m.poolRentsTotal.Collect(ch)
	m.deviceSampleRateGauge.Collect(ch)
}

// AddUnderruns adds newly observed underruns since the last snapshot.
func (m *EngineMetrics) AddUnderruns(engineID string, delta uint64) {
	m.underrunsTotal.WithLabelValues(engineID).Add(float64(delta))
}

// AddOverruns adds newly observed capture drops since the last snapshot.
func (m *EngineMetrics) AddOverruns(engineID string, delta uint64) {
	m.overrunsTotal.WithLabelValues(engineID).Add(float64(delta))
}

// AddSlowSends adds newly observed slow sends since the last snapshot.
func (m *EngineMetrics) AddSlowSends(engineID string, delta uint64) {
	m.slowSendsTotal.WithLabelValues(engineID).Add(float64(delta))
}

// AddFramesRendered adds frames delivered since the last snapshot.
func (m *EngineMetrics) AddFramesRendered(engineID string, delta uint64) {
	m.framesRenderedTotal.WithLabelValues(engineID).Add(float64(delta))
}

// AddFramesCaptured adds frames received since the last snapshot.
func (m *EngineMetrics) AddFramesCaptured(engineID string, delta uint64) {
	m.framesCapturedTotal.WithLabelValues(engineID).Add(float64(delta))
}

// UpdateState publishes the engine lifecycle state.
func (m *EngineMetrics) UpdateState(engineID string, state int) {
	m.engineStateGauge.WithLabelValues(engineID).Set(float64(state))
}

// RecordSendBlockDuration records how long a Send spent blocked.
func (m *EngineMetrics) RecordSendBlockDuration(engineID string, seconds float64) {
	m.sendBlockDuration.WithLabelValues(engineID).Observe(seconds)
}

// AddPoolStats adds receive pool activity since the last snapshot.
func (m *EngineMetrics) AddPoolStats(engineID string, rents, fallbacks uint64) {
	m.poolRentsTotal.WithLabelValues(engineID).Add(float64(rents))
	m.poolFallbacksTotal.WithLabelValues(engineID).Add(float64(fallbacks))
}

// UpdateDeviceSampleRate publishes the granted device rate.
func (m *EngineMetrics) UpdateDeviceSampleRate(engineID, device string, rate int) {
	m.deviceSampleRateGauge.WithLabelValues(engineID, device).Set(float64(rate))
}

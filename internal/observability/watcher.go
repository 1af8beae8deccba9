package observability

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pcmflow/pcmflow/internal/engine"
	"github.com/pcmflow/pcmflow/internal/logging"
)

// DefaultSampleInterval is how often the watcher snapshots engine
// counters into Prometheus.
const DefaultSampleInterval = 5 * time.Second

// faultBurstIntervals is how many consecutive sample intervals with
// transport faults count as a sustained burst.
const faultBurstIntervals = 3

// EngineWatcher periodically snapshots an engine's transport counters
// and publishes them as metrics. It keeps the previous snapshot so
// monotonic engine counters become Prometheus counter increments.
type EngineWatcher struct {
	engine   *engine.Engine
	metrics  *Metrics
	interval time.Duration
	logger   *slog.Logger

	last     engine.Stats
	lastPool engine.BufferPoolStats

	faultStreak int
	onBurst     func(reason string)
}

// NewEngineWatcher creates a watcher for the given engine.
func NewEngineWatcher(e *engine.Engine, m *Metrics, interval time.Duration) *EngineWatcher {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	logger := logging.ForService("observability")
	if logger == nil {
		logger = slog.Default().With("service", "observability")
	}
	return &EngineWatcher{engine: e, metrics: m, interval: interval, logger: logger}
}

// SetFaultBurstHook registers a callback fired once when transport
// faults persist for faultBurstIntervals consecutive intervals. The
// hook runs on the watcher goroutine, never a real-time path, so it
// may be slow (a diagnostics snapshot, for example). A clean interval
// re-arms it. Must be called before Start.
func (w *EngineWatcher) SetFaultBurstHook(hook func(reason string)) {
	w.onBurst = hook
}

// Start samples in the background until quitChan closes. A final sample
// runs at shutdown so the last partial interval is not lost.
func (w *EngineWatcher) Start(wg *sync.WaitGroup, quitChan <-chan struct{}) {
	wg.Go(func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-quitChan:
				w.sample()
				return
			case <-ticker.C:
				w.sample()
			}
		}
	})
}

func (w *EngineWatcher) sample() {
	id := w.engine.ID()
	stats := w.engine.Stats()

	em := w.metrics.Engine
	underruns := delta(stats.Underruns, w.last.Underruns)
	overruns := delta(stats.Overruns, w.last.Overruns)

	// One warning per sample interval at most, however many transport
	// faults occurred inside it.
	if underruns > 0 || overruns > 0 {
		w.logger.Warn("transport faults in last interval",
			"engine_id", id,
			"underruns", underruns,
			"overruns", overruns)
		w.faultStreak++
		if w.faultStreak == faultBurstIntervals && w.onBurst != nil {
			w.onBurst(fmt.Sprintf("engine %s: transport faults in %d consecutive intervals", id, w.faultStreak))
		}
	} else {
		w.faultStreak = 0
	}

	em.AddUnderruns(id, underruns)
	em.AddOverruns(id, overruns)
	em.AddSlowSends(id, delta(stats.SlowSends, w.last.SlowSends))
	if blocked := delta(stats.SendBlockedNanos, w.last.SendBlockedNanos); blocked > 0 {
		em.RecordSendBlockDuration(id, time.Duration(blocked).Seconds())
	}
	em.AddFramesRendered(id, delta(stats.FramesRendered, w.last.FramesRendered))
	em.AddFramesCaptured(id, delta(stats.FramesCaptured, w.last.FramesCaptured))
	em.UpdateState(id, int(stats.State))

	// The pool is recreated on every start, so its counters restart
	// from zero; delta handles the reset.
	if pool, ok := w.engine.PoolStats(); ok {
		em.AddPoolStats(id,
			delta(pool.Rents, w.lastPool.Rents),
			delta(pool.Fallbacks, w.lastPool.Fallbacks))
		w.lastPool = pool
	}

	info := w.engine.StreamInfo()
	if info.DeviceSampleRate > 0 {
		em.UpdateDeviceSampleRate(id, info.DeviceName, info.DeviceSampleRate)
	}

	w.last = stats
}

// delta returns cur-prev, treating a counter reset as a fresh start.
func delta(cur, prev uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

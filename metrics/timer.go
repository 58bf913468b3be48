package metrics

import (
	"context"
	"time"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
)

// defaultMsBuckets are the latency buckets, in milliseconds, of every timer.
var defaultMsBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000, 10000}

// Float64Timer records durations in milliseconds.
type Float64Timer struct {
	measureMs *stats.Float64Measure
	view      *view.View
}

// NewTimerMs creates a Float64Timer that records durations in milliseconds.
func NewTimerMs(name, desc string) *Float64Timer {
	log.Debugf("registering timer: %s - %s", name, desc)
	fMeasure := stats.Float64(name, desc, stats.UnitMilliseconds)
	fView := &view.View{
		Name:        name,
		Measure:     fMeasure,
		Description: desc,
		Aggregation: view.Distribution(defaultMsBuckets...),
	}
	mustRegister(fView)

	return &Float64Timer{
		measureMs: fMeasure,
		view:      fView,
	}
}

// Start starts a stopwatch for the timer.
func (t *Float64Timer) Start(ctx context.Context) *Stopwatch {
	return &Stopwatch{ctx: ctx, start: time.Now(), recorder: t.measureMs}
}

// Stopwatch records one duration of a Float64Timer.
type Stopwatch struct {
	ctx      context.Context
	start    time.Time
	recorder *stats.Float64Measure
}

// Stop records the time elapsed since Start and returns it.
func (sw *Stopwatch) Stop(ctx context.Context) time.Duration {
	duration := time.Since(sw.start)
	stats.Record(ctx, sw.recorder.M(float64(duration)/float64(time.Millisecond)))
	return duration
}

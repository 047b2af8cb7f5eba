// Package profiler - operation timing and metric tracking for the detection pipeline.
package profiler

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MetricTracker tracks statistics for a custom metric.
type MetricTracker struct {
	name   string
	values []float64
	sum    float64
	min    float64
	max    float64
	count  int64
}

// TimeTracker tracks operation timing statistics.
type TimeTracker struct {
	name      string
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// OperationStats is a snapshot of one timed operation.
type OperationStats struct {
	Name  string
	Avg   time.Duration
	Min   time.Duration
	Max   time.Duration
	Count int64
}

// MetricStats is a snapshot of one custom metric.
type MetricStats struct {
	Name  string
	Avg   float64
	Min   float64
	Max   float64
	Last  float64
	Count int64
}

// Stats is a point-in-time snapshot of everything the profiler has recorded.
type Stats struct {
	Uptime     time.Duration
	Operations []OperationStats
	Metrics    []MetricStats
}

// ProfilingOptions configures the profiler.
type ProfilingOptions struct {
	// MaxSamples specifies maximum number of samples kept per series (default: 600)
	MaxSamples int
}

// Profiler records operation durations and numeric metrics. It is safe for concurrent use.
type Profiler struct {
	mu         sync.Mutex
	startTime  time.Time
	maxSamples int

	customMetrics  map[string]*MetricTracker
	operationTimes map[string]*TimeTracker
}

// New creates a profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured Profiler instance
func New(opts ProfilingOptions) *Profiler {
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}

	return &Profiler{
		startTime:      time.Now(),
		maxSamples:     opts.MaxSamples,
		customMetrics:  make(map[string]*MetricTracker),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.RecordOperation(name, time.Since(start))
	}
}

// RecordOperation records the completion time of an operation.
func (p *Profiler) RecordOperation(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.operationTimes[name]
	if !exists {
		tracker = &TimeTracker{
			name:    name,
			minTime: duration,
			maxTime: duration,
		}
		p.operationTimes[name] = tracker
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > p.maxSamples {
		// Remove oldest sample
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.customMetrics[name]
	if !exists {
		tracker = &MetricTracker{
			name: name,
			min:  value,
			max:  value,
		}
		p.customMetrics[name] = tracker
	}

	tracker.values = append(tracker.values, value)
	if len(tracker.values) > p.maxSamples {
		// Remove oldest sample
		tracker.sum -= tracker.values[0]
		tracker.values = tracker.values[1:]
	}

	tracker.sum += value
	tracker.count++

	if value < tracker.min {
		tracker.min = value
	}
	if value > tracker.max {
		tracker.max = value
	}
}

// Stats returns the current statistics, sorted by name. Averages cover the retained window.
func (p *Profiler) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{Uptime: time.Since(p.startTime)}

	for _, tracker := range p.operationTimes {
		if len(tracker.durations) == 0 {
			continue
		}
		stats.Operations = append(stats.Operations, OperationStats{
			Name:  tracker.name,
			Avg:   tracker.totalTime / time.Duration(len(tracker.durations)),
			Min:   tracker.minTime,
			Max:   tracker.maxTime,
			Count: tracker.count,
		})
	}
	sort.Slice(stats.Operations, func(i, j int) bool {
		return stats.Operations[i].Name < stats.Operations[j].Name
	})

	for _, tracker := range p.customMetrics {
		if len(tracker.values) == 0 {
			continue
		}
		stats.Metrics = append(stats.Metrics, MetricStats{
			Name:  tracker.name,
			Avg:   tracker.sum / float64(len(tracker.values)),
			Min:   tracker.min,
			Max:   tracker.max,
			Last:  tracker.values[len(tracker.values)-1],
			Count: tracker.count,
		})
	}
	sort.Slice(stats.Metrics, func(i, j int) bool {
		return stats.Metrics[i].Name < stats.Metrics[j].Name
	})

	return stats
}

// Log emits the current statistics at info level.
func (p *Profiler) Log(logger *zap.Logger) {
	stats := p.Stats()
	logger.Info("profiler report", zap.Duration("uptime", stats.Uptime))
	for _, op := range stats.Operations {
		logger.Info("operation timing",
			zap.String("operation", op.Name),
			zap.Duration("avg", op.Avg),
			zap.Duration("min", op.Min),
			zap.Duration("max", op.Max),
			zap.Int64("count", op.Count),
		)
	}
	for _, m := range stats.Metrics {
		logger.Info("metric",
			zap.String("metric", m.Name),
			zap.Float64("avg", m.Avg),
			zap.Float64("min", m.Min),
			zap.Float64("max", m.Max),
			zap.Float64("last", m.Last),
			zap.Int64("count", m.Count),
		)
	}
}

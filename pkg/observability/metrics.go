package observability

import (
    "context"
    "time"

    metrics "github.com/rcrowley/go-metrics"
    "go.uber.org/zap"
)

// LogMetrics writes every metric of r to the global logger each interval
// until ctx is done. A non-positive interval returns at once.
func LogMetrics(ctx context.Context, r metrics.Registry, interval time.Duration) {
    if interval <= 0 { return }
    t := time.NewTicker(interval)
    defer t.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-t.C:
            DumpMetrics(r)
        }
    }
}

// DumpMetrics logs a snapshot of r at Info level.
func DumpMetrics(r metrics.Registry) {
    r.Each(func(name string, i interface{}) {
        switch m := i.(type) {
        case metrics.Counter:
            zap.L().Info("counter", zap.String("name", name), zap.Int64("count", m.Count()))
        case metrics.Gauge:
            zap.L().Info("gauge", zap.String("name", name), zap.Int64("value", m.Value()))
        case metrics.Meter:
            s := m.Snapshot()
            zap.L().Info("meter", zap.String("name", name), zap.Int64("count", s.Count()),
                zap.Float64("rate1", s.Rate1()), zap.Float64("mean", s.RateMean()))
        case metrics.Histogram:
            s := m.Snapshot()
            ps := s.Percentiles([]float64{0.5, 0.95, 0.99})
            zap.L().Info("histogram", zap.String("name", name), zap.Int64("count", s.Count()),
                zap.Int64("min", s.Min()), zap.Int64("max", s.Max()), zap.Float64("mean", s.Mean()),
                zap.Float64("p50", ps[0]), zap.Float64("p95", ps[1]), zap.Float64("p99", ps[2]))
        }
    })
}

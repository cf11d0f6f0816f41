package protocol

import (
    "fmt"

    metrics "github.com/rcrowley/go-metrics"

    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// Metrics counts the traffic of one channel. A nil *Metrics records nothing.
type Metrics struct {
    r      metrics.Registry
    prefix string

    framesOut metrics.Counter
    framesIn  metrics.Counter
    bytesOut  metrics.Counter
    bytesIn   metrics.Counter
    msgsOut   metrics.Counter
    msgsIn    metrics.Counter
    flushed   metrics.Meter
}

// NewMetrics registers the channel counters of cid in r (a fresh registry when r is nil).
func NewMetrics(r metrics.Registry, cid types.Cid) *Metrics {
    if r == nil { r = metrics.NewRegistry() }
    p := fmt.Sprintf("channel.%d.", cid)
    return &Metrics{
        r:         r,
        prefix:    p,
        framesOut: metrics.GetOrRegisterCounter(p+"frames_out", r),
        framesIn:  metrics.GetOrRegisterCounter(p+"frames_in", r),
        bytesOut:  metrics.GetOrRegisterCounter(p+"data_bytes_out", r),
        bytesIn:   metrics.GetOrRegisterCounter(p+"data_bytes_in", r),
        msgsOut:   metrics.GetOrRegisterCounter(p+"messages_out", r),
        msgsIn:    metrics.GetOrRegisterCounter(p+"messages_in", r),
        flushed:   metrics.GetOrRegisterMeter(p+"flushed", r),
    }
}

// Unregister removes the channel counters from the registry.
func (m *Metrics) Unregister() {
    if m == nil { return }
    for _, n := range []string{"frames_out", "frames_in", "data_bytes_out", "data_bytes_in", "messages_out", "messages_in", "flushed"} {
        m.r.Unregister(m.prefix + n)
    }
}

// FramesOut returns the number of frames written so far.
func (m *Metrics) FramesOut() int64 {
    if m == nil { return 0 }
    return m.framesOut.Count()
}

// BytesIn returns the number of data bytes received so far.
func (m *Metrics) BytesIn() int64 {
    if m == nil { return 0 }
    return m.bytesIn.Count()
}

func (m *Metrics) frameOut(n int) {
    if m != nil { m.framesOut.Inc(int64(n)) }
}

func (m *Metrics) frameIn() {
    if m != nil { m.framesIn.Inc(1) }
}

func (m *Metrics) messageOut() {
    if m != nil { m.msgsOut.Inc(1) }
}

func (m *Metrics) messageIn() {
    if m != nil { m.msgsIn.Inc(1) }
}

func (m *Metrics) dataIn(n int) {
    if m != nil { m.bytesIn.Inc(int64(n)) }
}

func (m *Metrics) flush(n uint64) {
    if m == nil { return }
    m.bytesOut.Inc(int64(n))
    m.flushed.Mark(int64(n))
}

// Package priocq keeps the outbound per-stream queues of one send protocol and
// decides, once per tick, which bytes go on the wire.
package priocq

import (
    "sort"
    "time"

    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol/frame"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// ChunkSize is the largest Data frame payload produced by Grab.
const ChunkSize = 1400

type outgoing struct {
    mid  types.Mid
    sid  types.Sid
    data []byte
    sent int
}

// flow is the FIFO of one stream
type flow struct {
    sid        types.Sid
    prio       types.Prio
    promises   types.Promises
    guaranteed types.Bandwidth
    q          []*outgoing

    allowance uint64 // guaranteed bytes left in the current tick
    floor     uint64 // guaranteed bytes of the current tick
}

// unspent is the fraction of this tick's floor not yet used.
func (f *flow) unspent() float64 {
    if f.floor == 0 { return 0 }
    return float64(f.allowance) / float64(f.floor)
}

func (f *flow) pending() bool { return len(f.q) > 0 }

// Manager is not safe for concurrent use; it belongs to one send protocol.
type Manager struct {
    flows  map[types.Sid]*flow
    order  []*flow // prio ascending, then sid
    queued int
}

func New() *Manager { return &Manager{flows: make(map[types.Sid]*flow)} }

// OpenStream registers sid. Reopening an open sid only updates its parameters.
func (m *Manager) OpenStream(sid types.Sid, prio types.Prio, promises types.Promises, guaranteed types.Bandwidth) {
    if f := m.flows[sid]; f != nil {
        f.prio, f.promises, f.guaranteed = types.ClampPrio(prio), promises, guaranteed
        m.sortOrder()
        return
    }
    f := &flow{sid: sid, prio: types.ClampPrio(prio), promises: promises, guaranteed: guaranteed}
    m.flows[sid] = f
    m.order = append(m.order, f)
    m.sortOrder()
}

func (m *Manager) sortOrder() {
    sort.SliceStable(m.order, func(i, j int) bool {
        if m.order[i].prio != m.order[j].prio { return m.order[i].prio < m.order[j].prio }
        return m.order[i].sid < m.order[j].sid
    })
}

// TryCloseStream forgets sid if nothing is queued for it. It returns false for
// unknown sids and for sids that still hold data.
func (m *Manager) TryCloseStream(sid types.Sid) bool {
    f := m.flows[sid]
    if f == nil || f.pending() { return false }
    delete(m.flows, sid)
    for i, o := range m.order {
        if o == f {
            m.order = append(m.order[:i], m.order[i+1:]...)
            break
        }
    }
    return true
}

// Has reports whether sid is open.
func (m *Manager) Has(sid types.Sid) bool { return m.flows[sid] != nil }

// Add enqueues a message. Messages for unknown sids are dropped.
func (m *Manager) Add(data []byte, mid types.Mid, sid types.Sid) {
    f := m.flows[sid]
    if f == nil {
        zap.L().Warn("dropping message for unknown stream", zap.Uint64("sid", uint64(sid)), zap.Uint64("mid", uint64(mid)))
        return
    }
    f.q = append(f.q, &outgoing{mid: mid, sid: sid, data: data})
    m.queued++
}

// Empty reports whether no stream has queued data.
func (m *Manager) Empty() bool { return m.queued == 0 }

// Len returns the number of queued messages.
func (m *Manager) Len() int { return m.queued }

// Grab selects up to bandwidth*dt data bytes and returns them as frames in
// selection order, together with the number of data bytes selected.
//
// Streams with a guaranteed floor are served first: one chunk each in
// priority order, then repeatedly the stream with the largest unspent share
// of its floor, which splits the budget in proportion to the floors.
// What remains goes one chunk per stream in priority order and then strictly
// by priority, round robin inside one priority class.
func (m *Manager) Grab(bandwidth types.Bandwidth, dt time.Duration) ([]frame.OTFrame, uint64) {
    g := grabber{budget: scale(uint64(bandwidth), dt)}
    for _, f := range m.order {
        f.floor = scale(uint64(f.guaranteed), dt)
        f.allowance = f.floor
    }

    // guaranteed round robin
    for _, f := range m.order {
        if f.pending() && f.allowance > 0 { m.take(&g, f, true) }
    }
    // guaranteed weighted
    for g.budget > 0 {
        var best *flow
        for _, f := range m.order {
            if !f.pending() || f.allowance == 0 { continue }
            if best == nil || f.unspent() > best.unspent() { best = f }
        }
        if best == nil || !m.take(&g, best, true) { break }
    }
    // best-effort round robin
    for _, f := range m.order {
        if f.pending() { m.take(&g, f, false) }
    }
    // strict priority, round robin within a class
    for i := 0; i < len(m.order); {
        j := i
        for j < len(m.order) && m.order[j].prio == m.order[i].prio { j++ }
        class := m.order[i:j]
        for {
            progressed := false
            for _, f := range class {
                if f.pending() && m.take(&g, f, false) { progressed = true }
            }
            if !progressed { break }
        }
        if g.budget == 0 && !m.headOnlyPending() { break }
        i = j
    }
    return g.frames, g.used
}

// headOnlyPending reports whether a zero-length message waits at the front of some queue.
func (m *Manager) headOnlyPending() bool {
    for _, f := range m.order {
        if f.pending() && len(f.q[0].data) == 0 { return true }
    }
    return false
}

type grabber struct {
    budget uint64
    used   uint64
    frames []frame.OTFrame
}

// take schedules one chunk of f's head message. It returns false when nothing
// could be scheduled.
func (m *Manager) take(g *grabber, f *flow, guaranteed bool) bool {
    msg := f.q[0]
    left := uint64(len(msg.data) - msg.sent)
    n := left
    if n > ChunkSize { n = ChunkSize }
    if n > g.budget { n = g.budget }
    if guaranteed && n > f.allowance { n = f.allowance }
    if n == 0 && left > 0 { return false }

    if msg.sent == 0 {
        g.frames = append(g.frames, frame.DataHeader{Mid: msg.mid, Sid: msg.sid, Length: uint64(len(msg.data))})
    }
    if n > 0 {
        g.frames = append(g.frames, frame.Data{Mid: msg.mid, Data: msg.data[msg.sent : msg.sent+int(n)]})
        msg.sent += int(n)
    }
    g.budget -= n
    g.used += n
    if f.allowance >= n { f.allowance -= n } else { f.allowance = 0 }

    if msg.sent == len(msg.data) {
        f.q[0] = nil
        f.q = f.q[1:]
        m.queued--
    }
    return true
}

// scale converts a per-second rate to bytes for dt, saturating on overflow.
func scale(rate uint64, dt time.Duration) uint64 {
    if rate == 0 || dt <= 0 { return 0 }
    secs := uint64(dt / time.Second)
    rem := uint64(dt % time.Second)
    const max = ^uint64(0)
    if secs > 0 && rate > max/secs { return max }
    whole := rate * secs
    var frac uint64
    if rate <= max/uint64(time.Second) {
        frac = rate * rem / uint64(time.Second)
    } else {
        frac = rate / uint64(time.Second) * rem
    }
    if whole > max-frac { return max }
    return whole + frac
}

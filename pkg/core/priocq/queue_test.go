package priocq

import (
    "bytes"
    "math/rand"
    "testing"
    "time"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol/frame"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// bytesPerSid sums Data bytes per stream, resolving mids through the headers.
func bytesPerSid(frames []frame.OTFrame) map[types.Sid]int {
    owner := map[types.Mid]types.Sid{}
    out := map[types.Sid]int{}
    for _, f := range frames {
        switch f := f.(type) {
        case frame.DataHeader:
            owner[f.Mid] = f.Sid
        case frame.Data:
            out[owner[f.Mid]] += len(f.Data)
        }
    }
    return out
}

func TestGuaranteedFloorServedFirst(t *testing.T) {
    const a, b = types.Sid(1), types.Sid(2)
    m := New()
    m.OpenStream(a, 7, types.PromiseOrdered, 0)
    m.OpenStream(b, 0, types.PromiseOrdered, 1000)
    mid := types.Mid(0)
    for i := 0; i < 10; i++ {
        m.Add(make([]byte, 100), mid, a); mid++
        m.Add(make([]byte, 100), mid, b); mid++
    }

    frames, used := m.Grab(500, time.Second)
    if used != 500 { t.Fatalf("used = %d, want 500", used) }
    per := bytesPerSid(frames)
    if per[b] != 500 || per[a] != 0 { t.Fatalf("split = %v, want all 500 bytes on stream b", per) }

    // the next tick serves the rest of b's floor, then a gets the remainder
    frames, used = m.Grab(1000, time.Second)
    per = bytesPerSid(frames)
    if used != 1000 || per[b] != 500 || per[a] != 500 {
        t.Fatalf("second tick: used=%d split=%v", used, per)
    }
}

func TestTryCloseStream(t *testing.T) {
    m := New()
    if m.TryCloseStream(3) { t.Fatalf("closing a never-opened sid must fail") }
    m.OpenStream(3, 1, 0, 0)
    m.Add([]byte("hello"), 0, 3)
    if m.TryCloseStream(3) { t.Fatalf("closing with queued data must fail") }
    if _, used := m.Grab(1<<20, time.Second); used != 5 { t.Fatalf("used = %d", used) }
    if !m.TryCloseStream(3) { t.Fatalf("close after drain must succeed") }
    if m.TryCloseStream(3) { t.Fatalf("closing twice must fail") }
    if m.Has(3) { t.Fatalf("sid still registered") }
}

func TestLargeMessageIsChunked(t *testing.T) {
    m := New()
    m.OpenStream(1, 0, 0, 0)
    payload := bytes.Repeat([]byte("x"), 3*ChunkSize+17)
    m.Add(payload, 42, 1)
    frames, used := m.Grab(1<<30, time.Second)
    if used != uint64(len(payload)) { t.Fatalf("used = %d", used) }
    if len(frames) != 5 { t.Fatalf("frames = %d, want header + 4 chunks", len(frames)) }
    if h, ok := frames[0].(frame.DataHeader); !ok || h.Length != uint64(len(payload)) || h.Mid != 42 {
        t.Fatalf("bad header %#v", frames[0])
    }
    var got []byte
    for _, f := range frames[1:] { got = append(got, f.(frame.Data).Data...) }
    if !bytes.Equal(got, payload) { t.Fatalf("payload mismatch") }
    if !m.Empty() { t.Fatalf("manager not empty") }
}

func TestBudgetSplitsChunksAcrossTicks(t *testing.T) {
    m := New()
    m.OpenStream(1, 0, 0, 0)
    m.Add(make([]byte, 250), 0, 1)
    _, used := m.Grab(100, time.Second)
    if used != 100 { t.Fatalf("tick 1 used %d", used) }
    frames, used := m.Grab(100, time.Second)
    if used != 100 { t.Fatalf("tick 2 used %d", used) }
    for _, f := range frames {
        if _, ok := f.(frame.DataHeader); ok { t.Fatalf("header repeated") }
    }
    _, used = m.Grab(100, time.Second)
    if used != 50 || !m.Empty() { t.Fatalf("tick 3 used %d, empty=%v", used, m.Empty()) }
}

func TestZeroLengthMessage(t *testing.T) {
    m := New()
    m.OpenStream(1, 0, 0, 0)
    m.Add(nil, 0, 1)
    frames, used := m.Grab(0, time.Second)
    if used != 0 || len(frames) != 1 { t.Fatalf("frames=%d used=%d", len(frames), used) }
    if !m.Empty() { t.Fatalf("not drained") }
}

func TestUnknownStreamIsDropped(t *testing.T) {
    m := New()
    m.Add([]byte("x"), 0, 99)
    if !m.Empty() { t.Fatalf("message for unknown sid was queued") }
}

// Randomized simulation: every payload comes out exactly once and in FIFO
// order per stream; within a tick the first item of every pending stream is
// selected before any second item, and both the first round and the rest
// follow priority order.
func TestGrabSimulation(t *testing.T) {
    for seed := int64(1); seed <= 25; seed++ {
        rng := rand.New(rand.NewSource(seed))
        m := New()
        nstreams := 2 + rng.Intn(6)
        prio := map[types.Sid]types.Prio{}
        for s := 0; s < nstreams; s++ {
            sid := types.Sid(s)
            prio[sid] = types.Prio(rng.Intn(int(types.HighestPrio) + 1))
            m.OpenStream(sid, prio[sid], 0, 0)
        }
        want := map[types.Mid][]byte{}
        order := map[types.Sid][]types.Mid{}
        mid := types.Mid(0)
        for i := 0; i < 40+rng.Intn(80); i++ {
            sid := types.Sid(rng.Intn(nstreams))
            p := make([]byte, 1+rng.Intn(3000))
            rng.Read(p)
            m.Add(p, mid, sid)
            want[mid] = p
            order[sid] = append(order[sid], mid)
            mid++
        }

        got := map[types.Mid][]byte{}
        owner := map[types.Mid]types.Sid{}
        completed := map[types.Sid][]types.Mid{}
        budget := types.Bandwidth(nstreams*ChunkSize + rng.Intn(8000))
        for tick := 0; !m.Empty(); tick++ {
            if tick > 10000 { t.Fatalf("seed %d: not draining", seed) }
            pendingAtStart := 0
            for _, f := range m.order { if f.pending() { pendingAtStart++ } }

            frames, _ := m.Grab(budget, time.Second)
            var seq []types.Sid
            seen := map[types.Sid]bool{}
            for _, f := range frames {
                switch f := f.(type) {
                case frame.DataHeader:
                    owner[f.Mid] = f.Sid
                case frame.Data:
                    sid := owner[f.Mid]
                    got[f.Mid] = append(got[f.Mid], f.Data...)
                    if len(got[f.Mid]) == len(want[f.Mid]) { completed[sid] = append(completed[sid], f.Mid) }
                    seq = append(seq, sid)
                }
            }
            if len(seq) < pendingAtStart { t.Fatalf("seed %d: %d items for %d pending streams", seed, len(seq), pendingAtStart) }
            for i, sid := range seq[:pendingAtStart] {
                if seen[sid] { t.Fatalf("seed %d: stream %d got a second item before others got one", seed, sid) }
                seen[sid] = true
                if i > 0 && prio[seq[i-1]] > prio[sid] { t.Fatalf("seed %d: first round out of priority order", seed) }
            }
            rest := seq[pendingAtStart:]
            for i := 1; i < len(rest); i++ {
                if prio[rest[i-1]] > prio[rest[i]] { t.Fatalf("seed %d: lower prio drained before higher", seed) }
            }
        }
        for id, p := range want {
            if !bytes.Equal(got[id], p) { t.Fatalf("seed %d: mid %d corrupted (%d of %d bytes)", seed, id, len(got[id]), len(p)) }
        }
        for sid, mids := range order {
            if len(completed[sid]) != len(mids) { t.Fatalf("seed %d: stream %d completed %d of %d", seed, sid, len(completed[sid]), len(mids)) }
            for i := range mids {
                if completed[sid][i] != mids[i] { t.Fatalf("seed %d: stream %d out of order", seed, sid) }
            }
        }
    }
}

// Long-run check of the floor weighting: with the global budget below the sum
// of floors, each stream's share stays close to its floor ratio.
func TestWeightedShareTracksFloors(t *testing.T) {
    m := New()
    floors := map[types.Sid]types.Bandwidth{1: 1000, 2: 3000}
    for sid, bw := range floors { m.OpenStream(sid, 0, 0, bw) }
    mid := types.Mid(0)
    for i := 0; i < 400; i++ {
        for sid := range floors { m.Add(make([]byte, 100), mid, sid); mid++ }
    }
    total := map[types.Sid]int{}
    for tick := 0; tick < 20; tick++ {
        frames, _ := m.Grab(2000, time.Second)
        for sid, n := range bytesPerSid(frames) { total[sid] += n }
    }
    if total[1] == 0 || total[2] == 0 { t.Fatalf("a stream starved: %v", total) }
    ratio := float64(total[2]) / float64(total[1])
    if ratio < 2.0 || ratio > 4.5 { t.Fatalf("share ratio %.2f far from 3: %v", ratio, total) }
}

func TestScaleSaturates(t *testing.T) {
    if scale(1000, 1500*time.Millisecond) != 1500 { t.Fatalf("scale 1.5s") }
    if scale(^uint64(0), time.Hour) != ^uint64(0) { t.Fatalf("no saturation") }
    if scale(0, time.Second) != 0 || scale(10, 0) != 0 { t.Fatalf("zero cases") }
}

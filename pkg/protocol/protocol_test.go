package protocol

import (
    "bytes"
    "errors"
    "io"
    "testing"
    "time"

    metrics "github.com/rcrowley/go-metrics"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol/frame"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// pipe is a buffered in-memory duplex; with split set every byte is delivered
// as its own chunk.
type pipe struct {
    ch    chan []byte
    split bool
}

func newPipe(split bool) *pipe { return &pipe{ch: make(chan []byte, 1<<16), split: split} }

func (p *pipe) SendBytes(b []byte) error {
    c := append([]byte(nil), b...)
    if !p.split { p.ch <- c; return nil }
    for _, x := range c { p.ch <- []byte{x} }
    return nil
}

func (p *pipe) RecvBytes() ([]byte, error) {
    b, ok := <-p.ch
    if !ok { return nil, io.EOF }
    return b, nil
}

func mustRecv(t *testing.T, r *RecvProtocol) Event {
    t.Helper()
    ev, err := r.Recv()
    if err != nil { t.Fatalf("recv: %v", err) }
    return ev
}

func roundtrip(t *testing.T, split bool) {
    p := newPipe(split)
    reg := metrics.NewRegistry()
    s := NewSend(p, NewMetrics(reg, 1))
    r := NewRecv(p, NewMetrics(reg, 2))

    open := OpenStream{Sid: 10, Prio: 3, Promises: types.PromiseOrdered, GuaranteedBandwidth: 0}
    if err := s.Send(open); err != nil { t.Fatalf("open: %v", err) }
    payloads := [][]byte{[]byte("hello"), bytes.Repeat([]byte{7}, 3000), {}}
    for _, pl := range payloads {
        if err := s.Send(Message{Sid: 10, Data: pl}); err != nil { t.Fatalf("send: %v", err) }
    }
    n, err := s.Flush(1_000_000, time.Second)
    if err != nil { t.Fatalf("flush: %v", err) }
    if n != 3005 { t.Fatalf("flushed %d bytes", n) }

    if ev := mustRecv(t, r); ev != open { t.Fatalf("got %#v, want %#v", ev, open) }
    for i, pl := range payloads {
        ev := mustRecv(t, r)
        m, ok := ev.(Message)
        if !ok || m.Sid != 10 || !bytes.Equal(m.Data, pl) { t.Fatalf("message %d: %#v", i, ev) }
    }
    if got := reg.Get("channel.2.messages_in").(metrics.Counter).Count(); got != 3 {
        t.Fatalf("messages_in = %d", got)
    }
}

func TestSendRecvRoundtrip(t *testing.T) { roundtrip(t, false) }

func TestSendRecvByteAtATime(t *testing.T) { roundtrip(t, true) }

func TestDataBeforeHeaderIsViolation(t *testing.T) {
    p := newPipe(false)
    _ = p.SendBytes(frame.AppendOT(nil, frame.Data{Mid: 5, Data: []byte("orphan")}))
    r := NewRecv(p, nil)
    if _, err := r.Recv(); !errors.Is(err, ErrViolated) { t.Fatalf("expected ErrViolated, got %v", err) }
}

func TestOverlongDataIsViolation(t *testing.T) {
    p := newPipe(false)
    b := frame.AppendOT(nil, frame.DataHeader{Mid: 1, Sid: 1, Length: 2})
    b = frame.AppendOT(b, frame.Data{Mid: 1, Data: []byte("abc")})
    _ = p.SendBytes(b)
    if _, err := NewRecv(p, nil).Recv(); !errors.Is(err, ErrViolated) { t.Fatalf("expected ErrViolated, got %v", err) }
}

func TestGarbageIsViolation(t *testing.T) {
    p := newPipe(false)
    _ = p.SendBytes([]byte{0xee, 1, 2, 3})
    if _, err := NewRecv(p, nil).Recv(); !errors.Is(err, ErrViolated) { t.Fatalf("expected ErrViolated, got %v", err) }
}

func TestClosedSink(t *testing.T) {
    p := newPipe(false)
    close(p.ch)
    if _, err := NewRecv(p, nil).Recv(); !errors.Is(err, ErrClosed) { t.Fatalf("expected ErrClosed, got %v", err) }
}

func TestCloseWaitsForQueuedData(t *testing.T) {
    p := newPipe(false)
    s := NewSend(p, nil)
    r := NewRecv(p, nil)
    _ = s.Send(OpenStream{Sid: 1})
    _ = s.Send(Message{Sid: 1, Data: bytes.Repeat([]byte("z"), 500)})
    if err := s.Send(CloseStream{Sid: 1}); err != nil { t.Fatalf("close: %v", err) }
    if err := s.Send(Shutdown{}); err != nil { t.Fatalf("shutdown: %v", err) }
    if s.Idle() || s.ShutdownSent() { t.Fatalf("close and shutdown must be deferred") }

    // a small budget leaves data behind, so nothing may be closed yet
    if _, err := s.Flush(200, time.Second); err != nil { t.Fatalf("flush: %v", err) }
    if s.ShutdownSent() { t.Fatalf("shutdown sent with data queued") }
    if _, err := s.Flush(1000, time.Second); err != nil { t.Fatalf("flush: %v", err) }
    if !s.ShutdownSent() || !s.Idle() { t.Fatalf("shutdown not sent after drain") }

    if _, ok := mustRecv(t, r).(OpenStream); !ok { t.Fatalf("expected open") }
    if m, ok := mustRecv(t, r).(Message); !ok || len(m.Data) != 500 { t.Fatalf("expected full message") }
    if c, ok := mustRecv(t, r).(CloseStream); !ok || c.Sid != 1 { t.Fatalf("expected close") }
    if _, ok := mustRecv(t, r).(Shutdown); !ok { t.Fatalf("expected shutdown") }

    if err := s.Send(Message{Sid: 1, Data: []byte("late")}); !errors.Is(err, ErrClosed) {
        t.Fatalf("send after shutdown: %v", err)
    }
}

func TestImmediateCloseAndUnknownClose(t *testing.T) {
    p := newPipe(false)
    s := NewSend(p, nil)
    r := NewRecv(p, nil)
    _ = s.Send(OpenStream{Sid: 4})
    _ = s.Send(CloseStream{Sid: 4})
    _ = s.Send(CloseStream{Sid: 99})
    if !s.Idle() { t.Fatalf("unknown close must not be deferred") }
    mustRecv(t, r)
    if c, ok := mustRecv(t, r).(CloseStream); !ok || c.Sid != 4 { t.Fatalf("expected close of 4") }
}

func TestNotifyFromRecvRegistersRemoteStreams(t *testing.T) {
    p := newPipe(false)
    s := NewSend(p, nil)
    r := NewRecv(p, nil)
    s.NotifyFromRecv(OpenStream{Sid: types.StreamIDOffset2, Prio: 1})
    _ = s.Send(Message{Sid: types.StreamIDOffset2, Data: []byte("answer")})
    if n, _ := s.Flush(1<<20, time.Second); n != 6 { t.Fatalf("flushed %d", n) }
    if m, ok := mustRecv(t, r).(Message); !ok || string(m.Data) != "answer" { t.Fatalf("got %#v", m) }

    _ = s.Send(Message{Sid: types.StreamIDOffset2, Data: []byte("more")})
    s.NotifyFromRecv(CloseStream{Sid: types.StreamIDOffset2})
    if s.Idle() { t.Fatalf("remote close must wait for queued data") }
    _, _ = s.Flush(1<<20, time.Second)
    if !s.Idle() { t.Fatalf("remote close not completed after flush") }
}

func TestRecvInitKeepsTrailingBytes(t *testing.T) {
    p := newPipe(false)
    b := frame.AppendInit(nil, frame.Init{Pid: types.NewPid()})
    b = frame.AppendOT(b, frame.OpenStream{Sid: 3, Prio: 200})
    _ = p.SendBytes(b)
    r := NewRecv(p, nil)
    if _, err := r.RecvInit(); err != nil { t.Fatalf("init: %v", err) }
    ev := mustRecv(t, r)
    if o, ok := ev.(OpenStream); !ok || o.Sid != 3 || o.Prio != types.HighestPrio {
        t.Fatalf("got %#v", ev)
    }
}

func TestRecvInitLimit(t *testing.T) {
    p := newPipe(false)
    b := frame.AppendInit(nil, frame.Raw{Data: make([]byte, 500)})
    _ = p.SendBytes(b[:120])
    if _, err := NewRecv(p, nil).RecvInit(); !errors.Is(err, ErrViolated) {
        t.Fatalf("expected ErrViolated, got %v", err)
    }
}

func TestMessageForUnopenedStreamDropped(t *testing.T) {
    p := newPipe(false)
    reg := metrics.NewRegistry()
    s := NewSend(p, NewMetrics(reg, 1))
    if err := s.Send(Message{Sid: 42, Data: []byte("nobody")}); err != nil { t.Fatalf("send: %v", err) }
    if !s.Idle() { t.Fatalf("message for an unopened stream was queued") }

    _ = s.Send(OpenStream{Sid: 1})
    _ = s.Send(Message{Sid: 1, Data: []byte("first")})
    if _, err := s.Flush(1_000_000, time.Second); err != nil { t.Fatalf("flush: %v", err) }
    if got := reg.Get("channel.1.messages_out").(metrics.Counter).Count(); got != 1 {
        t.Fatalf("messages_out = %d", got)
    }

    var raw []byte
    for len(p.ch) > 0 { raw = append(raw, <-p.ch...) }
    var headers []frame.DataHeader
    for len(raw) > 0 {
        f, n, err := frame.DecodeOT(raw)
        if err != nil { t.Fatalf("decode: %v", err) }
        raw = raw[n:]
        if h, ok := f.(frame.DataHeader); ok { headers = append(headers, h) }
    }
    if len(headers) != 1 || headers[0].Sid != 1 || headers[0].Mid != 0 {
        t.Fatalf("data headers %+v", headers)
    }
}

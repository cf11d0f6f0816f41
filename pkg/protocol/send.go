package protocol

import (
    "fmt"
    "time"

    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/core/priocq"
    "github.com/felicpei/wasm-vogame-test/pkg/protocol/frame"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// SendProtocol is the outgoing half of a channel. It is not safe for
// concurrent use.
type SendProtocol struct {
    drain   Drain
    buf     []byte
    store   *priocq.Manager
    nextMid types.Mid

    closing         []types.Sid // local closes waiting for their queue to drain
    notifyClosing   []types.Sid // remote closes waiting for their queue to drain
    pendingShutdown bool
    shutdownSent    bool

    metrics *Metrics
}

func NewSend(d Drain, m *Metrics) *SendProtocol {
    return &SendProtocol{drain: d, store: priocq.New(), metrics: m}
}

// Supported returns the promises this protocol honours.
func (s *SendProtocol) Supported() types.Promises { return supportedPromises }

// SendInit writes one handshake frame.
func (s *SendProtocol) SendInit(f frame.InitFrame) error {
    s.buf = frame.AppendInit(s.buf[:0], f)
    return s.write(1)
}

// NotifyFromRecv mirrors a stream event learned from the incoming half.
func (s *SendProtocol) NotifyFromRecv(ev Event) {
    switch ev := ev.(type) {
    case OpenStream:
        s.store.OpenStream(ev.Sid, ev.Prio, ev.Promises, ev.GuaranteedBandwidth)
    case CloseStream:
        if !s.store.TryCloseStream(ev.Sid) && s.store.Has(ev.Sid) {
            s.notifyClosing = append(s.notifyClosing, ev.Sid)
        }
    }
}

// Send registers ev. Stream opens are written at once, messages wait for
// Flush, and closes or shutdown are written as soon as nothing they would cut
// off is still queued.
func (s *SendProtocol) Send(ev Event) error {
    if s.shutdownSent { return fmt.Errorf("%w: shutdown already sent", ErrClosed) }
    switch ev := ev.(type) {
    case OpenStream:
        s.store.OpenStream(ev.Sid, ev.Prio, ev.Promises, ev.GuaranteedBandwidth)
        s.buf = frame.AppendOT(s.buf[:0], frame.OpenStream{
            Sid: ev.Sid, Prio: ev.Prio, Promises: ev.Promises, GuaranteedBandwidth: ev.GuaranteedBandwidth,
        })
        return s.write(1)
    case CloseStream:
        if s.store.TryCloseStream(ev.Sid) {
            s.buf = frame.AppendOT(s.buf[:0], frame.CloseStream{Sid: ev.Sid})
            return s.write(1)
        }
        if s.store.Has(ev.Sid) {
            s.closing = append(s.closing, ev.Sid)
        } else {
            zap.L().Debug("close of unknown stream ignored", zap.Uint64("sid", uint64(ev.Sid)))
        }
        return nil
    case Shutdown:
        if s.store.Empty() {
            s.buf = frame.AppendOT(s.buf[:0], frame.Shutdown{})
            s.shutdownSent = true
            return s.write(1)
        }
        s.pendingShutdown = true
        return nil
    case Message:
        if !s.store.Has(ev.Sid) {
            zap.L().Debug("message for unopened stream dropped", zap.Uint64("sid", uint64(ev.Sid)))
            return nil
        }
        s.store.Add(ev.Data, s.nextMid, ev.Sid)
        s.nextMid++
        s.metrics.messageOut()
        return nil
    default:
        return fmt.Errorf("protocol: unknown event %T", ev)
    }
}

// Flush writes up to bandwidth*dt data bytes and then every close or
// shutdown that became safe. It returns the data bytes written.
func (s *SendProtocol) Flush(bandwidth types.Bandwidth, dt time.Duration) (uint64, error) {
    frames, used := s.store.Grab(bandwidth, dt)
    s.buf = s.buf[:0]
    for _, f := range frames { s.buf = frame.AppendOT(s.buf, f) }
    n := len(frames)

    keep := s.closing[:0]
    for _, sid := range s.closing {
        switch {
        case s.store.TryCloseStream(sid):
            s.buf = frame.AppendOT(s.buf, frame.CloseStream{Sid: sid})
            n++
        case s.store.Has(sid):
            keep = append(keep, sid)
        }
    }
    s.closing = keep

    keep = s.notifyClosing[:0]
    for _, sid := range s.notifyClosing {
        if !s.store.TryCloseStream(sid) && s.store.Has(sid) { keep = append(keep, sid) }
    }
    s.notifyClosing = keep

    if s.pendingShutdown && s.store.Empty() {
        s.buf = frame.AppendOT(s.buf, frame.Shutdown{})
        s.pendingShutdown = false
        s.shutdownSent = true
        n++
    }

    if n == 0 { return 0, nil }
    if err := s.write(n); err != nil { return 0, err }
    s.metrics.flush(used)
    return used, nil
}

// ShutdownSent reports whether the Shutdown frame went out.
func (s *SendProtocol) ShutdownSent() bool { return s.shutdownSent }

// Backlog reports whether message data is still queued.
func (s *SendProtocol) Backlog() bool { return !s.store.Empty() }

// Idle reports whether nothing is queued or deferred.
func (s *SendProtocol) Idle() bool {
    return s.store.Empty() && len(s.closing) == 0 && len(s.notifyClosing) == 0 && !s.pendingShutdown
}

func (s *SendProtocol) write(frames int) error {
    if len(s.buf) == 0 { return nil }
    if err := s.drain.SendBytes(s.buf); err != nil {
        return fmt.Errorf("%w: %v", ErrClosed, err)
    }
    s.metrics.frameOut(frames)
    return nil
}

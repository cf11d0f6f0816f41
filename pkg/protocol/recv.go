package protocol

import (
    "errors"
    "fmt"

    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol/frame"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// maxInitBuffer is how many bytes may pile up without forming a handshake frame.
const maxInitBuffer = 100

// preallocLimit caps the capacity reserved up front for an announced message.
const preallocLimit = 1 << 20

type incoming struct {
    sid    types.Sid
    length uint64
    data   []byte
}

// RecvProtocol is the incoming half of a channel. It is not safe for
// concurrent use.
type RecvProtocol struct {
    sink     Sink
    buf      []byte
    incoming map[types.Mid]*incoming
    metrics  *Metrics
}

func NewRecv(s Sink, m *Metrics) *RecvProtocol {
    return &RecvProtocol{sink: s, incoming: make(map[types.Mid]*incoming), metrics: m}
}

// RecvInit reads the next handshake frame. Bytes following it stay buffered
// for Recv.
func (r *RecvProtocol) RecvInit() (frame.InitFrame, error) {
    for {
        f, n, err := frame.DecodeInit(r.buf)
        switch {
        case err == nil:
            r.buf = r.buf[n:]
            r.metrics.frameIn()
            return f, nil
        case !errors.Is(err, frame.ErrIncomplete):
            return nil, fmt.Errorf("%w: %v", ErrViolated, err)
        case len(r.buf) >= maxInitBuffer:
            return nil, fmt.Errorf("%w: %d bytes without a handshake frame", ErrViolated, len(r.buf))
        }
        if err := r.fill(); err != nil { return nil, err }
    }
}

// Recv returns the next stream event. Any error is final for the channel.
func (r *RecvProtocol) Recv() (Event, error) {
    for {
        for {
            f, n, err := frame.DecodeOT(r.buf)
            if errors.Is(err, frame.ErrIncomplete) { break }
            if err != nil { return nil, fmt.Errorf("%w: %v", ErrViolated, err) }
            r.buf = r.buf[n:]
            r.metrics.frameIn()
            ev, err := r.handle(f)
            if err != nil { return nil, err }
            if ev != nil { return ev, nil }
        }
        if err := r.fill(); err != nil { return nil, err }
    }
}

func (r *RecvProtocol) handle(f frame.OTFrame) (Event, error) {
    switch f := f.(type) {
    case frame.Shutdown:
        return Shutdown{}, nil
    case frame.OpenStream:
        return OpenStream{
            Sid: f.Sid, Prio: types.ClampPrio(f.Prio), Promises: f.Promises, GuaranteedBandwidth: f.GuaranteedBandwidth,
        }, nil
    case frame.CloseStream:
        return CloseStream{Sid: f.Sid}, nil
    case frame.DataHeader:
        if _, dup := r.incoming[f.Mid]; dup {
            return nil, fmt.Errorf("%w: duplicate header for mid %d", ErrViolated, f.Mid)
        }
        if f.Length == 0 {
            r.metrics.messageIn()
            return Message{Sid: f.Sid, Data: []byte{}}, nil
        }
        c := f.Length
        if c > preallocLimit { c = preallocLimit }
        r.incoming[f.Mid] = &incoming{sid: f.Sid, length: f.Length, data: make([]byte, 0, c)}
        return nil, nil
    case frame.Data:
        m := r.incoming[f.Mid]
        if m == nil {
            zap.L().Warn("data frame before its header", zap.Uint64("mid", uint64(f.Mid)))
            return nil, fmt.Errorf("%w: data for unknown mid %d", ErrViolated, f.Mid)
        }
        if uint64(len(m.data))+uint64(len(f.Data)) > m.length {
            return nil, fmt.Errorf("%w: mid %d exceeds announced length %d", ErrViolated, f.Mid, m.length)
        }
        m.data = append(m.data, f.Data...)
        r.metrics.dataIn(len(f.Data))
        if uint64(len(m.data)) == m.length {
            delete(r.incoming, f.Mid)
            r.metrics.messageIn()
            return Message{Sid: m.sid, Data: m.data}, nil
        }
        return nil, nil
    default:
        return nil, fmt.Errorf("%w: unexpected frame %T", ErrViolated, f)
    }
}

func (r *RecvProtocol) fill() error {
    chunk, err := r.sink.RecvBytes()
    if err != nil { return fmt.Errorf("%w: %v", ErrClosed, err) }
    r.buf = append(r.buf, chunk...)
    return nil
}

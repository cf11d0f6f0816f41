package participant

import (
    "context"
    "errors"
    "sync/atomic"

    "github.com/felicpei/wasm-vogame-test/pkg/message"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// Stream is an ordered message lane to the remote. Send never blocks; the
// participant drains it according to the stream's priority and guaranteed
// bandwidth.
type Stream struct {
    p          *Participant
    sid        types.Sid
    prio       types.Prio
    promises   types.Promises
    guaranteed types.Bandwidth

    inbox  *queue[[]byte]
    closed atomic.Bool
}

func newStream(p *Participant, sid types.Sid, prio types.Prio, promises types.Promises, guaranteed types.Bandwidth) *Stream {
    return &Stream{p: p, sid: sid, prio: prio, promises: promises, guaranteed: guaranteed, inbox: newQueue[[]byte]()}
}

func (s *Stream) Sid() types.Sid                       { return s.sid }
func (s *Stream) Prio() types.Prio                     { return s.prio }
func (s *Stream) Promises() types.Promises             { return s.promises }
func (s *Stream) GuaranteedBandwidth() types.Bandwidth { return s.guaranteed }

// Send queues data. The slice may be reused once Send returns.
func (s *Stream) Send(data []byte) error {
    m, err := message.Pack(data, s.promises)
    if err != nil { return err }
    wire := m.Wire()
    if !m.Compressed() { wire = append(make([]byte, 0, len(wire)), wire...) }
    return s.send(wire)
}

// SendValue encodes v with the participant's codec and queues it.
func (s *Stream) SendValue(v any) error {
    m, err := message.Serialize(s.p.cfg.Codec, v, s.promises)
    if err != nil { return err }
    return s.send(m.Wire())
}

func (s *Stream) send(wire []byte) error {
    if s.closed.Load() { return ErrStreamClosed }
    if s.p.State() != StateActive { return ErrParticipantClosed }
    if !s.p.ops.push(sendOp{sid: s.sid, data: wire}) { return ErrParticipantClosed }
    return nil
}

// Recv returns the next message. Messages that arrived before the stream
// closed are still delivered; after them Recv returns ErrStreamClosed.
func (s *Stream) Recv(ctx context.Context) ([]byte, error) {
    m, err := s.recv(ctx)
    if err != nil { return nil, err }
    return m.Unpack()
}

// RecvValue receives the next message and decodes it into v.
func (s *Stream) RecvValue(ctx context.Context, v any) error {
    m, err := s.recv(ctx)
    if err != nil { return err }
    return m.Deserialize(s.p.cfg.Codec, v)
}

func (s *Stream) recv(ctx context.Context) (message.Message, error) {
    b, err := s.inbox.pop(ctx)
    if errors.Is(err, errQueueClosed) { return message.Message{}, ErrStreamClosed }
    if err != nil { return message.Message{}, err }
    return message.FromWire(b, s.promises), nil
}

// Close closes the stream locally. Queued outgoing messages are still
// delivered before the remote learns about the close.
func (s *Stream) Close() error {
    if !s.closed.CompareAndSwap(false, true) { return nil }
    s.inbox.close()
    s.p.ops.push(closeOp{sid: s.sid})
    return nil
}

// shut marks the stream closed from the run loop.
func (s *Stream) shut() {
    s.closed.Store(true)
    s.inbox.close()
}

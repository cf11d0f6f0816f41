package participant

import (
    "time"

    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// op is work for the run loop. abort runs instead of apply for ops still
// queued when the participant closed.
type op interface {
    apply(p *Participant)
    abort()
}

type openResult struct {
    st  *Stream
    err error
}

type openOp struct {
    prio       types.Prio
    promises   types.Promises
    guaranteed types.Bandwidth
    reply      chan openResult
}

func (o openOp) apply(p *Participant) {
    if p.State() != StateActive {
        o.reply <- openResult{err: ErrParticipantClosed}
        return
    }
    ch := p.leastLoaded()
    if extra := o.promises &^ ch.send.Supported(); extra != 0 {
        o.reply <- openResult{err: ErrUnsupportedPromises}
        return
    }
    sid := p.nextSid
    p.nextSid++
    prio := types.ClampPrio(o.prio)
    ev := protocol.OpenStream{Sid: sid, Prio: prio, Promises: o.promises, GuaranteedBandwidth: o.guaranteed}
    if err := ch.send.Send(ev); err != nil {
        p.dropChannel(ch, err)
        o.reply <- openResult{err: ErrParticipantClosed}
        return
    }
    st := newStream(p, sid, prio, o.promises, o.guaranteed)
    ch.streams++
    p.streams[sid] = &binding{st: st, ch: ch}
    o.reply <- openResult{st: st}
}

func (o openOp) abort() { o.reply <- openResult{err: ErrParticipantClosed} }

type sendOp struct {
    sid  types.Sid
    data []byte
}

func (o sendOp) apply(p *Participant) {
    b := p.streams[o.sid]
    if b == nil { return }
    if b.ch.send.ShutdownSent() {
        zap.L().Debug("send after shutdown dropped", zap.Stringer("pid", p.remote), zap.Uint64("sid", uint64(o.sid)))
        return
    }
    if err := b.ch.send.Send(protocol.Message{Sid: o.sid, Data: o.data}); err != nil {
        p.dropChannel(b.ch, err)
    }
}

func (sendOp) abort() {}

type closeOp struct{ sid types.Sid }

func (o closeOp) apply(p *Participant) {
    b := p.unbind(o.sid)
    if b == nil || b.ch.send.ShutdownSent() { return }
    if err := b.ch.send.Send(protocol.CloseStream{Sid: o.sid}); err != nil {
        p.dropChannel(b.ch, err)
    }
}

func (closeOp) abort() {}

type addOp struct{ ch *Channel }

func (o addOp) apply(p *Participant) {
    if p.State() != StateActive {
        _ = o.ch.Close()
        return
    }
    zap.L().Debug("channel merged", zap.Stringer("pid", p.remote), zap.Uint64("cid", uint64(o.ch.cid)))
    p.attach(o.ch)
}

func (o addOp) abort() { _ = o.ch.Close() }

type disconnectOp struct {
    timeout time.Duration
    reply   chan error
}

func (o disconnectOp) apply(p *Participant) {
    switch p.State() {
    case StateClosed:
        o.reply <- nil
        return
    case StateDraining:
        p.waiters = append(p.waiters, o.reply)
        return
    }
    p.state.Store(int32(StateDraining))
    p.waiters = append(p.waiters, o.reply)
    p.timer = time.NewTimer(o.timeout)
    for _, ch := range append([]*Channel(nil), p.channels...) {
        if err := ch.send.Send(protocol.Shutdown{}); err != nil { p.dropChannel(ch, err) }
    }
    p.checkDrained()
}

func (o disconnectOp) abort() { o.reply <- nil }

type recvOp struct {
    ch  *Channel
    ev  protocol.Event
    err error
}

func (o recvOp) apply(p *Participant) {
    if o.ch.dead { return }
    if o.err != nil {
        p.dropChannel(o.ch, o.err)
        return
    }
    switch ev := o.ev.(type) {
    case protocol.OpenStream:
        if p.streams[ev.Sid] != nil {
            zap.L().Warn("remote reopened a live stream", zap.Stringer("pid", p.remote), zap.Uint64("sid", uint64(ev.Sid)))
            return
        }
        o.ch.send.NotifyFromRecv(ev)
        st := newStream(p, ev.Sid, ev.Prio, ev.Promises, ev.GuaranteedBandwidth)
        o.ch.streams++
        p.streams[ev.Sid] = &binding{st: st, ch: o.ch}
        p.opened.push(st)
    case protocol.CloseStream:
        o.ch.send.NotifyFromRecv(ev)
        if b := p.unbind(ev.Sid); b != nil { b.st.shut() }
    case protocol.Message:
        if b := p.streams[ev.Sid]; b != nil {
            b.st.inbox.push(ev.Data)
        } else {
            zap.L().Debug("message for unknown stream dropped", zap.Uint64("sid", uint64(ev.Sid)))
        }
    case protocol.Shutdown:
        zap.L().Debug("remote shut down channel", zap.Stringer("pid", p.remote), zap.Uint64("cid", uint64(o.ch.cid)))
        o.ch.remoteShutdown = true
        p.checkRemoteShutdown()
    }
}

func (o recvOp) abort() {}

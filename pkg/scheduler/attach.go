package scheduler

import (
    "fmt"
    "time"

    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/handshake"
    "github.com/felicpei/wasm-vogame-test/pkg/participant"
    "github.com/felicpei/wasm-vogame-test/pkg/transport"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// attach handshakes c and hands it to a new or existing participant. reply
// is nil for accepted connections.
func (s *Scheduler) attach(c transport.Conn, initiator bool, reply chan<- connectResult) {
    cid := types.Cid(s.nextCid.Add(1) - 1)
    remote := "unknown"
    if a := c.RemoteAddr(); a != nil { remote = a.String() }
    log := zap.L().With(zap.Uint64("cid", uint64(cid)), zap.Stringer("kind", c.Kind()), zap.String("remote", remote))

    ch := participant.NewChannel(cid, c, s.reg)
    d := s.cfg.Net.HandshakeTimeout()
    timer := time.AfterFunc(d, func() { _ = c.Close() })
    res, err := handshake.Initialize(ch, ch, initiator, s.local, s.secret)
    if !timer.Stop() {
        // the timer already closed the connection
        if err == nil { err = handshake.ErrClosed }
        err = fmt.Errorf("%w (no answer within %s)", err, d)
    }
    if err != nil {
        _ = ch.Close()
        log.Debug("handshake failed", zap.Error(err))
        if reply != nil { reply <- connectResult{err: &HandshakeError{Remote: remote, Err: err}} }
        return
    }
    log = log.With(zap.Stringer("pid", res.Pid))

    s.mu.Lock()
    if s.closed.Load() {
        s.mu.Unlock()
        _ = ch.Close()
        if reply != nil { reply <- connectResult{err: ErrSchedulerClosed} }
        return
    }
    e := s.participants[res.Pid]
    if e != nil {
        select {
        case <-e.p.Closed():
            delete(s.participants, res.Pid)
            e = nil
        default:
        }
    }
    if e != nil {
        s.mu.Unlock()
        if e.secret != res.Secret {
            log.Warn("known pid presented a different secret, likely a spoofing attempt")
            _ = ch.Close()
            if reply != nil { reply <- connectResult{err: ErrInvalidSecret} }
            return
        }
        if err := e.p.AddChannel(ch); err != nil {
            _ = ch.Close()
            if reply != nil { reply <- connectResult{err: err} }
            return
        }
        log.Debug("channel merged into participant")
        if reply != nil { reply <- connectResult{p: e.p} }
        return
    }
    p := participant.New(s.local, res.Pid, res.Offset, ch, participant.Config{
        FlushInterval:  s.cfg.Net.FlushInterval(),
        FlushBandwidth: types.Bandwidth(s.cfg.Net.FlushBandwidth),
        Codec:          s.codec,
        Stats:          s.stats,
        OnClose:        s.forget,
    })
    s.participants[res.Pid] = &entry{p: p, secret: res.Secret}
    s.mu.Unlock()
    log.Info("participant connected", zap.Bool("initiator", initiator))

    if reply != nil {
        reply <- connectResult{p: p}
        return
    }
    select {
    case s.connected <- p:
    case <-s.done:
    }
}

// forget drops a closed participant from the registry and its statistics.
func (s *Scheduler) forget(p *participant.Participant) {
    s.mu.Lock()
    if e := s.participants[p.RemotePid()]; e != nil && e.p == p {
        delete(s.participants, p.RemotePid())
    }
    s.mu.Unlock()
    prefix := "participant." + p.RemotePid().String() + "."
    s.reg.Unregister(prefix + "frames")
    s.reg.Unregister(prefix + "bytes")
}

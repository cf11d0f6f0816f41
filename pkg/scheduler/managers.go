package scheduler

import (
    "context"
    "errors"
    "fmt"
    "net"
    "sync"

    metrics "github.com/rcrowley/go-metrics"
    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/core/priocq"
    "github.com/felicpei/wasm-vogame-test/pkg/transport"
    "github.com/felicpei/wasm-vogame-test/pkg/transports"
)

func (s *Scheduler) listenManager() {
    for {
        select {
        case <-s.shutdownCh:
            return
        case r := <-s.listenReqs:
            addr, err := s.bind(r.addr)
            r.reply <- listenResult{addr: addr, err: err}
        }
    }
}

func (s *Scheduler) bind(a transport.Addr) (net.Addr, error) {
    tr, err := transports.New(a.Kind, s.topts)
    if err != nil { return nil, err }
    l, err := tr.Listen(s.runCtx, a.Address)
    if err != nil { return nil, fmt.Errorf("listen %s: %w", a, err) }
    s.lmu.Lock()
    if s.closed.Load() {
        s.lmu.Unlock()
        _ = l.Close()
        return nil, ErrSchedulerClosed
    }
    key := transport.Addr{Kind: a.Kind, Address: l.Addr().String()}.String()
    s.listeners[key] = l
    s.lmu.Unlock()
    zap.L().Info("listening", zap.Stringer("kind", a.Kind), zap.String("addr", l.Addr().String()))
    go s.acceptLoop(l)
    return l.Addr(), nil
}

func (s *Scheduler) acceptLoop(l transport.Listener) {
    pace := priocq.NewTokenBucket(s.cfg.Net.AcceptRate, s.cfg.Net.AcceptBurst)
    for {
        if err := pace.Wait(s.runCtx); err != nil { return }
        c, err := l.Accept(s.runCtx)
        if err != nil {
            zap.L().Debug("listener stopped", zap.String("addr", l.Addr().String()), zap.Error(err))
            return
        }
        go s.attach(c, false, nil)
    }
}

func (s *Scheduler) connectManager() {
    for {
        select {
        case <-s.shutdownCh:
            return
        case r := <-s.connectReqs:
            go s.dial(r)
        }
    }
}

func (s *Scheduler) dial(r connectReq) {
    tr, err := transports.New(r.addr.Kind, s.topts)
    if err != nil {
        r.reply <- connectResult{err: &ConnectError{Addr: r.addr, Err: err}}
        return
    }
    ctx, cancel := context.WithTimeout(r.ctx, s.cfg.Net.ConnectTimeout())
    c, err := tr.Dial(ctx, r.addr.Address)
    cancel()
    if err != nil {
        zap.L().Debug("connect failed", zap.Stringer("addr", r.addr), zap.Error(err))
        r.reply <- connectResult{err: &ConnectError{Addr: r.addr, Err: err}}
        return
    }
    s.attach(c, true, r.reply)
}

func (s *Scheduler) disconnectManager() {
    for {
        select {
        case <-s.shutdownCh:
            return
        case r := <-s.disconnectReqs:
            s.mu.Lock()
            e := s.participants[r.pid]
            delete(s.participants, r.pid)
            s.mu.Unlock()
            if e == nil {
                r.reply <- nil
                continue
            }
            go func() { r.reply <- e.p.Disconnect(r.timeout) }()
        }
    }
}

// statsManager folds participant flush statistics into the registry.
func (s *Scheduler) statsManager() {
    for {
        select {
        case <-s.shutdownCh:
            return
        case st := <-s.stats:
            prefix := "participant." + st.Pid.String() + "."
            metrics.GetOrRegisterCounter(prefix+"frames", s.reg).Inc(int64(st.Frames))
            metrics.GetOrRegisterCounter(prefix+"bytes", s.reg).Inc(int64(st.Bytes))
        }
    }
}

func (s *Scheduler) shutdownManager() {
    <-s.shutdownCh
    zap.L().Info("scheduler shutting down", zap.Stringer("pid", s.local))

    s.lmu.Lock()
    s.mu.Lock()
    s.closed.Store(true)
    entries := make([]*entry, 0, len(s.participants))
    for pid, e := range s.participants {
        entries = append(entries, e)
        delete(s.participants, pid)
    }
    s.mu.Unlock()
    listeners := s.listeners
    s.listeners = make(map[string]transport.Listener)
    s.lmu.Unlock()

    for _, l := range listeners { _ = l.Close() }

    var (
        wg   sync.WaitGroup
        emu  sync.Mutex
        errs []error
    )
    timeout := s.cfg.Net.ShutdownTimeout()
    for _, e := range entries {
        wg.Add(1)
        go func(e *entry) {
            defer wg.Done()
            if err := e.p.Disconnect(timeout); err != nil {
                emu.Lock()
                errs = append(errs, fmt.Errorf("participant %s: %w", e.p.RemotePid(), err))
                emu.Unlock()
            }
        }(e)
    }
    wg.Wait()
    s.cancel()
    s.shutdownErr = errors.Join(errs...)
    close(s.done)
    zap.L().Info("scheduler stopped", zap.Stringer("pid", s.local))
}

// Package scheduler is the control plane of the network layer. It binds
// listeners, dials peers, runs the handshake on every new connection and
// keeps the registry of connected participants.
package scheduler

import (
    "context"
    "errors"
    "net"
    "sync"
    "sync/atomic"
    "time"

    metrics "github.com/rcrowley/go-metrics"

    "github.com/felicpei/wasm-vogame-test/pkg/config"
    "github.com/felicpei/wasm-vogame-test/pkg/participant"
    "github.com/felicpei/wasm-vogame-test/pkg/protocol/codec"
    "github.com/felicpei/wasm-vogame-test/pkg/transport"
    "github.com/felicpei/wasm-vogame-test/pkg/transports"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

type listenResult struct {
    addr net.Addr
    err  error
}

type listenReq struct {
    addr  transport.Addr
    reply chan listenResult
}

type connectResult struct {
    p   *participant.Participant
    err error
}

type connectReq struct {
    ctx   context.Context
    addr  transport.Addr
    reply chan connectResult
}

type disconnectReq struct {
    pid     types.Pid
    timeout time.Duration
    reply   chan error
}

type entry struct {
    p      *participant.Participant
    secret types.Secret
}

type Scheduler struct {
    local  types.Pid
    secret types.Secret
    cfg    config.Config
    codec  codec.Codec
    reg    metrics.Registry
    topts  transports.Options

    nextCid atomic.Uint64

    listenReqs     chan listenReq
    connectReqs    chan connectReq
    disconnectReqs chan disconnectReq
    stats          chan participant.Stat
    connected      chan *participant.Participant

    started      atomic.Bool
    closed       atomic.Bool
    shutdownCh   chan struct{}
    shutdownOnce sync.Once
    done         chan struct{}
    shutdownErr  error

    // listeners and accepted connections live until the scheduler is done
    runCtx context.Context
    cancel context.CancelFunc

    mu           sync.Mutex
    participants map[types.Pid]*entry

    lmu       sync.Mutex
    listeners map[string]transport.Listener
}

// New prepares a scheduler for local. Nothing happens until Run is called.
func New(local types.Pid, cfg config.Config) *Scheduler {
    c, err := codec.Lookup(cfg.Codec)
    if err != nil { c = codec.JSON() }
    ctx, cancel := context.WithCancel(context.Background())
    return &Scheduler{
        local:          local,
        secret:         types.NewSecret(),
        cfg:            cfg,
        codec:          c,
        reg:            metrics.NewRegistry(),
        topts:          transports.Options{DefaultPort: cfg.Net.DefaultPort, PreferIPv6: cfg.Net.PreferIPv6},
        listenReqs:     make(chan listenReq),
        connectReqs:    make(chan connectReq),
        disconnectReqs: make(chan disconnectReq),
        stats:          make(chan participant.Stat, 256),
        connected:      make(chan *participant.Participant, 64),
        shutdownCh:     make(chan struct{}),
        done:           make(chan struct{}),
        runCtx:         ctx,
        cancel:         cancel,
        participants:   make(map[types.Pid]*entry),
        listeners:      make(map[string]transport.Listener),
    }
}

// Run starts the managers and blocks until the scheduler shut down, either
// through Shutdown or because ctx was cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
    if !s.started.CompareAndSwap(false, true) { return errors.New("scheduler: already running") }
    var wg sync.WaitGroup
    for _, m := range []func(){s.listenManager, s.connectManager, s.disconnectManager, s.statsManager} {
        wg.Add(1)
        go func(m func()) { defer wg.Done(); m() }(m)
    }
    go s.shutdownManager()
    select {
    case <-ctx.Done():
        s.triggerShutdown()
    case <-s.shutdownCh:
    }
    <-s.done
    wg.Wait()
    return nil
}

func (s *Scheduler) LocalPid() types.Pid       { return s.local }
func (s *Scheduler) Metrics() metrics.Registry { return s.reg }

// Listen binds addr. Connections accepted there surface through Connected.
func (s *Scheduler) Listen(ctx context.Context, addr transport.Addr) (net.Addr, error) {
    reply := make(chan listenResult, 1)
    select {
    case s.listenReqs <- listenReq{addr: addr, reply: reply}:
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-s.shutdownCh:
        return nil, ErrSchedulerClosed
    }
    select {
    case r := <-reply:
        return r.addr, r.err
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

// Connect dials addr and returns the participant behind it once the
// handshake completed.
func (s *Scheduler) Connect(ctx context.Context, addr transport.Addr) (*participant.Participant, error) {
    reply := make(chan connectResult, 1)
    select {
    case s.connectReqs <- connectReq{ctx: ctx, addr: addr, reply: reply}:
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-s.shutdownCh:
        return nil, ErrSchedulerClosed
    }
    select {
    case r := <-reply:
        return r.p, r.err
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

// Connected waits for the next participant that connected to one of our
// listeners.
func (s *Scheduler) Connected(ctx context.Context) (*participant.Participant, error) {
    select {
    case <-s.done:
        return nil, ErrSchedulerClosed
    default:
    }
    select {
    case p := <-s.connected:
        return p, nil
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-s.done:
        return nil, ErrSchedulerClosed
    }
}

// Disconnect drains and closes the participant for pid. Unknown pids are not
// an error.
func (s *Scheduler) Disconnect(ctx context.Context, pid types.Pid, timeout time.Duration) error {
    reply := make(chan error, 1)
    select {
    case s.disconnectReqs <- disconnectReq{pid: pid, timeout: timeout, reply: reply}:
    case <-ctx.Done():
        return ctx.Err()
    case <-s.shutdownCh:
        return ErrSchedulerClosed
    }
    select {
    case err := <-reply:
        return err
    case <-ctx.Done():
        return ctx.Err()
    }
}

// Shutdown drains every participant, stops all listeners and waits until
// that is done or ctx expires. Further calls wait for the same result.
func (s *Scheduler) Shutdown(ctx context.Context) error {
    if s.started.CompareAndSwap(false, true) { go s.shutdownManager() }
    s.triggerShutdown()
    select {
    case <-s.done:
        return s.shutdownErr
    case <-ctx.Done():
        return ctx.Err()
    }
}

func (s *Scheduler) triggerShutdown() { s.shutdownOnce.Do(func() { close(s.shutdownCh) }) }

// Participants returns the currently registered participants.
func (s *Scheduler) Participants() []*participant.Participant {
    s.mu.Lock(); defer s.mu.Unlock()
    out := make([]*participant.Participant, 0, len(s.participants))
    for _, e := range s.participants { out = append(out, e.p) }
    return out
}

// Participant looks up a registered participant.
func (s *Scheduler) Participant(pid types.Pid) (*participant.Participant, bool) {
    s.mu.Lock(); defer s.mu.Unlock()
    e := s.participants[pid]
    if e == nil { return nil, false }
    return e.p, true
}

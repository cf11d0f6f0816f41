// Package participant is the session with one remote process. A Participant
// spreads its streams over one or more channels, flushes them on a fixed
// tick and routes incoming messages to their streams.
package participant

import (
    "context"
    "errors"
    "fmt"
    "math"
    "sync"
    "sync/atomic"
    "time"

    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol"
    "github.com/felicpei/wasm-vogame-test/pkg/protocol/codec"
    "github.com/felicpei/wasm-vogame-test/pkg/transport"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

var (
    ErrStreamClosed        = errors.New("participant: stream closed")
    ErrParticipantClosed   = errors.New("participant: closed")
    ErrShutdownTimeout     = errors.New("participant: shutdown timed out")
    ErrUnsupportedPromises = errors.New("participant: promises not supported")
    ErrUndelivered         = errors.New("participant: queued messages not delivered")
)

const (
    DefaultFlushInterval                  = 10 * time.Millisecond
    DefaultFlushBandwidth types.Bandwidth = 1_000_000_000
)

type State int32

const (
    StateActive State = iota
    StateDraining
    StateClosed
)

func (s State) String() string {
    switch s {
    case StateActive:
        return "active"
    case StateDraining:
        return "draining"
    default:
        return "closed"
    }
}

// Stat is published after every flush that wrote something.
type Stat struct {
    Pid    types.Pid
    Frames uint64
    Bytes  uint64
}

type Config struct {
    FlushInterval  time.Duration
    FlushBandwidth types.Bandwidth // per channel and second
    Codec          codec.Codec     // used by SendValue and RecvValue
    // Stats receives flush statistics; full channels drop them.
    Stats chan<- Stat
    // OnClose runs on the participant goroutine once it closed and must not block.
    OnClose func(*Participant)
}

type Participant struct {
    local  types.Pid
    remote types.Pid
    cfg    Config

    ops    *queue[op]
    opened *queue[*Stream]
    done   chan struct{}
    err    error

    state     atomic.Int32
    bandwidth atomic.Uint64

    mu     sync.Mutex
    infos  []ChannelInfo
    conns  []transport.Conn
    forced bool

    // owned by run
    channels []*Channel
    streams  map[types.Sid]*binding
    nextSid  types.Sid
    timer    *time.Timer
    waiters  []chan error
    lost     error
}

type binding struct {
    st *Stream
    ch *Channel
}

// New starts a participant for remote over its first, already handshaken
// channel. Local streams get Sids from offset upwards.
func New(local, remote types.Pid, offset types.Sid, ch *Channel, cfg Config) *Participant {
    if cfg.FlushInterval <= 0 { cfg.FlushInterval = DefaultFlushInterval }
    if cfg.FlushBandwidth == 0 { cfg.FlushBandwidth = DefaultFlushBandwidth }
    if cfg.Codec == nil { cfg.Codec = codec.JSON() }
    p := &Participant{
        local:   local,
        remote:  remote,
        cfg:     cfg,
        ops:     newQueue[op](),
        opened:  newQueue[*Stream](),
        done:    make(chan struct{}),
        streams: make(map[types.Sid]*binding),
        nextSid: offset,
    }
    p.attach(ch)
    go p.run()
    return p
}

func (p *Participant) LocalPid() types.Pid  { return p.local }
func (p *Participant) RemotePid() types.Pid { return p.remote }
func (p *Participant) State() State         { return State(p.state.Load()) }

// Closed is closed once the participant is gone.
func (p *Participant) Closed() <-chan struct{} { return p.done }

// Err is the close reason, nil for an orderly shutdown. Valid after Closed.
func (p *Participant) Err() error {
    select {
    case <-p.done:
        return p.err
    default:
        return nil
    }
}

// Bandwidth is the data rate of the last flush in bytes per second.
func (p *Participant) Bandwidth() float64 { return math.Float64frombits(p.bandwidth.Load()) }

// Channels returns the live channels.
func (p *Participant) Channels() []ChannelInfo {
    p.mu.Lock(); defer p.mu.Unlock()
    return append([]ChannelInfo(nil), p.infos...)
}

// AddChannel merges another handshaken channel of the same remote.
func (p *Participant) AddChannel(ch *Channel) error {
    if !p.ops.push(addOp{ch}) { return ErrParticipantClosed }
    return nil
}

// Disconnect queues a Shutdown on every channel, keeps flushing until all of
// them went out and then closes. After timeout the connections are closed
// anyway and ErrShutdownTimeout is returned, even when a write to a stalled
// peer blocks the participant. ErrUndelivered means a channel died with data
// still queued. Calling it on a closed participant returns nil.
func (p *Participant) Disconnect(timeout time.Duration) error {
    reply := make(chan error, 1)
    if !p.ops.push(disconnectOp{timeout: timeout, reply: reply}) { return nil }
    t := time.NewTimer(timeout)
    defer t.Stop()
    select {
    case err := <-reply:
        return err
    case <-p.done:
        select {
        case err := <-reply:
            return err
        default:
            return nil
        }
    case <-t.C:
        p.abort()
        <-p.done
        return p.err
    }
}

// abort closes every connection from outside the run loop. Blocked writes
// fail, the run loop drops the channels and finishes with ErrShutdownTimeout.
func (p *Participant) abort() {
    p.mu.Lock()
    p.forced = true
    conns := append([]transport.Conn(nil), p.conns...)
    p.mu.Unlock()
    zap.L().Warn("participant shutdown timed out, closing connections", zap.Stringer("pid", p.remote))
    for _, c := range conns { _ = c.Close() }
}

func (p *Participant) run() {
    tick := time.NewTicker(p.cfg.FlushInterval)
    defer tick.Stop()
    last := time.Now()
    var deadline <-chan time.Time
    for p.State() != StateClosed {
        if p.timer != nil { deadline = p.timer.C }
        select {
        case <-p.ops.ready:
            for p.State() != StateClosed {
                o, ok := p.ops.tryPop()
                if !ok { break }
                o.apply(p)
            }
        case now := <-tick.C:
            p.flush(now.Sub(last))
            last = now
        case <-deadline:
            zap.L().Warn("participant shutdown timed out", zap.Stringer("pid", p.remote))
            p.finish(ErrShutdownTimeout)
        }
    }
    p.ops.close()
    for _, o := range p.ops.drain() { o.abort() }
}

func (p *Participant) flush(dt time.Duration) {
    var bytes, frames uint64
    for _, ch := range append([]*Channel(nil), p.channels...) {
        n, err := ch.send.Flush(p.cfg.FlushBandwidth, dt)
        if err != nil {
            p.dropChannel(ch, err)
            continue
        }
        bytes += n
        frames += ch.framesOut()
    }
    if p.State() == StateClosed { return }
    if s := dt.Seconds(); s > 0 { p.bandwidth.Store(math.Float64bits(float64(bytes) / s)) }
    if frames > 0 && p.cfg.Stats != nil {
        select {
        case p.cfg.Stats <- Stat{Pid: p.remote, Frames: frames, Bytes: bytes}:
        default:
        }
    }
    p.checkDrained()
}

func (p *Participant) checkDrained() {
    if p.State() != StateDraining { return }
    for _, ch := range p.channels {
        if !ch.send.ShutdownSent() { return }
    }
    p.finish(p.lost)
}

// checkRemoteShutdown closes once the remote shut down every live channel.
// Data still in flight on other channels arrives before their Shutdown.
func (p *Participant) checkRemoteShutdown() {
    if p.State() == StateClosed || len(p.channels) == 0 { return }
    for _, ch := range p.channels {
        if !ch.remoteShutdown { return }
    }
    p.finish(p.lost)
}

// attach starts reading ch. Run loop only, or before run starts.
func (p *Participant) attach(ch *Channel) {
    p.channels = append(p.channels, ch)
    p.publishInfos()
    go p.recvLoop(ch)
}

func (p *Participant) recvLoop(ch *Channel) {
    for {
        ev, err := ch.recv.Recv()
        if !p.ops.push(recvOp{ch: ch, ev: ev, err: err}) || err != nil { return }
    }
}

func (p *Participant) dropChannel(ch *Channel, err error) {
    if ch.dead { return }
    ch.dead = true
    _ = ch.Close()
    orderly := ch.remoteShutdown || ch.send.ShutdownSent()
    if p.State() == StateDraining && !orderly && ch.send.Backlog() && p.lost == nil {
        p.lost = fmt.Errorf("%w: channel %d: %v", ErrUndelivered, ch.cid, err)
    }
    switch {
    case orderly:
        zap.L().Debug("channel closed", zap.Stringer("pid", p.remote), zap.Uint64("cid", uint64(ch.cid)))
    case errors.Is(err, protocol.ErrViolated):
        zap.L().Warn("channel violated protocol", zap.Stringer("pid", p.remote), zap.Uint64("cid", uint64(ch.cid)), zap.Error(err))
    default:
        zap.L().Debug("channel lost", zap.Stringer("pid", p.remote), zap.Uint64("cid", uint64(ch.cid)), zap.Error(err))
    }
    for i, c := range p.channels {
        if c == ch {
            p.channels = append(p.channels[:i], p.channels[i+1:]...)
            break
        }
    }
    for sid, b := range p.streams {
        if b.ch == ch {
            delete(p.streams, sid)
            b.st.shut()
        }
    }
    p.publishInfos()
    if len(p.channels) == 0 {
        switch {
        case p.lost != nil:
            p.finish(p.lost)
        case orderly:
            p.finish(nil)
        default:
            p.finish(err)
        }
        return
    }
    p.checkDrained()
    p.checkRemoteShutdown()
}

func (p *Participant) finish(reason error) {
    if p.State() == StateClosed { return }
    p.state.Store(int32(StateClosed))
    p.mu.Lock()
    if p.forced && reason != nil { reason = ErrShutdownTimeout }
    p.mu.Unlock()
    p.err = reason
    for _, ch := range p.channels {
        ch.dead = true
        _ = ch.Close()
    }
    p.channels = nil
    for sid, b := range p.streams {
        delete(p.streams, sid)
        b.st.shut()
    }
    p.opened.close()
    if p.timer != nil { p.timer.Stop() }
    for _, w := range p.waiters {
        if errors.Is(reason, ErrShutdownTimeout) || errors.Is(reason, ErrUndelivered) { w <- reason } else { w <- nil }
    }
    p.waiters = nil
    p.publishInfos()
    close(p.done)
    zap.L().Info("participant closed", zap.Stringer("pid", p.remote), zap.Error(reason))
    if p.cfg.OnClose != nil { p.cfg.OnClose(p) }
}

// publishInfos mirrors the channel list for other goroutines. After an
// abort every newly published connection is closed at once.
func (p *Participant) publishInfos() {
    infos := make([]ChannelInfo, 0, len(p.channels))
    conns := make([]transport.Conn, 0, len(p.channels))
    for _, ch := range p.channels {
        infos = append(infos, ch.info())
        conns = append(conns, ch.conn)
    }
    p.mu.Lock()
    p.infos, p.conns = infos, conns
    forced := p.forced
    p.mu.Unlock()
    if forced {
        for _, c := range conns { _ = c.Close() }
    }
}

// leastLoaded picks the channel carrying the fewest streams, oldest first.
func (p *Participant) leastLoaded() *Channel {
    var best *Channel
    for _, ch := range p.channels {
        if best == nil || ch.streams < best.streams { best = ch }
    }
    return best
}

func (p *Participant) unbind(sid types.Sid) *binding {
    b := p.streams[sid]
    if b == nil { return nil }
    delete(p.streams, sid)
    b.ch.streams--
    return b
}

// OpenStream opens a local stream on the least loaded channel.
func (p *Participant) OpenStream(ctx context.Context, prio types.Prio, promises types.Promises, guaranteed types.Bandwidth) (*Stream, error) {
    reply := make(chan openResult, 1)
    if !p.ops.push(openOp{prio: prio, promises: promises, guaranteed: guaranteed, reply: reply}) {
        return nil, ErrParticipantClosed
    }
    select {
    case r := <-reply:
        return r.st, r.err
    case <-ctx.Done():
        return nil, ctx.Err()
    }
}

// Opened waits for the next stream the remote opened.
func (p *Participant) Opened(ctx context.Context) (*Stream, error) {
    st, err := p.opened.pop(ctx)
    if errors.Is(err, errQueueClosed) { return nil, ErrParticipantClosed }
    return st, err
}

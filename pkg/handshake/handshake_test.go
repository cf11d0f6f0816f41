package handshake

import (
    "errors"
    "net"
    "testing"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol"
    "github.com/felicpei/wasm-vogame-test/pkg/protocol/frame"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

type pipeConn struct{ c net.Conn }

func (p pipeConn) SendBytes(b []byte) error { _, err := p.c.Write(b); return err }
func (p pipeConn) RecvBytes() ([]byte, error) {
    buf := make([]byte, 1500)
    n, err := p.c.Read(buf)
    if err != nil { return nil, err }
    return buf[:n], nil
}

type side struct {
    send *protocol.SendProtocol
    recv *protocol.RecvProtocol
    conn net.Conn
}

func newPair() (side, side) {
    a, b := net.Pipe()
    return side{protocol.NewSend(pipeConn{a}, nil), protocol.NewRecv(pipeConn{a}, nil), a},
        side{protocol.NewSend(pipeConn{b}, nil), protocol.NewRecv(pipeConn{b}, nil), b}
}

// tamper rewrites outgoing Handshake frames.
type tamper struct {
    d   Drain
    fix func(*frame.Handshake)
}

func (t tamper) SendInit(f frame.InitFrame) error {
    if h, ok := f.(frame.Handshake); ok { t.fix(&h); f = h }
    return t.d.SendInit(f)
}

type outcome struct {
    res Result
    err error
}

func TestHandshakeConverges(t *testing.T) {
    ini, rsp := newPair()
    pidA, pidB := types.NewPid(), types.NewPid()
    secA, secB := types.NewSecret(), types.NewSecret()

    done := make(chan outcome, 1)
    go func() {
        r, err := Initialize(rsp.send, rsp.recv, false, pidB, secB)
        done <- outcome{r, err}
    }()
    a, err := Initialize(ini.send, ini.recv, true, pidA, secA)
    if err != nil { t.Fatalf("initiator: %v", err) }
    b := <-done
    if b.err != nil { t.Fatalf("responder: %v", b.err) }

    if a.Pid != pidB || b.res.Pid != pidA { t.Fatalf("pids not exchanged") }
    if a.Secret != secB || b.res.Secret != secA { t.Fatalf("secrets not exchanged") }
    if a.Offset != types.StreamIDOffset1 || b.res.Offset != types.StreamIDOffset2 {
        t.Fatalf("offsets %d/%d", a.Offset, b.res.Offset)
    }
}

func runMismatch(t *testing.T, fix func(*frame.Handshake)) (initiatorErr, responderErr error) {
    ini, rsp := newPair()
    done := make(chan error, 1)
    go func() {
        _, err := Initialize(rsp.send, rsp.recv, false, types.NewPid(), types.NewSecret())
        _ = rsp.conn.Close()
        done <- err
    }()
    _, err := Initialize(tamper{ini.send, fix}, ini.recv, true, types.NewPid(), types.NewSecret())
    return err, <-done
}

func TestBadMagicNumber(t *testing.T) {
    ierr, rerr := runMismatch(t, func(h *frame.Handshake) { h.MagicNumber = [7]byte{'N', 'O', 'T', 'T', 'H', 'I', 'S'} })
    if !errors.Is(rerr, ErrWrongMagicNumber) { t.Fatalf("responder: %v", rerr) }
    if !errors.Is(ierr, ErrClosed) { t.Fatalf("initiator: %v", ierr) }
}

func TestBadVersion(t *testing.T) {
    ierr, rerr := runMismatch(t, func(h *frame.Handshake) { h.Version[1]++ })
    if !errors.Is(rerr, ErrWrongVersion) { t.Fatalf("responder: %v", rerr) }
    if !errors.Is(ierr, ErrClosed) { t.Fatalf("initiator: %v", ierr) }
}

func TestPatchVersionIgnored(t *testing.T) {
    ierr, rerr := runMismatch(t, func(h *frame.Handshake) { h.Version[2] += 5 })
    if ierr != nil || rerr != nil { t.Fatalf("patch mismatch rejected: %v / %v", ierr, rerr) }
}

func TestPrematureClose(t *testing.T) {
    ini, rsp := newPair()
    _ = rsp.conn.Close()
    if _, err := Initialize(ini.send, ini.recv, true, types.NewPid(), types.NewSecret()); !errors.Is(err, ErrClosed) {
        t.Fatalf("expected ErrClosed, got %v", err)
    }
}

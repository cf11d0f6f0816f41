package transport

import (
    "context"
    "errors"
    "io"
    "net"
    "sync"
)

// ErrListenerClosed is returned by Accept after Close.
var ErrListenerClosed = errors.New("transport: listener closed")

type streamConn struct {
    kind   Kind
    rw     io.ReadWriteCloser
    local  net.Addr
    remote net.Addr

    wmu  sync.Mutex
    buf  [MaxChunk]byte
    once sync.Once
    cerr error
}

// NewStreamConn adapts an ordered reliable byte stream to Conn. Closing the
// Conn closes rw.
func NewStreamConn(kind Kind, rw io.ReadWriteCloser, local, remote net.Addr) Conn {
    return &streamConn{kind: kind, rw: rw, local: local, remote: remote}
}

// NewNetConn is NewStreamConn for a net.Conn.
func NewNetConn(kind Kind, c net.Conn) Conn {
    return NewStreamConn(kind, c, c.LocalAddr(), c.RemoteAddr())
}

func (c *streamConn) Kind() Kind           { return c.kind }
func (c *streamConn) LocalAddr() net.Addr  { return c.local }
func (c *streamConn) RemoteAddr() net.Addr { return c.remote }

func (c *streamConn) SendBytes(b []byte) error {
    c.wmu.Lock(); defer c.wmu.Unlock()
    for len(b) > 0 {
        n, err := c.rw.Write(b)
        if err != nil { return err }
        b = b[n:]
    }
    return nil
}

func (c *streamConn) RecvBytes() ([]byte, error) {
    n, err := c.rw.Read(c.buf[:])
    if n > 0 { return c.buf[:n], nil }
    if err == nil { err = io.ErrNoProgress }
    return nil, err
}

func (c *streamConn) Close() error {
    c.once.Do(func() { c.cerr = c.rw.Close() })
    return c.cerr
}

// Accepted fans connections from an accept loop into Accept calls. It is the
// shared listener plumbing of the bindings.
type Accepted struct {
    newCh   chan Conn
    closeCh chan struct{}
    once    sync.Once
}

func NewAccepted() *Accepted {
    return &Accepted{newCh: make(chan Conn), closeCh: make(chan struct{})}
}

// Push hands c to the next Accept call, closing c if the listener is closed
// first.
func (a *Accepted) Push(c Conn) {
    select {
    case a.newCh <- c:
    case <-a.closeCh:
        _ = c.Close()
    }
}

func (a *Accepted) Accept(ctx context.Context) (Conn, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-a.closeCh:
        return nil, ErrListenerClosed
    case c := <-a.newCh:
        return c, nil
    }
}

// Shut unblocks every pending and future Accept. It reports whether this call
// did the shutting.
func (a *Accepted) Shut() bool {
    first := false
    a.once.Do(func() { close(a.closeCh); first = true })
    return first
}

// Closed is closed once Shut was called.
func (a *Accepted) Closed() <-chan struct{} { return a.closeCh }

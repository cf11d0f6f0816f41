// Package tcp binds channels to TCP sockets with Nagle disabled.
package tcp

import (
    "context"
    "net"

    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
)

// Transport dials and listens on TCP. Dial resolves names and tries every
// candidate address in order.
type Transport struct {
    DefaultPort uint16
    PreferIPv6  bool
}

func New() *Transport { return &Transport{DefaultPort: transport.DefaultPort} }

func (t *Transport) Kind() transport.Kind { return transport.KindTCP }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    host, port, err := transport.SplitAddress(address, t.DefaultPort)
    if err != nil { return nil, err }
    var lc net.ListenConfig
    l, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, port))
    if err != nil { return nil, err }
    tl := &listener{l: l, acc: transport.NewAccepted()}
    go tl.acceptLoop()
    go func() {
        select {
        case <-ctx.Done():
            _ = tl.Close()
        case <-tl.acc.Closed():
        }
    }()
    return tl, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Conn, error) {
    return transport.DialEach(ctx, address, t.DefaultPort, t.PreferIPv6, dial)
}

func dial(ctx context.Context, addr string) (transport.Conn, error) {
    var d net.Dialer
    c, err := d.DialContext(ctx, "tcp", addr)
    if err != nil { return nil, err }
    return wrap(c), nil
}

func wrap(c net.Conn) transport.Conn {
    if tc, ok := c.(*net.TCPConn); ok { _ = tc.SetNoDelay(true) }
    return transport.NewNetConn(transport.KindTCP, c)
}

type listener struct {
    l   net.Listener
    acc *transport.Accepted
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Conn, error) { return l.acc.Accept(ctx) }

func (l *listener) Close() error {
    if !l.acc.Shut() { return nil }
    return l.l.Close()
}

func (l *listener) acceptLoop() {
    for {
        c, err := l.l.Accept()
        if err != nil {
            select {
            case <-l.acc.Closed():
            default:
                zap.L().Warn("tcp accept failed", zap.String("addr", l.l.Addr().String()), zap.Error(err))
                _ = l.Close()
            }
            return
        }
        go l.acc.Push(wrap(c))
    }
}

//go:build windows

// Package winpipe binds channels to Windows named pipes.
package winpipe

import (
    "context"
    "net"

    "github.com/Microsoft/go-winio"
    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
)

type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindWinPipe }

func (t *Transport) Listen(ctx context.Context, pipeName string) (transport.Listener, error) {
    l, err := winio.ListenPipe(pipeName, nil)
    if err != nil { return nil, err }
    wl := &listener{l: l, acc: transport.NewAccepted()}
    go wl.acceptLoop()
    go func() {
        select {
        case <-ctx.Done():
            _ = wl.Close()
        case <-wl.acc.Closed():
        }
    }()
    return wl, nil
}

func (t *Transport) Dial(ctx context.Context, pipeName string) (transport.Conn, error) {
    c, err := winio.DialPipeContext(ctx, pipeName)
    if err != nil { return nil, err }
    return transport.NewNetConn(transport.KindWinPipe, c), nil
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
                zap.L().Warn("winpipe accept failed", zap.Error(err))
                _ = l.Close()
            }
            return
        }
        go l.acc.Push(transport.NewNetConn(transport.KindWinPipe, c))
    }
}

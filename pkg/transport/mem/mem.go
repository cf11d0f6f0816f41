// Package mem is an in-process binding over net.Pipe. All Transports share
// one namespace, so a listener registered by one Transport value is
// reachable from any other in the same process.
package mem

import (
    "context"
    "fmt"
    "net"
    "sync"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
)

var (
    mu        sync.Mutex
    listeners = make(map[string]*listener)
)

type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (transport.Listener, error) {
    mu.Lock(); defer mu.Unlock()
    if _, ok := listeners[name]; ok {
        return nil, fmt.Errorf("mem: address %q already in use", name)
    }
    l := &listener{name: name, acc: transport.NewAccepted()}
    listeners[name] = l
    go func() {
        select {
        case <-ctx.Done():
            _ = l.Close()
        case <-l.acc.Closed():
        }
    }()
    return l, nil
}

func (t *Transport) Dial(ctx context.Context, name string) (transport.Conn, error) {
    mu.Lock(); l := listeners[name]; mu.Unlock()
    if l == nil { return nil, fmt.Errorf("mem: no listener at %q", name) }
    c1, c2 := net.Pipe()
    srv := transport.NewStreamConn(transport.KindMem, c1, memAddr(name), memAddr(name+"#peer"))
    cli := transport.NewStreamConn(transport.KindMem, c2, memAddr(name+"#peer"), memAddr(name))
    select {
    case <-ctx.Done():
        _ = srv.Close(); _ = cli.Close()
        return nil, ctx.Err()
    case <-l.acc.Closed():
        _ = srv.Close(); _ = cli.Close()
        return nil, fmt.Errorf("mem: listener at %q closed", name)
    default:
    }
    go l.acc.Push(srv)
    return cli, nil
}

type listener struct {
    name string
    acc  *transport.Accepted
}

func (l *listener) Addr() net.Addr { return memAddr(l.name) }

func (l *listener) Accept(ctx context.Context) (transport.Conn, error) { return l.acc.Accept(ctx) }

func (l *listener) Close() error {
    if l.acc.Shut() {
        mu.Lock()
        if listeners[l.name] == l { delete(listeners, l.name) }
        mu.Unlock()
    }
    return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

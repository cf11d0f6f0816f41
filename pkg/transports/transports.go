// Package transports constructs a transport.Transport for a Kind.
package transports

import (
    "fmt"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
    "github.com/felicpei/wasm-vogame-test/pkg/transport/mem"
    tquic "github.com/felicpei/wasm-vogame-test/pkg/transport/quic"
    ttcp "github.com/felicpei/wasm-vogame-test/pkg/transport/tcp"
)

// Options tune the address based kinds.
type Options struct {
    DefaultPort uint16
    PreferIPv6  bool
}

// New returns the binding for kind.
func New(kind transport.Kind, o Options) (transport.Transport, error) {
    if o.DefaultPort == 0 { o.DefaultPort = transport.DefaultPort }
    switch kind {
    case transport.KindTCP:
        t := ttcp.New()
        t.DefaultPort, t.PreferIPv6 = o.DefaultPort, o.PreferIPv6
        return t, nil
    case transport.KindQUIC:
        t := tquic.New()
        t.DefaultPort, t.PreferIPv6 = o.DefaultPort, o.PreferIPv6
        return t, nil
    case transport.KindMem:
        return mem.New(), nil
    case transport.KindWinPipe:
        return newWinPipeTransport()
    default:
        return nil, transport.ErrUnknownKind(fmt.Sprint(int(kind)))
    }
}

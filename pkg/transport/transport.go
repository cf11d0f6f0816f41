package transport

import (
    "context"
    "fmt"
    "net"
    "strings"
)

// Kind identifies a transport binding.
type Kind int

const (
    KindUnknown Kind = iota
    KindTCP
    KindQUIC
    KindMem
    KindWinPipe
)

func (k Kind) String() string {
    switch k {
    case KindTCP:
        return "tcp"
    case KindQUIC:
        return "quic"
    case KindMem:
        return "mem"
    case KindWinPipe:
        return "winpipe"
    default:
        return "unknown"
    }
}

// ErrUnknownKind is returned for kinds outside the closed set.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }

// ParseKind maps a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
    switch strings.ToLower(strings.TrimSpace(s)) {
    case "tcp":
        return KindTCP, nil
    case "quic":
        return KindQUIC, nil
    case "mem", "inproc":
        return KindMem, nil
    case "winpipe", "pipe":
        return KindWinPipe, nil
    default:
        return KindUnknown, ErrUnknownKind(s)
    }
}

// Addr names an endpoint of a given kind. Address is transport specific:
// host[:port] for tcp and quic, a namespace key for mem, a pipe path for
// winpipe.
type Addr struct {
    Kind    Kind
    Address string
}

func (a Addr) String() string { return fmt.Sprintf("%s://%s", a.Kind, a.Address) }

// MaxChunk bounds the size of one RecvBytes result.
const MaxChunk = 1500

// Conn is one physical connection. Exactly one goroutine may call RecvBytes;
// SendBytes is safe for concurrent use and does not retain its argument.
type Conn interface {
    SendBytes([]byte) error
    // RecvBytes returns the next chunk of at most MaxChunk bytes. The slice
    // is only valid until the next call.
    RecvBytes() ([]byte, error)
    Kind() Kind
    LocalAddr() net.Addr
    RemoteAddr() net.Addr
    Close() error
}

// Listener accepts inbound connections.
type Listener interface {
    // Accept blocks until an inbound connection is available or ctx is done.
    Accept(ctx context.Context) (Conn, error)
    Addr() net.Addr
    // Close stops the listener and unblocks Accept.
    Close() error
}

// Transport listens and dials for one Kind.
type Transport interface {
    Kind() Kind
    // Listen binds address. The listener is closed when ctx is done.
    Listen(ctx context.Context, address string) (Listener, error)
    Dial(ctx context.Context, address string) (Conn, error)
}

// Package quic binds channels to a single bidirectional QUIC stream per
// connection. The dialer opens the stream, the listener accepts it.
package quic

import (
    "context"
    "crypto/ecdsa"
    "crypto/elliptic"
    "crypto/rand"
    "crypto/tls"
    "crypto/x509"
    "math/big"
    "net"
    "sync"
    "time"

    quicgo "github.com/quic-go/quic-go"
    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
)

// ALPN is the application protocol negotiated on every connection.
const ALPN = "gamenet"

type Transport struct {
    DefaultPort uint16
    PreferIPv6  bool

    quicConf *quicgo.Config
    certOnce sync.Once
    cert     tls.Certificate
    certErr  error
}

func New() *Transport {
    return &Transport{
        DefaultPort: transport.DefaultPort,
        quicConf:    &quicgo.Config{KeepAlivePeriod: 5 * time.Second, MaxIdleTimeout: 30 * time.Second},
    }
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    t.certOnce.Do(func() { t.cert, t.certErr = selfSignedCert() })
    if t.certErr != nil { return nil, t.certErr }
    host, port, err := transport.SplitAddress(address, t.DefaultPort)
    if err != nil { return nil, err }
    tlsConf := &tls.Config{
        Certificates: []tls.Certificate{t.cert},
        NextProtos:   []string{ALPN},
        MinVersion:   tls.VersionTLS13,
    }
    l, err := quicgo.ListenAddr(net.JoinHostPort(host, port), tlsConf, t.quicConf)
    if err != nil { return nil, err }
    ql := &listener{l: l, acc: transport.NewAccepted()}
    lctx, cancel := context.WithCancel(context.Background())
    ql.cancel = cancel
    go ql.acceptLoop(lctx)
    go func() {
        select {
        case <-ctx.Done():
            _ = ql.Close()
        case <-ql.acc.Closed():
        }
    }()
    return ql, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Conn, error) {
    return transport.DialEach(ctx, address, t.DefaultPort, t.PreferIPv6, t.dial)
}

func (t *Transport) dial(ctx context.Context, addr string) (transport.Conn, error) {
    // The peer is authenticated by the handshake, not by its certificate.
    tlsClient := &tls.Config{
        InsecureSkipVerify: true,
        NextProtos:         []string{ALPN},
        MinVersion:         tls.VersionTLS13,
    }
    c, err := quicgo.DialAddr(ctx, addr, tlsClient, t.quicConf)
    if err != nil { return nil, err }
    st, err := c.OpenStreamSync(ctx)
    if err != nil {
        _ = c.CloseWithError(0, "")
        return nil, err
    }
    return wrap(c, st), nil
}

type qstream struct {
    quicgo.Stream
    conn quicgo.Connection
}

func (s qstream) Close() error {
    _ = s.Stream.Close()
    return s.conn.CloseWithError(0, "")
}

func wrap(c quicgo.Connection, st quicgo.Stream) transport.Conn {
    return transport.NewStreamConn(transport.KindQUIC, qstream{Stream: st, conn: c}, c.LocalAddr(), c.RemoteAddr())
}

type listener struct {
    l      *quicgo.Listener
    acc    *transport.Accepted
    cancel context.CancelFunc
}

func (l *listener) Addr() net.Addr { return l.l.Addr() }

func (l *listener) Accept(ctx context.Context) (transport.Conn, error) { return l.acc.Accept(ctx) }

func (l *listener) Close() error {
    if !l.acc.Shut() { return nil }
    l.cancel()
    return l.l.Close()
}

func (l *listener) acceptLoop(ctx context.Context) {
    for {
        c, err := l.l.Accept(ctx)
        if err != nil { return }
        go func() {
            st, err := c.AcceptStream(ctx)
            if err != nil {
                zap.L().Debug("quic connection without stream", zap.Stringer("remote", c.RemoteAddr()), zap.Error(err))
                _ = c.CloseWithError(0, "")
                return
            }
            l.acc.Push(wrap(c, st))
        }()
    }
}

// selfSignedCert generates an ephemeral certificate for the listening side.
func selfSignedCert() (tls.Certificate, error) {
    priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
    if err != nil { return tls.Certificate{}, err }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(time.Now().UnixNano()),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(24 * time.Hour),
        KeyUsage:              x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
        BasicConstraintsValid: true,
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil { return tls.Certificate{}, err }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}

package quic

import (
    "context"
    "testing"
    "time"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
)

func TestQuicExchange(t *testing.T) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    tr := New()
    l, err := tr.Listen(ctx, "127.0.0.1:0")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()

    cli, err := tr.Dial(ctx, l.Addr().String())
    if err != nil { t.Fatalf("dial: %v", err) }
    defer cli.Close()
    // the stream only reaches the listener once it carries data
    if err := cli.SendBytes([]byte("hello")); err != nil { t.Fatalf("send: %v", err) }

    srv, err := l.Accept(ctx)
    if err != nil { t.Fatalf("accept: %v", err) }
    defer srv.Close()
    var got []byte
    for len(got) < 5 {
        b, err := srv.RecvBytes()
        if err != nil { t.Fatalf("recv: %v", err) }
        got = append(got, b...)
    }
    if string(got) != "hello" { t.Fatalf("got %q", got) }
    if srv.Kind() != transport.KindQUIC { t.Fatalf("kind %v", srv.Kind()) }
}

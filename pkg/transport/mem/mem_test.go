package mem

import (
    "context"
    "testing"
)

func TestNamespaceIsShared(t *testing.T) {
    ctx := context.Background()
    l, err := New().Listen(ctx, "mem-test-shared")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()
    if _, err := New().Listen(ctx, "mem-test-shared"); err == nil { t.Fatalf("duplicate listen succeeded") }

    cli, err := New().Dial(ctx, "mem-test-shared")
    if err != nil { t.Fatalf("dial: %v", err) }
    srv, err := l.Accept(ctx)
    if err != nil { t.Fatalf("accept: %v", err) }

    go func() { _ = cli.SendBytes([]byte("ping")) }()
    b, err := srv.RecvBytes()
    if err != nil || string(b) != "ping" { t.Fatalf("got %q, %v", b, err) }

    _ = cli.Close()
    if _, err := srv.RecvBytes(); err == nil { t.Fatalf("expected error after peer close") }
}

func TestDialUnknownAndReuseAfterClose(t *testing.T) {
    ctx := context.Background()
    if _, err := New().Dial(ctx, "mem-test-nowhere"); err == nil { t.Fatalf("dial to nowhere succeeded") }
    l, err := New().Listen(ctx, "mem-test-reuse")
    if err != nil { t.Fatalf("listen: %v", err) }
    _ = l.Close()
    l2, err := New().Listen(ctx, "mem-test-reuse")
    if err != nil { t.Fatalf("relisten: %v", err) }
    _ = l2.Close()
}

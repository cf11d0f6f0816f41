package transports

import (
    "errors"
    "runtime"
    "testing"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
)

func TestNewCoversKinds(t *testing.T) {
    for _, k := range []transport.Kind{transport.KindTCP, transport.KindQUIC, transport.KindMem} {
        tr, err := New(k, Options{})
        if err != nil { t.Fatalf("%v: %v", k, err) }
        if tr.Kind() != k { t.Fatalf("%v built %v", k, tr.Kind()) }
    }
    if _, err := New(transport.KindWinPipe, Options{}); (err == nil) != (runtime.GOOS == "windows") {
        t.Fatalf("winpipe on %s: %v", runtime.GOOS, err)
    }
    var uk transport.ErrUnknownKind
    if _, err := New(transport.KindUnknown, Options{}); !errors.As(err, &uk) { t.Fatalf("expected ErrUnknownKind, got %v", err) }
}

package message

import (
    "bytes"
    "testing"

    "google.golang.org/protobuf/types/known/structpb"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol/codec"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

type position struct {
    X, Y, Z float32
    Name    string
}

func TestSerializeEachCodec(t *testing.T) {
    in := position{1, 2.5, -3, "spawn"}
    for _, name := range []string{"json", "cbor"} {
        c, err := codec.Lookup(name)
        if err != nil { t.Fatalf("%s: %v", name, err) }
        for _, p := range []types.Promises{0, types.PromiseOrdered | types.PromiseCompressed} {
            m, err := Serialize(c, in, p)
            if err != nil { t.Fatalf("%s/%s: serialize: %v", name, p, err) }
            var out position
            if err := FromWire(m.Wire(), p).Deserialize(c, &out); err != nil { t.Fatalf("%s/%s: %v", name, p, err) }
            if out != in { t.Fatalf("%s/%s: got %+v", name, p, out) }
        }
    }
}

func TestProtoPayload(t *testing.T) {
    c, _ := codec.Lookup("proto")
    s, err := structpb.NewStruct(map[string]any{"hp": 42.0})
    if err != nil { t.Fatalf("struct: %v", err) }
    m, err := Serialize(c, s, types.PromiseCompressed)
    if err != nil { t.Fatalf("serialize: %v", err) }
    var out structpb.Struct
    if err := m.Deserialize(c, &out); err != nil { t.Fatalf("deserialize: %v", err) }
    if out.Fields["hp"].GetNumberValue() != 42 { t.Fatalf("got %v", out.Fields) }
}

func TestCompressionShrinksRepetitiveData(t *testing.T) {
    data := bytes.Repeat([]byte("chunk-of-terrain "), 1000)
    m, err := Pack(data, types.PromiseCompressed)
    if err != nil { t.Fatalf("pack: %v", err) }
    if !m.Compressed() || len(m.Wire()) >= len(data)/4 { t.Fatalf("wire size %d of %d", len(m.Wire()), len(data)) }
    out, err := m.Unpack()
    if err != nil || !bytes.Equal(out, data) { t.Fatalf("unpack: %v", err) }

    plain, _ := Pack(data, types.PromiseOrdered)
    if plain.Compressed() || !bytes.Equal(plain.Wire(), data) { t.Fatalf("uncompressed stream altered data") }
}

func TestCorruptCompressedPayload(t *testing.T) {
    if _, err := FromWire([]byte("definitely not lz4"), types.PromiseCompressed).Unpack(); err == nil {
        t.Fatalf("expected error")
    }
}

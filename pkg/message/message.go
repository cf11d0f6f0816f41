// Package message turns application values into stream payloads and back.
// Payloads of streams promising Compressed are LZ4 frames.
package message

import (
    "bytes"
    "errors"
    "fmt"
    "io"

    "github.com/pierrec/lz4/v4"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol/codec"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// MaxDecompressed bounds the size a compressed payload may expand to.
const MaxDecompressed = 64 << 20

var ErrTooLarge = errors.New("message: decompressed payload too large")

// Message is a payload as it travels on a stream.
type Message struct {
    data       []byte
    compressed bool
}

// Pack wraps raw application bytes for a stream with the given promises.
func Pack(data []byte, p types.Promises) (Message, error) {
    if !p.Contains(types.PromiseCompressed) { return Message{data: data}, nil }
    var buf bytes.Buffer
    w := lz4.NewWriter(&buf)
    if _, err := w.Write(data); err != nil { return Message{}, fmt.Errorf("message: compress: %w", err) }
    if err := w.Close(); err != nil { return Message{}, fmt.Errorf("message: compress: %w", err) }
    return Message{data: buf.Bytes(), compressed: true}, nil
}

// Serialize encodes v with c and packs it.
func Serialize(c codec.Codec, v any, p types.Promises) (Message, error) {
    b, err := c.Marshal(v)
    if err != nil { return Message{}, fmt.Errorf("message: encode %s: %w", c.Name(), err) }
    return Pack(b, p)
}

// FromWire wraps bytes received on a stream with the given promises.
func FromWire(data []byte, p types.Promises) Message {
    return Message{data: data, compressed: p.Contains(types.PromiseCompressed)}
}

// Wire returns the bytes to put on the stream.
func (m Message) Wire() []byte { return m.data }

func (m Message) Compressed() bool { return m.compressed }

// Unpack returns the application bytes.
func (m Message) Unpack() ([]byte, error) {
    if !m.compressed { return m.data, nil }
    r := io.LimitReader(lz4.NewReader(bytes.NewReader(m.data)), MaxDecompressed+1)
    out, err := io.ReadAll(r)
    if err != nil { return nil, fmt.Errorf("message: decompress: %w", err) }
    if len(out) > MaxDecompressed { return nil, ErrTooLarge }
    return out, nil
}

// Deserialize unpacks the payload and decodes it into v.
func (m Message) Deserialize(c codec.Codec, v any) error {
    b, err := m.Unpack()
    if err != nil { return err }
    if err := c.Unmarshal(b, v); err != nil { return fmt.Errorf("message: decode %s: %w", c.Name(), err) }
    return nil
}

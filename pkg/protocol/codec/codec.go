// Package codec holds the payload encodings a stream can use for typed
// values.
package codec

import "strings"

// Codec defines a simple interface for marshaling typed messages.
// Implementations should be deterministic and safe for cross-node exchange.
type Codec interface {
    // Name is the short configuration name (json, cbor, proto).
    Name() string
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

// ErrUnknownCodec is returned for names or content types nobody registered.
type ErrUnknownCodec string

func (e ErrUnknownCodec) Error() string { return "unknown codec: " + string(e) }

// Registry maps names and content types to codecs.
type Registry struct {
    byName map[string]Codec
    byType map[string]Codec
}

// NewRegistry constructs a registry preloaded with JSON, CBOR and Protobuf.
func NewRegistry() *Registry {
    r := &Registry{byName: make(map[string]Codec), byType: make(map[string]Codec)}
    r.Register(JSON())
    r.Register(Proto())
    if c, err := CBOR(); err == nil { r.Register(c) }
    return r
}

// Register adds a codec, replacing any codec with the same name or type.
func (r *Registry) Register(c Codec) {
    r.byName[c.Name()] = c
    r.byType[c.ContentType()] = c
}

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// Lookup resolves a name or a content type.
func (r *Registry) Lookup(key string) (Codec, error) {
    k := strings.ToLower(strings.TrimSpace(key))
    if c := r.byName[k]; c != nil { return c, nil }
    if c := r.byType[k]; c != nil { return c, nil }
    return nil, ErrUnknownCodec(key)
}

var defaultRegistry = NewRegistry()

// Lookup resolves key in the built-in registry.
func Lookup(key string) (Codec, error) { return defaultRegistry.Lookup(key) }

// Package types holds the identifiers and value types shared by every layer of
// the gamenet transport.
package types

import (
    "crypto/rand"
    "encoding/hex"
    "fmt"
    "math"
    "strings"

    uuid "github.com/nu7hatch/gouuid"
)

// Pid identifies a participant. It is random and stable for a process lifetime.
type Pid [16]byte

// Cid identifies one physical connection inside a Scheduler.
type Cid uint64

// Sid identifies a stream inside a Participant.
type Sid uint64

// Mid identifies a message inside one send protocol instance.
type Mid uint64

// Prio is a stream priority class. 0 is drained first.
type Prio uint8

// Bandwidth is measured in bytes per second.
type Bandwidth uint64

// Secret is presented at handshake and authenticates later channels of the same Pid.
type Secret [16]byte

const (
    // HighestPrio is the largest accepted priority value.
    HighestPrio Prio = 7

    // StreamIDOffset1 is used by the side that initiated the handshake.
    StreamIDOffset1 Sid = 0
    // StreamIDOffset2 is used by the responding side.
    StreamIDOffset2 Sid = math.MaxUint64 / 2
)

// MagicNumber opens every handshake.
var MagicNumber = [7]byte{'G', 'A', 'M', 'E', 'N', 'E', 'T'}

// NetworkVersion is major/minor/patch. Major and minor must match on both ends.
var NetworkVersion = [3]uint32{0, 6, 0}

// NewPid returns a random Pid (UUIDv4 bytes).
func NewPid() Pid {
    u, err := uuid.NewV4()
    if err != nil {
        // entropy failure; fall back to crypto/rand directly
        var p Pid
        _, _ = rand.Read(p[:])
        return p
    }
    return Pid(*u)
}

// ParsePid accepts the canonical UUID form or 32 hex digits.
func ParsePid(s string) (Pid, error) {
    u, err := uuid.ParseHex(strings.TrimSpace(s))
    if err == nil { return Pid(*u), nil }
    b, herr := hex.DecodeString(strings.TrimSpace(s))
    if herr != nil || len(b) != len(Pid{}) {
        return Pid{}, fmt.Errorf("invalid pid %q", s)
    }
    var p Pid
    copy(p[:], b)
    return p, nil
}

func (p Pid) String() string {
    u := uuid.UUID(p)
    return u.String()
}

// IsZero reports whether p was never assigned.
func (p Pid) IsZero() bool { return p == Pid{} }

// NewSecret returns 128 random bits.
func NewSecret() Secret {
    var s Secret
    if _, err := rand.Read(s[:]); err != nil {
        panic(fmt.Sprintf("secret: %v", err))
    }
    return s
}

func (s Secret) String() string { return hex.EncodeToString(s[:]) }

// Promises is the set of delivery guarantees requested for a Stream.
type Promises uint8

const (
    PromiseOrdered Promises = 1 << iota
    PromiseConsistency
    PromiseGuaranteedDelivery
    PromiseCompressed
    PromiseEncrypted
)

// Contains reports whether every bit of o is set in p.
func (p Promises) Contains(o Promises) bool { return p&o == o }

func (p Promises) String() string {
    if p == 0 { return "none" }
    var parts []string
    names := []struct {
        bit  Promises
        name string
    }{
        {PromiseOrdered, "ordered"},
        {PromiseConsistency, "consistency"},
        {PromiseGuaranteedDelivery, "guaranteed-delivery"},
        {PromiseCompressed, "compressed"},
        {PromiseEncrypted, "encrypted"},
    }
    for _, n := range names {
        if p&n.bit != 0 { parts = append(parts, n.name) }
    }
    if rest := p &^ (PromiseEncrypted<<1 - 1); rest != 0 {
        parts = append(parts, fmt.Sprintf("0x%02x", uint8(rest)))
    }
    return strings.Join(parts, "|")
}

// ClampPrio limits p to HighestPrio.
func ClampPrio(p Prio) Prio {
    if p > HighestPrio { return HighestPrio }
    return p
}

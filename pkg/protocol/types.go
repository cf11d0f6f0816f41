// Package protocol turns stream events into wire frames and back.
//
// A channel is driven by one SendProtocol and one RecvProtocol working over an
// abstract ordered byte duplex (Drain / Sink). The send half queues messages
// in a priocq.Manager and only writes them on Flush; the recv half reassembles
// messages from their header and data frames.
package protocol

import (
    "errors"

    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

var (
    // ErrClosed is returned once the underlying byte duplex failed or closed.
    ErrClosed = errors.New("protocol: closed")
    // ErrViolated means the peer sent something that breaks the protocol.
    ErrViolated = errors.New("protocol: violated")
)

// Drain is the outgoing half of an ordered byte duplex. SendBytes must not
// retain the slice.
type Drain interface {
    SendBytes([]byte) error
}

// Sink is the incoming half of an ordered byte duplex. Each call returns the
// next chunk of bytes, chunk boundaries carry no meaning.
type Sink interface {
    RecvBytes() ([]byte, error)
}

// Event is one of OpenStream, CloseStream, Shutdown, Message.
type Event interface{ event() }

type OpenStream struct {
    Sid                 types.Sid
    Prio                types.Prio
    Promises            types.Promises
    GuaranteedBandwidth types.Bandwidth
}

type CloseStream struct {
    Sid types.Sid
}

type Shutdown struct{}

// Message is a complete application payload of one stream.
type Message struct {
    Sid  types.Sid
    Data []byte
}

func (OpenStream) event()  {}
func (CloseStream) event() {}
func (Shutdown) event()    {}
func (Message) event()     {}

// supportedPromises is what an ordered reliable byte stream can honour.
const supportedPromises = types.PromiseOrdered | types.PromiseConsistency | types.PromiseGuaranteedDelivery | types.PromiseCompressed

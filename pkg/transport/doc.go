// Package transport defines the byte-duplex bindings a channel runs on.
//
// The set of kinds is closed: TCP, QUIC, an in-process memory pipe and
// Windows named pipes. Each binding hands out Conns carrying an ordered,
// reliable byte stream; chunk boundaries of RecvBytes carry no meaning, the
// frame codec above restores message boundaries.
package transport

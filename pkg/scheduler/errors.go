package scheduler

import (
    "errors"
    "fmt"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
)

var (
    ErrSchedulerClosed = errors.New("scheduler: closed")
    // ErrInvalidSecret means a known Pid presented a different secret.
    ErrInvalidSecret = errors.New("scheduler: invalid secret")
)

// ConnectError is a failure to establish the connection itself.
type ConnectError struct {
    Addr transport.Addr
    Err  error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("connect %s: %v", e.Addr, e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// HandshakeError is a failure after the connection was up.
type HandshakeError struct {
    Remote string
    Err    error
}

func (e *HandshakeError) Error() string { return fmt.Sprintf("handshake with %s: %v", e.Remote, e.Err) }
func (e *HandshakeError) Unwrap() error { return e.Err }

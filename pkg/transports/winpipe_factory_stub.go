//go:build !windows

package transports

import (
    "fmt"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
)

func newWinPipeTransport() (transport.Transport, error) {
    return nil, fmt.Errorf("%s transport is not supported on this platform", transport.KindWinPipe)
}

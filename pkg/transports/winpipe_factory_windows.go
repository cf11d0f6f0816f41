//go:build windows

package transports

import (
    "github.com/felicpei/wasm-vogame-test/pkg/transport"
    "github.com/felicpei/wasm-vogame-test/pkg/transport/winpipe"
)

func newWinPipeTransport() (transport.Transport, error) { return winpipe.New(), nil }

package config

import (
    "fmt"
    "strings"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
)

// EndpointConfig names one address of one transport kind.
// Example YAML:
// listen:
//   - kind: tcp
//     address: ":14004"
//   - kind: quic
//     address: "0.0.0.0:14005"
//   - kind: winpipe
//     address: "\\\\.\\pipe\\gamenet"
// connect:
//   - kind: tcp
//     address: "game.example.org"
type EndpointConfig struct {
    Kind    string `mapstructure:"kind"`
    Address string `mapstructure:"address"`
}

// Addr converts the endpoint to a transport address.
func (e EndpointConfig) Addr() (transport.Addr, error) {
    k, err := transport.ParseKind(e.Kind)
    if err != nil { return transport.Addr{}, err }
    return transport.Addr{Kind: k, Address: strings.TrimSpace(e.Address)}, nil
}

func validateEndpoints(key string, eps []EndpointConfig) error {
    for i, e := range eps {
        if _, err := e.Addr(); err != nil {
            return fmt.Errorf("invalid %s[%d]: %w", key, i, err)
        }
        if strings.TrimSpace(e.Address) == "" {
            return fmt.Errorf("invalid %s[%d]: empty address", key, i)
        }
    }
    return nil
}

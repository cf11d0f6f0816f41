package config

import (
    "fmt"
    "strings"
    "sync"

    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

var (
    processPidOnce sync.Once
    processPid     types.Pid
)

// LocalPid returns the configured pid, or one generated once per process.
func (c *Config) LocalPid() (types.Pid, error) {
    if s := strings.TrimSpace(c.Pid); s != "" {
        p, err := types.ParsePid(s)
        if err != nil { return types.Pid{}, fmt.Errorf("invalid pid: %w", err) }
        return p, nil
    }
    processPidOnce.Do(func() { processPid = types.NewPid() })
    return processPid, nil
}

package config

import (
    "os"
    "path/filepath"
    "testing"

    "github.com/felicpei/wasm-vogame-test/pkg/transport"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

func TestLoadMissingExplicitFile(t *testing.T) {
    if _, err := Load(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
        t.Fatalf("expected error for a missing explicit config file")
    }
}

func TestLoadDefaults(t *testing.T) {
    dir := t.TempDir()
    wd, _ := os.Getwd()
    if err := os.Chdir(dir); err != nil { t.Fatalf("chdir: %v", err) }
    defer os.Chdir(wd)
    t.Setenv("HOME", dir)
    t.Setenv("GAMENET_CONFIG", "")
    t.Setenv("GAMENET_LOG_LEVEL", "debug")

    cfg, err := Load("")
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.Log.Level != "debug" { t.Fatalf("env override lost: %q", cfg.Log.Level) }
    if cfg.Net.FlushIntervalMS != 10 || cfg.Net.FlushBandwidth != 1_000_000_000 || cfg.Codec != "json" {
        t.Fatalf("defaults %+v", cfg)
    }
}

func TestLoadFileAndEnv(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "gamenet.yaml")
    yaml := `
app_name: test-server
codec: cbor
listen:
  - kind: tcp
    address: "127.0.0.1:0"
connect:
  - kind: quic
    address: "game.example.org"
net:
  flush_interval_ms: 25
`
    if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil { t.Fatalf("write: %v", err) }
    t.Setenv("GAMENET_NET_PREFER_IPV6", "true")

    cfg, err := Load(path)
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.AppName != "test-server" || cfg.Codec != "cbor" { t.Fatalf("got %+v", cfg) }
    if cfg.Net.FlushIntervalMS != 25 || cfg.Net.DefaultPort != 14004 || !cfg.Net.PreferIPv6 {
        t.Fatalf("net %+v", cfg.Net)
    }
    if cfg.Net.ShutdownTimeout().Minutes() != 2 { t.Fatalf("shutdown timeout %v", cfg.Net.ShutdownTimeout()) }
    a, err := cfg.Connect[0].Addr()
    if err != nil || a.Kind != transport.KindQUIC { t.Fatalf("connect %v %v", a, err) }
}

func TestValidateRejects(t *testing.T) {
    bad := []func(*Config){
        func(c *Config) { c.Log.Level = "loud" },
        func(c *Config) { c.Codec = "yaml" },
        func(c *Config) { c.Pid = "not-a-pid" },
        func(c *Config) { c.Listen = []EndpointConfig{{Kind: "udp", Address: ":1"}} },
        func(c *Config) { c.Connect = []EndpointConfig{{Kind: "tcp"}} },
        func(c *Config) { c.Net.HandshakeTimeoutMS = 0 },
    }
    for i, mut := range bad {
        c := Default()
        mut(c)
        if err := c.validate(); err == nil { t.Fatalf("case %d accepted", i) }
    }
}

func TestLocalPid(t *testing.T) {
    c := Default()
    a, _ := c.LocalPid()
    b, _ := c.LocalPid()
    if a != b || a.IsZero() { t.Fatalf("generated pid not stable") }
    want := types.NewPid()
    c.Pid = want.String()
    got, err := c.LocalPid()
    if err != nil || got != want { t.Fatalf("pinned pid %v %v", got, err) }
}

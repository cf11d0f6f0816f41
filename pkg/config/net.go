package config

import (
    "fmt"
    "time"

    "github.com/spf13/viper"
)

// NetConfig contains networking tuning options.
type NetConfig struct {
    FlushIntervalMS     int    `mapstructure:"flush_interval_ms"`
    FlushBandwidth      uint64 `mapstructure:"flush_bandwidth"` // bytes per second and channel
    DefaultPort         uint16 `mapstructure:"default_port"`
    PreferIPv6          bool   `mapstructure:"prefer_ipv6"`
    HandshakeTimeoutMS  int    `mapstructure:"handshake_timeout_ms"`
    ConnectTimeoutMS    int    `mapstructure:"connect_timeout_ms"`
    DisconnectTimeoutMS int    `mapstructure:"disconnect_timeout_ms"`
    ShutdownTimeoutMS   int    `mapstructure:"shutdown_timeout_ms"`
    // AcceptRate caps accepted connections per second and listener, 0 disables it
    AcceptRate  float64 `mapstructure:"accept_rate"`
    AcceptBurst int     `mapstructure:"accept_burst"`
}

func (n NetConfig) setDefaults(v *viper.Viper) {
    v.SetDefault("net.flush_interval_ms", n.FlushIntervalMS)
    v.SetDefault("net.flush_bandwidth", n.FlushBandwidth)
    v.SetDefault("net.default_port", n.DefaultPort)
    v.SetDefault("net.prefer_ipv6", n.PreferIPv6)
    v.SetDefault("net.handshake_timeout_ms", n.HandshakeTimeoutMS)
    v.SetDefault("net.connect_timeout_ms", n.ConnectTimeoutMS)
    v.SetDefault("net.disconnect_timeout_ms", n.DisconnectTimeoutMS)
    v.SetDefault("net.shutdown_timeout_ms", n.ShutdownTimeoutMS)
    v.SetDefault("net.accept_rate", n.AcceptRate)
    v.SetDefault("net.accept_burst", n.AcceptBurst)
}

func (n NetConfig) validate() error {
    for name, ms := range map[string]int{
        "net.flush_interval_ms":     n.FlushIntervalMS,
        "net.handshake_timeout_ms":  n.HandshakeTimeoutMS,
        "net.connect_timeout_ms":    n.ConnectTimeoutMS,
        "net.disconnect_timeout_ms": n.DisconnectTimeoutMS,
        "net.shutdown_timeout_ms":   n.ShutdownTimeoutMS,
    } {
        if ms <= 0 {
            return fmt.Errorf("invalid %s: %d", name, ms)
        }
    }
    if n.FlushBandwidth == 0 {
        return fmt.Errorf("invalid net.flush_bandwidth: 0")
    }
    if n.AcceptRate < 0 || n.AcceptBurst < 0 {
        return fmt.Errorf("invalid net.accept_rate/accept_burst: %g/%d", n.AcceptRate, n.AcceptBurst)
    }
    return nil
}

func (n NetConfig) FlushInterval() time.Duration { return ms(n.FlushIntervalMS) }
func (n NetConfig) HandshakeTimeout() time.Duration { return ms(n.HandshakeTimeoutMS) }
func (n NetConfig) ConnectTimeout() time.Duration { return ms(n.ConnectTimeoutMS) }
func (n NetConfig) DisconnectTimeout() time.Duration { return ms(n.DisconnectTimeoutMS) }
func (n NetConfig) ShutdownTimeout() time.Duration { return ms(n.ShutdownTimeoutMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

package main

import (
    "context"
    "fmt"
    "os"
    "time"

    "github.com/spf13/cobra"
    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/config"
    "github.com/felicpei/wasm-vogame-test/pkg/observability"
    "github.com/felicpei/wasm-vogame-test/pkg/scheduler"
    "github.com/felicpei/wasm-vogame-test/pkg/transport"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

type ping struct {
    Seq    int    `json:"seq" cbor:"1,keyasint"`
    SentNs int64  `json:"sent_ns" cbor:"2,keyasint"`
    Pad    []byte `json:"pad,omitempty" cbor:"3,keyasint,omitempty"`
}

type options struct {
    configPath string
    kind       string
    addr       string
    count      int
    size       int
    prio       uint8
    compressed bool
    timeout    time.Duration
}

func main() {
    var o options
    cmd := &cobra.Command{
        Use:           "gamenet-client",
        Short:         "Connect to a gamenet node and measure round trips on one stream",
        SilenceUsage:  true,
        SilenceErrors: true,
        Args:          cobra.NoArgs,
        RunE:          func(cmd *cobra.Command, args []string) error { return run(o) },
    }
    f := cmd.Flags()
    f.StringVar(&o.configPath, "config", "", "Path to YAML config file")
    f.StringVar(&o.kind, "kind", "tcp", "transport kind: tcp|quic|winpipe")
    f.StringVar(&o.addr, "addr", "127.0.0.1:14004", "node address to connect to")
    f.IntVar(&o.count, "count", 10, "number of pings")
    f.IntVar(&o.size, "size", 0, "padding bytes per ping")
    f.Uint8Var(&o.prio, "prio", 3, "stream priority, 0 is most urgent")
    f.BoolVar(&o.compressed, "compressed", false, "request LZ4 compression on the stream")
    f.DurationVar(&o.timeout, "timeout", 5*time.Second, "connect and per-ping timeout")

    if err := cmd.Execute(); err != nil {
        fmt.Fprintln(os.Stderr, "Error:", err)
        os.Exit(1)
    }
}

func run(o options) error {
    cfg, err := config.Load(o.configPath)
    if err != nil { return fmt.Errorf("load config: %w", err) }
    cfg.AppName = "gamenet-client"
    pid, err := cfg.LocalPid()
    if err != nil { return err }
    logger, err := observability.SetupLogger(cfg.Log, observability.ProcessFields(cfg, pid)...)
    if err != nil { return fmt.Errorf("setup logger: %w", err) }
    defer func() { _ = logger.Sync() }()

    kind, err := transport.ParseKind(o.kind)
    if err != nil { return err }

    s := scheduler.New(pid, *cfg)
    go func() { _ = s.Run(context.Background()) }()
    defer func() {
        ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
        defer cancel()
        _ = s.Shutdown(ctx)
    }()

    ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
    p, err := s.Connect(ctx, transport.Addr{Kind: kind, Address: o.addr})
    cancel()
    if err != nil { return err }
    zap.L().Info("connected", zap.Stringer("remote", p.RemotePid()))

    promises := types.PromiseOrdered | types.PromiseConsistency
    if o.compressed { promises |= types.PromiseCompressed }
    st, err := p.OpenStream(context.Background(), types.Prio(o.prio), promises, 0)
    if err != nil { return fmt.Errorf("open stream: %w", err) }
    defer st.Close()

    pad := make([]byte, o.size)
    var total time.Duration
    for i := 0; i < o.count; i++ {
        if err := st.SendValue(ping{Seq: i, SentNs: time.Now().UnixNano(), Pad: pad}); err != nil {
            return fmt.Errorf("send ping %d: %w", i, err)
        }
        var back ping
        ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
        err := st.RecvValue(ctx, &back)
        cancel()
        if err != nil { return fmt.Errorf("recv ping %d: %w", i, err) }
        rtt := time.Since(time.Unix(0, back.SentNs))
        total += rtt
        fmt.Printf("seq=%d rtt=%s bandwidth=%.0fB/s\n", back.Seq, rtt, p.Bandwidth())
    }
    if o.count > 0 {
        fmt.Printf("\n%d pings, avg rtt %s\n", o.count, total/time.Duration(o.count))
    }
    observability.DumpMetrics(s.Metrics())
    return s.Disconnect(context.Background(), p.RemotePid(), cfg.Net.DisconnectTimeout())
}

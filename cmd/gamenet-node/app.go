package main

import (
    "context"
    "errors"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/config"
    "github.com/felicpei/wasm-vogame-test/pkg/observability"
    "github.com/felicpei/wasm-vogame-test/pkg/participant"
    "github.com/felicpei/wasm-vogame-test/pkg/scheduler"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }

    pid, err := cfg.LocalPid()
    if err != nil {
        _, _ = os.Stderr.WriteString("invalid pid: " + err.Error() + "\n")
        return 1
    }
    logger, err := observability.SetupLogger(cfg.Log, observability.ProcessFields(cfg, pid)...)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()
    zap.L().Info("gamenet-node started")
    zap.L().Info("effective configuration", zap.Any("config", cfg))

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    s := scheduler.New(pid, *cfg)
    done := make(chan struct{})
    go func() { defer close(done); _ = s.Run(context.Background()) }()
    go observability.LogMetrics(ctx, s.Metrics(), time.Duration(cfg.Metrics.LogIntervalS)*time.Second)

    for _, ep := range cfg.Listen {
        a, _ := ep.Addr()
        la, err := s.Listen(ctx, a)
        if err != nil {
            zap.L().Error("listen failed", zap.Stringer("addr", a), zap.Error(err))
            shutdown(s, cfg)
            return 1
        }
        zap.L().Info("listening", zap.Stringer("kind", a.Kind), zap.String("addr", la.String()))
    }
    for _, ep := range cfg.Connect {
        a, _ := ep.Addr()
        p, err := s.Connect(ctx, a)
        if err != nil {
            zap.L().Warn("connect failed", zap.Stringer("addr", a), zap.Error(err))
            continue
        }
        go serve(ctx, p, opts.Echo)
    }

    go func() {
        for {
            p, err := s.Connected(ctx)
            if err != nil { return }
            go serve(ctx, p, opts.Echo)
        }
    }()

    zap.L().Info("node is running; press Ctrl+C to exit")
    <-ctx.Done()
    if err := shutdown(s, cfg); err != nil { return 1 }
    <-done
    return 0
}

func shutdown(s *scheduler.Scheduler, cfg *config.Config) error {
    ctx, cancel := context.WithTimeout(context.Background(), cfg.Net.ShutdownTimeout()+time.Second)
    defer cancel()
    err := s.Shutdown(ctx)
    if err != nil { zap.L().Warn("shutdown incomplete", zap.Error(err)) }
    return err
}

// serve handles every stream the remote opens until the participant closes.
func serve(ctx context.Context, p *participant.Participant, echo bool) {
    log := zap.L().With(zap.Stringer("remote", p.RemotePid()))
    log.Info("participant connected", zap.Int("channels", len(p.Channels())))
    for {
        st, err := p.Opened(ctx)
        if err != nil {
            if !errors.Is(err, context.Canceled) { log.Info("participant gone", zap.Error(p.Err())) }
            return
        }
        log.Debug("stream opened", zap.Uint64("sid", uint64(st.Sid())), zap.Uint8("prio", uint8(st.Prio())), zap.Stringer("promises", st.Promises()))
        go func(st *participant.Stream) {
            defer st.Close()
            for {
                b, err := st.Recv(ctx)
                if err != nil { return }
                if !echo { continue }
                if err := st.Send(b); err != nil { return }
            }
        }(st)
    }
}

// Package observability wires logging and metrics output for gamenet processes.
package observability

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "time"

    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"
    "gopkg.in/natefinch/lumberjack.v2"

    "github.com/felicpei/wasm-vogame-test/pkg/config"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

// SetupLogger builds the process logger from c, installs it as the global
// zap logger and routes the stdlib log package into it. Every entry carries
// base. The caller should defer logger.Sync().
func SetupLogger(c config.LogConfig, base ...zap.Field) (*zap.Logger, error) {
    level, err := parseLevel(c.Level)
    if err != nil { return nil, err }
    enc := newEncoder(c)

    outs := c.Outputs
    if len(outs) == 0 { outs = []string{"stdout"} }
    cores := make([]zapcore.Core, 0, len(outs))
    for _, out := range outs {
        ws, err := openOutput(out, c)
        if err != nil { return nil, err }
        cores = append(cores, zapcore.NewCore(enc, ws, level))
    }

    core := zapcore.NewTee(cores...)
    opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel)}
    if c.Development {
        opts = append(opts, zap.Development())
    } else {
        // per-channel debug lines repeat at flush rate under load
        core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
    }

    logger := zap.New(core, opts...).With(base...)
    zap.ReplaceGlobals(logger)
    _, _ = zap.RedirectStdLogAt(logger, zap.InfoLevel)
    return logger, nil
}

// ProcessFields identifies the running node in every log entry.
func ProcessFields(cfg *config.Config, local types.Pid) []zap.Field {
    return []zap.Field{zap.String("app", cfg.AppName), zap.Stringer("local_pid", local)}
}

func parseLevel(s string) (zapcore.Level, error) {
    s = strings.ToLower(strings.TrimSpace(s))
    switch s {
    case "":
        return zapcore.InfoLevel, nil
    case "warning":
        s = "warn"
    }
    l, err := zapcore.ParseLevel(s)
    if err != nil { return l, fmt.Errorf("invalid log.level: %q", s) }
    return l, nil
}

func newEncoder(c config.LogConfig) zapcore.Encoder {
    var ec zapcore.EncoderConfig
    if c.Development {
        ec = zap.NewDevelopmentEncoderConfig()
        ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
    } else {
        ec = zap.NewProductionEncoderConfig()
        ec.EncodeTime = zapcore.ISO8601TimeEncoder
    }
    ec.EncodeDuration = zapcore.StringDurationEncoder
    if strings.EqualFold(c.Format, "json") {
        if c.Development { ec.EncodeLevel = zapcore.CapitalLevelEncoder }
        return zapcore.NewJSONEncoder(ec)
    }
    return zapcore.NewConsoleEncoder(ec)
}

// openOutput resolves one log.outputs entry: stdout, stderr, "file" for
// log.rotation.filename, or a file path. Files rotate when rotation is on.
func openOutput(out string, c config.LogConfig) (zapcore.WriteSyncer, error) {
    switch strings.ToLower(strings.TrimSpace(out)) {
    case "stdout":
        return zapcore.Lock(os.Stdout), nil
    case "stderr":
        return zapcore.Lock(os.Stderr), nil
    case "file":
        out = strings.TrimSpace(c.Rotation.Filename)
        if out == "" { return nil, errors.New("log output \"file\" needs log.rotation.filename") }
    }
    if c.Rotation.Enable {
        return zapcore.AddSync(&lumberjack.Logger{
            Filename:   out,
            MaxSize:    atLeast(c.Rotation.MaxSizeMB, 10),
            MaxBackups: atLeast(c.Rotation.MaxBackups, 1),
            MaxAge:     atLeast(c.Rotation.MaxAgeDays, 7),
            Compress:   c.Rotation.Compress,
        }), nil
    }
    if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
        return nil, fmt.Errorf("log output %q: %w", out, err)
    }
    f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
    if err != nil { return nil, fmt.Errorf("log output %q: %w", out, err) }
    return zapcore.Lock(f), nil
}

func atLeast(v, floor int) int {
    if v < floor { return floor }
    return v
}

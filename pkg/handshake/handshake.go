// Package handshake authenticates a fresh channel: both ends agree on the
// protocol magic number and version, then exchange their Pid and secret.
package handshake

import (
    "errors"
    "fmt"
    "unicode/utf8"

    "go.uber.org/zap"

    "github.com/felicpei/wasm-vogame-test/pkg/protocol/frame"
    "github.com/felicpei/wasm-vogame-test/pkg/types"
)

var (
    ErrWrongMagicNumber = errors.New("handshake: wrong magic number")
    ErrWrongVersion     = errors.New("handshake: wrong version")
    // ErrClosed covers a premature close, a Raw diagnostic and any unexpected frame.
    ErrClosed = errors.New("handshake: closed")
)

const (
    wrongNumberText  = "Handshake does not contain the magic number required by this server.\nClosing the connection"
    wrongVersionText = "Handshake does contain a correct magic number, but an incompatible version.\nClosing the connection"
)

// Drain sends handshake frames.
type Drain interface {
    SendInit(frame.InitFrame) error
}

// Sink receives handshake frames.
type Sink interface {
    RecvInit() (frame.InitFrame, error)
}

// Result is what a successful handshake learned.
type Result struct {
    Pid    types.Pid
    Offset types.Sid // first Sid of the local allocation range
    Secret types.Secret
}

// Initialize runs the handshake. The initiator speaks first and gets
// StreamIDOffset1; the responder gets StreamIDOffset2.
func Initialize(d Drain, s Sink, initializer bool, local types.Pid, secret types.Secret) (Result, error) {
    hello := frame.Handshake{MagicNumber: types.MagicNumber, Version: types.NetworkVersion}
    if initializer {
        if err := d.SendInit(hello); err != nil { return Result{}, fmt.Errorf("%w: %v", ErrClosed, err) }
    }

    f, err := s.RecvInit()
    if err != nil { return Result{}, fmt.Errorf("%w: %v", ErrClosed, err) }
    switch f := f.(type) {
    case frame.Handshake:
        if f.MagicNumber != types.MagicNumber {
            zap.L().Error("connection with invalid magic number", zap.ByteString("magic", f.MagicNumber[:]))
            _ = d.SendInit(frame.Raw{Data: []byte(wrongNumberText)})
            return Result{}, fmt.Errorf("%w: %q", ErrWrongMagicNumber, f.MagicNumber[:])
        }
        if f.Version[0] != types.NetworkVersion[0] || f.Version[1] != types.NetworkVersion[1] {
            zap.L().Error("connection with wrong network version", zap.Uint32s("version", f.Version[:]))
            text := fmt.Sprintf("%s\nOur Version: %v\nYour Version: %v", wrongVersionText, types.NetworkVersion, f.Version)
            _ = d.SendInit(frame.Raw{Data: []byte(text)})
            return Result{}, fmt.Errorf("%w: %v", ErrWrongVersion, f.Version)
        }
        var reply frame.InitFrame = hello
        if initializer { reply = frame.Init{Pid: local, Secret: secret} }
        if err := d.SendInit(reply); err != nil { return Result{}, fmt.Errorf("%w: %v", ErrClosed, err) }
    default:
        return Result{}, unexpected(f)
    }

    f, err = s.RecvInit()
    if err != nil { return Result{}, fmt.Errorf("%w: %v", ErrClosed, err) }
    init, ok := f.(frame.Init)
    if !ok { return Result{}, unexpected(f) }
    zap.L().Debug("participant sent its id", zap.Stringer("pid", init.Pid))

    offset := types.StreamIDOffset1
    if !initializer {
        if err := d.SendInit(frame.Init{Pid: local, Secret: secret}); err != nil {
            return Result{}, fmt.Errorf("%w: %v", ErrClosed, err)
        }
        offset = types.StreamIDOffset2
    }
    return Result{Pid: init.Pid, Offset: offset, Secret: init.Secret}, nil
}

func unexpected(f frame.InitFrame) error {
    if raw, ok := f.(frame.Raw); ok {
        if utf8.Valid(raw.Data) {
            zap.L().Error("peer closed the handshake", zap.String("reason", string(raw.Data)))
        } else {
            zap.L().Error("peer closed the handshake", zap.Int("raw_bytes", len(raw.Data)))
        }
        return fmt.Errorf("%w: peer sent diagnostic", ErrClosed)
    }
    zap.L().Info("handshake failed", zap.String("frame", fmt.Sprintf("%T", f)))
    return fmt.Errorf("%w: unexpected %T", ErrClosed, f)
}

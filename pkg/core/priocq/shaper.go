package priocq

import (
    "context"
    "sync"
    "time"
)

// TokenBucket paces work to a steady rate with bursts of up to capacity.
// A nil bucket never waits.
type TokenBucket struct {
    mu       sync.Mutex
    capacity float64
    tokens   float64
    rate     float64 // tokens per second
    last     time.Time
    now      func() time.Time
}

// NewTokenBucket returns nil for a non-positive rate.
func NewTokenBucket(ratePerSec float64, capacity int) *TokenBucket {
    if ratePerSec <= 0 { return nil }
    c := float64(capacity)
    if c < 1 { c = 1 }
    return &TokenBucket{capacity: c, tokens: c, rate: ratePerSec, now: time.Now}
}

// Reserve takes n tokens, going into debt if needed, and returns how long the
// caller has to wait before the tokens are really available.
func (b *TokenBucket) Reserve(n float64) time.Duration {
    if b == nil { return 0 }
    b.mu.Lock(); defer b.mu.Unlock()
    now := b.now()
    if !b.last.IsZero() {
        b.tokens += now.Sub(b.last).Seconds() * b.rate
        if b.tokens > b.capacity { b.tokens = b.capacity }
    }
    b.last = now
    b.tokens -= n
    if b.tokens >= 0 { return 0 }
    return time.Duration(-b.tokens / b.rate * float64(time.Second))
}

// Wait blocks until one token is available or ctx is done.
func (b *TokenBucket) Wait(ctx context.Context) error {
    d := b.Reserve(1)
    if d <= 0 { return ctx.Err() }
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}

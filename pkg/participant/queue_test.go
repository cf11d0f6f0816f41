package participant

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"
)

func TestQueueFIFOAndClose(t *testing.T) {
    q := newQueue[int]()
    for i := 0; i < 5; i++ { q.push(i) }
    q.close()
    if q.push(9) { t.Fatalf("push after close accepted") }
    for i := 0; i < 5; i++ {
        v, err := q.pop(context.Background())
        if err != nil || v != i { t.Fatalf("pop %d: %d, %v", i, v, err) }
    }
    if _, err := q.pop(context.Background()); !errors.Is(err, errQueueClosed) { t.Fatalf("expected closed, got %v", err) }
}

func TestQueuePopWaitsAndHonoursContext(t *testing.T) {
    q := newQueue[string]()
    ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
    defer cancel()
    if _, err := q.pop(ctx); !errors.Is(err, context.DeadlineExceeded) { t.Fatalf("got %v", err) }

    go func() { time.Sleep(10 * time.Millisecond); q.push("late") }()
    v, err := q.pop(context.Background())
    if err != nil || v != "late" { t.Fatalf("got %q, %v", v, err) }
}

func TestQueueConcurrentConsumers(t *testing.T) {
    q := newQueue[int]()
    const n = 1000
    var wg sync.WaitGroup
    seen := make([]int, n)
    var mu sync.Mutex
    for w := 0; w < 4; w++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            for {
                v, err := q.pop(context.Background())
                if err != nil { return }
                mu.Lock(); seen[v]++; mu.Unlock()
            }
        }()
    }
    for i := 0; i < n; i++ { q.push(i) }
    q.close()
    wg.Wait()
    for i, c := range seen {
        if c != 1 { t.Fatalf("item %d seen %d times", i, c) }
    }
}

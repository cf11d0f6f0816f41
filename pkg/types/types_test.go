package types

import "testing"

func TestPidParseRoundtrip(t *testing.T) {
    p := NewPid()
    if p.IsZero() { t.Fatalf("zero pid") }
    q, err := ParsePid(p.String())
    if err != nil { t.Fatalf("parse: %v", err) }
    if q != p { t.Fatalf("pid mismatch: %s vs %s", q, p) }
    if NewPid() == p { t.Fatalf("pids repeat") }
}

func TestParsePidRejectsGarbage(t *testing.T) {
    if _, err := ParsePid("not-a-pid"); err == nil { t.Fatalf("expected error") }
}

func TestPromises(t *testing.T) {
    p := PromiseOrdered | PromiseCompressed
    if !p.Contains(PromiseOrdered) || p.Contains(PromiseEncrypted) {
        t.Fatalf("contains wrong: %s", p)
    }
    if got := p.String(); got != "ordered|compressed" { t.Fatalf("string = %q", got) }
    if Promises(0).String() != "none" { t.Fatalf("empty promises string") }
}

func TestOffsetsDisjoint(t *testing.T) {
    if StreamIDOffset2 <= StreamIDOffset1 { t.Fatalf("offsets overlap") }
    if ClampPrio(200) != HighestPrio || ClampPrio(3) != 3 { t.Fatalf("clamp") }
}

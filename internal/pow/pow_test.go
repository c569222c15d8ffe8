package pow

import (
	"testing"
	"time"
)

func TestComputeThenValidateSucceeds(t *testing.T) {
	tok := Compute("node-1:9000", 4)
	v := NewVerifier(4)
	if err := v.Validate(tok, "node-1:9000"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsWrongAddress(t *testing.T) {
	tok := Compute("node-1:9000", 4)
	v := NewVerifier(4)
	if err := v.Validate(tok, "node-2:9000"); err != ErrWrongAddress {
		t.Fatalf("err = %v, want ErrWrongAddress", err)
	}
}

func TestValidateRejectsStaleTimestamp(t *testing.T) {
	tok := Compute("node-1:9000", 1)
	tok.Timestamp -= int64(MaxClockSkew.Seconds()) + 10
	v := NewVerifier(1)
	if err := v.Validate(tok, "node-1:9000"); err != ErrStale {
		t.Fatalf("err = %v, want ErrStale", err)
	}
}

func TestValidateRejectsInsufficientDifficulty(t *testing.T) {
	tok := Compute("node-1:9000", 1)
	v := NewVerifier(30)
	if err := v.Validate(tok, "node-1:9000"); err != ErrInsufficientDifficulty {
		t.Fatalf("err = %v, want ErrInsufficientDifficulty", err)
	}
}

func TestValidateRejectsReplay(t *testing.T) {
	tok := Compute("node-1:9000", 1)
	v := NewVerifier(1)
	if err := v.Validate(tok, "node-1:9000"); err != nil {
		t.Fatalf("first Validate: %v", err)
	}
	if err := v.Validate(tok, "node-1:9000"); err != ErrReplayed {
		t.Fatalf("second Validate err = %v, want ErrReplayed", err)
	}
}

func TestEvictExpiredAllowsReplayAfterWindow(t *testing.T) {
	tok := Compute("node-1:9000", 1)
	v := NewVerifier(1)
	if err := v.Validate(tok, "node-1:9000"); err != nil {
		t.Fatalf("first Validate: %v", err)
	}
	v.mu.Lock()
	v.seen[fingerprint(tok)] = time.Now().Add(-DedupWindow - time.Second)
	v.mu.Unlock()

	if err := v.Validate(tok, "node-1:9000"); err != nil {
		t.Fatalf("Validate after window expiry: %v", err)
	}
}

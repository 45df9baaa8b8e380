package ratelimit

import (
	"strings"
	"testing"
	"time"
)

func TestNewAllowedDecision(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	resetAt := now.Add(45 * time.Second)

	d := NewAllowedDecision("192.0.2.1", "ip", 100, 57, resetAt, now)

	if !d.Allowed {
		t.Error("Allowed = false, want true")
	}
	if d.IsDenied() {
		t.Error("IsDenied() = true, want false")
	}
	if d.Limit != 100 || d.Remaining != 57 {
		t.Errorf("Limit/Remaining = %d/%d, want 100/57", d.Limit, d.Remaining)
	}
	if d.RetryAfter != 45*time.Second {
		t.Errorf("RetryAfter = %v, want 45s", d.RetryAfter)
	}
	if d.ResetAtUnix() != resetAt.Unix() {
		t.Errorf("ResetAtUnix() = %d, want %d", d.ResetAtUnix(), resetAt.Unix())
	}
}

func TestNewDeniedDecision(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	resetAt := now.Add(30 * time.Second)

	d := NewDeniedDecision("user-9", "user", 100, resetAt, now)

	if d.Allowed {
		t.Error("Allowed = true, want false")
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
	if d.RetryAfterSeconds() != 30 {
		t.Errorf("RetryAfterSeconds() = %d, want 30", d.RetryAfterSeconds())
	}
}

func TestDecision_RetryAfterNeverNegative(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	// Reset time in the past clamps to zero rather than producing a
	// negative Retry-After header.
	d := NewDeniedDecision("k", "ip", 10, now.Add(-time.Second), now)
	if d.RetryAfter != 0 {
		t.Errorf("RetryAfter = %v, want 0", d.RetryAfter)
	}
	if d.RetryAfterSeconds() != 0 {
		t.Errorf("RetryAfterSeconds() = %d, want 0", d.RetryAfterSeconds())
	}
}

func TestDecision_Unlimited(t *testing.T) {
	now := time.Now()
	d := NewAllowedDecision("admin", "user", UnlimitedLimit, UnlimitedLimit, now, now)
	if !d.Unlimited() {
		t.Error("Unlimited() = false, want true")
	}

	d = NewAllowedDecision("user", "user", 100, 99, now, now)
	if d.Unlimited() {
		t.Error("Unlimited() = true, want false")
	}
}

func TestNewFailOpenDecision(t *testing.T) {
	now := time.Now()
	d := NewFailOpenDecision("192.0.2.1", "ip", 100, now)

	if !d.Allowed {
		t.Error("fail-open decision must be allowed")
	}
	if !d.FailOpen {
		t.Error("FailOpen = false, want true")
	}
}

func TestDecision_String(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	allowed := NewAllowedDecision("k1", "ip", 10, 4, now.Add(time.Minute), now)
	if s := allowed.String(); !strings.Contains(s, "Allowed: true") || !strings.Contains(s, "4/10") {
		t.Errorf("allowed String() = %q", s)
	}

	denied := NewDeniedDecision("k1", "ip", 10, now.Add(time.Minute), now)
	if s := denied.String(); !strings.Contains(s, "Allowed: false") {
		t.Errorf("denied String() = %q", s)
	}
}

package services

import (
	"testing"
	"time"
)

func TestCooldownSecondsForFailCount(t *testing.T) {
	tests := []struct {
		failCount int
		want      int
	}{
		{0, 1},   // 2^0=1
		{1, 2},   // 2^1=2
		{2, 4},   // 2^2=4
		{3, 8},   // 2^3=8
		{4, 16},  // 2^4=16
		{5, 30},  // 2^5=32 -> cap 30
		{6, 30},  // 2^6=64 -> cap 30
		{10, 30}, // cap 30
		{62, 30},
		{63, 30},
		{64, 30},
		{1000, 30},
	}
	for _, tt := range tests {
		got := CooldownSecondsForFailCount(tt.failCount)
		if got != tt.want {
			t.Errorf("CooldownSecondsForFailCount(%d) = %d, want %d", tt.failCount, got, tt.want)
		}
	}
}

func TestLoginThrottle(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	th := NewLoginThrottle()
	th.now = func() time.Time { return now }
	const key = "manager"

	if wait := th.WaitSeconds(key); wait != 0 {
		t.Errorf("fresh key: wait = %d, want 0", wait)
	}

	th.RecordFailed(key)
	if wait := th.WaitSeconds(key); wait != 3 {
		t.Errorf("after one fail: wait = %d, want 3 (2s cooldown rounded up)", wait)
	}

	now = now.Add(3 * time.Second)
	if wait := th.WaitSeconds(key); wait != 0 {
		t.Errorf("after cooldown expired: wait = %d, want 0", wait)
	}

	for i := 0; i < 8; i++ {
		th.RecordFailed(key)
	}
	if wait := th.WaitSeconds(key); wait > ThrottleCooldownCapSeconds+1 {
		t.Errorf("after 9 fails: wait = %d, want <= %d", wait, ThrottleCooldownCapSeconds+1)
	}
	if wait := th.WaitSeconds("other"); wait != 0 {
		t.Errorf("other key throttled: wait = %d", wait)
	}

	th.RecordSuccess(key)
	if wait := th.WaitSeconds(key); wait != 0 {
		t.Errorf("after success: wait = %d, want 0", wait)
	}
}

func TestLoginThrottleStaysOnAfterManyFailures(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	th := NewLoginThrottle()
	th.now = func() time.Time { return now }

	for i := 0; i < 200; i++ {
		th.RecordFailed("manager")
		if wait := th.WaitSeconds("manager"); wait < 1 || wait > ThrottleCooldownCapSeconds+1 {
			t.Fatalf("after %d fails: wait = %d, want 1..%d", i+1, wait, ThrottleCooldownCapSeconds+1)
		}
		now = now.Add(ThrottleCooldownCapSeconds * time.Second)
	}
}

func TestLoginThrottleForgetsIdleKeys(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	th := NewLoginThrottle()
	th.now = func() time.Time { return now }

	for _, user := range []string{"a", "b", "c"} {
		th.RecordFailed(user)
	}
	if n := th.Len(); n != 3 {
		t.Fatalf("Len = %d, want 3", n)
	}

	now = now.Add(throttleForgetAfter + time.Minute)
	th.RecordFailed("d")
	if n := th.Len(); n != 1 {
		t.Errorf("Len after idle period = %d, want 1", n)
	}
	if wait := th.WaitSeconds("d"); wait != 3 {
		t.Errorf("fresh key: wait = %d, want 3", wait)
	}
}

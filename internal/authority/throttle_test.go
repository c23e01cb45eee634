package authority

import (
	"testing"
	"time"
)

func TestThrottle_LockAndExpiry(t *testing.T) {
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	th := newThrottle(15*time.Minute, 3, 10*time.Minute)
	th.now = func() time.Time { return now }

	if ok, _ := th.allow("98765"); !ok {
		t.Fatal("fresh transmitter blocked")
	}
	if th.failure("98765") {
		t.Fatal("locked after one failure")
	}
	if th.failure("98765") {
		t.Fatal("locked after two failures")
	}
	if !th.failure("98765") {
		t.Fatal("not locked after three failures")
	}
	ok, left := th.allow("98765")
	if ok {
		t.Fatal("allowed while locked")
	}
	if left <= 0 || left > 10*time.Minute {
		t.Fatalf("lock remaining out of range: %s", left)
	}

	now = now.Add(10*time.Minute + time.Second)
	if ok, _ := th.allow("98765"); !ok {
		t.Fatal("still blocked after lock expiry")
	}
	// Expired lock clears the failure history too.
	if th.failure("98765") {
		t.Fatal("single failure after expiry re-engaged the lock")
	}
}

func TestThrottle_WindowPrunesOldFailures(t *testing.T) {
	now := time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)
	th := newThrottle(5*time.Minute, 3, 10*time.Minute)
	th.now = func() time.Time { return now }

	th.failure("98765")
	th.failure("98765")

	// Old failures age out of the window before the third arrives.
	now = now.Add(6 * time.Minute)
	if th.failure("98765") {
		t.Fatal("stale failures counted toward the lock")
	}
}

func TestThrottle_SuccessClears(t *testing.T) {
	th := newThrottle(15*time.Minute, 3, 10*time.Minute)
	th.failure("98765")
	th.failure("98765")
	th.success("98765")
	if th.failure("98765") {
		t.Fatal("failure after success engaged the lock")
	}
}

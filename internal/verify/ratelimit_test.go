package verify

import "testing"

func TestRateLimiter_Window(t *testing.T) {
	r := newRateLimiter(3)
	for i := 0; i < 3; i++ {
		if !r.allow("u1") {
			t.Fatalf("message %d rejected inside budget", i+1)
		}
	}
	if r.allow("u1") {
		t.Error("message over budget allowed")
	}
	// Other users have independent budgets.
	if !r.allow("u2") {
		t.Error("independent user rejected")
	}
	r.reset()
	if !r.allow("u1") {
		t.Error("message rejected after window reset")
	}
}

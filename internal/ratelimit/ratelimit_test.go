package ratelimit

import (
	"testing"
	"time"
)

func TestAllowPermitsUpToRate(t *testing.T) {
	l := New(3, time.Minute)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !l.allowAt("host-a", now) {
			t.Fatalf("expected request %d to be allowed", i)
		}
	}
	if l.allowAt("host-a", now) {
		t.Fatalf("expected request beyond rate to be denied")
	}
}

func TestAllowResetsAfterWindow(t *testing.T) {
	l := New(1, time.Minute)
	base := time.Now()
	if !l.allowAt("host-a", base) {
		t.Fatalf("expected first request to be allowed")
	}
	if l.allowAt("host-a", base.Add(30*time.Second)) {
		t.Fatalf("expected second request within window to be denied")
	}
	if !l.allowAt("host-a", base.Add(61*time.Second)) {
		t.Fatalf("expected request after window to be allowed")
	}
}

func TestAllowKeysAreIndependent(t *testing.T) {
	l := New(1, time.Minute)
	now := time.Now()
	if !l.allowAt("host-a", now) || !l.allowAt("host-b", now) {
		t.Fatalf("expected independent keys to each get their own budget")
	}
}

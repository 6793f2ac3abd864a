package signing

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestSignThenVerifySucceeds(t *testing.T) {
	s := New("signkey-prod-abc123", "")
	body := []byte(`{"hello":"world"}`)

	hdr, err := s.Sign(body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := s.Verify(hdr, body); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	s := New("signkey-prod-abc123", "")
	hdr, _ := s.Sign([]byte(`{"a":1}`))
	if err := s.Verify(hdr, []byte(`{"a":2}`)); err == nil {
		t.Fatalf("expected verification to fail for a tampered body")
	}
}

func TestVerifyFallsBackToSecondaryKey(t *testing.T) {
	old := New("signkey-prod-old", "")
	body := []byte(`{"a":1}`)
	hdr, _ := old.Sign(body)

	rotated := New("signkey-prod-new", "signkey-prod-old")
	if err := rotated.Verify(hdr, body); err != nil {
		t.Fatalf("expected fallback key to verify, got %v", err)
	}
}

func TestVerifyRejectsExpiredTimestamp(t *testing.T) {
	s := New("signkey-prod-abc123", "")
	body := []byte(`{"a":1}`)

	old := time.Now().Add(-10 * time.Minute).Unix()
	sig := hexHMAC(s.key, old, body)
	hdr := "t=" + strconv.FormatInt(old, 10) + "&s=" + sig

	if err := s.Verify(hdr, body); err == nil {
		t.Fatalf("expected expired signature to be rejected")
	}
}

func TestVerifyAcceptsReorderedKeysAsCanonicallyIdentical(t *testing.T) {
	s := New("signkey-prod-abc123", "")
	hdr, err := s.Sign([]byte(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := s.Verify(hdr, []byte(`{"b":2,"a":1}`)); err != nil {
		t.Fatalf("expected a key-reordered but semantically identical body to verify, got %v", err)
	}
}

func TestStripsSignkeyPrefix(t *testing.T) {
	s := New("signkey-branch-foo-bar", "")
	if strings.HasPrefix(s.key, "signkey-") {
		t.Fatalf("expected signkey prefix to be stripped, got %q", s.key)
	}
}

func TestCanonicalSortsKeys(t *testing.T) {
	a, err := Canonical([]byte(`{"b":1,"a":2}`))
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	b, err := Canonical([]byte(`{"a":2,"b":1}`))
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected canonical forms to match regardless of input order: %q != %q", a, b)
	}
}

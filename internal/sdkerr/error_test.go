package sdkerr

import (
	"encoding/json"
	"errors"
	"testing"
)

type fakeNonRetriable struct{ msg string }

func (e *fakeNonRetriable) Error() string     { return e.msg }
func (e *fakeNonRetriable) ErrorName() string { return "NonRetriableError" }

type fakeRetryAfter struct{ msg, after string }

func (e *fakeRetryAfter) Error() string          { return e.msg }
func (e *fakeRetryAfter) ErrorName() string      { return "RetryAfterError" }
func (e *fakeRetryAfter) RetryAfterValue() string { return e.after }

func TestClassifyMatchesByName(t *testing.T) {
	se := Classify(&fakeNonRetriable{msg: "do not retry this"})
	if se.Retriable {
		t.Fatalf("expected non-retriable error to classify as non-retriable")
	}
	if se.Code != CodeNonRetriable {
		t.Fatalf("expected CodeNonRetriable, got %s", se.Code)
	}
}

func TestClassifyRetryAfterCarriesDelay(t *testing.T) {
	se := Classify(&fakeRetryAfter{msg: "rate limited", after: "30s"})
	if !se.Retriable {
		t.Fatalf("expected retry-after error to be retriable")
	}
	if se.RetryAfter != "30s" {
		t.Fatalf("expected retry-after value to survive classification, got %q", se.RetryAfter)
	}
}

func TestClassifyUnknownErrorDefaultsRetriable(t *testing.T) {
	se := Classify(errors.New("boom"))
	if !se.Retriable {
		t.Fatalf("expected unrecognized errors to default to retriable")
	}
}

func TestSerializeRoundTripPreservesIdentity(t *testing.T) {
	original := Classify(&fakeNonRetriable{msg: "stop"})
	wire := Serialize(original)

	b, err := json.Marshal(wire)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded Wire
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	rebuilt := Deserialize(&decoded)

	if rebuilt.Name != original.Name {
		t.Fatalf("name mismatch: %q != %q", rebuilt.Name, original.Name)
	}
	if rebuilt.Message != original.Message {
		t.Fatalf("message mismatch: %q != %q", rebuilt.Message, original.Message)
	}
	if rebuilt.Retriable != original.Retriable {
		t.Fatalf("retriable mismatch")
	}
	if rebuilt.Code != original.Code {
		t.Fatalf("code mismatch")
	}
}

func TestSerializeCapsCauseChainDepth(t *testing.T) {
	var chain error = errors.New("root cause")
	for i := 0; i < maxCauseDepth+5; i++ {
		chain = Classify(chain)
	}
	wire := Serialize(Classify(chain))

	depth := 0
	for w := wire; w != nil; w = w.Cause {
		depth++
	}
	if depth > maxCauseDepth+1 {
		t.Fatalf("expected cause chain capped near %d, got %d", maxCauseDepth, depth)
	}
}

func TestRedactScrubsSecrets(t *testing.T) {
	msg := "connecting with api_key: sk_live_abcdef1234567890"
	if got := Redact(msg); got == msg {
		t.Fatalf("expected redaction to change the message")
	}
}

func TestSentinelDistinguishesWireErrors(t *testing.T) {
	se := Classify(errors.New("x"))
	wire := Serialize(se)
	if wire.Sentinel != Sentinel {
		t.Fatalf("expected sentinel %q, got %q", Sentinel, wire.Sentinel)
	}
}

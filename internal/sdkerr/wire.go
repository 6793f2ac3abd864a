package sdkerr

import "encoding/json"

// Wire is the JSON shape a StepError takes when it crosses the HTTP
// boundary, either as step output (a failed memoized step) or as the
// body of a function-rejected result. The Sentinel field lets a decoder
// distinguish it from ordinary step data that happens to carry a "name"
// key.
type Wire struct {
	Sentinel   string `json:"__stepflowError"`
	Name       string `json:"name"`
	Message    string `json:"message"`
	Stack      string `json:"stack,omitempty"`
	Code       Code   `json:"code,omitempty"`
	Retriable  bool   `json:"retriable"`
	RetryAfter string `json:"retryAfter,omitempty"`
	Cause      *Wire  `json:"cause,omitempty"`
}

// Serialize converts a StepError into its wire form, redacting the
// message and stack and truncating the cause chain at maxCauseDepth.
func Serialize(err *StepError) *Wire {
	return serializeAt(err, 0)
}

func serializeAt(err *StepError, depth int) *Wire {
	if err == nil {
		return nil
	}
	w := &Wire{
		Sentinel:   Sentinel,
		Name:       err.Name,
		Message:    Redact(err.Message),
		Stack:      Redact(Truncate(err.Stack, 8192)),
		Code:       err.Code,
		Retriable:  err.Retriable,
		RetryAfter: err.RetryAfter,
	}
	if depth >= maxCauseDepth {
		return w
	}
	if cause := Wrap(err.Cause); cause != nil {
		w.Cause = serializeAt(cause, depth+1)
	}
	return w
}

// Deserialize reconstructs a StepError from its wire form, rebuilding
// the cause chain. A value round-tripped through Serialize then
// Deserialize preserves Name, Code, and Retriable exactly, and Message
// except for any substrings Serialize redacted — the other one-way
// losses are Stack (redacted/truncated) and any cause beyond
// maxCauseDepth.
func Deserialize(w *Wire) *StepError {
	if w == nil {
		return nil
	}
	se := &StepError{
		Name:       w.Name,
		Message:    w.Message,
		Stack:      w.Stack,
		Code:       w.Code,
		Retriable:  w.Retriable,
		RetryAfter: w.RetryAfter,
	}
	if w.Cause != nil {
		se.Cause = Deserialize(w.Cause)
	}
	return se
}

// MarshalJSON lets a *StepError be embedded directly in a larger payload
// (e.g. a step state entry's "error" field) without an explicit
// Serialize/json.Marshal two-step.
func (e *StepError) MarshalJSON() ([]byte, error) {
	return json.Marshal(Serialize(e))
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *StepError) UnmarshalJSON(data []byte) error {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = *Deserialize(&w)
	return nil
}

package commhandler

import (
	"encoding/json"
	"fmt"

	"stepflow/internal/engine"
)

// Encoded is a fully-rendered response: the status code, body bytes, and
// retry-control headers the comm handler should write. The caller (the
// serve package) is responsible for signing Body and setting the
// signature header — this function has no opinion on transport framing.
type Encoded struct {
	Status  int
	Body    []byte
	Headers map[string]string
}

// EncodeResult renders result into the status/body/headers the platform
// expects for its kind, per spec.md's response table: function-resolved
// is 200, step-ran and steps-found are 206, step-not-found is 500 (not
// the legacy 999), and function-rejected is 500 unless the error is
// non-retriable, which is 400. No-Retry and Retry-After are set wherever
// the table calls for them.
func EncodeResult(result engine.Result) (Encoded, error) {
	switch result.Kind {
	case engine.ResultFunctionResolved:
		body := result.Data
		if body == nil {
			body = []byte("null")
		}
		return Encoded{Status: 200, Body: body}, nil

	case engine.ResultFunctionRejected:
		status := 500
		headers := map[string]string{"No-Retry": "false"}
		if result.Error != nil && !result.Error.Retriable {
			status = 400
			headers["No-Retry"] = "true"
		}
		if result.Error != nil && result.Error.RetryAfter != "" {
			headers["Retry-After"] = result.Error.RetryAfter
		}
		enc, err := jsonEncode(status, map[string]any{"error": result.Error})
		enc.Headers = headers
		return enc, err

	case engine.ResultStepsFound:
		return jsonEncode(206, result.Steps)

	case engine.ResultStepRan:
		return jsonEncode(206, result.Step)

	case engine.ResultStepNotFound:
		enc, err := jsonEncode(500, map[string]any{"error": result.Error})
		enc.Headers = map[string]string{"No-Retry": "false"}
		return enc, err

	default:
		return Encoded{}, fmt.Errorf("commhandler: unknown result kind %q", result.Kind)
	}
}

func jsonEncode(status int, v any) (Encoded, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Encoded{}, fmt.Errorf("commhandler: encoding response: %w", err)
	}
	return Encoded{Status: status, Body: b}, nil
}

package sdkerr

// Code is a machine-readable classification for an error raised anywhere
// in a step's execution path.
type Code string

const (
	CodeUnknown        Code = "unknown"
	CodeNonRetriable   Code = "non_retriable"
	CodeRetryAfter     Code = "retry_after"
	CodeRetriable      Code = "retriable"
	CodeOutgoingResult Code = "outgoing_result"
	CodeFatalParse     Code = "fatal_parse"
	CodeStepNotFound   Code = "step_not_found"
	CodeSignature      Code = "signature"
	CodeConfig         Code = "config"
	CodeTransport      Code = "transport"
)

// Category groups codes into the broad buckets a caller reasons about
// when deciding whether to surface, retry, or alert on an error.
func (c Code) Category() string {
	switch c {
	case CodeNonRetriable, CodeFatalParse, CodeStepNotFound, CodeSignature, CodeConfig:
		return "terminal"
	case CodeRetryAfter, CodeRetriable, CodeTransport:
		return "transient"
	case CodeOutgoingResult:
		return "control"
	default:
		return "unknown"
	}
}

// IsRetryable reports the default retry disposition for a bare code with
// no accompanying error value to inspect.
func (c Code) IsRetryable() bool {
	return c.Category() == "transient"
}

package sdkerr

import "regexp"

// redaction is one category of sensitive data this package scrubs from
// error messages and context before they reach a log sink or an HTTP
// response body.
type redaction struct {
	name    string
	pattern *regexp.Regexp
}

var redactions = []redaction{
	{"api_key", regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]?\s*)["']?[a-zA-Z0-9_\-]{8,}["']?`)},
	{"bearer_token", regexp.MustCompile(`(?i)(bearer\s+)["']?[a-zA-Z0-9_\-.]{10,}["']?`)},
	{"token", regexp.MustCompile(`(?i)(token\s*[:=]?\s*)["']?[a-zA-Z0-9_\-]{8,}["']?`)},
	{"secret", regexp.MustCompile(`(?i)(secret\s*[:=]?\s*)["']?[a-zA-Z0-9_\-]{4,}["']?`)},
	{"password", regexp.MustCompile(`(?i)(pass(word|wd)\s*[:=]\s*)["']?[^\s"']+["']?`)},
	{"private_key_block", regexp.MustCompile(`(?i)(-----BEGIN (RSA |EC |OPENSSH )?PRIVATE KEY-----)[^-]+(-----END (RSA |EC |OPENSSH )?PRIVATE KEY-----)`)},
	{"db_conn_string", regexp.MustCompile(`(?i)((mongodb(\+srv)?|postgres(ql)?|mysql|redis)://)[^\s"']+@[^\s"']+`)},
	{"aws_access_key", regexp.MustCompile(`(?i)AKIA[0-9A-Z]{16}`)},
	{"aws_secret_key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key\s*[:=]\s*)["']?[a-zA-Z0-9/+=]{40}["']?`)},
	{"url_with_creds", regexp.MustCompile(`(?i)(https?://)[a-zA-Z0-9_\-]+:[^@\s"']+@[^\s"']+`)},
	{"signing_key", regexp.MustCompile(`(?i)signkey-[a-z]+-[a-f0-9]+`)},
}

// Redact replaces any substrings in s that match a known sensitive
// pattern with "[REDACTED]". Safe to call on arbitrary, untrusted text.
func Redact(s string) string {
	if s == "" {
		return s
	}
	out := s
	for _, r := range redactions {
		out = r.pattern.ReplaceAllString(out, "[REDACTED]")
	}
	return out
}

// RedactMap redacts every value in m, leaving keys untouched.
func RedactMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = Redact(v)
	}
	return out
}

// Truncate caps s at maxLen runes of output, worth it mostly for stack
// traces that might otherwise blow past a logging backend's line limit.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

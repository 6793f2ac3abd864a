// Package signing verifies and produces the HMAC-SHA256 signatures that
// authenticate requests between the platform and a registered function's
// serve endpoint, and the responses sent back.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// expiry bounds how far a signature's timestamp may drift from now
// before it is rejected, in either direction.
const expiry = 5 * time.Minute

var signkeyPrefix = regexp.MustCompile(`^signkey-[a-z0-9]+-`)

// Signer verifies inbound signatures and produces outbound ones. A
// Signer with an empty primary key is not Enabled: Sign and Verify both
// return an error, and callers skip verification by checking Enabled.
type Signer struct {
	key         string
	fallbackKey string
}

// New returns a Signer using key as primary and fallback as the
// secondary key tried during rotation. Both may carry the
// "signkey-<env>-" platform prefix; it is stripped before use.
func New(key, fallback string) *Signer {
	return &Signer{key: stripPrefix(key), fallbackKey: stripPrefix(fallback)}
}

func stripPrefix(key string) string {
	return signkeyPrefix.ReplaceAllString(key, "")
}

// Enabled reports whether this Signer has a usable key.
func (s *Signer) Enabled() bool {
	return s.key != ""
}

// Sign returns the "t=<unix>&s=<hex>" header value for body, signed with
// the primary key over its canonical form (§4.6: two semantically
// identical bodies encoded with different key orderings must sign the
// same way).
func (s *Signer) Sign(body []byte) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("signing: no signing key configured")
	}
	t := time.Now().Unix()
	return header(t, hexHMAC(s.key, t, canonicalOrRaw(body))), nil
}

// Verify checks that header was produced by either the primary or
// fallback key over body's canonical form within the allowed clock
// skew. It returns an error describing the first problem found;
// callers should treat any non-nil error as "reject the request".
func (s *Signer) Verify(headerValue string, body []byte) error {
	if !s.Enabled() {
		return fmt.Errorf("signing: no signing key configured")
	}
	t, sig, err := parseHeader(headerValue)
	if err != nil {
		return err
	}

	age := time.Since(time.Unix(t, 0))
	if age > expiry || age < -expiry {
		return fmt.Errorf("signing: signature timestamp outside %s window", expiry)
	}

	canon := canonicalOrRaw(body)
	expected := hexHMAC(s.key, t, canon)
	if hmac.Equal([]byte(expected), []byte(sig)) {
		return nil
	}
	if s.fallbackKey != "" {
		expectedFallback := hexHMAC(s.fallbackKey, t, canon)
		if hmac.Equal([]byte(expectedFallback), []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("signing: signature mismatch")
}

// canonicalOrRaw canonicalizes body for signing, falling back to the raw
// bytes unchanged when body isn't valid JSON — a plain string
// body is used verbatim, per spec.md's canonical(body) definition.
func canonicalOrRaw(body []byte) []byte {
	canon, err := Canonical(body)
	if err != nil {
		return body
	}
	return canon
}

func hexHMAC(key string, t int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	mac.Write([]byte(strconv.FormatInt(t, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func header(t int64, sig string) string {
	return fmt.Sprintf("t=%d&s=%s", t, sig)
}

func parseHeader(v string) (int64, string, error) {
	var t int64
	var sig string
	for _, part := range strings.Split(v, "&") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("signing: invalid timestamp in signature header")
			}
			t = parsed
		case "s":
			sig = kv[1]
		}
	}
	if t == 0 || sig == "" {
		return 0, "", fmt.Errorf("signing: malformed signature header %q", v)
	}
	return t, sig, nil
}

// Canonical returns body re-encoded with map keys sorted at every level,
// so two semantically identical payloads produced with different key
// orderings hash and sign the same. encoding/json already sorts
// map[string]any keys on marshal, so a decode/encode round trip through
// a generic value is sufficient.
func Canonical(body []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("signing: body is not valid JSON: %w", err)
	}
	return json.Marshal(v)
}

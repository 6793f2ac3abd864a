// Package eventsender dispatches events from a running step back to the
// platform's ingest API, with bounded retries, deterministic backoff
// jitter, and a circuit breaker so a degraded ingest endpoint doesn't
// turn every SendEvent call into a multi-second stall.
package eventsender

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stepflow/internal/ratelimit"
	"stepflow/step"
)

// maxEventsPerBatch is the ingest API's limit on events per request. A
// SendEvent call exceeding it is split into concurrent batch requests
// rather than rejected outright.
const maxEventsPerBatch = 512

// Sender dispatches events. The engine depends on this interface, not on
// HTTPSender directly, so tests can substitute a fake.
type Sender interface {
	Send(ctx context.Context, events ...step.Event) error
}

// HTTPSender posts events to the platform's event ingest endpoint.
type HTTPSender struct {
	BaseURL string
	EventKey string
	Client  *http.Client
	limiter *ratelimit.Limiter

	mu               sync.Mutex
	consecutiveFails int
	circuitUntil     time.Time
}

// New returns an HTTPSender posting to baseURL, allowing at most rps
// batch requests per second; a batch over that limit fails without
// being sent.
func New(baseURL, eventKey string, rps int) *HTTPSender {
	return &HTTPSender{
		BaseURL:  baseURL,
		EventKey: eventKey,
		Client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  ratelimit.New(rps, time.Second),
	}
}

// Send posts events to the ingest API, making up to three attempts per
// batch (any transport error or non-2xx status is retried) before
// giving up. Batches larger than
// maxEventsPerBatch are split and sent concurrently; the first batch
// failure cancels the rest and its error is returned.
func (s *HTTPSender) Send(ctx context.Context, events ...step.Event) error {
	if len(events) == 0 {
		return nil
	}
	if len(events) <= maxEventsPerBatch {
		return s.sendBatch(ctx, events)
	}

	group, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(events); start += maxEventsPerBatch {
		end := start + maxEventsPerBatch
		if end > len(events) {
			end = len(events)
		}
		chunk := events[start:end]
		group.Go(func() error { return s.sendBatch(gctx, chunk) })
	}
	return group.Wait()
}

func (s *HTTPSender) sendBatch(ctx context.Context, events []step.Event) error {
	if err := s.allow(); err != nil {
		return err
	}
	if !s.limiter.Allow(s.BaseURL) {
		return errors.New("eventsender: rate limit exceeded")
	}

	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("eventsender: marshaling events: %w", err)
	}

	url := s.BaseURL + "/e/" + s.EventKey

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.Client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 300 {
				s.markSuccess()
				return nil
			}
			err = fmt.Errorf("eventsender: ingest responded with status %d", resp.StatusCode)
		}
		lastErr = err

		if attempt < 2 {
			select {
			case <-time.After(backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	s.markFailure()
	return lastErr
}

func backoff(attempt int) time.Duration {
	base := []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 700 * time.Millisecond}
	jitter := time.Duration(deterministicJitter(attempt, 50)) * time.Millisecond
	return base[attempt] + jitter
}

// deterministicJitter derives a jitter value in [0, max) from attempt,
// using a hash-seeded PRNG rather than the global math/rand source so
// retries of the same attempt index are reproducible in tests.
func deterministicJitter(attempt, max int) int {
	h := sha256.Sum256([]byte{byte(attempt), byte(attempt >> 8), byte(attempt >> 16), byte(attempt >> 24)})
	var seed int64
	for i := 0; i < 8; i++ {
		seed = seed*256 + int64(h[i])
	}
	rng := rand.New(rand.NewSource(seed))
	return rng.Intn(max)
}

func (s *HTTPSender) allow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Now().Before(s.circuitUntil) {
		return errors.New("eventsender: circuit open, ingest endpoint is failing")
	}
	return nil
}

func (s *HTTPSender) markSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFails = 0
	s.circuitUntil = time.Time{}
}

func (s *HTTPSender) markFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consecutiveFails++
	if s.consecutiveFails >= 5 {
		s.circuitUntil = time.Now().Add(20 * time.Second)
		s.consecutiveFails = 0
	}
}

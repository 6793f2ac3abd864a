// Package serve exposes a stepflow.Client as the HTTP comm handler the
// platform talks to: GET for introspection, PUT to (re)register the
// app's function configs, and POST to dispatch one invocation.
package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"stepflow"
	"stepflow/internal/commhandler"
	"stepflow/internal/registry"
	"stepflow/internal/telemetry"
)

const (
	headerSignature = "X-Stepflow-Signature"
	headerVersion   = "X-Stepflow-Req-Version"
	headerNoSig     = "X-Stepflow-No-Signature"
	headerSyncKind  = "X-Stepflow-Sync-Kind"
	schemaVersion   = "2023-06-30"
	sdkVersion      = "stepflow-go/0.1.0"
	framework       = "stepflow-go"
)

// Option configures a Handler returned by New.
type Option func(*Handler)

// WithServeOrigin overrides the origin (scheme+host) used when building
// the callback URLs a function's register payload advertises. Defaults
// to the client's config, falling back to the incoming request's Host
// header if neither is set.
func WithServeOrigin(origin string) Option {
	return func(h *Handler) { h.origin = strings.TrimRight(origin, "/") }
}

// WithServePath overrides the path this handler is assumed to be
// mounted under when it has to build its own callback URLs.
func WithServePath(path string) Option {
	return func(h *Handler) { h.path = path }
}

// Handler is an http.Handler implementing the platform <-> function comm
// protocol for every function registered on its Client.
type Handler struct {
	client     *stepflow.Client
	origin     string
	path       string
	logger     *telemetry.Logger
	httpClient *http.Client
}

// New returns an http.Handler serving every function registered on
// client.
func New(client *stepflow.Client, opts ...Option) http.Handler {
	h := &Handler{
		client:     client,
		origin:     client.Config().Serve.ServeOrigin,
		path:       client.Config().Serve.ServePath,
		logger:     client.Logger().WithComponent("serve"),
		httpClient: &http.Client{Timeout: client.Config().Dispatch.RequestTimeout},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h.withRecovery()
}

func (h *Handler) withRecovery() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.Errorf("panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, "request handling panicked")
			}
		}()
		h.route(w, r)
	})
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	if maxBody := h.client.Config().Serve.MaxBodyBytes; maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	forwardTraceHeaders(w, r)

	switch r.Method {
	case http.MethodGet:
		h.handleIntrospect(w, r)
	case http.MethodPut:
		h.handleRegister(w, r)
	case http.MethodPost:
		h.handleInvoke(w, r)
	default:
		w.Header().Set("Allow", "GET, PUT, POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not supported", r.Method))
	}
}

// forwardTraceHeaders relays distributed-tracing headers from request to
// response, regardless of method or outcome.
func forwardTraceHeaders(w http.ResponseWriter, r *http.Request) {
	for _, name := range []string{"Traceparent", "Tracestate"} {
		if v := r.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}
}

func (h *Handler) originFor(r *http.Request) string {
	if h.origin != "" {
		return h.origin
	}
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host
}

func (h *Handler) serveURL(r *http.Request) func(functionID string) string {
	origin := h.originFor(r)
	path := h.path
	if path == "" {
		path = r.URL.Path
	}
	return func(functionID string) string {
		return fmt.Sprintf("%s%s?fnId=%s&stepId=step", origin, path, functionID)
	}
}

// handleIntrospect answers the platform's capability probe. The base
// body is the unauthenticated shape spec.md requires regardless of
// signing; it is extended with the full function list and SDK identity
// when signing is disabled, or otherwise only once the request's own
// signature has been verified, so with signing enabled an
// unauthenticated caller can't enumerate registered functions.
func (h *Handler) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	signer := h.client.Signer()
	base := map[string]any{
		"has_event_key":   h.client.Config().Dispatch.EventKey != "",
		"has_signing_key": signer.Enabled(),
		"function_count":  len(h.client.Registry().List()),
		"mode":            "cloud",
		"schema_version":  schemaVersion,
	}

	// A disabled signer means dev mode (§4.6's mode gating): any request
	// is trusted, so the fuller body is always safe to return. In cloud
	// mode the fuller body is only returned once the caller's own
	// signature verifies.
	extend := !signer.Enabled()
	if signer.Enabled() {
		extend = signer.Verify(r.Header.Get(headerSignature), []byte{}) == nil
	}
	if extend {
		for k, v := range h.describe(r) {
			base[k] = v
		}
	}

	writeJSON(w, http.StatusOK, base)
}

// handleRegister is invoked by the platform to (re)sync its record of
// this app's functions. Per spec.md §4.4, out-of-band sync (the
// default) pushes the register body to the platform's own /fn/register
// endpoint and acknowledges locally; in-band sync (requested via the
// X-Stepflow-Sync-Kind header, and only honored once the request itself
// verifies) responds synchronously instead of round-tripping through
// the platform at all.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(headerSyncKind) == "in_band" {
		h.handleInBandRegister(w, r)
		return
	}
	h.handleOutOfBandRegister(w, r)
}

func (h *Handler) handleInBandRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	signer := h.client.Signer()
	if signer.Enabled() {
		if err := signer.Verify(r.Header.Get(headerSignature), body); err != nil {
			h.logger.WithError(err).Warn("rejected in-band sync with invalid signature")
			writeError(w, http.StatusUnauthorized, "invalid request signature")
			return
		}
	}

	var inBandReq map[string]any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &inBandReq); err != nil {
			writeError(w, http.StatusBadRequest, "invalid in-band sync request body: "+err.Error())
			return
		}
	}

	resp := h.describe(r)
	resp["capabilities"] = capabilities()
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleOutOfBandRegister(w http.ResponseWriter, r *http.Request) {
	configs := h.client.Registry().BuildConfigs(h.serveURL(r))
	payload := registerBody{
		URL:          h.serveURL(r)(""),
		AppName:      h.client.AppID(),
		Framework:    framework,
		SDK:          sdkVersion,
		V:            "0.1",
		DeployType:   "ping",
		Functions:    configs,
		Capabilities: capabilities(),
	}

	if err := h.postRegister(r.Context(), payload); err != nil {
		h.logger.WithError(err).Error("out-of-band registration with the platform failed")
		writeError(w, http.StatusBadGateway, "registering with platform: "+err.Error())
		return
	}

	resp := h.describe(r)
	writeJSON(w, http.StatusOK, resp)
}

// registerBody is the out-of-band payload POSTed to the platform's
// /fn/register endpoint, per spec.md §6.
type registerBody struct {
	URL          string                     `json:"url"`
	AppName      string                     `json:"appName"`
	AppVersion   string                     `json:"appVersion,omitempty"`
	Framework    string                     `json:"framework"`
	SDK          string                     `json:"sdk"`
	V            string                     `json:"v"`
	DeployType   string                     `json:"deployType"`
	Functions    []registry.FunctionConfig `json:"functions"`
	Capabilities map[string]string         `json:"capabilities"`
	DeployID     string                    `json:"deployId,omitempty"`
}

func capabilities() map[string]string {
	return map[string]string{"trust_probe": "v1", "connect": "v1"}
}

func (h *Handler) postRegister(ctx context.Context, body registerBody) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("serve: encoding register body: %w", err)
	}

	url := strings.TrimRight(h.client.Config().Dispatch.APIBaseURL, "/") + "/fn/register"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("serve: calling platform register endpoint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("serve: platform register endpoint responded with status %d", resp.StatusCode)
	}
	return nil
}

func (h *Handler) describe(r *http.Request) map[string]any {
	configs := h.client.Registry().BuildConfigs(h.serveURL(r))
	return map[string]any{
		"schemaVersion": schemaVersion,
		"sdkVersion":    sdkVersion,
		"appId":         h.client.AppID(),
		"hasSigningKey": h.client.Signer().Enabled(),
		"mode":          "cloud",
		"functions":     configs,
		"functionsHash": registry.Hash(configs),
	}
}

func (h *Handler) handleInvoke(w http.ResponseWriter, r *http.Request) {
	functionID := r.URL.Query().Get("fnId")
	fn, ok := h.client.Registry().Get(functionID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("function %q is not registered", functionID))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error())
		return
	}

	signer := h.client.Signer()
	if signer.Enabled() {
		if err := signer.Verify(r.Header.Get(headerSignature), body); err != nil {
			h.logger.WithError(err).Warn("rejected invocation with invalid signature")
			writeError(w, http.StatusUnauthorized, "invalid request signature")
			return
		}
	}

	stepID := r.URL.Query().Get("stepId")
	req, err := commhandler.ParseInvocationRequest(body, r.Header.Get(headerVersion), stepID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.client.Invoke(r.Context(), fn, req)

	enc, err := commhandler.EncodeResult(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if signer.Enabled() {
		if sig, err := signer.Sign(enc.Body); err == nil {
			w.Header().Set(headerSignature, sig)
		}
	}
	for name, value := range enc.Headers {
		w.Header().Set(name, value)
	}
	w.Header().Set(headerVersion, "2")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(enc.Status)
	_, _ = w.Write(enc.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

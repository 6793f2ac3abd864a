// Package stepflow is the public SDK surface: register durable
// functions, build a Client, and mount it behind an HTTP handler with
// the serve subpackage.
package stepflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"stepflow/internal/config"
	"stepflow/internal/engine"
	"stepflow/internal/eventsender"
	"stepflow/internal/middleware"
	"stepflow/internal/registry"
	"stepflow/internal/signing"
	"stepflow/internal/telemetry"
)

// ClientOpts configures NewClient. A zero value is valid: it produces a
// Client with its configuration resolved by config.Load — built-in
// defaults, an optional config file, then the environment (see
// internal/config for the STEPFLOW_* variables honored).
type ClientOpts struct {
	AppID string
	// Config overrides environment/file resolution entirely, when set.
	Config *config.Config
	Hooks  []middleware.Hook
}

// Client owns a function registry and the collaborators (signing,
// logging, event dispatch) every registered function shares.
type Client struct {
	appID    string
	cfg      *config.Config
	registry *registry.Registry
	engine   *engine.Engine
	signer   *signing.Signer
	logger   *telemetry.Logger
	sender   *eventsender.HTTPSender
	pipeline *middleware.Pipeline
}

// NewClient builds a Client, resolving configuration as described on
// ClientOpts.Config.
func NewClient(opts ClientOpts) (*Client, error) {
	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("stepflow: loading config: %w", err)
		}
		cfg = loaded
	}
	if opts.AppID != "" {
		cfg.AppID = opts.AppID
	}

	logger := telemetry.Default().WithComponent("stepflow")
	signer := signing.New(cfg.Signing.SigningKey, cfg.Signing.FallbackSigningKey)
	if cfg.Signing.Disabled {
		signer = signing.New("", "")
	}
	sender := eventsender.New(cfg.Dispatch.APIBaseURL, cfg.Dispatch.EventKey, cfg.Dispatch.RateLimitRPS)
	if cfg.Dispatch.RequestTimeout > 0 {
		sender.Client.Timeout = cfg.Dispatch.RequestTimeout
	}
	reg := registry.New()
	eng := engine.New(logger, sender, reg)
	pipeline := middleware.New(opts.Hooks...)

	return &Client{
		appID:    cfg.AppID,
		cfg:      cfg,
		registry: reg,
		engine:   eng,
		signer:   signer,
		logger:   logger,
		sender:   sender,
		pipeline: pipeline,
	}, nil
}

// AppID returns the client's configured application id.
func (c *Client) AppID() string { return c.appID }

// RegisterFunction adds fn to the client's registry.
func (c *Client) RegisterFunction(fn Function) error {
	return c.registry.Register(fn)
}

// Config returns the resolved configuration, for callers that need to
// inspect serve/signing settings directly.
func (c *Client) Config() *config.Config { return c.cfg }

// Registry exposes the underlying function registry, for the serve
// package to build register payloads and dispatch invocations.
func (c *Client) Registry() *registry.Registry { return c.registry }

// Signer exposes the request/response signer, for the serve package.
func (c *Client) Signer() *signing.Signer { return c.signer }

// Logger exposes the client's structured logger.
func (c *Client) Logger() *telemetry.Logger { return c.logger }

// SendEvent dispatches one or more events directly (outside of a step
// body), e.g. from application code reacting to a user action. Any
// event left with a blank ID is stamped with a fresh one before
// dispatch, so callers never need to generate one themselves.
func (c *Client) SendEvent(ctx context.Context, events ...Event) error {
	for i := range events {
		if events[i].ID == "" {
			events[i].ID = uuid.NewString()
		}
		if events[i].TS == 0 {
			events[i].TS = time.Now().UnixMilli()
		}
	}
	return c.sender.Send(ctx, events...)
}

// Invoke runs fn's body for one invocation, wrapped in the client's
// middleware pipeline.
func (c *Client) Invoke(ctx context.Context, fn *Function, req engine.Request) engine.Result {
	info := middleware.FunctionRunInfo{FunctionID: fn.ID, RunID: req.Ctx.RunID, Event: req.Event, Attempt: req.Ctx.Attempt}
	result, err := c.pipeline.RunFunction(ctx, info, func(ctx context.Context) (any, error) {
		return c.engine.Run(ctx, fn.Body, req), nil
	})
	if err != nil {
		// A hook rejected the run before it started.
		c.logger.WithError(err).Error("middleware rejected function run")
		return engine.Result{Kind: engine.ResultFunctionRejected}
	}
	return result.(engine.Result)
}

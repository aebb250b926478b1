// Package gateway routes canonical requests to provider adapters. It
// validates content against the resolved model's capability ceiling,
// applies the single retry policy, and can discover a capable provider
// when the caller has not pinned one. It never inspects concrete adapter
// types.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/liuyipei/pdf-tokens/llm"
)

// Config tunes the retry loop around buffered sends.
type Config struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	// BackoffBase is the wait before the first retry; each subsequent
	// wait multiplies by BackoffMultiplier.
	BackoffBase       time.Duration
	BackoffMultiplier float64
}

// DefaultConfig returns the standard retry tuning: three retries at
// 1s, 2s, 4s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
	}
}

// Route identifies one provider/model pair selected for a request.
type Route struct {
	Provider string
	Model    string
}

// Gateway is the single entry point callers use. It holds no per-request
// state; concurrent calls are independent. The only long-lived mutable
// state is the capability cache, populated lazily and never invalidated
// for the life of the instance.
type Gateway struct {
	cfg    Config
	logger zerolog.Logger

	adapters map[string]llm.Adapter
	order    []string // registration order, drives routing preference

	mu        sync.RWMutex
	capsCache map[string]llm.ModelCapabilities

	recorder Recorder
}

// New creates a Gateway with the given retry tuning. Zero-valued config
// fields take their defaults.
func New(cfg Config, logger zerolog.Logger) *Gateway {
	def := DefaultConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMultiplier == 0 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	return &Gateway{
		cfg:       cfg,
		logger:    logger,
		adapters:  make(map[string]llm.Adapter),
		capsCache: make(map[string]llm.ModelCapabilities),
	}
}

// Register adds an adapter. Registration order is the routing preference
// order used by FindCapableProvider.
func (g *Gateway) Register(adapter llm.Adapter) {
	name := adapter.Name()
	if _, exists := g.adapters[name]; !exists {
		g.order = append(g.order, name)
	}
	g.adapters[name] = adapter
}

// SetRecorder attaches an optional per-call diagnostics recorder.
func (g *Gateway) SetRecorder(r Recorder) {
	g.recorder = r
}

// Adapter returns the adapter registered for a provider id.
func (g *Gateway) Adapter(provider string) (llm.Adapter, bool) {
	a, ok := g.adapters[provider]
	return a, ok
}

// Providers returns all registered provider ids in registration order.
func (g *Gateway) Providers() []string {
	return append([]string(nil), g.order...)
}

// ConfiguredProviders returns the registered providers holding a credential.
func (g *Gateway) ConfiguredProviders() []string {
	return lo.Filter(g.order, func(name string, _ int) bool {
		return g.adapters[name].IsConfigured()
	})
}

// resolveCapabilities returns the cached capability ceiling for a
// provider/model pair, populating the cache on first access. Concurrent
// first accesses write identical data, so the race is benign; the lock
// just keeps the map coherent.
func (g *Gateway) resolveCapabilities(adapter llm.Adapter, model string) llm.ModelCapabilities {
	key := adapter.Name() + "/" + model
	g.mu.RLock()
	caps, ok := g.capsCache[key]
	g.mu.RUnlock()
	if ok {
		return caps
	}
	caps = adapter.ModelCapabilities(model)
	g.mu.Lock()
	g.capsCache[key] = caps
	g.mu.Unlock()
	return caps
}

// ValidateRequest checks every content part of every message against the
// resolved model's capability flags. All violations are aggregated, not
// just the first. No network I/O happens here.
func (g *Gateway) ValidateRequest(req *llm.Request) (bool, []string) {
	if err := req.CheckShape(); err != nil {
		return false, []string{err.Error()}
	}
	adapter, ok := g.adapters[req.Provider]
	if !ok {
		return false, []string{fmt.Sprintf("unknown provider %q", req.Provider)}
	}
	caps := g.resolveCapabilities(adapter, req.Model)

	var errs []string
	for i, msg := range req.Messages {
		for _, part := range msg.Content {
			if !caps.Supports(part.Type) {
				errs = append(errs, fmt.Sprintf(
					"message %d: model %s does not support %s content", i, req.Model, part.Type))
			}
		}
	}
	return len(errs) == 0, errs
}

// firstViolatedCapability names the capability behind the first
// unsupported part type, as a hint for callers building error UX.
func firstViolatedCapability(req *llm.Request, caps llm.ModelCapabilities) string {
	for _, t := range req.PartTypes() {
		if !caps.Supports(t) {
			switch t {
			case llm.ContentPartTypeImage:
				return "vision"
			default:
				return string(t)
			}
		}
	}
	return ""
}

// preflight runs the shared checks before any network call: adapter
// known, credential present, content within the model's ceiling.
func (g *Gateway) preflight(req *llm.Request) (llm.Adapter, error) {
	if err := req.CheckShape(); err != nil {
		// A missing provider is a routing failure; a missing model or
		// empty message list is a defect in the request itself and gets
		// the same non-retryable rejection capability violations do.
		if req.Provider == "" {
			return nil, llm.NewUnknownProviderError("")
		}
		return nil, &llm.CapabilityError{
			Provider:   req.Provider,
			Model:      req.Model,
			Violations: []string{err.Error()},
		}
	}
	adapter, ok := g.adapters[req.Provider]
	if !ok {
		return nil, llm.NewUnknownProviderError(req.Provider)
	}
	if !adapter.IsConfigured() {
		return nil, llm.NewNotConfiguredError(req.Provider)
	}
	if valid, errs := g.ValidateRequest(req); !valid {
		return nil, &llm.CapabilityError{
			Provider:   req.Provider,
			Model:      req.Model,
			Violations: errs,
			Hint:       firstViolatedCapability(req, g.resolveCapabilities(adapter, req.Model)),
		}
	}
	return adapter, nil
}

// newBackOff builds the retry schedule: BackoffBase, then multiplied by
// BackoffMultiplier per attempt, with no jitter so the spacing is exact.
func (g *Gateway) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.cfg.BackoffBase
	b.Multiplier = g.cfg.BackoffMultiplier
	b.RandomizationFactor = 0
	b.MaxInterval = 10 * time.Minute
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(g.cfg.MaxRetries)), ctx)
}

// Send issues a buffered call with the uniform retry policy. Routing,
// configuration and capability failures are rejected up front without
// touching the network or the retry budget. Within the loop any error is
// retried except those IsRetryable rejects (client-input 4xx and
// pre-network rejections); after the budget is spent the last observed
// error is returned as-is so callers can inspect its fields.
func (g *Gateway) Send(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	adapter, err := g.preflight(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var resp *llm.Response
	attempt := 0
	operation := func() error {
		attempt++
		r, sendErr := adapter.Send(ctx, req)
		if sendErr != nil {
			if !llm.IsRetryable(sendErr) {
				return backoff.Permanent(sendErr)
			}
			return sendErr
		}
		resp = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		g.logger.Warn().
			Str("provider", req.Provider).
			Str("model", req.Model).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Err(err).
			Msg("Provider call failed, retrying")
	}

	if err := backoff.RetryNotify(operation, g.newBackOff(ctx), notify); err != nil {
		g.record(ctx, req, nil, err, start, false)
		return nil, err
	}

	if resp.ID == "" {
		resp.ID = uuid.NewString()
	}
	g.record(ctx, req, resp, nil, start, false)
	return resp, nil
}

// SendStream issues a streaming call. Validation matches Send, but there
// is no retry: once the first byte is consumed a replay would duplicate
// delivered chunks, so a mid-stream failure is final.
func (g *Gateway) SendStream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	adapter, err := g.preflight(req)
	if err != nil {
		return nil, err
	}
	caps := g.resolveCapabilities(adapter, req.Model)
	if !caps.Streaming {
		return nil, &llm.CapabilityError{
			Provider:   req.Provider,
			Model:      req.Model,
			Violations: []string{fmt.Sprintf("model %s does not support streaming", req.Model)},
			Hint:       "streaming",
		}
	}

	start := time.Now()
	stream, err := adapter.SendStream(ctx, req)
	if err != nil {
		g.record(ctx, req, nil, err, start, true)
		return nil, err
	}
	if g.recorder == nil {
		return stream, nil
	}
	return &recordedStream{Stream: stream, g: g, ctx: ctx, req: req, start: start}, nil
}

// FindCapableProvider returns the first configured provider/model pair
// whose capabilities satisfy every required content type. The preferred
// provider is tried first when set and configured, then the rest in
// registration order; within a provider the first model in registry
// order wins. A nil return means no route, not an error.
func (g *Gateway) FindCapableProvider(types []llm.ContentPartType, preferred string) *Route {
	candidates := make([]string, 0, len(g.order))
	if preferred != "" {
		if adapter, ok := g.adapters[preferred]; ok && adapter.IsConfigured() {
			candidates = append(candidates, preferred)
		}
	}
	for _, name := range g.order {
		if name == preferred {
			continue
		}
		if g.adapters[name].IsConfigured() {
			candidates = append(candidates, name)
		}
	}

	for _, name := range candidates {
		adapter := g.adapters[name]
		for _, model := range adapter.Models() {
			if g.resolveCapabilities(adapter, model).SupportsAll(types) {
				return &Route{Provider: name, Model: model}
			}
		}
	}
	return nil
}

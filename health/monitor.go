// Package health runs periodic provider reachability sweeps on a cron
// schedule and keeps the latest result per provider.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Target is a provider that can be probed.
type Target interface {
	Name() string
	IsConfigured() bool
	HealthCheck(ctx context.Context) (time.Duration, error)
}

// Status is the latest probe outcome for one provider.
type Status struct {
	Provider  string
	Healthy   bool
	Latency   time.Duration
	Error     string
	CheckedAt time.Time
}

// Monitor probes registered targets on a schedule.
type Monitor struct {
	logger   zerolog.Logger
	timeout  time.Duration
	targets  []Target
	cron     *cron.Cron
	sweeps   sync.WaitGroup
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates a monitor with the given per-probe timeout.
func NewMonitor(logger zerolog.Logger, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Monitor{
		logger:   logger.With().Str("component", "health").Logger(),
		timeout:  timeout,
		cron:     cron.New(),
		statuses: make(map[string]Status),
	}
}

// Register adds a probe target. Not safe to call after Start.
func (m *Monitor) Register(t Target) {
	m.targets = append(m.targets, t)
}

// Start schedules sweeps with the given cron expression and runs one
// sweep immediately.
func (m *Monitor) Start(schedule string) error {
	if _, err := m.cron.AddFunc(schedule, m.Sweep); err != nil {
		return err
	}
	m.cron.Start()
	m.sweeps.Add(1)
	go func() {
		defer m.sweeps.Done()
		m.Sweep()
	}()
	return nil
}

// Stop halts scheduling and waits for any running sweep to finish,
// including the immediate one launched by Start.
func (m *Monitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.sweeps.Wait()
}

// Sweep probes every configured target once.
func (m *Monitor) Sweep() {
	for _, t := range m.targets {
		if !t.IsConfigured() {
			continue
		}
		m.probe(t)
	}
}

func (m *Monitor) probe(t Target) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	latency, err := t.HealthCheck(ctx)
	status := Status{
		Provider:  t.Name(),
		Healthy:   err == nil,
		Latency:   latency,
		CheckedAt: time.Now(),
	}
	if err != nil {
		status.Error = err.Error()
		m.logger.Warn().
			Str("provider", t.Name()).
			Err(err).
			Msg("Provider health check failed")
	} else {
		m.logger.Debug().
			Str("provider", t.Name()).
			Dur("latency", latency).
			Msg("Provider healthy")
	}

	m.mu.Lock()
	m.statuses[t.Name()] = status
	m.mu.Unlock()
}

// Status returns the latest result for a provider, if any.
func (m *Monitor) Status(provider string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[provider]
	return s, ok
}

// Statuses returns a snapshot of all latest results.
func (m *Monitor) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		out = append(out, s)
	}
	return out
}

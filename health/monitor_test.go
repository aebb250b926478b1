package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeTarget struct {
	name       string
	configured bool
	latency    time.Duration
	err        error
	probes     int
}

func (f *fakeTarget) Name() string       { return f.name }
func (f *fakeTarget) IsConfigured() bool { return f.configured }
func (f *fakeTarget) HealthCheck(context.Context) (time.Duration, error) {
	f.probes++
	return f.latency, f.err
}

func TestSweepRecordsStatuses(t *testing.T) {
	healthy := &fakeTarget{name: "anthropic", configured: true, latency: 40 * time.Millisecond}
	failing := &fakeTarget{name: "openai", configured: true, err: errors.New("connection refused")}

	m := NewMonitor(zerolog.Nop(), time.Second)
	m.Register(healthy)
	m.Register(failing)
	m.Sweep()

	status, ok := m.Status("anthropic")
	if !ok || !status.Healthy {
		t.Errorf("Expected healthy anthropic status, got %+v", status)
	}
	if status.Latency != 40*time.Millisecond {
		t.Errorf("Unexpected latency: %v", status.Latency)
	}

	status, ok = m.Status("openai")
	if !ok || status.Healthy {
		t.Errorf("Expected unhealthy openai status, got %+v", status)
	}
	if status.Error == "" {
		t.Error("Expected error message recorded")
	}

	if len(m.Statuses()) != 2 {
		t.Errorf("Expected 2 statuses, got %d", len(m.Statuses()))
	}
}

type slowTarget struct {
	delay    time.Duration
	finished bool
}

func (s *slowTarget) Name() string       { return "anthropic" }
func (s *slowTarget) IsConfigured() bool { return true }
func (s *slowTarget) HealthCheck(context.Context) (time.Duration, error) {
	time.Sleep(s.delay)
	s.finished = true
	return s.delay, nil
}

func TestStopWaitsForInitialSweep(t *testing.T) {
	target := &slowTarget{delay: 50 * time.Millisecond}
	m := NewMonitor(zerolog.Nop(), time.Second)
	m.Register(target)
	if err := m.Start("@every 1h"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	m.Stop()
	if !target.finished {
		t.Error("Expected Stop to wait for the initial sweep")
	}
	if _, ok := m.Status("anthropic"); !ok {
		t.Error("Expected initial sweep status recorded before Stop returned")
	}
}

func TestSweepSkipsUnconfigured(t *testing.T) {
	target := &fakeTarget{name: "openai", configured: false}
	m := NewMonitor(zerolog.Nop(), time.Second)
	m.Register(target)
	m.Sweep()

	if target.probes != 0 {
		t.Errorf("Expected no probes for unconfigured target, got %d", target.probes)
	}
	if _, ok := m.Status("openai"); ok {
		t.Error("Expected no status for unconfigured target")
	}
}

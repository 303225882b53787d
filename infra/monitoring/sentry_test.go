package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/dockyard/config"
	coremon "github.com/kilianp07/dockyard/core/monitoring"
)

func TestNewSentryMonitorEmptyDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m.(coremon.NopMonitor); !ok {
		t.Fatalf("expected NopMonitor, got %T", m)
	}
}

func TestNewSentryMonitorInvalidDSN(t *testing.T) {
	if _, err := NewSentryMonitor(config.SentryConfig{DSN: "://not-a-dsn"}); err == nil {
		t.Fatal("expected dsn error")
	}
}

// A hub without a client swallows events; the monitor must not panic.
func TestSentryMonitorWithoutClient(t *testing.T) {
	m := &sentryMonitor{hub: sentry.NewHub(nil, sentry.NewScope())}
	m.CaptureException(errors.New("sweep failed"), map[string]string{"component": "dispatch"})
	m.CapturePanic("boom", nil)
	m.CaptureException(nil, nil)
	m.Flush(time.Millisecond)
}

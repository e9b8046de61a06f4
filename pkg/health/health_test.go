package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestRunAllUp(t *testing.T) {
	c := NewChecker(0)
	c.Register("postgres", PingCheck(pingerFunc(func(context.Context) error { return nil })))
	c.Register("mysql", PingCheck(pingerFunc(func(context.Context) error { return nil })))

	report := c.Run(context.Background())
	if report.Status != StatusUp {
		t.Errorf("status = %s, want up", report.Status)
	}
	if len(report.Components) != 2 {
		t.Errorf("components = %d, want 2", len(report.Components))
	}
}

func TestRunWorstStatusWins(t *testing.T) {
	c := NewChecker(0)
	c.Register("postgres", PingCheck(pingerFunc(func(context.Context) error { return nil })))
	c.Register("mongodb", PingCheck(pingerFunc(func(context.Context) error {
		return errors.New("server selection timeout")
	})))
	c.Register("kafka", func(context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded}
	})

	report := c.Run(context.Background())
	if report.Status != StatusDown {
		t.Errorf("status = %s, want down", report.Status)
	}
	if msg := report.Components["mongodb"].Message; msg != "server selection timeout" {
		t.Errorf("mongodb message = %q", msg)
	}
}

func TestReadyHandler(t *testing.T) {
	c := NewChecker(0)
	c.Register("mysql", PingCheck(pingerFunc(func(context.Context) error {
		return errors.New("connection refused")
	})))

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Components["mysql"].Status != StatusDown {
		t.Errorf("mysql = %+v", report.Components["mysql"])
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker(0).LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

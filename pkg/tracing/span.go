// Package tracing records where a report spends its time. One Trace is
// started per report request and every store round trip made on its behalf
// is added to it as a StoreCall. Finished traces are logged through slog.
package tracing

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type contextKey string

const traceKey contextKey = "report_trace"

// Trace is the timing record of one report request.
type Trace struct {
	Report    string
	RequestID string

	start    time.Time
	duration time.Duration

	mu    sync.Mutex
	calls []*StoreCall
}

// StoreCall is one store round trip inside a Trace.
type StoreCall struct {
	Store   string
	Op      string
	Outcome string

	trace    *Trace
	start    time.Time
	duration time.Duration
}

// Start begins a trace for report and stores it in the returned context.
func Start(ctx context.Context, report, requestID string) (context.Context, *Trace) {
	t := &Trace{Report: report, RequestID: requestID, start: time.Now()}
	return context.WithValue(ctx, traceKey, t), t
}

// FromContext returns the trace in ctx, or nil.
func FromContext(ctx context.Context) *Trace {
	t, _ := ctx.Value(traceKey).(*Trace)
	return t
}

// StartCall registers a store call on the trace in ctx. It returns nil when
// ctx carries no trace; Finish on a nil call is a no-op. Safe for concurrent
// use by parallel fetches.
func StartCall(ctx context.Context, store, op string) *StoreCall {
	t := FromContext(ctx)
	if t == nil {
		return nil
	}
	c := &StoreCall{Store: store, Op: op, trace: t, start: time.Now()}
	t.mu.Lock()
	t.calls = append(t.calls, c)
	t.mu.Unlock()
	return c
}

// Finish records the call's duration and outcome ("ok", "timeout", ...).
func (c *StoreCall) Finish(outcome string) {
	if c == nil {
		return
	}
	c.trace.mu.Lock()
	c.duration = time.Since(c.start)
	c.Outcome = outcome
	c.trace.mu.Unlock()
}

func (t *Trace) Finish() {
	t.mu.Lock()
	t.duration = time.Since(t.start)
	t.mu.Unlock()
}

// Calls returns a snapshot of the store calls in start order.
func (t *Trace) Calls() []StoreCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StoreCall, len(t.calls))
	for i, c := range t.calls {
		out[i] = StoreCall{Store: c.Store, Op: c.Op, Outcome: c.Outcome, start: c.start, duration: c.duration}
	}
	return out
}

// StoreTime sums call durations per store. Parallel fetches overlap, so the
// total can exceed the trace duration.
func (t *Trace) StoreTime() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, c := range t.Calls() {
		out[c.Store] += c.duration
	}
	return out
}

// Log writes one summary record for the trace followed by one record per
// store call.
func (t *Trace) Log(logger *slog.Logger) {
	t.mu.Lock()
	duration := t.duration
	t.mu.Unlock()

	byStore := t.StoreTime()
	stores := make([]string, 0, len(byStore))
	for s := range byStore {
		stores = append(stores, s)
	}
	sort.Strings(stores)

	calls := t.Calls()
	attrs := []any{
		"report", t.Report,
		"request_id", t.RequestID,
		"duration_ms", duration.Milliseconds(),
		"store_calls", len(calls),
	}
	for _, s := range stores {
		attrs = append(attrs, s+"_ms", byStore[s].Milliseconds())
	}
	logger.Info("report trace", attrs...)

	for _, c := range calls {
		logger.Info("store call",
			"request_id", t.RequestID,
			"store", c.Store,
			"operation", c.Op,
			"outcome", c.Outcome,
			"duration_ms", c.duration.Milliseconds(),
		)
	}
}

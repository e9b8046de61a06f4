package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/petadopt/adoption-analytics/pkg/errors"
	"github.com/petadopt/adoption-analytics/pkg/logger"
	"github.com/petadopt/adoption-analytics/pkg/tracing"
)

// Handler serves the analytics endpoints. Store failures map to non-2xx
// statuses; empty results are 200 with their terminal body.
type Handler struct {
	reporter   *Reporter
	reconciler *Reconciler
	collector  *Collector
	tracing    bool
	logger     *slog.Logger
}

// NewHandler builds a Handler. collector may be nil.
func NewHandler(reporter *Reporter, reconciler *Reconciler, collector *Collector, tracingEnabled bool) *Handler {
	return &Handler{
		reporter:   reporter,
		reconciler: reconciler,
		collector:  collector,
		tracing:    tracingEnabled,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

type reportFunc func(ctx context.Context) (body any, records int, err error)

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Adoption analytics API ready"})
}

func (h *Handler) PetsBySpecies(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "pets-by-species", func(ctx context.Context) (any, int, error) {
		rows, err := h.reporter.PetsBySpecies(ctx)
		return rows, len(rows), err
	})
}

func (h *Handler) AdoptedByCenter(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "adopted-by-center", func(ctx context.Context) (any, int, error) {
		rows, err := h.reporter.AdoptedByCenter(ctx)
		return rows, len(rows), err
	})
}

func (h *Handler) RequestsStatus(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "requests-status", func(ctx context.Context) (any, int, error) {
		rows, err := h.reporter.RequestsStatus(ctx)
		return rows, len(rows), err
	})
}

func (h *Handler) VaccinationStatus(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "vaccination-status", func(ctx context.Context) (any, int, error) {
		status, err := h.reporter.VaccinationStatus(ctx)
		return status, 1, err
	})
}

// PetHistories accepts ?limit=N (default 5). Non-numeric or non-positive
// limits are rejected with 400.
func (h *Handler) PetHistories(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer", "")
			return
		}
		limit = parsed
	}
	h.serve(w, r, "pet-histories", func(ctx context.Context) (any, int, error) {
		histories, err := h.reporter.PetHistories(ctx, limit)
		if err != nil {
			return nil, 0, err
		}
		return PetHistoriesBody(histories), len(histories), nil
	})
}

// DocumentStoreHealth always answers 200; the body carries the status.
func (h *Handler) DocumentStoreHealth(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "mongodb-health", func(ctx context.Context) (any, int, error) {
		return h.reporter.DocumentStoreHealth(ctx), 1, nil
	})
}

func (h *Handler) UsersWithAdoptions(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "users-with-adoptions", func(ctx context.Context) (any, int, error) {
		res, err := h.reconciler.UsersWithAdoptions(ctx)
		if err != nil {
			return nil, 0, err
		}
		return res.Body(), res.TotalUsers, nil
	})
}

func (h *Handler) FullAdoptionReport(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "full-adoption-report", func(ctx context.Context) (any, int, error) {
		res, err := h.reconciler.FullAdoptionReport(ctx)
		if err != nil {
			return nil, 0, err
		}
		return res.Body(), len(res.Records), nil
	})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, endpoint string, fn reportFunc) {
	ctx := r.Context()
	requestID := logger.RequestID(ctx)
	if h.tracing {
		var trace *tracing.Trace
		ctx, trace = tracing.Start(ctx, endpoint, requestID)
		defer func() {
			trace.Finish()
			trace.Log(h.logger)
		}()
	}

	start := time.Now()
	body, records, err := fn(ctx)
	latency := time.Since(start)

	event := ReportEvent{
		Type:      EventReportServed,
		Endpoint:  endpoint,
		Records:   records,
		LatencyMs: latency.Milliseconds(),
		RequestID: requestID,
		Timestamp: start.UTC(),
	}
	if err != nil {
		event.Type = EventReportFailed
		event.Store = apperrors.FailedStore(err)
		event.Error = err.Error()
	}
	h.track(event)

	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}
	h.writeJSON(w, http.StatusOK, body)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status := apperrors.HTTPStatusCode(err)
	store := apperrors.FailedStore(err)
	log := logger.FromContext(r.Context())
	switch {
	case errors.Is(err, apperrors.ErrCanceled):
		log.Info("client went away", "component", "analytics-handler", "endpoint", endpoint)
	case status >= http.StatusInternalServerError:
		log.Error("report failed", "component", "analytics-handler", "endpoint", endpoint, "store", store, "status", status, "error", err)
	default:
		log.Warn("report rejected", "component", "analytics-handler", "endpoint", endpoint, "status", status, "error", err)
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = apperrors.ErrInternal.Error()
	}
	h.writeError(w, status, message, store)
}

func (h *Handler) track(event ReportEvent) {
	if h.collector != nil {
		h.collector.Track(event)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Store string `json:"store,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, store string) {
	h.writeJSON(w, status, errorBody{Error: message, Store: store})
}

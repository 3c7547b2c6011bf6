// Package httpapi exposes courier webhook intake and order inspection over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jcieslar/webhooks/internal/courier"
	"github.com/jcieslar/webhooks/internal/db"
	"github.com/jcieslar/webhooks/internal/reconcile"
)

// DefaultMaxBodyBytes caps webhook bodies when Options leaves the limit unset.
const DefaultMaxBodyBytes = 64 << 10

// Reconciler applies one parsed notification.
type Reconciler interface {
	Reconcile(ctx context.Context, ev *courier.Event) (*reconcile.Result, error)
}

// OrderReader loads orders for inspection.
type OrderReader interface {
	FindOrderByIdentifier(ctx context.Context, identifier string) (*db.Order, error)
	ListLogs(ctx context.Context, orderID int64) ([]db.LogEntry, error)
}

// Options configures the router.
type Options struct {
	Reconciler   Reconciler
	Orders       OrderReader
	Logger       *slog.Logger
	MaxBodyBytes int64
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

type server struct {
	reconciler Reconciler
	orders     OrderReader
	logger     *slog.Logger
	maxBody    int64
}

// NewRouter builds the HTTP handler for the service.
func NewRouter(opts Options) http.Handler {
	s := &server{
		reconciler: opts.Reconciler,
		orders:     opts.Orders,
		logger:     opts.Logger,
		maxBody:    opts.MaxBodyBytes,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodyBytes
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Get("/health", instrumentHandler("health", s.handleHealth))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Post("/webhooks/orders", instrumentHandler("webhooks", s.handleWebhook))
	r.Get("/orders/{identifier}", instrumentHandler("orders", s.handleShowOrder))
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		s.logger.Warn("failed to read webhook body", "error", err)
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := courier.Parse(body)
	if err != nil {
		s.logger.Warn("rejected webhook payload", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.reconciler.Reconcile(r.Context(), ev)
	switch {
	case err == nil:
	case errors.Is(err, reconcile.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order not found")
		return
	case reconcile.IsMalformed(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	default:
		s.logger.Error("webhook processing failed", "identifier", ev.Identifier, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Status: "ok", Result: result})
}

type webhookResponse struct {
	Status string `json:"status"`
	*reconcile.Result
}

// OrderView is the JSON rendering of an order and its log.
type OrderView struct {
	ID         int64                  `json:"id"`
	Identifier string                 `json:"identifier"`
	State      string                 `json:"current_state"`
	Signature  courier.MaybeSignature `json:"signature"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
	Logs       []LogView              `json:"logs"`
}

// LogView is one rendered log entry.
type LogView struct {
	State      string                 `json:"state"`
	RecordedAt time.Time              `json:"recorded_at"`
	Signature  courier.MaybeSignature `json:"signature"`
}

func (s *server) handleShowOrder(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	order, err := s.orders.FindOrderByIdentifier(r.Context(), identifier)
	if errors.Is(err, db.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load order", "identifier", identifier, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	logs, err := s.orders.ListLogs(r.Context(), order.ID)
	if err != nil {
		s.logger.Error("failed to load order log", "order_id", order.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, NewOrderView(order, logs))
}

// NewOrderView renders an order and its log for clients.
func NewOrderView(order *db.Order, logs []db.LogEntry) OrderView {
	resp := OrderView{
		ID:         order.ID,
		Identifier: order.Identifier,
		State:      order.CurrentState,
		Signature:  order.Signature,
		CreatedAt:  order.CreatedAt,
		UpdatedAt:  order.UpdatedAt,
		Logs:       make([]LogView, 0, len(logs)),
	}
	for _, e := range logs {
		resp.Logs = append(resp.Logs, LogView{State: e.State, RecordedAt: e.RecordedAt, Signature: e.Signature})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

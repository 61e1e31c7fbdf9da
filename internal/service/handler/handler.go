// Package handler exposes the extraction service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/service"
	apperrors "github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/tracing"
)

// bodySlack covers the JSON envelope around the text field.
const bodySlack = 4 << 10

type extractRequest struct {
	Text      string `json:"text"`
	Reference string `json:"reference"`
}

type Handler struct {
	extractor   *service.Extractor
	tracer      *tracing.Tracer
	broadcaster *service.Broadcaster
	maxBody     int64
	logger      *slog.Logger
}

// New creates a Handler. tracer and broadcaster may be nil.
func New(x *service.Extractor, tracer *tracing.Tracer, broadcaster *service.Broadcaster, maxInputBytes int) *Handler {
	return &Handler{
		extractor:   x,
		tracer:      tracer,
		broadcaster: broadcaster,
		maxBody:     int64(maxInputBytes) + bodySlack,
		logger:      slog.Default().With("component", "extract-handler"),
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/extract", h.Extract)
	mux.HandleFunc("POST /api/v1/extract", h.Extract)
	mux.HandleFunc("GET /api/v1/kb/stats", h.KBStats)
	mux.HandleFunc("POST /api/v1/kb/reload", h.KBReload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Extract handles GET ?q=&ref= and POST {"text","reference"}.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.decode(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Text == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "text is required (query parameter 'q' or JSON field 'text')"))
		return
	}
	var ref time.Time
	if req.Reference != "" {
		ref, err = time.Parse(time.RFC3339, req.Reference)
		if err != nil {
			h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "reference %q is not an RFC 3339 timestamp", req.Reference))
			return
		}
	}

	ctx, span := h.tracer.StartSpan(ctx, "extract", middleware.GetRequestID(ctx))
	resp, err := h.extractor.Extract(ctx, req.Text, ref)
	if resp != nil {
		span.SetAttr("relative_times", len(resp.RelativeTimes))
		span.SetAttr("cache_hit", resp.CacheHit)
	}
	h.tracer.Finish(span)
	if err != nil {
		h.logger.ErrorContext(ctx, "extraction failed", "text", req.Text, "error", err)
		h.writeError(w, r, err)
		return
	}

	h.logger.DebugContext(ctx, "extraction completed",
		"text", req.Text,
		"relative_times", len(resp.RelativeTimes),
		"explicit_dates", len(resp.ExplicitDates),
		"cache_hit", resp.CacheHit,
	)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) decode(r *http.Request) (extractRequest, error) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		return extractRequest{Text: q.Get("q"), Reference: q.Get("ref")}, nil
	}
	var req extractRequest
	body := http.MaxBytesReader(nil, r.Body, h.maxBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return req, apperrors.Newf(apperrors.ErrInputTooLarge, http.StatusRequestEntityTooLarge, "body exceeds %d bytes", h.maxBody)
		case errors.Is(err, io.EOF):
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "request body is empty")
		default:
			return req, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "request body is not valid JSON")
		}
	}
	return req, nil
}

// KBStats handles GET /api/v1/kb/stats.
func (h *Handler) KBStats(w http.ResponseWriter, r *http.Request) {
	info, err := h.extractor.KBInfo()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

// KBReload handles POST /api/v1/kb/reload. The reload runs locally and is
// then broadcast to the other replicas.
func (h *Handler) KBReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	info, err := h.extractor.Reload(ctx)
	if err != nil {
		logger.FromContext(ctx).Error("knowledge base reload failed", "error", err)
		h.writeError(w, r, err)
		return
	}
	broadcast := false
	if h.broadcaster != nil {
		if err := h.broadcaster.Broadcast(ctx, "api"); err != nil {
			logger.FromContext(ctx).Warn("reload broadcast failed", "error", err)
		} else {
			broadcast = true
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "reloaded",
		"kb":        info,
		"broadcast": broadcast,
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	c := h.extractor.Cache()
	if c == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, c.Stats(r.Context()))
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	c := h.extractor.Cache()
	if c == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, "caching is disabled"))
		return
	}
	deleted, err := c.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, r, apperrors.New(apperrors.ErrCacheUnavailable, http.StatusServiceUnavailable, "cache invalidation failed"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.Write(w, r, err)
}

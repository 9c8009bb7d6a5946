package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"monster-quiz-engine/internal/app"
	"monster-quiz-engine/internal/domain"
)

// RankingsHandler serves the leaderboard over plain HTTP.
type RankingsHandler struct {
	service *app.GameService
	logger  *slog.Logger
}

func NewRankingsHandler(service *app.GameService, logger *slog.Logger) *RankingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RankingsHandler{service: service, logger: logger}
}

// Register mounts the ranking routes on mux.
func (h *RankingsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /rankings", h.serveRankings)
	mux.HandleFunc("GET /rankings/export", h.serveExport)
}

// serveRankings returns one window (?category=) or all of them, as JSON or CSV.
func (h *RankingsHandler) serveRankings(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	rawCategory := r.URL.Query().Get("category")

	if format == "csv" {
		if rawCategory == "" {
			rawCategory = string(domain.CategoryAllTime)
		}
		category, err := domain.ParseCategory(rawCategory)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, err := h.service.ExportRankingsCSV(r.Context(), category)
		if !h.usable(err) {
			h.fail(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="rankings-`+string(category)+`.csv"`)
		_, _ = w.Write([]byte(out))
		return
	}
	if format != "" && format != "json" {
		http.Error(w, "unsupported format", http.StatusBadRequest)
		return
	}

	data, err := h.service.Rankings(r.Context())
	if !h.usable(err) {
		h.fail(w, err)
		return
	}
	if rawCategory == "" {
		h.writeJSON(w, data)
		return
	}
	category, err := domain.ParseCategory(rawCategory)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entries, _ := data.Entries(category)
	h.writeJSON(w, entries)
}

func (h *RankingsHandler) serveExport(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ExportRankingsJSON(r.Context())
	if !h.usable(err) {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="rankings.json"`)
	_, _ = w.Write(out)
}

func (h *RankingsHandler) usable(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrPersistence) {
		h.logger.Warn("pruned rankings not persisted", slog.Any("error", err))
		return true
	}
	return false
}

func (h *RankingsHandler) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUnknownCategory) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.logger.Error("rankings request failed", slog.Any("error", err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (h *RankingsHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("encode response failed", slog.Any("error", err))
	}
}

// Package backend is a reference implementation of the lates service the
// dashboard proxies to. It serves the same routes and error bodies.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"github.com/nexlate/tracker/middleware"
	"github.com/nexlate/tracker/models"
	"go.uber.org/zap"
)

const (
	detailNotFound = "That entry does not exist."
	detailExists   = "There is already an entry for today. Did you mean to edit it (PUT)?"

	maxFormMemory = 1 << 20
)

type Handler struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger, now: time.Now}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(h.logger))

	r.Get("/lates/all", h.list)
	r.Post("/lates", h.create)
	r.Get("/lates/{year}/{month}/{day}", h.get)
	r.Put("/lates/{year}/{month}/{day}", h.update)
	r.Delete("/lates/{year}/{month}/{day}", h.delete)

	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "limit must be an integer")
			return
		}
		limit = n
	}

	newestFirst := true
	if v := r.URL.Query().Get("newest_first"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "newest_first must be a boolean")
			return
		}
		newestFirst = b
	}

	list, err := h.store.All(r.Context(), limit, newestFirst)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}

	entry, err := h.store.Get(r.Context(), key.String())
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, detailNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// create stores a new entry dated today.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	raw := r.Form.Get("minutes_late")
	if raw == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "minutes_late is required")
		return
	}
	minutes, err := parseMinutes(raw)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	excuse, err := parseExcuse(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	entry := models.LateEntry{
		Date:        models.DateKeyFor(h.now()).String(),
		MinutesLate: minutes,
		Excuse:      excuse,
	}

	err = h.store.Create(r.Context(), entry)
	if errors.Is(err, ErrExists) {
		writeDetail(w, http.StatusBadRequest, detailExists)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.logger.Info("entry created", zap.String("date", entry.Date), zap.Int("minutes_late", entry.MinutesLate))
	writeJSON(w, http.StatusOK, entry)
}

// update edits minutes and/or excuse. The date itself cannot change.
func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}
	if err := parseForm(r); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var minutes *int
	if raw := r.Form.Get("minutes_late"); raw != "" {
		n, err := parseMinutes(raw)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		minutes = &n
	}
	excuse, err := parseExcuse(r)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	entry, err := h.store.Update(r.Context(), key.String(), minutes, excuse)
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, detailNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	key, ok := pathKey(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), key.String())
	if errors.Is(err, ErrNotFound) {
		writeDetail(w, http.StatusNotFound, detailNotFound)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	h.logger.Info("entry deleted", zap.String("date", key.String()))
	writeJSON(w, http.StatusOK, map[string]string{"date": key.String()})
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("store failure",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.ForContext(r.Context())),
		zap.Error(err))
	writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
}

// pathKey reads {year}/{month}/{day} as integers and normalizes them to the
// stored, unpadded key.
func pathKey(w http.ResponseWriter, r *http.Request) (models.DateKey, bool) {
	parts := make([]int, 3)
	for i, name := range []string{"year", "month", "day"} {
		n, err := strconv.Atoi(chi.URLParam(r, name))
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, name+" must be an integer")
			return models.DateKey{}, false
		}
		parts[i] = n
	}
	return models.DateKeyFromParts(parts[0], parts[1], parts[2]), true
}

func parseForm(r *http.Request) error {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

func parseMinutes(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("minutes_late must be an integer")
	}
	if n < 0 || n > models.MaxMinutesLate {
		return 0, fmt.Errorf("minutes_late must be between 0 and %d", models.MaxMinutesLate)
	}
	return n, nil
}

// parseExcuse returns nil when the field is missing or empty.
func parseExcuse(r *http.Request) (*string, error) {
	excuse := r.Form.Get("excuse")
	if excuse == "" {
		return nil, nil
	}
	if len([]rune(excuse)) > models.MaxExcuseLength {
		return nil, fmt.Errorf("excuse must be at most %d characters", models.MaxExcuseLength)
	}
	return &excuse, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, models.ErrorBody{Detail: detail})
}

// Package proxy holds the dashboard's /api routes. Each one forwards to the
// lates backend and relays the answer without translating it.
package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/nexlate/tracker/lates"
	"github.com/nexlate/tracker/middleware"
	"github.com/nexlate/tracker/models"
	"go.uber.org/zap"
)

const maxFormMemory = 1 << 20

type Handler struct {
	client *lates.Client
	logger *zap.Logger
}

func New(client *lates.Client, logger *zap.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// Routes serves both the short route names (/all, /delete, /new) and the
// resource-style ones under /lates.
func (h *Handler) Routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Get("/all", h.All)
	r.Delete("/delete", h.Delete)
	r.Post("/new", h.Create)

	r.Get("/lates/all", h.All)
	r.Post("/lates", h.Create)
	r.Get("/lates/{year}/{month}/{day}", h.Get)
	r.Put("/lates/{year}/{month}/{day}", h.Update)

	return r
}

// All relays the backend's full entry list.
func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	query := url.Values{}
	for _, k := range []string{"limit", "newest_first"} {
		if v := r.URL.Query().Get(k); v != "" {
			query.Set(k, v)
		}
	}

	res, err := h.client.All(r.Context(), query)
	if err != nil {
		h.backendError(w, r, err)
		return
	}
	relay(w, res)
}

// Delete removes the entry named by ?id=DD/MM/YYYY and relays only the status.
// A missing id deletes models.DefaultDateKey, with a warning.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	query, err := url.ParseQuery(r.URL.RawQuery)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("malformed query: %v", err))
		return
	}

	key, defaulted, err := models.ResolveDateKey(query.Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if defaulted {
		h.logger.Warn("delete without id, falling back to default date",
			zap.String("date", models.DefaultDateKey),
			zap.String("request_id", middleware.ForContext(r.Context())))
	}

	res, err := h.client.Delete(r.Context(), key)
	if err != nil {
		h.backendError(w, r, err)
		return
	}
	w.WriteHeader(res.StatusCode)
}

// Create accepts JSON, multipart or urlencoded bodies and forwards them as
// multipart form data.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	entry, err := parseNewEntry(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.client.Create(r.Context(), entry)
	if err != nil {
		h.backendError(w, r, err)
		return
	}
	relay(w, res)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.client.Get(r.Context(), pathKey(r))
	if err != nil {
		h.backendError(w, r, err)
		return
	}
	relay(w, res)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	update, err := parseEntryUpdate(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.client.Update(r.Context(), pathKey(r), update)
	if err != nil {
		h.backendError(w, r, err)
		return
	}
	relay(w, res)
}

// backendError answers 400 when the request could not be built from the
// caller's input, and 502 when the backend could not be reached.
func (h *Handler) backendError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, lates.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Error("lates backend unavailable",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.ForContext(r.Context())),
		zap.Error(err))
	writeError(w, http.StatusBadGateway, "lates backend unavailable")
}

// relay writes a backend reply: a non-2xx keeps its status and body, a 2xx
// becomes a 200 with the same body.
func relay(w http.ResponseWriter, res *lates.Response) {
	status := res.StatusCode
	if res.OK() {
		status = http.StatusOK
	}

	contentType := res.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(res.Body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorBody{Detail: detail})
}

func pathKey(r *http.Request) models.DateKey {
	return models.DateKey{
		Day:   chi.URLParam(r, "day"),
		Month: chi.URLParam(r, "month"),
		Year:  chi.URLParam(r, "year"),
	}
}

func mediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

func parseForm(r *http.Request) error {
	if mediaType(r) == "multipart/form-data" {
		return r.ParseMultipartForm(maxFormMemory)
	}
	return r.ParseForm()
}

// formValue returns nil when the field is missing or empty.
func formValue(r *http.Request, key string) *string {
	v := r.Form.Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func parseNewEntry(r *http.Request) (models.NewEntry, error) {
	var entry models.NewEntry
	if mediaType(r) == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
			return entry, fmt.Errorf("invalid JSON body: %w", err)
		}
		return entry, nil
	}

	if err := parseForm(r); err != nil {
		return entry, fmt.Errorf("invalid form body: %w", err)
	}
	entry.MinutesLate = r.Form.Get("minutes_late")
	entry.Excuse = formValue(r, "excuse")
	return entry, nil
}

func parseEntryUpdate(r *http.Request) (models.EntryUpdate, error) {
	var update models.EntryUpdate
	if mediaType(r) == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			return update, fmt.Errorf("invalid JSON body: %w", err)
		}
		return update, nil
	}

	if err := parseForm(r); err != nil {
		return update, fmt.Errorf("invalid form body: %w", err)
	}
	update.MinutesLate = formValue(r, "minutes_late")
	update.Excuse = formValue(r, "excuse")
	return update, nil
}

// Package dashboard serves the Nex Late Tracker web page. The page is
// rendered on the server; every button is a form that posts back and
// redirects to the page.
package dashboard

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/nexlate/tracker/lates"
	"github.com/nexlate/tracker/models"
	"go.uber.org/zap"
)

//go:embed templates static
var assets embed.FS

var indexTemplate = template.Must(template.ParseFS(assets, "templates/index.html"))

// Backend is the part of the lates client the panes use.
type Backend interface {
	Entries(ctx context.Context) (models.EntryList, error)
	Create(ctx context.Context, entry models.NewEntry) (*lates.Response, error)
	DeleteEntry(ctx context.Context, key models.DateKey) error
}

// Dashboard holds the per-process page state.
type Dashboard struct {
	list   *ListPane
	create *CreatePane
	logger *zap.Logger

	mu   sync.Mutex
	view View
}

// New builds a dashboard. loadWait bounds how long a page render waits for
// the entry list before showing the loading state.
func New(backend Backend, logger *zap.Logger, loadWait time.Duration) *Dashboard {
	return &Dashboard{
		list:   NewListPane(backend, logger, loadWait),
		create: NewCreatePane(backend, logger),
		logger: logger,
	}
}

func (d *Dashboard) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

// Select switches the visible pane. Leaving a pane resets it.
func (d *Dashboard) Select(v View) error {
	if _, err := ParseView(string(v)); err != nil {
		return err
	}

	d.mu.Lock()
	prev := d.view
	d.view = v
	d.mu.Unlock()

	if prev == v {
		return nil
	}
	switch prev {
	case ListView:
		d.list.Invalidate()
	case CreateView:
		d.create.Reset()
	}
	return nil
}

// Close waits for background list reads.
func (d *Dashboard) Close() {
	d.list.Wait()
}

func (d *Dashboard) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", d.index)
	r.Post("/view", d.selectView)
	r.Post("/entries", d.submitEntry)
	r.Post("/entries/delete", d.deleteEntry)

	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	return r
}

type row struct {
	Date        string
	MinutesLate int
	Excuse      string
}

type page struct {
	View       View
	ShowList   bool
	ShowCreate bool

	Loading bool
	Rows    []row

	// Banner is "created", "failed" or empty.
	Banner     string
	Submitting bool

	MaxMinutesLate  int
	MaxExcuseLength int
}

func (d *Dashboard) index(w http.ResponseWriter, r *http.Request) {
	view := d.View()
	data := page{
		View:            view,
		ShowList:        view == ListView,
		ShowCreate:      view == CreateView,
		MaxMinutesLate:  models.MaxMinutesLate,
		MaxExcuseLength: models.MaxExcuseLength,
	}

	switch view {
	case ListView:
		entries, ok := d.list.Load(r.Context())
		data.Loading = !ok
		for _, entry := range entries {
			data.Rows = append(data.Rows, row{
				Date:        entry.Date,
				MinutesLate: entry.MinutesLate,
				Excuse:      entry.ExcuseText(),
			})
		}
	case CreateView:
		state := d.create.State()
		data.Submitting = state.Submitting
		if state.Created != nil {
			if *state.Created {
				data.Banner = "created"
			} else {
				data.Banner = "failed"
			}
		}
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		d.logger.Error("failed to render page", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	buf.WriteTo(w)
}

func (d *Dashboard) selectView(w http.ResponseWriter, r *http.Request) {
	v, err := ParseView(r.PostFormValue("view"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d.Select(v)
	redirectHome(w, r)
}

func (d *Dashboard) submitEntry(w http.ResponseWriter, r *http.Request) {
	entry := models.NewEntry{MinutesLate: r.PostFormValue("minutes_late")}
	if excuse := r.PostFormValue("excuse"); excuse != "" {
		entry.Excuse = &excuse
	}

	if created, _ := d.create.Submit(r.Context(), entry); created {
		d.list.Invalidate()
	}
	redirectHome(w, r)
}

func (d *Dashboard) deleteEntry(w http.ResponseWriter, r *http.Request) {
	// failures are logged by the pane
	d.list.Delete(r.Context(), r.PostFormValue("date"))
	redirectHome(w, r)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

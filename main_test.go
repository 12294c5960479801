package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nexlate/tracker/backend"
	"github.com/nexlate/tracker/config"
	"github.com/nexlate/tracker/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "backend", "dev"} {
		assert.True(t, names[want], "missing %q command", want)
	}

	for _, flag := range []string{"verbose", "port", "backend-url", "lates-host", "lates-port", "db-driver"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(flag), "missing --%s", flag)
	}
}

func TestApplyFlags(t *testing.T) {
	defer func() { port, backendURL, dbDriver = "", "", "" }()

	flags := rootCmd.PersistentFlags()
	require.NoError(t, flags.Parse([]string{"--port", "4000", "--backend-url", "http://lates.test/", "--db-driver", "memory"}))
	defer func() {
		for _, name := range []string{"port", "backend-url", "db-driver"} {
			flags.Lookup(name).Changed = false
		}
	}()

	c := &config.Config{Port: "3000", BackendURL: "http://localhost:6969", BackendPort: "6969", DBDriver: "sqlite3"}
	applyFlags(flags, c)

	assert.Equal(t, "4000", c.Port)
	assert.Equal(t, "http://lates.test", c.BackendURL)
	assert.Equal(t, "memory", c.DBDriver)
	assert.Equal(t, "6969", c.BackendPort)
}

func TestBackendServerStores(t *testing.T) {
	c := &config.Config{BackendHost: "127.0.0.1", BackendPort: "0", DBDriver: config.MemoryDriver}
	srv, closeStore, err := backendServer(c, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", srv.Addr)
	assert.NoError(t, closeStore())

	c.DBDriver = "sqlite3"
	c.DBDir = filepath.Join(t.TempDir(), "data")
	srv, closeStore, err = backendServer(c, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, srv.Handler)
	assert.NoError(t, closeStore())
	assert.FileExists(t, filepath.Join(c.DBDir, config.DatabaseFile))

	c.DBDriver = "postgres"
	_, _, err = backendServer(c, zap.NewNop())
	assert.Error(t, err)
}

type stack struct {
	dashboard http.Handler
	close     func()
}

// newStack runs the lates backend on a memory store and the dashboard's
// router in front of it.
func newStack(t *testing.T) *stack {
	lates := httptest.NewServer(backend.NewHandler(backend.NewMemoryStore(), zap.NewNop()).Routes())

	c := &config.Config{
		Port:           "0",
		BackendURL:     lates.URL,
		BackendTimeout: 5 * time.Second,
		LoadWait:       5 * time.Second,
		AllowedOrigins: []string{"*"},
	}
	srv, dash := dashboardServer(c, zap.NewNop())

	return &stack{
		dashboard: srv.Handler,
		close: func() {
			dash.Close()
			lates.Close()
		},
	}
}

func (s *stack) do(t *testing.T, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.dashboard.ServeHTTP(rec, req)
	return rec
}

func (s *stack) list(t *testing.T) models.EntryList {
	rec := s.do(t, http.MethodGet, "/api/all", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list models.EntryList
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	return list
}

func TestCreateListDeleteThroughProxy(t *testing.T) {
	s := newStack(t)
	defer s.close()

	rec := s.do(t, http.MethodPost, "/api/new", "application/json", `{"minutes_late": 10, "excuse": "traffic"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var created models.LateEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Date)

	list := s.list(t)
	entry, ok := list.Get(created.Date)
	require.True(t, ok)
	assert.Equal(t, 10, entry.MinutesLate)
	assert.Equal(t, "traffic", entry.ExcuseText())

	// one entry per day
	rec = s.do(t, http.MethodPost, "/api/new", "application/json", `{"minutes_late": 11}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "detail")

	rec = s.do(t, http.MethodDelete, "/api/delete?id="+url.QueryEscape(created.Date), "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.False(t, s.list(t).Contains(created.Date))

	rec = s.do(t, http.MethodDelete, "/api/delete?id="+url.QueryEscape(created.Date), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateWithoutExcuseShowsPlaceholder(t *testing.T) {
	s := newStack(t)
	defer s.close()

	rec := s.do(t, http.MethodPost, "/view", "application/x-www-form-urlencoded", "view=create_new")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = s.do(t, http.MethodPost, "/entries", "application/x-www-form-urlencoded", "minutes_late=32400&excuse=")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page := s.do(t, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Entry created!")

	rec = s.do(t, http.MethodPost, "/view", "application/x-www-form-urlencoded", "view=render_all")
	require.Equal(t, http.StatusSeeOther, rec.Code)

	page = s.do(t, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, page.Code)
	body := page.Body.String()
	assert.Contains(t, body, "<td>32400</td>")
	assert.Contains(t, body, "<td>No excuse</td>")
	assert.NotContains(t, body, "Entry created!")

	list := s.list(t)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].Excuse)
}

func TestMetricsExposed(t *testing.T) {
	s := newStack(t)
	defer s.close()

	s.list(t)

	rec := s.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nexlate_backend_requests_total{operation="list",status_code="200"} 1`)
	assert.Contains(t, string(body), `nexlate_http_requests_total{method="GET",route="/api/all"`)
}

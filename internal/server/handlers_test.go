package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/matome/internal/config"
	"github.com/hyperjump/matome/internal/ingest"
	"github.com/hyperjump/matome/internal/models"
	"github.com/hyperjump/matome/internal/platform"
	"github.com/hyperjump/matome/internal/search"
	"github.com/hyperjump/matome/internal/stats"
	"github.com/hyperjump/matome/internal/store"
	"github.com/hyperjump/matome/pkg/errors"
)

type fakeClient struct {
	source  platform.Platform
	records []platform.Record
	err     error
}

func (f *fakeClient) Source() platform.Platform { return f.source }

func (f *fakeClient) FetchRecent(ctx context.Context, max int) ([]platform.Record, error) {
	return f.records, f.err
}

func newTestServer(t *testing.T, clients ...platform.Client) (*Server, store.Store) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	logger := zap.NewNop()
	searchCfg := &config.SearchConfig{DefaultPerPage: 20, MaxPerPage: 100, TopQueries: 10}
	syncCfg := &config.SyncConfig{MaxMessages: 100, TimeoutSeconds: 60, MaxConcurrency: 4}
	engine := search.NewEngine(st, searchCfg, logger)
	agg := stats.NewAggregator(st, searchCfg)
	coord := ingest.NewCoordinator(st, clients, syncCfg, logger)
	srv := NewServer(engine, agg, coord, st, &config.ServerConfig{Port: 8080}, logger, nil)
	return srv, st
}

func seedMessage(t *testing.T, st store.Store, platformName, platformID, content string) {
	t.Helper()
	created := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	err := st.UpsertMessage(context.Background(), &models.Message{
		Platform: platformName, PlatformID: platformID, Title: "t",
		Content: content, AuthorName: "author", CreatedAt: &created,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestHandleSearch(t *testing.T) {
	srv, st := newTestServer(t)
	seedMessage(t, st, "chatwork", "m1", "the deploy finished")
	seedMessage(t, st, "notion", "m2", "deploy checklist")

	r := httptest.NewRequest(http.MethodGet, "/api/search?q=deploy", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out struct {
		Success    bool              `json:"success"`
		Data       []*models.Message `json:"data"`
		Total      int               `json:"total"`
		Page       int               `json:"page"`
		PerPage    int               `json:"per_page"`
		TotalPages int               `json:"total_pages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Total != 2 || len(out.Data) != 2 {
		t.Errorf("response: %+v", out)
	}
	if out.Page != 1 || out.TotalPages != 1 {
		t.Errorf("pagination echo: %+v", out)
	}
}

func TestHandleSearchEmptyQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/search?q=", nil)
	w := httptest.NewRecorder()
	srv.handleSearch(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out struct {
		Success bool              `json:"success"`
		Data    []*models.Message `json:"data"`
		Total   int               `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Total != 0 {
		t.Errorf("empty query should succeed with no results: %+v", out)
	}
	if out.Data == nil {
		t.Error("data should be an empty array, not null")
	}
}

func TestHandleSearchValidationFailure(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, target := range []string{
		"/api/search?q=x&page=-1",
		"/api/search?q=x&per_page=-1",
		"/api/search?q=x&platform=slack",
		"/api/search?q=x&page=abc",
	} {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		srv.handleSearch(w, r)

		// validation problems are 200 + success:false by contract
		if w.Code != http.StatusOK {
			t.Errorf("%s: status %d", target, w.Code)
		}
		var out struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		if out.Success || out.Error == "" {
			t.Errorf("%s: expected failure envelope, got %+v", target, out)
		}
	}
}

func TestHandleStats(t *testing.T) {
	srv, st := newTestServer(t)
	seedMessage(t, st, "chatwork", "m1", "hello")

	r := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	w := httptest.NewRecorder()
	srv.handleStats(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out struct {
		Success bool         `json:"success"`
		Stats   models.Stats `json:"stats"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Stats.TotalMessages != 1 {
		t.Errorf("stats: %+v", out)
	}
}

func TestHandleSyncAndStatus(t *testing.T) {
	chat := &fakeClient{source: platform.Chatwork, records: []platform.Record{
		&platform.ChatworkMessage{
			MessageID: "1", RoomID: 7, RoomName: "General", Body: "hi",
			SendTime: 1700000000, Account: platform.ChatworkAccount{AccountID: 1, Name: "A"},
		},
	}}
	notes := &fakeClient{source: platform.Notion, err: errors.Client("transport error", nil)}
	srv, st := newTestServer(t, chat, notes)

	r := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	w := httptest.NewRecorder()
	srv.handleSync(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out struct {
		Success bool              `json:"success"`
		Synced  map[string]int    `json:"synced"`
		Runs    []*models.SyncRun `json:"runs"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Success || out.Synced["chatwork"] != 1 {
		t.Errorf("sync response: %+v", out)
	}

	count, _ := st.CountMessages(context.Background())
	if count != 1 {
		t.Errorf("chatwork row should be committed, got %d", count)
	}

	// status reports the latest run per platform
	r = httptest.NewRequest(http.MethodGet, "/api/sync/status", nil)
	w = httptest.NewRecorder()
	srv.handleSyncStatus(w, r)

	var status struct {
		Success    bool              `json:"success"`
		SyncStatus []*models.SyncRun `json:"sync_status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	if len(status.SyncStatus) != 2 {
		t.Fatalf("expected 2 platforms, got %d", len(status.SyncStatus))
	}
	byPlatform := map[string]string{}
	for _, run := range status.SyncStatus {
		byPlatform[run.Platform] = run.Status
	}
	if byPlatform["chatwork"] != models.SyncStatusSuccess || byPlatform["notion"] != models.SyncStatusError {
		t.Errorf("statuses: %+v", byPlatform)
	}
}

func TestRouterHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health: %d", resp.StatusCode)
	}
}

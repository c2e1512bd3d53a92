package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hyperjump/matome/internal/config"
	"github.com/hyperjump/matome/pkg/errors"
)

func newNotionTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Notion-Version") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"results":[{
			"id":"abc123def456",
			"created_time":"2024-01-10T09:00:00.000Z",
			"last_edited_time":"2024-01-11T10:00:00.000Z",
			"url":"https://notion.so/abc123def456",
			"created_by":{"id":"user-1"},
			"properties":{"Name":{"type":"title","title":[{"plain_text":"Meeting Notes"}]}}
		}]}`))
	})
	mux.HandleFunc("/blocks/abc123def456/children", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[
			{"type":"heading_1","heading_1":{"rich_text":[{"plain_text":"Agenda"}]}},
			{"type":"paragraph","paragraph":{"rich_text":[{"plain_text":"Discuss roadmap"}]}}
		]}`))
	})
	return httptest.NewServer(mux)
}

func TestNotionFetchRecent(t *testing.T) {
	srv := newNotionTestServer(t)
	defer srv.Close()

	client := NewNotionClient(&config.NotionConfig{
		Token: "nt-token", BaseURL: srv.URL, Version: "2022-06-28",
	})
	records, err := client.FetchRecent(context.Background(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	page, ok := records[0].(*NotionPage)
	if !ok {
		t.Fatalf("expected *NotionPage, got %T", records[0])
	}
	if page.ID != "abc123def456" {
		t.Errorf("id: got %q", page.ID)
	}
	if len(page.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(page.Blocks))
	}
	if page.Blocks[0].Type != "heading_1" || page.Blocks[0].Heading1 == nil {
		t.Errorf("heading block not decoded: %+v", page.Blocks[0])
	}
	if page.Properties["Name"].Title[0].PlainText != "Meeting Notes" {
		t.Errorf("title property not decoded: %+v", page.Properties)
	}
}

func TestNotionSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewNotionClient(&config.NotionConfig{
		Token: "nt-token", BaseURL: srv.URL, Version: "2022-06-28",
	})
	_, err := client.FetchRecent(context.Background(), 20)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.CodeOf(err) != errors.CodeClient {
		t.Errorf("expected CLIENT error, got %s", errors.CodeOf(err))
	}
}

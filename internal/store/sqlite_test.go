package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/matome/internal/models"
	"github.com/hyperjump/matome/pkg/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testMessage(platform, platformID, content string) *models.Message {
	created := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	return &models.Message{
		Platform:    platform,
		PlatformID:  platformID,
		Title:       "title",
		Content:     content,
		AuthorName:  "author",
		ChannelName: "channel",
		CreatedAt:   &created,
	}
}

func TestUpsertIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	msg := testMessage("chatwork", "1_100", "first version")
	if err := store.UpsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	if msg.SynchronizedAt.IsZero() {
		t.Error("SynchronizedAt should be stamped")
	}

	first, err := store.GetMessage(ctx, "chatwork", "1_100")
	if err != nil {
		t.Fatal(err)
	}

	// same source record, new content: must update, never duplicate
	again := testMessage("chatwork", "1_100", "second version")
	if err := store.UpsertMessage(ctx, again); err != nil {
		t.Fatal(err)
	}

	second, err := store.GetMessage(ctx, "chatwork", "1_100")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert must keep the row id: %d != %d", second.ID, first.ID)
	}
	if second.Content != "second version" {
		t.Errorf("content: got %q", second.Content)
	}

	count, err := store.CountMessages(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestUpsertDistinctPlatforms(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// same platform_id on two platforms is two rows
	if err := store.UpsertMessage(ctx, testMessage("chatwork", "shared", "a")); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertMessage(ctx, testMessage("notion", "shared", "b")); err != nil {
		t.Fatal(err)
	}
	count, _ := store.CountMessages(ctx)
	if count != 2 {
		t.Errorf("expected 2 rows, got %d", count)
	}
}

func TestSearchContentAndAuthor(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	byAuthor := testMessage("chatwork", "m1", "nothing relevant")
	byAuthor.AuthorName = "Inoue"
	byContent := testMessage("notion", "m2", "reviewed by inoue yesterday")
	byContent.AuthorName = "Someone"
	miss := testMessage("chatwork", "m3", "unrelated")
	for _, m := range []*models.Message{byAuthor, byContent, miss} {
		if err := store.UpsertMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	items, total, err := store.SearchMessages(ctx, SearchFilter{Text: "Inoue", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 matches, got total=%d len=%d", total, len(items))
	}
}

func TestSearchPlatformFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.UpsertMessage(ctx, testMessage("chatwork", "m1", "shared term"))
	_ = store.UpsertMessage(ctx, testMessage("notion", "m2", "shared term"))

	items, total, err := store.SearchMessages(ctx, SearchFilter{Text: "shared", Platform: "notion", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 || items[0].Platform != "notion" {
		t.Errorf("platform filter broken: total=%d items=%+v", total, items)
	}
}

func TestSearchExcludesSoftDeleted(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	live := testMessage("chatwork", "m1", "findme")
	gone := testMessage("chatwork", "m2", "findme")
	gone.IsDeleted = true
	_ = store.UpsertMessage(ctx, live)
	_ = store.UpsertMessage(ctx, gone)

	_, total, err := store.SearchMessages(ctx, SearchFilter{Text: "findme", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("soft-deleted row must not match, got total=%d", total)
	}
	count, _ := store.CountMessages(ctx)
	if count != 1 {
		t.Errorf("soft-deleted row must not be counted, got %d", count)
	}
}

func TestSearchPagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		msg := testMessage("chatwork", fmt.Sprintf("m%02d", i), fmt.Sprintf("x item %02d", i))
		created := base.Add(time.Duration(i) * time.Hour)
		msg.CreatedAt = &created
		if err := store.UpsertMessage(ctx, msg); err != nil {
			t.Fatal(err)
		}
	}

	// page 2 of 10 is items 11-20 in newest-first order
	items, total, err := store.SearchMessages(ctx, SearchFilter{Text: "x", Limit: 10, Offset: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 25 {
		t.Errorf("total: got %d", total)
	}
	if len(items) != 10 {
		t.Fatalf("page size: got %d", len(items))
	}
	if items[0].Content != "x item 14" || items[9].Content != "x item 05" {
		t.Errorf("page 2 ordering wrong: first=%q last=%q", items[0].Content, items[9].Content)
	}

	// all pages together cover exactly total rows
	seen := 0
	for offset := 0; offset < total; offset += 10 {
		page, pageTotal, err := store.SearchMessages(ctx, SearchFilter{Text: "x", Limit: 10, Offset: offset})
		if err != nil {
			t.Fatal(err)
		}
		if pageTotal != total {
			t.Errorf("count drifted between pages: %d != %d", pageTotal, total)
		}
		seen += len(page)
	}
	if seen != total {
		t.Errorf("pages cover %d rows, total says %d", seen, total)
	}
}

func TestSearchOrderingDeterministic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// identical created_at: ties broken by id descending
	for i := 0; i < 5; i++ {
		_ = store.UpsertMessage(ctx, testMessage("chatwork", fmt.Sprintf("t%d", i), "same stamp"))
	}
	first, _, err := store.SearchMessages(ctx, SearchFilter{Text: "same", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 3; run++ {
		again, _, err := store.SearchMessages(ctx, SearchFilter{Text: "same", Limit: 10})
		if err != nil {
			t.Fatal(err)
		}
		for i := range first {
			if again[i].ID != first[i].ID {
				t.Fatalf("ordering changed between identical searches")
			}
		}
	}
	for i := 1; i < len(first); i++ {
		if first[i].ID > first[i-1].ID {
			t.Errorf("ids must descend on equal timestamps")
		}
	}
}

func TestSearchEscapesLikeWildcards(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.UpsertMessage(ctx, testMessage("chatwork", "m1", "progress: 100% done"))
	_ = store.UpsertMessage(ctx, testMessage("chatwork", "m2", "completely different"))

	_, total, err := store.SearchMessages(ctx, SearchFilter{Text: "100%", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 {
		t.Errorf("%% must match literally, got total=%d", total)
	}
}

func TestSyncRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &models.SyncRun{
		RunID:     "run-1",
		Platform:  "chatwork",
		Status:    models.SyncStatusInProgress,
		StartedAt: time.Now().UTC(),
	}
	if err := store.CreateSyncRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if run.ID == 0 {
		t.Fatal("run id should be assigned")
	}

	completed := run.StartedAt.Add(3 * time.Second)
	run.Status = models.SyncStatusSuccess
	run.MessagesCount = 42
	run.CompletedAt = &completed
	run.DurationSeconds = 3.0
	if err := store.FinalizeSyncRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	runs, err := store.LatestSyncRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Status != models.SyncStatusSuccess || got.MessagesCount != 42 {
		t.Errorf("finalized run: %+v", got)
	}
	if got.CompletedAt == nil || got.DurationSeconds != 3.0 {
		t.Errorf("completion fields: %+v", got)
	}
}

func TestLatestSyncRunsPerPlatform(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i, tc := range []struct {
		platform, status string
	}{
		{"chatwork", models.SyncStatusError},
		{"chatwork", models.SyncStatusSuccess}, // newer chatwork run
		{"notion", models.SyncStatusError},
	} {
		run := &models.SyncRun{
			RunID: fmt.Sprintf("run-%d", i), Platform: tc.platform,
			Status: models.SyncStatusInProgress, StartedAt: now,
		}
		if err := store.CreateSyncRun(ctx, run); err != nil {
			t.Fatal(err)
		}
		completed := now.Add(time.Duration(i) * time.Second)
		run.Status = tc.status
		run.CompletedAt = &completed
		if err := store.FinalizeSyncRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.LatestSyncRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected one run per platform, got %d", len(runs))
	}
	byPlatform := map[string]string{}
	for _, r := range runs {
		byPlatform[r.Platform] = r.Status
	}
	if byPlatform["chatwork"] != models.SyncStatusSuccess {
		t.Errorf("chatwork should report its newest run, got %s", byPlatform["chatwork"])
	}
	if byPlatform["notion"] != models.SyncStatusError {
		t.Errorf("notion: got %s", byPlatform["notion"])
	}
}

func TestTopQueries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, q := range []string{"deploy", "deploy", "deploy", "roadmap", "roadmap", "lunch"} {
		if err := store.InsertSearchStat(ctx, &models.SearchStat{Query: q, ResultsCount: 1}); err != nil {
			t.Fatal(err)
		}
	}

	top, err := store.TopQueries(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(top))
	}
	if top[0].Query != "deploy" || top[0].Count != 3 {
		t.Errorf("top: %+v", top[0])
	}
	if top[1].Query != "roadmap" || top[1].Count != 2 {
		t.Errorf("second: %+v", top[1])
	}
}

func TestLastSyncTimeEmpty(t *testing.T) {
	store := newTestStore(t)
	last, err := store.LastSyncTime(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if last != nil {
		t.Errorf("empty store should have no last sync, got %v", last)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	msg := testMessage("notion", "p1", "content")
	msg.Metadata = map[string]interface{}{"url": "https://notion.so/p1"}
	if err := store.UpsertMessage(ctx, msg); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetMessage(ctx, "notion", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Metadata["url"] != "https://notion.so/p1" {
		t.Errorf("metadata: %+v", got.Metadata)
	}
}

func TestGetMessageNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetMessage(context.Background(), "chatwork", "nope")
	if errors.CodeOf(err) != errors.CodeNotFound {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

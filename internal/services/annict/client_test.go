package annict

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anisync/internal/config"
	"anisync/internal/logging"
	"anisync/internal/services"
	"anisync/internal/services/httpx"
	"anisync/internal/watch"
)

func testClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	cfg := config.Annict{Token: "test-token", BaseURL: serverURL, PerPage: 2}
	return New(cfg, logging.NewNop(), opts...)
}

func workJSON(id int, title string) map[string]any {
	return map[string]any{
		"id":             id,
		"title":          title,
		"media":          "tv",
		"released_on":    "2021-01-15",
		"episodes_count": 12,
		"mal_anime_id":   "900",
	}
}

func TestFetchLibraryWalksShelvesAndPages(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/me/works" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("Authorization = %q", got)
		}
		status := r.URL.Query().Get("filter_status")
		page := r.URL.Query().Get("page")
		requests = append(requests, status+"/"+page)

		payload := map[string]any{"works": []any{}, "total_count": 0}
		switch {
		case status == "watching" && page == "1":
			payload = map[string]any{
				"works":       []any{workJSON(1, "First Show"), workJSON(2, "Second Show")},
				"total_count": 3,
				"next_page":   2,
			}
		case status == "watching" && page == "2":
			payload = map[string]any{
				"works":       []any{workJSON(3, "Third Show")},
				"total_count": 3,
			}
		case status == "wanna_watch" && page == "1":
			payload = map[string]any{
				"works":       []any{workJSON(9, "Planned Show")},
				"total_count": 1,
			}
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	records, entries, err := testClient(t, server.URL).FetchLibrary(context.Background())
	if err != nil {
		t.Fatalf("FetchLibrary returned error: %v", err)
	}
	if len(records) != 4 || len(entries) != 4 {
		t.Fatalf("FetchLibrary = %d records, %d entries, want 4 each", len(records), len(entries))
	}
	for i, wantID := range []int{1, 2, 3, 9} {
		if entries[i].AnnictID != wantID {
			t.Errorf("entry %d AnnictID = %d, want %d", i, entries[i].AnnictID, wantID)
		}
	}
	if entries[0].Status != watch.StatusWatching {
		t.Errorf("entry 0 Status = %v, want watching", entries[0].Status)
	}
	if entries[3].Status != watch.StatusPlanToWatch {
		t.Errorf("entry 3 Status = %v, want plan-to-watch", entries[3].Status)
	}
	// One request per shelf plus the second watching page.
	if len(requests) != len(libraryStatusKinds)+1 {
		t.Errorf("requests = %v, want one per shelf plus one continuation", requests)
	}
}

func TestFetchLibraryRequiresToken(t *testing.T) {
	client := New(config.Annict{}, logging.NewNop())
	_, _, err := client.FetchLibrary(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("FetchLibrary error = %v, want ErrConfiguration", err)
	}
}

func TestFetchSourceEntry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/works" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		payload := map[string]any{"works": []any{}, "total_count": 0}
		switch r.URL.Query().Get("filter_ids") {
		case "4168":
			payload["works"] = []any{workJSON(4168, "Dated Show")}
			payload["total_count"] = 1
		case "5000":
			dateless := workJSON(5000, "Dateless Show")
			dateless["released_on"] = ""
			payload["works"] = []any{dateless}
			payload["total_count"] = 1
		}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()
	client := testClient(t, server.URL)

	t.Run("dated work resolves strictly", func(t *testing.T) {
		entry, ok, err := client.FetchSourceEntry(context.Background(), 4168, false)
		if err != nil || !ok {
			t.Fatalf("FetchSourceEntry = (%v, %v), want a hit", ok, err)
		}
		if entry.Relaxed {
			t.Error("Relaxed = true for a dated work")
		}
		if entry.ID() != 4168 {
			t.Errorf("ID = %d, want 4168", entry.ID())
		}
	})

	t.Run("dateless work needs relaxed mode", func(t *testing.T) {
		if _, ok, err := client.FetchSourceEntry(context.Background(), 5000, false); ok || err != nil {
			t.Fatalf("strict FetchSourceEntry = (%v, %v), want a clean miss", ok, err)
		}
		entry, ok, err := client.FetchSourceEntry(context.Background(), 5000, true)
		if err != nil || !ok {
			t.Fatalf("relaxed FetchSourceEntry = (%v, %v), want a hit", ok, err)
		}
		if !entry.Relaxed {
			t.Error("Relaxed = false for a dateless work")
		}
	})

	t.Run("unknown id is a miss", func(t *testing.T) {
		if _, ok, err := client.FetchSourceEntry(context.Background(), 777, true); ok || err != nil {
			t.Fatalf("FetchSourceEntry = (%v, %v), want a clean miss", ok, err)
		}
	})
}

func TestFetchEpisodeTotal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{"works": []any{workJSON(4168, "Dated Show")}, "total_count": 1}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Fatalf("encode response: %v", err)
		}
	}))
	defer server.Close()

	total, err := testClient(t, server.URL).FetchEpisodeTotal(context.Background(), 4168)
	if err != nil {
		t.Fatalf("FetchEpisodeTotal returned error: %v", err)
	}
	if total != 12 {
		t.Errorf("FetchEpisodeTotal = %d, want 12", total)
	}
}

func TestFetchSourceEntryRetriesRateLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		payload := map[string]any{"works": []any{workJSON(4168, "Dated Show")}, "total_count": 1}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	defer server.Close()

	var slept []time.Duration
	client := testClient(t, server.URL, WithRetry(httpx.Retry{
		MaxAttempts: 3,
		Sleeper:     func(d time.Duration) { slept = append(slept, d) },
	}))
	_, ok, err := client.FetchSourceEntry(context.Background(), 4168, false)
	if err != nil || !ok {
		t.Fatalf("FetchSourceEntry = (%v, %v), want a hit after retry", ok, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Errorf("sleeps = %v, want the server's 1s hint", slept)
	}
}

func TestApplyChanges(t *testing.T) {
	type statusWrite struct{ workID, kind string }
	var writes []statusWrite
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/me/statuses" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		writes = append(writes, statusWrite{r.PostForm.Get("work_id"), r.PostForm.Get("kind")})
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	instructions := []watch.Instruction{
		{Platform: watch.PlatformAniList, After: watch.Entry{AniListID: 501, Status: watch.StatusWatching}},
		{Platform: watch.PlatformAnnict, After: watch.Entry{AnnictID: 10, Status: watch.StatusWatching}},
		{Platform: watch.PlatformAnnict, After: watch.Entry{Title: "No ID", Status: watch.StatusWatching}},
		{Platform: watch.PlatformAnnict, After: watch.Entry{AnnictID: 20, Status: watch.StatusCompleted}},
	}
	applied, err := testClient(t, server.URL).ApplyChanges(context.Background(), instructions)
	if err != nil {
		t.Fatalf("ApplyChanges returned error: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}
	want := []statusWrite{{"10", "watching"}, {"20", "watched"}}
	if len(writes) != len(want) {
		t.Fatalf("writes = %v, want %v", writes, want)
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, writes[i], want[i])
		}
	}
}

func TestApplyChangesStopsAtFirstFailure(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	instructions := []watch.Instruction{
		{Platform: watch.PlatformAnnict, After: watch.Entry{AnnictID: 10, Status: watch.StatusWatching}},
		{Platform: watch.PlatformAnnict, After: watch.Entry{AnnictID: 20, Status: watch.StatusDropped}},
		{Platform: watch.PlatformAnnict, After: watch.Entry{AnnictID: 30, Status: watch.StatusCompleted}},
	}
	applied, err := testClient(t, server.URL).ApplyChanges(context.Background(), instructions)
	if !errors.Is(err, services.ErrRemoteApply) {
		t.Fatalf("ApplyChanges error = %v, want ErrRemoteApply", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1 before the failure", applied)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2 (third instruction never attempted)", calls)
	}
}

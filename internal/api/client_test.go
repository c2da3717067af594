package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api/apitest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func loggedIn(t *testing.T, srv *apitest.Server) *api.Client {
	t.Helper()
	client := api.NewClient(srv.URL, testLogger())
	sess, err := client.Login(context.Background(), apitest.Username, apitest.Password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	return client.WithSession(sess)
}

func TestClientLogin(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	client := api.NewClient(srv.URL, testLogger())
	sess, err := client.Login(context.Background(), apitest.Username, apitest.Password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Token != apitest.Token {
		t.Errorf("token = %q, want %q", sess.Token, apitest.Token)
	}
	if sess.Username != apitest.Username {
		t.Errorf("username = %q, want %q", sess.Username, apitest.Username)
	}
	if client.Session().Authenticated() {
		t.Error("Login must not mutate the client it was called on")
	}
}

func TestClientLoginWrongPassword(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	client := api.NewClient(srv.URL, testLogger())
	_, err := client.Login(context.Background(), apitest.Username, "nope")
	if err == nil {
		t.Fatal("expected error for wrong password")
	}
	detail, ok := api.Detail(err)
	if !ok || detail != "Incorrect username or password" {
		t.Errorf("detail = %q, want backend message", detail)
	}
}

func TestClientSendsBearerAndRequestID(t *testing.T) {
	var auth, requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-Id")
		w.Write([]byte(`{"id": 7, "title": "t", "duration": 12.5, "status": "Draft"}`))
	}))
	defer server.Close()

	client := api.NewClient(server.URL, testLogger()).WithSession(api.Session{Token: "abc"})
	v, err := client.GetVideo(context.Background(), "7")
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if auth != "Bearer abc" {
		t.Errorf("auth = %q, want %q", auth, "Bearer abc")
	}
	if requestID == "" {
		t.Error("expected X-Request-Id header")
	}
	if v.ID != "7" {
		t.Errorf("id = %q, want %q", v.ID, "7")
	}
	if v.Status != api.StatusQueued {
		t.Errorf("status = %v, want Queued", v.Status)
	}
}

func TestClientListVideosPagination(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	for _, title := range []string{"alpha", "beta", "gamma"} {
		srv.AddVideo(title, 30)
	}
	client := loggedIn(t, srv)

	page1, err := client.ListVideos(context.Background(), api.ListQuery{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list page 1: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("page 1 = %d videos, want 2", len(page1))
	}
	if api.IsLastPage(len(page1), 2) {
		t.Error("page 1 should not be the last page")
	}

	page2, err := client.ListVideos(context.Background(), api.ListQuery{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2) != 1 || page2[0].Title != "gamma" {
		t.Fatalf("page 2 = %+v, want [gamma]", page2)
	}
	if !api.IsLastPage(len(page2), 2) {
		t.Error("page 2 should be the last page")
	}

	found, err := client.ListVideos(context.Background(), api.ListQuery{Page: 1, Limit: 10, Search: "bet"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].Title != "beta" {
		t.Errorf("search = %+v, want [beta]", found)
	}
}

func TestClientListVideosStatusFilter(t *testing.T) {
	var got []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.URL.Query().Get("status"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := api.NewClient(server.URL, testLogger())
	want := map[api.VideoStatus]string{
		api.StatusQueued:     "Draft",
		api.StatusProcessing: "Processing",
		api.StatusReady:      "Ready",
		api.StatusFailed:     "Failed",
	}
	for status, wire := range want {
		got = nil
		st := status
		if _, err := client.ListVideos(context.Background(), api.ListQuery{Status: &st}); err != nil {
			t.Fatalf("list %s: %v", status, err)
		}
		if len(got) != 1 || got[0] != wire {
			t.Errorf("status %s sent as %v, want %q", status, got, wire)
		}
	}
}

func TestClientListVideosQueuedAgainstBackend(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	queued := srv.AddVideo("fresh", 30)
	busy := srv.AddVideo("busy", 30)
	srv.SetStatus(busy, api.StatusProcessing)
	client := loggedIn(t, srv)

	st := api.StatusQueued
	videos, err := client.ListVideos(context.Background(), api.ListQuery{Status: &st})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(videos) != 1 || videos[0].ID != queued {
		t.Errorf("queued filter = %+v, want only %s", videos, queued)
	}
}

func TestClientSplitAndSegments(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	id := srv.AddVideo("clip", 30)
	client := loggedIn(t, srv)
	ctx := context.Background()

	segs, err := client.ListSegments(ctx, id)
	if err != nil {
		t.Fatalf("segments before split: %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("segments before split = %d, want 0", len(segs))
	}

	if _, err := client.SplitVideo(ctx, id, []api.Range{{Start: 5, End: 15}}); err != nil {
		t.Fatalf("split: %v", err)
	}
	v, err := client.GetVideo(ctx, id)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if v.Status != api.StatusProcessing {
		t.Errorf("status = %v, want Processing", v.Status)
	}

	srv.Complete(id)
	segs, err = client.ListSegments(ctx, id)
	if err != nil {
		t.Fatalf("segments after complete: %v", err)
	}
	if len(segs) != 1 {
		t.Fatalf("segments = %d, want 1", len(segs))
	}
	if segs[0].Window() != (api.Range{Start: 5, End: 15}) {
		t.Errorf("window = %v, want 5-15", segs[0].Window())
	}
}

func TestClientSplitBackendDetail(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	id := srv.AddVideo("short", 10)
	client := loggedIn(t, srv)

	_, err := client.SplitVideo(context.Background(), id, []api.Range{{Start: 0, End: 20}})
	if err == nil {
		t.Fatal("expected error for segment past duration")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.IsRetryable() {
		t.Error("400 should not be retryable")
	}
	if apiErr.Detail != "Segment 0 end time (20s) exceeds video duration (10s)" {
		t.Errorf("detail = %q", apiErr.Detail)
	}
}

func TestClientSplitRequiresSession(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1", testLogger())
	_, err := client.SplitVideo(context.Background(), "1", []api.Range{{Start: 0, End: 1}})
	if !errors.Is(err, api.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestClientCreateVideo(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	client := loggedIn(t, srv)
	duration := 42.0
	v, err := client.CreateVideo(context.Background(), api.VideoCreate{
		Title:    "New Asset",
		VideoURL: "https://example.com/new.mp4",
		Duration: &duration,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.Title != "New Asset" || v.Duration != 42 {
		t.Errorf("video = %+v", v)
	}
	if v.Status != api.StatusQueued {
		t.Errorf("status = %v, want Queued", v.Status)
	}
}

func TestClientUpdateVideo(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	id := srv.AddVideo("old title", 30)
	client := loggedIn(t, srv)

	title := "new title"
	failed := api.StatusFailed
	v, err := client.UpdateVideo(context.Background(), id, api.VideoUpdate{Title: &title, Status: &failed})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if v.Title != "new title" || v.Status != api.StatusFailed || v.Duration != 30 {
		t.Errorf("video = %+v", v)
	}

	got, err := client.GetVideo(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "new title" {
		t.Errorf("update not stored: %+v", got)
	}

	_, err = client.UpdateVideo(context.Background(), "99", api.VideoUpdate{Title: &title})
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || !apiErr.IsNotFound() {
		t.Errorf("err = %v, want 404", err)
	}
}

func TestClientUpdateVideoSendsOnlySetFields(t *testing.T) {
	var body map[string]any
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		json.NewDecoder(r.Body).Decode(&body)
		w.Write([]byte(`{"id":1,"title":"t","status":"Draft"}`))
	}))
	defer server.Close()

	client := api.NewClient(server.URL, testLogger()).WithSession(api.Session{Token: "abc"})
	queued := api.StatusQueued
	if _, err := client.UpdateVideo(context.Background(), "1", api.VideoUpdate{Status: &queued}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if method != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", method)
	}
	if len(body) != 1 || body["status"] != "Draft" {
		t.Errorf("body = %v, want only status Draft", body)
	}
}

func TestClientUpdateVideoRequiresSession(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1", testLogger())
	title := "x"
	_, err := client.UpdateVideo(context.Background(), "1", api.VideoUpdate{Title: &title})
	if !errors.Is(err, api.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestClientValidationDetailIgnored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","segments"],"msg":"field required"}]}`))
	}))
	defer server.Close()

	client := api.NewClient(server.URL, testLogger()).WithSession(api.Session{Token: "abc"})
	_, err := client.SplitVideo(context.Background(), "1", nil)
	if err == nil {
		t.Fatal("expected error for 422")
	}
	if d, ok := api.Detail(err); ok {
		t.Errorf("detail = %q, want none for list payload", d)
	}
}

func TestClientContextCancelled(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := api.NewClient(srv.URL, testLogger())
	if _, err := client.GetVideo(ctx, "1"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

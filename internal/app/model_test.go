package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api/apitest"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/db"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/editor"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newBackend(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	return srv
}

func loggedInClient(srv *apitest.Server) *api.Client {
	return api.NewClient(srv.URL, nil).WithSession(api.Session{Username: apitest.Username, Token: apitest.Token})
}

// openEditor drives a list model into the editor for id and waits for the
// first polling tick to be under way.
func openEditor(t *testing.T, srv *apitest.Server, m Model, id api.ID) Model {
	t.Helper()
	msg := openSessionCmd(m.client, id, m.sessionOptions())()
	updated, cmd := m.Update(msg)
	model := updated.(Model)
	if model.screen != ScreenEditor || model.session == nil {
		t.Fatalf("expected editor screen, got screen %d (error %q)", model.screen, model.errorMessage)
	}
	if cmd == nil {
		t.Error("expected a command waiting for state changes")
	}
	sess := model.session
	t.Cleanup(sess.Close)

	deadline := time.Now().Add(2 * time.Second)
	for srv.Requests("GET /videos/{id}") < 2 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the first poll")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return model
}

func TestNewModel(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil)})
	if m.screen != ScreenLogin {
		t.Error("new model without a token should show login")
	}
	if m.page != 1 {
		t.Errorf("page = %d, want 1", m.page)
	}
	if m.pageSize != DefaultPageSize {
		t.Errorf("pageSize = %d, want %d", m.pageSize, DefaultPageSize)
	}
	if nudgeSteps[m.stepIndex] != 1 {
		t.Errorf("default step = %g, want 1", nudgeSteps[m.stepIndex])
	}
}

func TestNewModelWithTokenSkipsLogin(t *testing.T) {
	client := api.NewClient("http://example.test", nil).WithSession(api.Session{Username: "u", Token: "t"})
	m := New(Options{Client: client})
	if m.screen != ScreenList || !m.loading {
		t.Error("authenticated model should start loading the list")
	}
}

func TestCredentialLoaded(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil)})

	updated, cmd := m.Update(CredentialLoadedMsg{Session: api.Session{Username: "admin", Token: "tok"}, Found: true})
	model := updated.(Model)

	if model.screen != ScreenList {
		t.Error("saved credential should skip login")
	}
	if !model.client.Session().Authenticated() {
		t.Error("client should carry the saved token")
	}
	if cmd == nil {
		t.Error("expected a list load command")
	}
}

func TestCredentialNotFound(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil)})

	updated, cmd := m.Update(CredentialLoadedMsg{})
	model := updated.(Model)

	if model.screen != ScreenLogin {
		t.Error("should stay on login without a saved credential")
	}
	if cmd != nil {
		t.Error("expected no command")
	}
}

func TestLoginFailureShowsDetail(t *testing.T) {
	srv := newBackend(t)
	m := New(Options{Client: api.NewClient(srv.URL, nil)})
	m.password.SetValue("wrong")

	updated, _ := m.Update(loginCmd(m.client, apitest.Username, "wrong")())
	model := updated.(Model)

	if model.screen != ScreenLogin {
		t.Error("failed login should stay on login")
	}
	if model.errorMessage != "Incorrect username or password" {
		t.Errorf("errorMessage = %q", model.errorMessage)
	}
	if model.password.Value() != "" {
		t.Error("password should be cleared after a failed login")
	}
}

func TestLoginSuccess(t *testing.T) {
	srv := newBackend(t)
	store, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	m := New(Options{Client: api.NewClient(srv.URL, nil), Store: store})
	updated, cmd := m.Update(loginCmd(m.client, apitest.Username, apitest.Password)())
	model := updated.(Model)

	if model.screen != ScreenList || !model.loading {
		t.Error("login should move to the loading list")
	}
	if model.client.Session().Token != apitest.Token {
		t.Errorf("token = %q", model.client.Session().Token)
	}
	if cmd == nil {
		t.Fatal("expected save and load commands")
	}

	saveCredentialCmd(store, model.client.BaseURL(), model.client.Session(), model.logger)()
	msg := loadCredentialCmd(store, srv.URL)().(CredentialLoadedMsg)
	if !msg.Found || msg.Session.Token != apitest.Token {
		t.Errorf("credential not restored: %+v", msg)
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil)})
	m.focusLogin(1)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := updated.(Model)

	if cmd != nil || model.loggingIn {
		t.Error("empty fields should not start a login")
	}
	if model.errorMessage == "" {
		t.Error("expected a validation message")
	}
}

func TestLoginTabSwitchesFocus(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil)})

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	model := updated.(Model)
	if model.loginFocus != 1 || !model.password.Focused() || model.username.Focused() {
		t.Error("tab should focus the password field")
	}

	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = updated.(Model)
	if model.loginFocus != 0 || !model.username.Focused() {
		t.Error("tab should cycle back to username")
	}
}

func TestVideosLoadedAndNavigation(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil).WithSession(api.Session{Token: "t"})})

	updated, _ := m.Update(VideosLoadedMsg{
		Videos: []api.Video{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}, {ID: "3", Title: "c"}},
		Page:   1,
	})
	model := updated.(Model)
	if model.loading || len(model.videos) != 3 {
		t.Fatalf("expected three videos loaded, got %d", len(model.videos))
	}

	for i := 0; i < 5; i++ {
		updated, _ = model.Update(runes("j"))
		model = updated.(Model)
	}
	if model.selected != 2 {
		t.Errorf("selected = %d, want 2 (clamped)", model.selected)
	}

	updated, _ = model.Update(runes("k"))
	model = updated.(Model)
	if model.selected != 1 {
		t.Errorf("selected = %d, want 1", model.selected)
	}
}

func TestVideosLoadError(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil).WithSession(api.Session{Token: "t"})})

	updated, cmd := m.Update(VideosLoadedMsg{Page: 1, Err: &api.Error{StatusCode: 500, Detail: "database down"}})
	model := updated.(Model)

	if model.errorMessage != "database down" || !model.errorTransient {
		t.Errorf("expected transient backend detail, got %q", model.errorMessage)
	}
	if cmd == nil {
		t.Error("expected a clear timer")
	}

	updated, _ = model.Update(ClearTransientErrorMsg{})
	model = updated.(Model)
	if model.errorMessage != "" {
		t.Error("transient error should clear")
	}
}

func TestClientErrorIsSticky(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil).WithSession(api.Session{Token: "t"})})

	updated, cmd := m.Update(VideosLoadedMsg{Page: 1, Err: &api.Error{StatusCode: 422, Detail: "bad page"}})
	model := updated.(Model)

	if model.errorMessage != "bad page" || model.errorTransient {
		t.Errorf("expected sticky client error, got %q transient=%v", model.errorMessage, model.errorTransient)
	}
	if cmd != nil {
		t.Error("a sticky error should not start a clear timer")
	}

	updated, _ = model.Update(ClearTransientErrorMsg{})
	if updated.(Model).errorMessage != "bad page" {
		t.Error("a sticky error should survive the clear timer")
	}
}

func TestTransportErrorIsTransient(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil).WithSession(api.Session{Token: "t"})})

	updated, cmd := m.Update(VideosLoadedMsg{Page: 1, Err: errors.New("connection refused")})
	model := updated.(Model)

	if !model.errorTransient || cmd == nil {
		t.Error("transport failures should clear on their own")
	}
}

func TestPagination(t *testing.T) {
	m := New(Options{
		Client:   api.NewClient("http://example.test", nil).WithSession(api.Session{Token: "t"}),
		PageSize: 2,
	})

	// a full page means there may be more
	updated, _ := m.Update(VideosLoadedMsg{Videos: []api.Video{{ID: "1"}, {ID: "2"}}, Page: 1})
	model := updated.(Model)

	if _, cmd := model.Update(runes("p")); cmd != nil {
		t.Error("previous page on page 1 should do nothing")
	}
	updated, cmd := model.Update(runes("n"))
	if cmd == nil {
		t.Fatal("next page should load")
	}
	model = updated.(Model)
	if !model.loading {
		t.Error("should be loading the next page")
	}

	// a short page is the last one
	updated, _ = model.Update(VideosLoadedMsg{Videos: []api.Video{{ID: "3"}}, Page: 2})
	model = updated.(Model)
	if model.page != 2 {
		t.Errorf("page = %d, want 2", model.page)
	}
	if _, cmd := model.Update(runes("n")); cmd != nil {
		t.Error("next page past the last page should do nothing")
	}
	if _, cmd := model.Update(runes("p")); cmd == nil {
		t.Error("previous page from page 2 should load")
	}
}

func TestSearch(t *testing.T) {
	srv := newBackend(t)
	srv.AddVideo("keynote", 60)
	srv.AddVideo("trailer", 30)

	m := New(Options{Client: loggedInClient(srv)})
	m.loading = false

	updated, _ := m.Update(runes("/"))
	model := updated.(Model)
	if !model.searching {
		t.Fatal("slash should start searching")
	}

	for _, r := range "trail" {
		updated, _ = model.Update(runes(string(r)))
		model = updated.(Model)
	}
	// typing in search mode must not trigger list keys
	if model.selected != 0 || model.screen != ScreenList {
		t.Error("search input leaked into list keys")
	}

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model = updated.(Model)
	if model.searching || cmd == nil {
		t.Fatal("enter should run the search")
	}

	updated, _ = model.Update(cmd())
	model = updated.(Model)
	if model.search != "trail" {
		t.Errorf("search = %q, want trail", model.search)
	}
	if len(model.videos) != 1 || model.videos[0].Title != "trailer" {
		t.Errorf("unexpected search results: %+v", model.videos)
	}
}

func TestOpenMissingVideo(t *testing.T) {
	srv := newBackend(t)
	m := New(Options{Client: loggedInClient(srv)})

	updated, _ := m.Update(openSessionCmd(m.client, "404", m.sessionOptions())())
	model := updated.(Model)

	if model.screen != ScreenList || model.session != nil {
		t.Error("a missing video should stay on the list")
	}
	if model.errorMessage != "Video not found" {
		t.Errorf("errorMessage = %q", model.errorMessage)
	}
	if model.errorTransient {
		t.Error("a 404 should stay on screen")
	}
}

func TestEditorSelectionKeys(t *testing.T) {
	srv := newBackend(t)
	id := srv.AddVideo("clip", 30)
	m := openEditor(t, srv, New(Options{Client: loggedInClient(srv)}), id)

	if m.snap.Range != (api.Range{Start: 0, End: 15}) {
		t.Fatalf("initial range = %v, want [0, 15]", m.snap.Range)
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRight})
	model := updated.(Model)
	if model.snap.Range.Start != 1 || model.snap.Playhead != 1 {
		t.Errorf("right should move the start by one second, got %v playhead %g", model.snap.Range, model.snap.Playhead)
	}

	updated, _ = model.Update(runes("+"))
	model = updated.(Model)
	updated, _ = model.Update(tea.KeyMsg{Type: tea.KeyShiftRight})
	model = updated.(Model)
	if model.snap.Range.End != 20 {
		t.Errorf("shift+right with step 5 should reach 20, got %v", model.snap.Range)
	}

	// end clamps at the duration
	for i := 0; i < 5; i++ {
		updated, _ = model.Update(runes("L"))
		model = updated.(Model)
	}
	if model.snap.Range.End != 30 {
		t.Errorf("end should clamp at 30, got %v", model.snap.Range)
	}

	updated, _ = model.Update(runes("a"))
	model = updated.(Model)
	if len(model.snap.Candidates) != 1 {
		t.Errorf("expected one queued range, got %d", len(model.snap.Candidates))
	}
	updated, _ = model.Update(runes("x"))
	model = updated.(Model)
	if len(model.snap.Candidates) != 0 {
		t.Error("clear should drop queued ranges")
	}
}

func TestEditorSubmit(t *testing.T) {
	srv := newBackend(t)
	id := srv.AddVideo("clip", 30)
	m := openEditor(t, srv, New(Options{Client: loggedInClient(srv)}), id)
	m.width = 100
	m.height = 30

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	model := updated.(Model)
	if cmd == nil {
		t.Fatal("enter should submit")
	}

	updated, _ = model.Update(cmd())
	model = updated.(Model)

	if srv.Requests("POST /videos/{id}/split") != 1 {
		t.Errorf("expected one split request, got %d", srv.Requests("POST /videos/{id}/split"))
	}
	if model.snap.Phase != editor.PhaseProcessing {
		t.Errorf("phase = %s, want Processing", model.snap.Phase)
	}
	if view := model.View(); !strings.Contains(view, "Processing") {
		t.Errorf("view should show the processing status:\n%s", view)
	}
}

func TestEditorSubmitFailureShowsDetail(t *testing.T) {
	srv := newBackend(t)
	id := srv.AddVideo("clip", 30)
	srv.FailNext("POST /videos/{id}/split", 400, "segment exceeds duration")
	m := openEditor(t, srv, New(Options{Client: loggedInClient(srv)}), id)
	m.width = 100

	_, cmd := m.Update(runes("s"))
	updated, _ := m.Update(cmd())
	model := updated.(Model)

	if model.snap.Phase != editor.PhaseFailed {
		t.Errorf("phase = %s, want Failed", model.snap.Phase)
	}
	if model.snap.Message != "segment exceeds duration" {
		t.Errorf("message = %q", model.snap.Message)
	}
	if !strings.Contains(model.View(), "segment exceeds duration") {
		t.Error("view should show the backend detail")
	}
}

func TestEditorSubmitUnauthenticatedLogsOut(t *testing.T) {
	srv := newBackend(t)
	id := srv.AddVideo("clip", 30)
	// browsing needs no token, so an anonymous user can reach the editor
	anon := New(Options{Client: api.NewClient(srv.URL, nil)})
	anon.screen = ScreenList
	m := openEditor(t, srv, anon, id)
	sess := m.session

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	updated, _ := m.Update(cmd())
	model := updated.(Model)

	if model.screen != ScreenLogin {
		t.Error("submitting without a token should return to login")
	}
	select {
	case <-sess.Done():
	default:
		t.Error("logout should close the session")
	}
	if srv.Requests("POST /videos/{id}/split") != 0 {
		t.Error("no request should be sent without a token")
	}
}

func TestEditorSubmitExpiredTokenLogsOut(t *testing.T) {
	srv := newBackend(t)
	id := srv.AddVideo("clip", 30)
	m := openEditor(t, srv, New(Options{Client: loggedInClient(srv)}), id)
	sess := m.session
	srv.FailNext("POST /videos/{id}/split", 401, "Could not validate credentials")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	updated, _ := m.Update(cmd())
	model := updated.(Model)

	if model.screen != ScreenLogin {
		t.Fatal("a rejected token should return to login")
	}
	if model.client.Session().Authenticated() {
		t.Error("logout should drop the token")
	}
	if model.statusText != "Session expired, log in again" {
		t.Errorf("statusText = %q", model.statusText)
	}
	select {
	case <-sess.Done():
	default:
		t.Error("logout should close the session")
	}
}

func TestEditorEscClosesSession(t *testing.T) {
	srv := newBackend(t)
	id := srv.AddVideo("clip", 30)
	m := openEditor(t, srv, New(Options{Client: loggedInClient(srv)}), id)
	sess := m.session

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model := updated.(Model)

	if model.screen != ScreenList || model.session != nil {
		t.Error("esc should return to the list")
	}
	if cmd == nil {
		t.Error("esc should reload the list")
	}
	if sess.Reconciler.Running() {
		t.Error("polling should stop when the editor closes")
	}
	select {
	case <-sess.Done():
	default:
		t.Error("session should be closed")
	}
}

func TestStateChangeFromClosedSessionIgnored(t *testing.T) {
	srv := newBackend(t)
	id := srv.AddVideo("clip", 30)
	m := openEditor(t, srv, New(Options{Client: loggedInClient(srv)}), id)
	stale := m.session

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	model := updated.(Model)

	updated, cmd := model.Update(StateChangedMsg{Session: stale})
	model = updated.(Model)
	if cmd != nil || model.screen != ScreenList {
		t.Error("a closed session's changes should be ignored")
	}
}

func TestSessionOpenedAfterLeavingList(t *testing.T) {
	srv := newBackend(t)
	id := srv.AddVideo("clip", 30)
	m := New(Options{Client: api.NewClient(srv.URL, nil)})

	msg := openSessionCmd(m.client, id, m.sessionOptions())().(SessionOpenedMsg)
	updated, _ := m.Update(msg)
	model := updated.(Model)

	if model.session != nil || model.screen != ScreenLogin {
		t.Error("a late session should not be adopted")
	}
	select {
	case <-msg.Session.Done():
	case <-time.After(time.Second):
		t.Error("a late session should be closed")
	}
}

func TestWaitForChangeReturnsOnClose(t *testing.T) {
	srv := newBackend(t)
	id := srv.AddVideo("clip", 30)
	sess := editor.NewSession(loggedInClient(srv), editor.Options{})
	if err := sess.Open(context.Background(), id); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// drain the notification from opening
	<-sess.State.Changes()
	sess.Close()

	done := make(chan tea.Msg, 1)
	go func() { done <- waitForChangeCmd(sess)() }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("wait should return once the session closes")
	}
}

func TestViewInitializing(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil)})
	if m.View() != "Initializing..." {
		t.Errorf("unexpected view before the first resize: %q", m.View())
	}
}

func TestViewLogin(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil)})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	view := updated.(Model).View()

	for _, want := range []string{"SYNCMONSTER", "Username", "Password", "http://example.test"} {
		if !strings.Contains(view, want) {
			t.Errorf("login view missing %q", want)
		}
	}
}

func TestViewList(t *testing.T) {
	m := New(Options{Client: api.NewClient("http://example.test", nil).WithSession(api.Session{Username: "admin", Token: "t"})})
	m.width, m.height = 100, 30

	updated, _ := m.Update(VideosLoadedMsg{
		Videos: []api.Video{{ID: "1", Title: "keynote", Status: api.StatusReady, Duration: 125}},
		Page:   1,
	})
	view := updated.(Model).View()

	for _, want := range []string{"keynote", "Ready", "2:05", "Page 1"} {
		if !strings.Contains(view, want) {
			t.Errorf("list view missing %q", want)
		}
	}
}

func TestErrorText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&api.Error{StatusCode: 404, Detail: "Video not found"}, "Video not found"},
		{api.ErrUnauthenticated, "Failed: not authenticated"},
		{nil, "Failed"},
	}
	for _, tt := range tests {
		if got := errorText(tt.err, "Failed"); got != tt.want {
			t.Errorf("errorText(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[float64]string{0: "--:--", 9: "0:09", 65.4: "1:05", 3600: "60:00"}
	for in, want := range tests {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%g) = %q, want %q", in, got, want)
		}
	}
}

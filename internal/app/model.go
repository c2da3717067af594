package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/db"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/editor"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/metrics"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/ui"
)

// Screen tracks which view has keyboard focus.
type Screen int

const (
	ScreenLogin Screen = iota
	ScreenList
	ScreenEditor
)

// DefaultPageSize is the number of videos per list page.
const DefaultPageSize = 10

// nudgeSteps are the selectable nudge sizes in seconds.
var nudgeSteps = []float64{0.1, 0.5, 1, 5, 10}

const defaultStepIndex = 2

// Options configures a Model.
type Options struct {
	Client       *api.Client
	Store        *db.Store
	Metrics      *metrics.Metrics
	PageSize     int
	PollInterval time.Duration
	SubmitDelay  time.Duration
	Logger       *slog.Logger
}

// Model is the root bubbletea model for the SyncMonster TUI.
type Model struct {
	// Backend
	client       *api.Client
	store        *db.Store
	metrics      *metrics.Metrics
	logger       *slog.Logger
	pageSize     int
	pollInterval time.Duration
	submitDelay  time.Duration

	screen Screen

	// Login
	username   textinput.Model
	password   textinput.Model
	loginFocus int
	loggingIn  bool

	// Video list
	videos      []api.Video
	page        int
	search      string
	searchInput textinput.Model
	searching   bool
	selected    int
	loading     bool

	// Editor
	session   *editor.Session
	snap      editor.Snapshot
	stepIndex int
	spinner   spinner.Model

	// UI state
	width  int
	height int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string
}

// New creates a new Model. A client that already carries a token skips the
// login screen.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client := opts.Client
	if client == nil {
		client = api.NewClient("", logger)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	search := textinput.New()
	search.Placeholder = "search titles"
	search.CharLimit = 128

	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(ui.SpinnerStyle))

	m := Model{
		client:       client,
		store:        opts.Store,
		metrics:      opts.Metrics,
		logger:       logger,
		pageSize:     pageSize,
		pollInterval: opts.PollInterval,
		submitDelay:  opts.SubmitDelay,
		screen:       ScreenLogin,
		username:     username,
		password:     password,
		searchInput:  search,
		page:         1,
		stepIndex:    defaultStepIndex,
		spinner:      sp,
		statusText:   "Log in to " + client.BaseURL(),
	}
	if client.Session().Authenticated() {
		m.screen = ScreenList
		m.loading = true
		m.statusText = "Loading videos..."
	}
	return m
}

// Init returns the initial command: restore a saved login or load the list.
func (m Model) Init() tea.Cmd {
	first := loadCredentialCmd(m.store, m.client.BaseURL())
	if m.screen == ScreenList {
		first = loadVideosCmd(m.client, m.page, m.pageSize, m.search)
	}
	return tea.Batch(first, textinput.Blink, m.spinner.Tick)
}

func (m Model) sessionOptions() editor.Options {
	opts := editor.Options{
		Interval:    m.pollInterval,
		SubmitDelay: m.submitDelay,
		Logger:      m.logger,
	}
	if m.store != nil {
		opts.Journal = m.store
	}
	if m.metrics != nil {
		opts.Metrics = m.metrics
	}
	return opts
}

// loadCredentialCmd reads the token saved for baseURL.
func loadCredentialCmd(store *db.Store, baseURL string) tea.Cmd {
	return func() tea.Msg {
		if store == nil {
			return CredentialLoadedMsg{}
		}
		c, err := store.Credential(context.Background(), baseURL)
		if err != nil || c == nil {
			return CredentialLoadedMsg{} // silently ignore DB errors
		}
		return CredentialLoadedMsg{
			Session: api.Session{Username: c.Username, Token: c.Token},
			Found:   true,
		}
	}
}

// loginCmd exchanges credentials for a token.
func loginCmd(client *api.Client, username, password string) tea.Cmd {
	return func() tea.Msg {
		sess, err := client.Login(context.Background(), username, password)
		return LoginResultMsg{Session: sess, Err: err}
	}
}

// saveCredentialCmd remembers the token for the next start.
func saveCredentialCmd(store *db.Store, baseURL string, sess api.Session, logger *slog.Logger) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		err := store.SaveCredential(context.Background(), db.Credential{
			BaseURL:  baseURL,
			Username: sess.Username,
			Token:    sess.Token,
		})
		if err != nil {
			logger.Warn("failed to save credential", "error", err)
		}
		return nil
	}
}

// deleteCredentialCmd forgets the saved token.
func deleteCredentialCmd(store *db.Store, baseURL string, logger *slog.Logger) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		if err := store.DeleteCredential(context.Background(), baseURL); err != nil {
			logger.Warn("failed to delete credential", "error", err)
		}
		return nil
	}
}

// loadVideosCmd fetches one page of the video list.
func loadVideosCmd(client *api.Client, page, limit int, search string) tea.Cmd {
	return func() tea.Msg {
		videos, err := client.ListVideos(context.Background(), api.ListQuery{
			Page:   page,
			Limit:  limit,
			Search: search,
		})
		return VideosLoadedMsg{Videos: videos, Page: page, Search: search, Err: err}
	}
}

// openSessionCmd loads a video and starts reconciling it.
func openSessionCmd(client *api.Client, id api.ID, opts editor.Options) tea.Cmd {
	return func() tea.Msg {
		sess := editor.NewSession(client, opts)
		if err := sess.Open(context.Background(), id); err != nil {
			sess.Close()
			return SessionOpenedMsg{Err: err}
		}
		return SessionOpenedMsg{Session: sess}
	}
}

// waitForChangeCmd blocks until the session's state changes or the session
// is closed.
func waitForChangeCmd(sess *editor.Session) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-sess.State.Changes():
			return StateChangedMsg{Session: sess}
		case <-sess.Done():
			return nil
		}
	}
}

// submitCmd sends the session's candidate ranges as a split job.
func submitCmd(sess *editor.Session) tea.Cmd {
	return func() tea.Msg {
		return SubmitDoneMsg{Session: sess, Err: sess.Submit(context.Background())}
	}
}

// refreshCmd runs one reconciliation tick now.
func refreshCmd(sess *editor.Session) tea.Cmd {
	return func() tea.Msg {
		sess.Reconciler.Refresh(context.Background())
		return nil
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case CredentialLoadedMsg:
		if !msg.Found || m.screen != ScreenLogin {
			return m, nil
		}
		m.client = m.client.WithSession(msg.Session)
		m.screen = ScreenList
		m.loading = true
		m.statusText = "Logged in as " + msg.Session.Username
		return m, loadVideosCmd(m.client, m.page, m.pageSize, m.search)

	case LoginResultMsg:
		m.loggingIn = false
		if msg.Err != nil {
			m.setError(errorText(msg.Err, "Login failed"), false)
			m.password.SetValue("")
			return m, nil
		}
		m.clearError()
		m.client = m.client.WithSession(msg.Session)
		m.password.SetValue("")
		m.screen = ScreenList
		m.loading = true
		m.page = 1
		m.statusText = "Logged in as " + msg.Session.Username
		return m, tea.Batch(
			saveCredentialCmd(m.store, m.client.BaseURL(), msg.Session, m.logger),
			loadVideosCmd(m.client, m.page, m.pageSize, m.search),
		)

	case VideosLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			return m.showError(msg.Err, "Could not load videos")
		}
		m.videos = msg.Videos
		m.page = msg.Page
		m.search = msg.Search
		if m.selected >= len(m.videos) {
			m.selected = max(0, len(m.videos)-1)
		}
		return m, nil

	case SessionOpenedMsg:
		m.loading = false
		if msg.Err != nil {
			return m.showError(msg.Err, "Could not open video")
		}
		if m.screen != ScreenList {
			// navigated away while loading
			msg.Session.Close()
			return m, nil
		}
		m.session = msg.Session
		m.snap = m.session.State.Snapshot()
		m.screen = ScreenEditor
		m.clearError()
		if m.metrics != nil {
			m.metrics.SessionOpened()
		}
		return m, waitForChangeCmd(m.session)

	case StateChangedMsg:
		if m.session == nil || msg.Session != m.session {
			return m, nil
		}
		m.snap = m.session.State.Snapshot()
		return m, waitForChangeCmd(m.session)

	case SubmitDoneMsg:
		if m.session == nil || msg.Session != m.session {
			return m, nil
		}
		m.snap = m.session.State.Snapshot()
		var apiErr *api.Error
		if errors.As(msg.Err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return m.logout("Session expired, log in again")
		}
		if errors.Is(msg.Err, api.ErrUnauthenticated) {
			return m.logout("Log in to submit split jobs")
		}
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.clearError()
		}
		return m, nil
	}

	return m, nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		m.closeSession()
		return m, tea.Quit
	}

	switch m.screen {
	case ScreenLogin:
		return m.handleLoginKey(msg)
	case ScreenList:
		return m.handleListKey(msg)
	case ScreenEditor:
		return m.handleEditorKey(msg)
	}
	return m, nil
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyTab, KeyShiftTab, KeyUp, KeyDown:
		return m, m.focusLogin(1 - m.loginFocus)

	case KeyEnter:
		if m.loggingIn {
			return m, nil
		}
		if m.loginFocus == 0 {
			return m, m.focusLogin(1)
		}
		user := m.username.Value()
		pass := m.password.Value()
		if user == "" || pass == "" {
			m.setError("Username and password are required", false)
			return m, nil
		}
		m.loggingIn = true
		m.clearError()
		return m, loginCmd(m.client, user, pass)
	}

	var cmd tea.Cmd
	if m.loginFocus == 0 {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) focusLogin(i int) tea.Cmd {
	m.loginFocus = i
	if i == 0 {
		m.password.Blur()
		return m.username.Focus()
	}
	m.username.Blur()
	return m.password.Focus()
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch msg.String() {
		case KeyEnter:
			m.searching = false
			m.searchInput.Blur()
			m.selected = 0
			m.loading = true
			return m, loadVideosCmd(m.client, 1, m.pageSize, m.searchInput.Value())
		case KeyEsc:
			m.searching = false
			m.searchInput.Blur()
			m.searchInput.SetValue(m.search)
			return m, nil
		}
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case KeyQuit, KeyQuitUpper:
		return m, tea.Quit

	case KeyJ, KeyDown:
		if m.selected < len(m.videos)-1 {
			m.selected++
		}
		return m, nil

	case KeyK, KeyUp:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case KeyNextPage:
		if m.loading || m.isLastPage() {
			return m, nil
		}
		m.loading = true
		m.selected = 0
		return m, loadVideosCmd(m.client, m.page+1, m.pageSize, m.search)

	case KeyPrevPage:
		if m.loading || m.page <= 1 {
			return m, nil
		}
		m.loading = true
		m.selected = 0
		return m, loadVideosCmd(m.client, m.page-1, m.pageSize, m.search)

	case KeySearch:
		m.searching = true
		m.searchInput.SetValue(m.search)
		return m, m.searchInput.Focus()

	case KeyRefresh:
		m.loading = true
		return m, loadVideosCmd(m.client, m.page, m.pageSize, m.search)

	case KeyEnter:
		if m.loading || m.selected >= len(m.videos) {
			return m, nil
		}
		m.loading = true
		m.statusText = "Opening " + m.videos[m.selected].Title + "..."
		return m, openSessionCmd(m.client, m.videos[m.selected].ID, m.sessionOptions())

	case KeyLogout:
		return m.logout("Logged out")
	}

	return m, nil
}

func (m Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		m.screen = ScreenList
		return m, nil
	}
	sel := m.session.Selector
	step := nudgeSteps[m.stepIndex]

	switch msg.String() {
	case KeyQuit, KeyQuitUpper:
		m.closeSession()
		return m, tea.Quit

	case KeyEsc:
		m.closeSession()
		m.screen = ScreenList
		m.loading = true
		return m, loadVideosCmd(m.client, m.page, m.pageSize, m.search)

	case KeyLeft, KeyH:
		sel.Nudge(-step, 0)
	case KeyRight, KeyL:
		sel.Nudge(step, 0)
	case KeyShiftLeft, KeyEndLeft:
		sel.Nudge(0, -step)
	case KeyShiftRight, KeyEndRight:
		sel.Nudge(0, step)

	case KeyStepUp:
		if m.stepIndex < len(nudgeSteps)-1 {
			m.stepIndex++
		}
	case KeyStepDown:
		if m.stepIndex > 0 {
			m.stepIndex--
		}

	case KeyAdd:
		sel.Add()
	case KeyClear:
		sel.Clear()

	case KeyEnter, KeySubmit:
		if m.snap.InFlight {
			return m, nil
		}
		m.snap = m.session.State.Snapshot()
		return m, submitCmd(m.session)

	case KeyRefresh:
		return m, refreshCmd(m.session)
	}

	m.snap = m.session.State.Snapshot()
	return m, nil
}

func (m *Model) closeSession() {
	if m.session == nil {
		return
	}
	m.session.Close()
	m.session = nil
	m.snap = editor.Snapshot{}
	if m.metrics != nil {
		m.metrics.SessionClosed()
	}
}

func (m Model) logout(reason string) (tea.Model, tea.Cmd) {
	m.closeSession()
	m.client = m.client.WithSession(api.Session{})
	m.screen = ScreenLogin
	m.videos = nil
	m.selected = 0
	m.page = 1
	m.statusText = reason
	cmd := m.focusLogin(0)
	return m, tea.Batch(cmd, deleteCredentialCmd(m.store, m.client.BaseURL(), m.logger))
}

func (m Model) isLastPage() bool {
	return api.IsLastPage(len(m.videos), m.pageSize)
}

// showError displays err. Server and transport failures are retryable and
// clear after a timeout; client errors stay until the next action.
func (m Model) showError(err error, fallback string) (tea.Model, tea.Cmd) {
	transient := true
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		transient = apiErr.IsRetryable()
	}
	m.setError(errorText(err, fallback), transient)
	if transient {
		return m, clearTransientErrorCmd()
	}
	return m, nil
}

func (m *Model) setError(msg string, transient bool) {
	m.errorMessage = msg
	m.errorTransient = transient
}

func (m *Model) clearError() {
	m.errorMessage = ""
	m.errorTransient = false
}

// errorText prefers the backend's detail over the wrapped error chain.
func errorText(err error, fallback string) string {
	if detail, ok := api.Detail(err); ok {
		return detail
	}
	if err == nil {
		return fallback
	}
	return fmt.Sprintf("%s: %v", fallback, err)
}

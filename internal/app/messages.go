package app

import (
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/editor"
)

// CredentialLoadedMsg carries the token saved for the backend, if any.
type CredentialLoadedMsg struct {
	Session api.Session
	Found   bool
}

// LoginResultMsg carries the outcome of a login attempt.
type LoginResultMsg struct {
	Session api.Session
	Err     error
}

// VideosLoadedMsg carries one page of the video list.
type VideosLoadedMsg struct {
	Videos []api.Video
	Page   int
	Search string
	Err    error
}

// SessionOpenedMsg is sent when a video has been loaded for editing.
type SessionOpenedMsg struct {
	Session *editor.Session
	Err     error
}

// StateChangedMsg signals that the open session's state changed.
type StateChangedMsg struct {
	Session *editor.Session
}

// SubmitDoneMsg is sent when a split submission returns.
type SubmitDoneMsg struct {
	Session *editor.Session
	Err     error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

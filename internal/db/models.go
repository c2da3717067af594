// Package db provides the local SQLite store: the saved backend credential
// and a journal of split submissions.
package db

import (
	"time"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
)

// Submission outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeFailed   = "failed"
)

// Credential is a bearer token saved for one backend.
type Credential struct {
	BaseURL  string
	Username string
	Token    string
	SavedAt  time.Time
}

// Submission is one split attempt as seen by this client.
type Submission struct {
	ID          string
	VideoID     string
	Segments    []api.Range
	Outcome     string
	Message     string
	SubmittedAt time.Time
}

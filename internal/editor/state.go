// Package editor holds the split-job workflow for one viewed video: range
// selection, submission with an optimistic status, and periodic
// reconciliation against the backend.
package editor

import (
	"slices"
	"sync"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
)

// Phase is the view-level state derived from the held video and the
// submission guard.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSelecting
	PhaseSubmitting
	PhaseProcessing
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseSelecting:
		return "Selecting"
	case PhaseSubmitting:
		return "Submitting"
	case PhaseProcessing:
		return "Processing"
	case PhaseReady:
		return "Ready"
	case PhaseFailed:
		return "Failed"
	}
	return "Unknown"
}

// Snapshot is an immutable copy of the view state.
type Snapshot struct {
	Video      *api.Video
	Range      api.Range
	Selectable bool
	Candidates []api.Range
	Playhead   float64
	InFlight   bool
	Segments   []api.ProducedSegment
	Message    string
	Phase      Phase
	Version    uint64
}

// Status returns the held video status, or Queued when nothing is loaded.
func (s Snapshot) Status() api.VideoStatus {
	if s.Video == nil {
		return api.StatusQueued
	}
	return s.Video.Status
}

// Duration returns the held video duration.
func (s Snapshot) Duration() float64 {
	if s.Video == nil {
		return 0
	}
	return s.Video.Duration
}

// State is the single writer for everything the editor view shows. The
// selector, the submitter and the reconciler all mutate it through its
// methods, which serialize on one mutex.
type State struct {
	mu         sync.Mutex
	video      *api.Video
	rng        api.Range
	selectable bool
	candidates []api.Range
	playhead   float64
	inFlight   bool
	segments   []api.ProducedSegment
	message    string
	version    uint64

	// epoch orders fetches against local status writes.
	epoch      uint64
	localEpoch uint64
	applied    uint64

	changes chan struct{}
}

// NewState returns an Idle state.
func NewState() *State {
	return &State{changes: make(chan struct{}, 1)}
}

// Changes delivers a notification after observable mutations. Notifications
// coalesce; read Snapshot after each one.
func (s *State) Changes() <-chan struct{} {
	return s.changes
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Range:      s.rng,
		Selectable: s.selectable,
		Candidates: slices.Clone(s.candidates),
		Playhead:   s.playhead,
		InFlight:   s.inFlight,
		Segments:   slices.Clone(s.segments),
		Message:    s.message,
		Phase:      s.phaseLocked(),
		Version:    s.version,
	}
	if s.video != nil {
		v := *s.video
		snap.Video = &v
	}
	return snap
}

func (s *State) phaseLocked() Phase {
	if s.video == nil {
		return PhaseIdle
	}
	if s.inFlight {
		return PhaseSubmitting
	}
	switch s.video.Status {
	case api.StatusProcessing:
		return PhaseProcessing
	case api.StatusReady:
		return PhaseReady
	case api.StatusFailed:
		return PhaseFailed
	}
	return PhaseSelecting
}

// changedLocked bumps the version and signals listeners. Caller holds mu.
func (s *State) changedLocked() {
	s.version++
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *State) setSelection(rng api.Range, selectable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rng
	s.selectable = selectable
	s.playhead = rng.Start
	s.candidates = nil
	s.changedLocked()
}

// setRange records rng when it fits the held duration. It reports whether
// the range was accepted and whether the start moved.
func (s *State) setRange(rng api.Range) (accepted, startMoved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.selectable || s.video == nil || !validRange(rng, s.video.Duration) {
		return false, false
	}
	if rng == s.rng {
		return true, false
	}
	startMoved = rng.Start != s.rng.Start
	s.rng = rng
	if startMoved {
		s.playhead = rng.Start
	}
	s.changedLocked()
	return true, startMoved
}

func (s *State) current() (api.Range, float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video == nil {
		return api.Range{}, 0, false
	}
	return s.rng, s.video.Duration, s.selectable
}

func (s *State) addCandidate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.selectable {
		return false
	}
	s.candidates = append(s.candidates, s.rng)
	s.changedLocked()
	return true
}

func (s *State) clearCandidates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.candidates) == 0 {
		return
	}
	s.candidates = nil
	s.changedLocked()
}

func (s *State) pending() []api.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.candidates) > 0 {
		return slices.Clone(s.candidates)
	}
	if !s.selectable {
		return nil
	}
	return []api.Range{s.rng}
}

func (s *State) setMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.message == msg {
		return
	}
	s.message = msg
	s.changedLocked()
}

// beginSubmit takes the in-flight guard and applies the optimistic
// Processing status. It returns false when a submission is already running.
func (s *State) beginSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return false
	}
	s.inFlight = true
	s.message = ""
	if s.video != nil {
		s.video.Status = api.StatusProcessing
	}
	s.markLocalLocked()
	s.changedLocked()
	return true
}

func (s *State) endSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inFlight {
		return
	}
	s.inFlight = false
	s.changedLocked()
}

func (s *State) fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video != nil {
		s.video.Status = api.StatusFailed
	}
	s.message = msg
	s.markLocalLocked()
	s.changedLocked()
}

func (s *State) markLocalLocked() {
	s.epoch++
	s.localEpoch = s.epoch
}

// beginFetch returns the token a reconciliation fetch must present when
// applying its result.
func (s *State) beginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch
}

// fetchResult is what one reconciliation tick observed. A nil Video or a
// nil Segments slice means that fetch failed and prior state is kept.
type fetchResult struct {
	Token    uint64
	Video    *api.Video
	Segments []api.ProducedSegment
}

// reconcile applies a fetch result in one step. It reports whether anything
// observable changed.
func (s *State) reconcile(res fetchResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// an older fetch finishing after a newer one has nothing to add
	if res.Token <= s.applied {
		return false
	}
	s.applied = res.Token

	changed := false
	if res.Video != nil {
		// a local write made after this fetch started is newer than the fetch
		if res.Token > s.localEpoch || s.video == nil {
			v := *res.Video
			if s.video != nil && s.video.Duration > 0 {
				v.Duration = s.video.Duration
			}
			if s.video == nil || *s.video != v {
				// the failure message describes a status the backend has moved past
				if s.video != nil && s.video.Status == api.StatusFailed && v.Status != api.StatusFailed {
					s.message = ""
				}
				s.video = &v
				changed = true
			}
		}
	}

	if res.Segments != nil {
		merged := res.Segments
		if s.video != nil && s.video.Status == api.StatusProcessing {
			merged = mergeSegments(s.segments, res.Segments)
		}
		if !slices.Equal(s.segments, merged) {
			s.segments = slices.Clone(merged)
			changed = true
		}
	}

	if changed {
		s.changedLocked()
	}
	return changed
}

// mergeSegments returns fresh followed by any known segment fresh is
// missing, so the list never shrinks while a job is running.
func mergeSegments(known, fresh []api.ProducedSegment) []api.ProducedSegment {
	seen := make(map[api.ID]bool, len(fresh))
	for _, seg := range fresh {
		seen[seg.ID] = true
	}
	out := slices.Clone(fresh)
	for _, seg := range known {
		if !seen[seg.ID] {
			out = append(out, seg)
		}
	}
	return out
}

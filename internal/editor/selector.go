package editor

import (
	"math"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
)

// PreviewWindow is the length of the range selected when a video loads.
const PreviewWindow = 15.0

// Selector keeps the candidate range inside the loaded video's duration.
type Selector struct {
	state *State

	// OnSeek, when set, is called with the new start whenever it moves.
	OnSeek func(position float64)
}

// NewSelector returns a selector writing into state.
func NewSelector(state *State) *Selector {
	return &Selector{state: state}
}

// Initialize selects [0, min(PreviewWindow, duration)]. A zero duration
// selects [0, 0] and disables selection.
func (s *Selector) Initialize(duration float64) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
		duration = 0
	}
	rng := api.Range{Start: 0, End: math.Min(PreviewWindow, duration)}
	s.state.setSelection(rng, duration > 0)
	s.seek(0)
}

// SetRange records r if 0 <= r.Start < r.End <= duration. Anything else is
// ignored and false is returned.
func (s *Selector) SetRange(r api.Range) bool {
	accepted, moved := s.state.setRange(r)
	if moved {
		s.seek(r.Start)
	}
	return accepted
}

// Nudge shifts the current range by the given deltas, clamping each edge
// into the video, and applies it through SetRange.
func (s *Selector) Nudge(dStart, dEnd float64) bool {
	cur, duration, ok := s.state.current()
	if !ok {
		return false
	}
	next := api.Range{
		Start: clamp(cur.Start+dStart, 0, duration),
		End:   clamp(cur.End+dEnd, 0, duration),
	}
	return s.SetRange(next)
}

// Add queues the current range for submission.
func (s *Selector) Add() bool {
	return s.state.addCandidate()
}

// Clear drops every queued range.
func (s *Selector) Clear() {
	s.state.clearCandidates()
}

// Candidates returns what a submission would send: the queued ranges, or the
// current range when none are queued.
func (s *Selector) Candidates() []api.Range {
	return s.state.pending()
}

func (s *Selector) seek(position float64) {
	if s.OnSeek != nil {
		s.OnSeek(position)
	}
}

func validRange(r api.Range, duration float64) bool {
	if math.IsNaN(r.Start) || math.IsNaN(r.End) || math.IsInf(r.Start, 0) || math.IsInf(r.End, 0) {
		return false
	}
	return r.Start >= 0 && r.Start < r.End && r.End <= duration
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

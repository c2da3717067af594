package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/db"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/logging"
)

// GenericFailure is shown when a split fails without a backend detail.
const GenericFailure = "split request failed"

var (
	// ErrInFlight is returned when a submission is already running.
	ErrInFlight = errors.New("submission already in flight")
	// ErrNoSegments is returned when there is nothing to submit.
	ErrNoSegments = errors.New("no segments to submit")
	// ErrNoVideo is returned when no video is loaded or the id does not match.
	ErrNoVideo = errors.New("no video loaded")
)

// RangeError reports a candidate segment outside the video.
type RangeError struct {
	Index    int
	Range    api.Range
	Duration float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("segment %d (%s) must satisfy 0 <= start < end <= %.1fs", e.Index, e.Range, e.Duration)
}

// Splitter starts split jobs on the backend.
type Splitter interface {
	SplitVideo(ctx context.Context, id api.ID, segments []api.Range) (*api.SplitResponse, error)
}

// Journal records submission attempts.
type Journal interface {
	RecordSubmission(ctx context.Context, sub db.Submission) error
}

// Recorder counts submission outcomes.
type Recorder interface {
	ObserveSubmission(outcome string)
}

// Submitter sends candidate segments as a split job.
type Submitter struct {
	state   *State
	backend Splitter
	logger  *slog.Logger

	// Refresh runs after the backend accepts a job.
	Refresh func(ctx context.Context)
	// Delay holds the optimistic status on screen before the backend call.
	Delay    time.Duration
	Journal  Journal
	Recorder Recorder
}

// NewSubmitter returns a submitter writing into state.
func NewSubmitter(state *State, backend Splitter, logger *slog.Logger) *Submitter {
	return &Submitter{state: state, backend: backend, logger: logger}
}

// Submit validates segments against the loaded video, marks it Processing,
// and calls the backend. Validation failures and ErrInFlight are returned
// without any request being made. Backend failures mark the video Failed and
// are returned.
func (s *Submitter) Submit(ctx context.Context, videoID api.ID, segments []api.Range) error {
	if err := s.validate(videoID, segments); err != nil {
		s.state.setMessage(err.Error())
		return err
	}

	if !s.state.beginSubmit() {
		return ErrInFlight
	}
	defer s.state.endSubmit()

	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			s.state.fail(GenericFailure)
			s.record(ctx, videoID, segments, db.OutcomeFailed, ctx.Err().Error())
			return ctx.Err()
		}
	}

	log := logging.WithVideoID(s.logger, string(videoID))
	log.Info("submitting split job", "segments", len(segments))

	if _, err := s.backend.SplitVideo(ctx, videoID, segments); err != nil {
		msg := GenericFailure
		if detail, ok := api.Detail(err); ok {
			msg = detail
		}
		s.state.fail(msg)
		log.Warn("split job rejected", "error", err)
		s.record(ctx, videoID, segments, db.OutcomeFailed, msg)
		return err
	}

	log.Info("split job accepted")
	s.record(ctx, videoID, segments, db.OutcomeAccepted, "")
	if s.Refresh != nil {
		s.Refresh(ctx)
	}
	return nil
}

func (s *Submitter) validate(videoID api.ID, segments []api.Range) error {
	snap := s.state.Snapshot()
	if snap.Video == nil || snap.Video.ID != videoID {
		return ErrNoVideo
	}
	if len(segments) == 0 {
		return ErrNoSegments
	}
	for i, seg := range segments {
		if !validRange(seg, snap.Video.Duration) {
			return &RangeError{Index: i, Range: seg, Duration: snap.Video.Duration}
		}
	}
	return nil
}

func (s *Submitter) record(ctx context.Context, videoID api.ID, segments []api.Range, outcome, msg string) {
	if s.Recorder != nil {
		s.Recorder.ObserveSubmission(outcome)
	}
	if s.Journal == nil {
		return
	}
	sub := db.Submission{
		ID:          uuid.NewString(),
		VideoID:     string(videoID),
		Segments:    segments,
		Outcome:     outcome,
		Message:     msg,
		SubmittedAt: time.Now(),
	}
	if err := s.Journal.RecordSubmission(context.WithoutCancel(ctx), sub); err != nil {
		logging.WithVideoID(s.logger, string(videoID)).Warn("failed to journal submission", "error", err)
	}
}

package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/logging"
)

// Backend is everything a Session needs from the backend.
type Backend interface {
	Catalog
	Splitter
}

// Options configures a Session.
type Options struct {
	Interval    time.Duration
	SubmitDelay time.Duration
	Journal     Journal
	Metrics     interface {
		Recorder
		TickRecorder
	}
	Logger *slog.Logger
}

// Session wires the selector, submitter and reconciler of one viewed video
// to a shared State. Open it when the video is shown and Close it when the
// view goes away.
type Session struct {
	State      *State
	Selector   *Selector
	Submitter  *Submitter
	Reconciler *Reconciler

	videoID   api.ID
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession returns an Idle session.
func NewSession(backend Backend, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	state := NewState()
	rec := NewReconciler(state, backend, opts.Interval, logger)
	sub := NewSubmitter(state, backend, logger)
	sub.Refresh = rec.Refresh
	sub.Delay = opts.SubmitDelay
	sub.Journal = opts.Journal
	if opts.Metrics != nil {
		sub.Recorder = opts.Metrics
		rec.Recorder = opts.Metrics
	}
	return &Session{
		State:      state,
		Selector:   NewSelector(state),
		Submitter:  sub,
		Reconciler: rec,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// VideoID returns the id of the opened video.
func (s *Session) VideoID() api.ID {
	return s.videoID
}

// Open loads the video, initializes the selection from its duration and
// starts polling. Polling stops when ctx is done or Close is called.
func (s *Session) Open(ctx context.Context, videoID api.ID) error {
	s.videoID = videoID
	if err := s.Reconciler.Sync(ctx, videoID); err != nil {
		snap := s.State.Snapshot()
		if snap.Video == nil {
			return fmt.Errorf("open video %s: %w", videoID, err)
		}
		logging.WithVideoID(s.logger, string(videoID)).Warn("initial segment fetch failed", "error", err)
	}
	s.Selector.Initialize(s.State.Snapshot().Duration())
	s.Reconciler.Start(ctx, videoID)
	return nil
}

// Submit sends the selector's candidates for the opened video.
func (s *Session) Submit(ctx context.Context) error {
	return s.Submitter.Submit(ctx, s.videoID, s.Selector.Candidates())
}

// Close stops polling. The state stays readable.
func (s *Session) Close() {
	s.Reconciler.Stop()
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed once Close has been called.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/logging"
)

// DefaultInterval is how often the reconciler polls the backend.
const DefaultInterval = 5 * time.Second

// Catalog reads the backend's record of a video.
type Catalog interface {
	GetVideo(ctx context.Context, id api.ID) (*api.Video, error)
	ListSegments(ctx context.Context, id api.ID) ([]api.ProducedSegment, error)
}

// TickRecorder counts reconciliation ticks.
type TickRecorder interface {
	ObserveTick(ok bool)
}

// Reconciler polls the catalog and overwrites local state with what the
// backend reports.
type Reconciler struct {
	state    *State
	catalog  Catalog
	interval time.Duration
	logger   *slog.Logger

	Recorder TickRecorder

	mu      sync.Mutex
	life    context.Context
	cancel  context.CancelFunc
	videoID api.ID
	wg      sync.WaitGroup
}

// NewReconciler returns a stopped reconciler. A non-positive interval uses
// DefaultInterval.
func NewReconciler(state *State, catalog Catalog, interval time.Duration, logger *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{state: state, catalog: catalog, interval: interval, logger: logger}
}

// Interval returns the polling period.
func (r *Reconciler) Interval() time.Duration {
	return r.interval
}

// Start fetches immediately and then every interval until Stop is called or
// ctx is done. Starting a running reconciler restarts it for videoID.
func (r *Reconciler) Start(ctx context.Context, videoID api.ID) {
	r.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.life, r.cancel = context.WithCancel(ctx)
	r.videoID = videoID
	r.wg.Add(1)
	go r.run(r.life, videoID)
}

// Stop cancels polling and waits for any tick or refresh in progress. Once
// it returns the reconciler no longer touches state.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.life, r.cancel = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// Running reports whether polling is active.
func (r *Reconciler) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.life != nil && r.life.Err() == nil
}

// Refresh runs one tick now. It is a no-op when the reconciler is stopped.
func (r *Reconciler) Refresh(ctx context.Context) {
	r.mu.Lock()
	life, videoID := r.life, r.videoID
	if life == nil {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(life, cancel)
	defer stop()

	r.tick(ctx, videoID)
}

// Sync fetches once outside the polling lifecycle and reports fetch errors.
// A missing segment listing is not an error.
func (r *Reconciler) Sync(ctx context.Context, videoID api.ID) error {
	token := r.state.beginFetch()
	video, segs, videoErr, segErr := r.fetch(ctx, videoID)
	if videoErr != nil {
		return fmt.Errorf("sync video %s: %w", videoID, videoErr)
	}
	r.state.reconcile(fetchResult{Token: token, Video: video, Segments: segs})
	if segErr != nil {
		return fmt.Errorf("sync segments %s: %w", videoID, segErr)
	}
	return nil
}

func (r *Reconciler) run(ctx context.Context, videoID api.ID) {
	defer r.wg.Done()

	log := logging.WithVideoID(r.logger, string(videoID))
	log.Debug("reconciler started", "interval", r.interval)
	r.tick(ctx, videoID)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("reconciler stopped")
			return
		case <-ticker.C:
			r.tick(ctx, videoID)
		}
	}
}

// tick fetches status and segments concurrently and applies both in one
// state update. Failed fetches keep what is already known.
func (r *Reconciler) tick(ctx context.Context, videoID api.ID) {
	token := r.state.beginFetch()
	video, segs, videoErr, segErr := r.fetch(ctx, videoID)

	if ctx.Err() != nil {
		return
	}

	log := logging.WithVideoID(r.logger, string(videoID))
	ok := videoErr == nil && segErr == nil
	if videoErr != nil {
		log.Warn("status fetch failed", "error", videoErr)
	}
	if segErr != nil {
		log.Warn("segment fetch failed", "error", segErr)
	}
	if r.Recorder != nil {
		r.Recorder.ObserveTick(ok)
	}

	if r.state.reconcile(fetchResult{Token: token, Video: video, Segments: segs}) {
		snap := r.state.Snapshot()
		log.Debug("state reconciled",
			"status", snap.Status().String(),
			"segments", len(snap.Segments),
		)
	}
}

func (r *Reconciler) fetch(ctx context.Context, videoID api.ID) (*api.Video, []api.ProducedSegment, error, error) {
	var (
		video            *api.Video
		segs             []api.ProducedSegment
		videoErr, segErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		video, videoErr = r.catalog.GetVideo(ctx, videoID)
		return nil
	})
	g.Go(func() error {
		segs, segErr = r.catalog.ListSegments(ctx, videoID)
		if segErr == nil && segs == nil {
			segs = []api.ProducedSegment{}
		}
		return nil
	})
	g.Wait()

	if videoErr != nil {
		video = nil
	}
	if segErr != nil {
		segs = nil
	}
	return video, segs, videoErr, segErr
}

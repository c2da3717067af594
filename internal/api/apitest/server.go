// Package apitest provides an in-memory implementation of the backend REST
// surface for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
)

// Default credentials accepted by POST /token.
const (
	Username = "admin"
	Password = "password123"
	Token    = "test-token-admin"
)

type job struct {
	pending  []api.Range
	produced []api.ProducedSegment
}

// Server is a fake backend. Split jobs stay Processing until Advance or
// Complete is called, so tests control when segments appear.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	videos    map[int]*api.Video
	jobs      map[int]*job
	nextID    int
	nextSegID int
	requests  map[string]int
	failNext  map[string]*api.Error
	down      map[string]bool
	splitGate chan struct{}
}

// NewServer starts a fake backend. Close it when done.
func NewServer() *Server {
	s := &Server{
		videos:    make(map[int]*api.Video),
		jobs:      make(map[int]*job),
		nextID:    1,
		nextSegID: 1,
		requests:  make(map[string]int),
		failNext:  make(map[string]*api.Error),
		down:      make(map[string]bool),
	}
	s.Server = httptest.NewServer(s.Router())
	return s
}

// Router returns the chi router serving the backend routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)
	r.Post("/token", s.handleToken)
	r.Route("/videos", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.With(requireToken).Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.With(requireToken).Patch("/{id}", s.handleUpdate)
		r.With(requireToken).Post("/{id}/split", s.handleSplit)
		r.Get("/{id}/segments", s.handleSegments)
	})
	return r
}

// AddVideo stores a video and returns its id.
func (s *Server) AddVideo(title string, duration float64) api.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.videos[id] = &api.Video{
		ID:       api.ID(strconv.Itoa(id)),
		Title:    title,
		VideoURL: fmt.Sprintf("https://cdn.example.com/videos/%d.mp4", id),
		Duration: duration,
		Status:   api.StatusQueued,
	}
	return api.ID(strconv.Itoa(id))
}

// SetStatus overrides the stored status of a video.
func (s *Server) SetStatus(id api.ID, status api.VideoStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := s.videos[mustAtoi(id)]; v != nil {
		v.Status = status
	}
}

// Advance renders the next pending segment of a video's job. It returns
// false when nothing is pending. The video becomes Ready once the last
// pending segment is rendered.
func (s *Server) Advance(id api.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := mustAtoi(id)
	j, v := s.jobs[n], s.videos[n]
	if j == nil || v == nil || len(j.pending) == 0 {
		return false
	}
	r := j.pending[0]
	j.pending = j.pending[1:]
	j.produced = append(j.produced, api.ProducedSegment{
		ID:       api.ID(strconv.Itoa(s.nextSegID)),
		Filename: fmt.Sprintf("%d_segment_%d.mp4", n, len(j.produced)+1),
		URL:      fmt.Sprintf("%s_segment_%d.mp4", v.VideoURL, len(j.produced)+1),
		Start:    r.Start,
		End:      r.End,
	})
	s.nextSegID++
	if len(j.pending) == 0 {
		v.Status = api.StatusReady
	}
	return true
}

// HoldSplits blocks split requests until the returned release func is
// called.
func (s *Server) HoldSplits() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.splitGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.splitGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Complete renders every pending segment.
func (s *Server) Complete(id api.ID) {
	for s.Advance(id) {
	}
}

// FailNext makes the next request to route (e.g. "POST /videos/{id}/split")
// answer with the given status and detail.
func (s *Server) FailNext(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[route] = &api.Error{StatusCode: status, Detail: detail}
}

// SetDown makes every request to route answer 503 until cleared.
func (s *Server) SetDown(route string, down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down[route] = down
}

// Requests returns how many requests hit route.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeKey(r)
		s.mu.Lock()
		s.requests[route]++
		injected := s.failNext[route]
		delete(s.failNext, route)
		down := s.down[route]
		s.mu.Unlock()

		if down {
			writeDetail(w, http.StatusServiceUnavailable, "service unavailable")
			return
		}
		if injected != nil {
			writeDetail(w, injected.StatusCode, injected.Detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func routeKey(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) >= 2 && parts[0] == "videos" {
		parts[1] = "{id}"
	}
	return r.Method + " /" + strings.Join(parts, "/")
}

func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: Token, TokenType: "bearer"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := 1, 10
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(q.Get("limit")); err == nil && l > 0 {
		limit = l
	}
	search := q.Get("search")
	status := q.Get("status")

	s.mu.Lock()
	ids := make([]int, 0, len(s.videos))
	for id := range s.videos {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var matched []api.Video
	for _, id := range ids {
		v := s.videos[id]
		if search != "" && !strings.Contains(v.Title, search) {
			continue
		}
		if status != "" && v.Status.WireName() != status {
			continue
		}
		matched = append(matched, *v)
	}
	s.mu.Unlock()

	offset := (page - 1) * limit
	out := []api.Video{}
	if offset < len(matched) {
		end := min(offset+limit, len(matched))
		out = matched[offset:end]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in api.VideoCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Title == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "title is required")
		return
	}
	duration := 0.0
	if in.Duration != nil {
		duration = *in.Duration
	}
	id := s.AddVideo(in.Title, duration)

	s.mu.Lock()
	v := s.videos[mustAtoi(id)]
	v.Description = in.Description
	if in.VideoURL != "" {
		v.VideoURL = in.VideoURL
	}
	out := *v
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v := s.videos[mustAtoi(api.ID(chi.URLParam(r, "id")))]
	var out api.Video
	if v != nil {
		out = *v
	}
	s.mu.Unlock()

	if v == nil {
		writeDetail(w, http.StatusNotFound, "Video not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var in api.VideoUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.mu.Lock()
	v := s.videos[mustAtoi(api.ID(chi.URLParam(r, "id")))]
	var out api.Video
	if v != nil {
		if in.Title != nil {
			v.Title = *in.Title
		}
		if in.Description != nil {
			v.Description = *in.Description
		}
		if in.Status != nil {
			v.Status = *in.Status
		}
		out = *v
	}
	s.mu.Unlock()

	if v == nil {
		writeDetail(w, http.StatusNotFound, "Video not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.splitGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	var req api.SplitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid body")
		return
	}

	n := mustAtoi(api.ID(chi.URLParam(r, "id")))
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.videos[n]
	if v == nil {
		writeDetail(w, http.StatusNotFound, "Video not found")
		return
	}
	for i, seg := range req.Segments {
		switch {
		case seg.Start < 0:
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Segment %d start time cannot be negative", i))
			return
		case seg.End > v.Duration:
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Segment %d end time (%gs) exceeds video duration (%gs)", i, seg.End, v.Duration))
			return
		case seg.Start >= seg.End:
			writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Segment %d start must be before end", i))
			return
		}
	}

	j := s.jobs[n]
	if j == nil {
		j = &job{}
		s.jobs[n] = j
	}
	j.pending = append(j.pending, req.Segments...)
	v.Status = api.StatusProcessing

	writeJSON(w, http.StatusOK, api.SplitResponse{ParentID: v.ID})
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	n := mustAtoi(api.ID(chi.URLParam(r, "id")))
	s.mu.Lock()
	j := s.jobs[n]
	var out []api.ProducedSegment
	if j != nil {
		out = append(out, j.produced...)
	}
	s.mu.Unlock()

	if len(out) == 0 {
		writeDetail(w, http.StatusNotFound, "No segments yet")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func mustAtoi(id api.ID) int {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return -1
	}
	return n
}

// Package mcpserver exposes the video catalog and split workflow as MCP tools
// over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/api"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/db"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/editor"
)

const (
	serverName    = "syncmonster"
	serverVersion = "0.1.0"
)

// History reads past split attempts.
type History interface {
	SubmissionsForVideo(ctx context.Context, videoID string, limit int) ([]db.Submission, error)
}

// Server wraps an MCP server bound to one backend client.
type Server struct {
	client  *api.Client
	opts    editor.Options
	history History
	logger  *slog.Logger
	mcp     *server.MCPServer
}

// NewServer registers every tool against client. opts configures the editor
// sessions used by split_video; history may be nil.
func NewServer(client *api.Client, opts editor.Options, history History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	s := &Server{
		client:  client,
		opts:    opts,
		history: history,
		logger:  logger,
		mcp:     server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP requests on stdin/stdout until the stream closes.
func (s *Server) ServeStdio() error {
	s.logger.Info("mcp server starting", "backend", s.client.BaseURL(), "authenticated", s.client.Session().Authenticated())
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("list_videos",
		mcp.WithDescription("List videos in the catalog, one page at a time"),
		mcp.WithNumber("page", mcp.Description("Page number starting at 1")),
		mcp.WithNumber("limit", mcp.Description("Videos per page (default 10)")),
		mcp.WithString("search", mcp.Description("Only titles containing this text")),
		mcp.WithString("status", mcp.Description("Only videos in this status"),
			mcp.Enum("Queued", "Processing", "Ready", "Failed")),
	), s.handleListVideos)

	s.mcp.AddTool(mcp.NewTool("get_video",
		mcp.WithDescription("Get a video's current status and the segments produced for it"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Video id")),
	), s.handleGetVideo)

	s.mcp.AddTool(mcp.NewTool("create_video",
		mcp.WithDescription("Register a new video"),
		mcp.WithString("title", mcp.Required(), mcp.Description("Video title")),
		mcp.WithString("description", mcp.Description("Free text description")),
		mcp.WithString("video_url", mcp.Description("Source URL")),
		mcp.WithNumber("duration", mcp.Description("Duration in seconds")),
	), s.handleCreateVideo)

	s.mcp.AddTool(mcp.NewTool("update_video",
		mcp.WithDescription("Change a video's title, description or status. Omitted fields are left as they are."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Video id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("description", mcp.Description("New description")),
		mcp.WithString("status", mcp.Description("New status"),
			mcp.Enum("Queued", "Processing", "Ready", "Failed")),
	), s.handleUpdateVideo)

	s.mcp.AddTool(mcp.NewTool("split_video",
		mcp.WithDescription("Submit time ranges of a video as a split job. The job runs asynchronously; poll get_video for progress."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Video id")),
		mcp.WithArray("segments", mcp.Required(),
			mcp.Description("Ranges to cut, each {start, end} in seconds with 0 <= start < end <= duration"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start": map[string]any{"type": "number"},
					"end":   map[string]any{"type": "number"},
				},
				"required": []string{"start", "end"},
			}),
		),
	), s.handleSplitVideo)

	s.mcp.AddTool(mcp.NewTool("list_segments",
		mcp.WithDescription("List the segments produced for a video so far"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Video id")),
	), s.handleListSegments)

	s.mcp.AddTool(mcp.NewTool("submission_history",
		mcp.WithDescription("Show split attempts made from this machine for a video, newest first"),
		mcp.WithString("id", mcp.Required(), mcp.Description("Video id")),
		mcp.WithNumber("limit", mcp.Description("Maximum entries (default 20)")),
	), s.handleSubmissionHistory)
}

type videoList struct {
	Page     int         `json:"page"`
	Limit    int         `json:"limit"`
	LastPage bool        `json:"last_page"`
	Videos   []api.Video `json:"videos"`
}

func (s *Server) handleListVideos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := api.ListQuery{
		Page:   req.GetInt("page", 1),
		Limit:  req.GetInt("limit", 10),
		Search: req.GetString("search", ""),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	if raw := req.GetString("status", ""); raw != "" {
		st, err := api.ParseStatus(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		q.Status = &st
	}

	videos, err := s.client.ListVideos(ctx, q)
	if err != nil {
		return toolError(err), nil
	}
	if videos == nil {
		videos = []api.Video{}
	}
	return jsonResult(videoList{
		Page:     q.Page,
		Limit:    q.Limit,
		LastPage: api.IsLastPage(len(videos), q.Limit),
		Videos:   videos,
	})
}

type videoView struct {
	Video    api.Video             `json:"video"`
	Phase    string                `json:"phase"`
	Segments []api.ProducedSegment `json:"segments"`
	Message  string                `json:"message,omitempty"`
}

func viewOf(snap editor.Snapshot) videoView {
	v := videoView{Phase: snap.Phase.String(), Segments: snap.Segments, Message: snap.Message}
	if snap.Video != nil {
		v.Video = *snap.Video
	}
	if v.Segments == nil {
		v.Segments = []api.ProducedSegment{}
	}
	return v
}

func (s *Server) handleGetVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sess := editor.NewSession(s.client, s.opts)
	if err := sess.Reconciler.Sync(ctx, api.ID(id)); err != nil && sess.State.Snapshot().Video == nil {
		return toolError(err), nil
	}
	return jsonResult(viewOf(sess.State.Snapshot()))
}

func (s *Server) handleCreateVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := api.VideoCreate{
		Title:       title,
		Description: req.GetString("description", ""),
		VideoURL:    req.GetString("video_url", ""),
	}
	if _, ok := req.GetArguments()["duration"]; ok {
		d := req.GetFloat("duration", 0)
		if d < 0 {
			return mcp.NewToolResultError("duration must not be negative"), nil
		}
		in.Duration = &d
	}

	v, err := s.client.CreateVideo(ctx, in)
	if err != nil {
		return toolError(err), nil
	}
	s.logger.Info("video created", "video_id", v.ID, "title", v.Title)
	return jsonResult(v)
}

func (s *Server) handleUpdateVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := req.GetArguments()
	var in api.VideoUpdate
	if _, ok := args["title"]; ok {
		title := req.GetString("title", "")
		if title == "" {
			return mcp.NewToolResultError("title must not be empty"), nil
		}
		in.Title = &title
	}
	if _, ok := args["description"]; ok {
		desc := req.GetString("description", "")
		in.Description = &desc
	}
	if _, ok := args["status"]; ok {
		st, err := api.ParseStatus(req.GetString("status", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		in.Status = &st
	}
	if in.Empty() {
		return mcp.NewToolResultError("nothing to update: pass title, description or status"), nil
	}

	v, err := s.client.UpdateVideo(ctx, api.ID(id), in)
	if err != nil {
		return toolError(err), nil
	}
	s.logger.Info("video updated", "video_id", v.ID, "status", v.Status)
	return jsonResult(v)
}

func (s *Server) handleSplitVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	segments, err := parseSegments(req.GetArguments()["segments"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	videoID := api.ID(id)
	sess := editor.NewSession(s.client, s.opts)
	if err := sess.Reconciler.Sync(ctx, videoID); err != nil && sess.State.Snapshot().Video == nil {
		return toolError(err), nil
	}

	if err := sess.Submitter.Submit(ctx, videoID, segments); err != nil {
		snap := sess.State.Snapshot()
		msg := snap.Message
		if msg == "" {
			msg = err.Error()
		}
		return mcp.NewToolResultError(msg), nil
	}

	// pick up the backend's view of the job that was just accepted
	if err := sess.Reconciler.Sync(ctx, videoID); err != nil {
		s.logger.Warn("post-submit sync failed", "video_id", videoID, "error", err)
	}
	return jsonResult(viewOf(sess.State.Snapshot()))
}

func (s *Server) handleListSegments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	segs, err := s.client.ListSegments(ctx, api.ID(id))
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(segs)
}

type submissionView struct {
	ID          string      `json:"id"`
	Segments    []api.Range `json:"segments"`
	Outcome     string      `json:"outcome"`
	Message     string      `json:"message,omitempty"`
	SubmittedAt string      `json:"submitted_at"`
}

func (s *Server) handleSubmissionHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.history == nil {
		return mcp.NewToolResultError("submission history is not available"), nil
	}

	subs, err := s.history.SubmissionsForVideo(ctx, id, req.GetInt("limit", 20))
	if err != nil {
		return toolError(err), nil
	}
	out := make([]submissionView, 0, len(subs))
	for _, sub := range subs {
		out = append(out, submissionView{
			ID:          sub.ID,
			Segments:    sub.Segments,
			Outcome:     sub.Outcome,
			Message:     sub.Message,
			SubmittedAt: sub.SubmittedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return jsonResult(out)
}

// parseSegments decodes the segments argument, which arrives as decoded
// JSON.
func parseSegments(raw any) ([]api.Range, error) {
	if raw == nil {
		return nil, errors.New("segments is required")
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid segments: %w", err)
	}
	var segs []api.Range
	if err := json.Unmarshal(data, &segs); err != nil {
		return nil, fmt.Errorf("invalid segments: expected a list of {start, end}")
	}
	if len(segs) == 0 {
		return nil, errors.New("segments must not be empty")
	}
	return segs, nil
}

// toolError turns a backend error into a tool error, preferring the
// backend's own detail.
func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, api.ErrUnauthenticated) {
		return mcp.NewToolResultError("not logged in: set SYNCMONSTER_USERNAME and SYNCMONSTER_PASSWORD or log in from the terminal client")
	}
	if detail, ok := api.Detail(err); ok {
		return mcp.NewToolResultError(detail)
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Package mcpserver exposes the reminder lifecycle as MCP tools for one
// viewer fixed at startup.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"reminderdesk/internal/alert"
	"reminderdesk/internal/config"
	"reminderdesk/internal/domain"
	"reminderdesk/internal/engine"
	"reminderdesk/internal/engine/auth"
	"reminderdesk/internal/visibility"
)

const (
	serverName    = "reminderdesk"
	serverVersion = "0.1.0"
)

// Server is the MCP tool server. It keeps the session's shown set in memory.
type Server struct {
	mcpServer *server.MCPServer
	engine    engine.Engine
	viewer    domain.Viewer
	logger    *zap.Logger

	mu    sync.Mutex
	shown alert.ShownSet
}

func New(e engine.Engine, v domain.Viewer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: e,
		viewer: v,
		logger: logger,
		shown:  alert.NewShownSet(),
	}
	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio blocks serving tools over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("create_reminder",
			mcp.WithDescription("Create a reminder; it is shared with the assigned roles and emails and the creator's role"),
			mcp.WithString("title", mcp.Required(), mcp.Description("Reminder title")),
			mcp.WithString("due_date", mcp.Required(), mcp.Description("Due date, YYYY-MM-DD")),
			mcp.WithString("due_time", mcp.Description("Due time, HH:MM")),
			mcp.WithString("alert_time", mcp.Description("Alert time on the due date, HH:MM")),
			mcp.WithString("description", mcp.Description("Optional description")),
			mcp.WithString("priority", mcp.Description("Normal, High or Very High (default Normal)")),
			mcp.WithString("assigned_to_roles", mcp.Description("Comma-separated roles: Admin, CEO, CTO, HR")),
			mcp.WithString("assigned_to_emails", mcp.Description("Comma-separated emails")),
		),
		s.handleCreate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_reminders",
			mcp.WithDescription("List reminders visible to the session viewer, sorted by priority"),
			mcp.WithString("scope", mcp.Description("all, my, shared_with_me or shared_by_me (default all)")),
			mcp.WithString("status", mcp.Description("pending, approved or rejected")),
			mcp.WithString("date", mcp.Description("Due date filter, YYYY-MM-DD")),
		),
		s.handleList,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("approve_reminder",
			mcp.WithDescription("Approve a pending reminder"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleApprove,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("reject_reminder",
			mcp.WithDescription("Reject a pending reminder with a reason"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithString("reason", mcp.Required(), mcp.Description("Why the reminder is rejected")),
		),
		s.handleReject,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("toggle_star",
			mcp.WithDescription("Star or unstar a reminder"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleStar,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("dismiss_reminder",
			mcp.WithDescription("Dismiss a reminder so it no longer alerts"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
		),
		s.handleDismiss,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("snooze_reminder",
			mcp.WithDescription("Move a reminder's alert to now plus the given minutes"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Reminder ID")),
			mcp.WithNumber("minutes", mcp.Required(), mcp.Description("Minutes to snooze, e.g. 5, 10, 15, 30, 60")),
		),
		s.handleSnooze,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("due_alerts",
			mcp.WithDescription("Reminders whose alert is due now and not yet shown in this session"),
		),
		s.handleDueAlerts,
	)
}

func (s *Server) require(perm string) error {
	return auth.Service{Config: s.engine.Config, Repo: s.engine.Repo}.Require(s.viewer, perm)
}

func (s *Server) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.require(config.PermReminderCreate); err != nil {
		return toolError(err), nil
	}
	rem, err := s.engine.Create(ctx, engine.CreateInput{
		Title:            req.GetString("title", ""),
		Description:      req.GetString("description", ""),
		Priority:         req.GetString("priority", ""),
		DueDate:          req.GetString("due_date", ""),
		DueTime:          req.GetString("due_time", ""),
		AlertTime:        req.GetString("alert_time", ""),
		AssignedToRoles:  splitList(req.GetString("assigned_to_roles", "")),
		AssignedToEmails: splitList(req.GetString("assigned_to_emails", "")),
	}, s.viewer)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(rem), nil
}

func (s *Server) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.require(config.PermReminderRead); err != nil {
		return toolError(err), nil
	}
	scope, err := visibility.ParseScope(req.GetString("scope", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	opts := engine.ListOptions{Scope: scope, DueDate: req.GetString("date", "")}
	if raw := req.GetString("status", ""); raw != "" {
		if opts.Status, err = domain.ParseStatus(raw); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	items, err := s.engine.ListForViewer(ctx, s.viewer, opts)
	if err != nil {
		return toolError(err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("No reminders found."), nil
	}
	return jsonResult(items), nil
}

type reminderAction func(ctx context.Context, id string, v domain.Viewer) (domain.Reminder, error)

func (s *Server) act(ctx context.Context, req mcp.CallToolRequest, perm string, fn reminderAction) *mcp.CallToolResult {
	if err := s.require(perm); err != nil {
		return toolError(err)
	}
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcp.NewToolResultError("id is required")
	}
	if _, err := s.engine.GetForViewer(ctx, id, s.viewer); err != nil {
		return toolError(err)
	}
	rem, err := fn(ctx, id, s.viewer)
	if err != nil {
		return toolError(err)
	}
	return jsonResult(rem)
}

func (s *Server) handleApprove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.act(ctx, req, config.PermReminderApprove, s.engine.Approve), nil
}

func (s *Server) handleReject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reason := req.GetString("reason", "")
	return s.act(ctx, req, config.PermReminderReject, func(ctx context.Context, id string, v domain.Viewer) (domain.Reminder, error) {
		return s.engine.Reject(ctx, id, v, reason)
	}), nil
}

func (s *Server) handleStar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.act(ctx, req, config.PermReminderUpdate, s.engine.ToggleStar), nil
}

func (s *Server) handleDismiss(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.act(ctx, req, config.PermReminderUpdate, s.engine.Dismiss), nil
}

func (s *Server) handleSnooze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	minutes := int(req.GetFloat("minutes", 0))
	var rearm string
	res := s.act(ctx, req, config.PermReminderUpdate, func(ctx context.Context, id string, v domain.Viewer) (domain.Reminder, error) {
		out, err := s.engine.Snooze(ctx, id, minutes, v)
		rearm = out.Rearm
		return out.Reminder, err
	})
	if rearm != "" {
		s.mu.Lock()
		s.shown.Forget(rearm)
		s.mu.Unlock()
	}
	return res, nil
}

func (s *Server) handleDueAlerts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.require(config.PermReminderRead); err != nil {
		return toolError(err), nil
	}
	list, err := s.engine.VisibleReminders(ctx, s.viewer)
	if err != nil {
		s.logger.Warn("due alerts: read failed", zap.Error(err))
		list = nil
	}
	now := time.Now()
	if s.engine.Now != nil {
		now = s.engine.Now()
	}
	s.mu.Lock()
	ids := s.engine.Evaluator().Evaluate(list, s.viewer, now, s.shown)
	s.shown.Add(ids...)
	s.mu.Unlock()
	if len(ids) == 0 {
		return mcp.NewToolResultText("No due alerts."), nil
	}
	due := make(map[string]bool, len(ids))
	for _, id := range ids {
		due[id] = true
	}
	out := make([]domain.Reminder, 0, len(ids))
	for _, r := range list {
		if due[r.ID] {
			out = append(out, r)
			delete(due, r.ID)
		}
	}
	return jsonResult(out), nil
}

func toolError(err error) *mcp.CallToolResult {
	var (
		ve engine.ValidationError
		te engine.InvalidTransitionError
		nf engine.NotFoundError
		fe auth.ForbiddenError
	)
	switch {
	case errors.As(err, &ve):
		return mcp.NewToolResultError("invalid input: " + err.Error())
	case errors.As(err, &te), errors.As(err, &nf), errors.As(err, &fe):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("internal error: %v", err))
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(output))
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

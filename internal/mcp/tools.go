package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cryams/cryams/internal/model"
	"github.com/cryams/cryams/internal/store"
)

// registerTools registers all moderation tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Moderation queue -----

	srv.AddTool(
		mcp.NewTool("cryams_list_requests",
			mcp.WithDescription(
				"List all pending profile requests in submission order. Each request "+
					"carries the uuid, name, e-mail, description and requested sticker layout. "+
					"Use this first to see what awaits a decision.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListRequests,
	)

	srv.AddTool(
		mcp.NewTool("cryams_approve_request",
			mcp.WithDescription(
				"Approve a pending request. The request becomes a public profile under "+
					"the same uuid and leaves the queue. Returns the created profile.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithString("uuid",
				mcp.Required(),
				mcp.Description("uuid of the pending request"),
			),
		),
		s.handleApproveRequest,
	)

	srv.AddTool(
		mcp.NewTool("cryams_reject_request",
			mcp.WithDescription(
				"Reject a pending request. The request is discarded; no profile is created.",
			),
			mcp.WithToolAnnotation(destructiveAnnotation()),
			mcp.WithString("uuid",
				mcp.Required(),
				mcp.Description("uuid of the pending request"),
			),
		),
		s.handleRejectRequest,
	)

	// ----- Profiles -----

	srv.AddTool(
		mcp.NewTool("cryams_list_profiles",
			mcp.WithDescription(
				"List all approved profiles in creation order.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListProfiles,
	)

	srv.AddTool(
		mcp.NewTool("cryams_delete_profile",
			mcp.WithDescription(
				"Delete a profile. Its sticker link stops working immediately and "+
					"cannot be restored.",
			),
			mcp.WithToolAnnotation(destructiveAnnotation()),
			mcp.WithString("uuid",
				mcp.Required(),
				mcp.Description("uuid of the profile"),
			),
		),
		s.handleDeleteProfile,
	)
}

type listResult[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

func (s *MCPServer) handleListRequests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.requests.List()
	return successJSON(listResult[model.PendingRequest]{Count: len(items), Items: items})
}

func (s *MCPServer) handleApproveRequest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(request, "uuid")
	if err != nil {
		return toolError("%v", err)
	}

	p, err := s.requests.Approve(id)
	switch {
	case errors.Is(err, store.ErrConflict):
		return toolError("a profile with uuid %q already exists; reject the request instead", id)
	case err != nil:
		s.logger.ErrorContext(ctx, "mcp approve failed", "uuid", id, "error", err)
		return toolError("approve failed: %v", err)
	case p == nil:
		return toolError("no pending request with uuid %q", id)
	}

	s.logger.InfoContext(ctx, "request approved", "uuid", id, "by", "mcp")
	return successJSON(p)
}

func (s *MCPServer) handleRejectRequest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(request, "uuid")
	if err != nil {
		return toolError("%v", err)
	}

	ok, err := s.requests.Reject(id)
	if err != nil {
		s.logger.ErrorContext(ctx, "mcp reject failed", "uuid", id, "error", err)
		return toolError("reject failed: %v", err)
	}
	if !ok {
		return toolError("no pending request with uuid %q", id)
	}

	s.logger.InfoContext(ctx, "request rejected", "uuid", id, "by", "mcp")
	return successJSON(map[string]interface{}{"rejected": id})
}

func (s *MCPServer) handleListProfiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items := s.profiles.List()
	return successJSON(listResult[model.Profile]{Count: len(items), Items: items})
}

func (s *MCPServer) handleDeleteProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := requireString(request, "uuid")
	if err != nil {
		return toolError("%v", err)
	}

	ok, err := s.profiles.Delete(id)
	if err != nil {
		s.logger.ErrorContext(ctx, "mcp delete failed", "uuid", id, "error", err)
		return toolError("delete failed: %v", err)
	}
	if !ok {
		return toolError("no profile with uuid %q", id)
	}

	s.logger.InfoContext(ctx, "profile deleted", "uuid", id, "by", "mcp")
	return successJSON(map[string]interface{}{"deleted": id})
}

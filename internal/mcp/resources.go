package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	profilesURI = "cryams://profiles"
	requestsURI = "cryams://requests"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {
	srv.AddResource(
		mcp.NewResource(
			profilesURI,
			"Profiles",
			mcp.WithResourceDescription(
				"All approved profiles with their public uuid, owner name and e-mail, "+
					"description and sticker layout.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleProfilesResource,
	)

	srv.AddResource(
		mcp.NewResource(
			requestsURI,
			"Pending requests",
			mcp.WithResourceDescription("Profile requests awaiting moderation."),
			mcp.WithMIMEType("application/json"),
		),
		s.handleRequestsResource,
	)
}

func (s *MCPServer) handleProfilesResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(profilesURI, s.profiles.List())
}

func (s *MCPServer) handleRequestsResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(requestsURI, s.requests.List())
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

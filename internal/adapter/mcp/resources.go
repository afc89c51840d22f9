package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"sentinel://patterns",
			"Pattern Enforcement State",
			mcplib.WithResourceDescription("All tracked behavioral patterns with phase, thresholds, and metrics"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePatternsResource,
	)
}

func (s *Server) handlePatternsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Patterns == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"pattern reader not configured"}`,
			},
		}, nil
	}
	states, err := s.deps.Patterns.ListPatterns(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(states)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

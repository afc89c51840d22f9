// Package mcp exposes the gate over the Model Context Protocol, so agent
// frameworks can call it as a first-class tool surface.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/Sentinel/internal/domain/action"
	"github.com/Strob0t/Sentinel/internal/domain/gate"
	"github.com/Strob0t/Sentinel/internal/domain/pattern"
	"github.com/Strob0t/Sentinel/internal/domain/session"
)

// GateChecker evaluates a proposed action.
type GateChecker interface {
	Check(ctx context.Context, req *action.Request) (*gate.Decision, error)
}

// OutcomeReporter feeds a completed action back into the engines.
type OutcomeReporter interface {
	Report(ctx context.Context, out *action.Outcome) (*session.Session, error)
}

// SessionReader exposes session state for inspection.
type SessionReader interface {
	Inspect(ctx context.Context, id string) (*session.Session, error)
}

// PatternReader lists pattern enforcement state.
type PatternReader interface {
	ListPatterns(ctx context.Context) ([]pattern.State, error)
}

// ServerConfig holds MCP server configuration.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// ServerDeps are the service dependencies injected into tool handlers.
// Nil deps produce tool-level errors instead of panics.
type ServerDeps struct {
	Gate     GateChecker
	Reporter OutcomeReporter
	Sessions SessionReader
	Patterns PatternReader
}

// Server wraps an MCP server exposing the gate tools over streamable HTTP.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(true),
			mcpserver.WithResourceCapabilities(true, true),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying MCP server (used by tests and embedding).
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start begins serving MCP over streamable HTTP on the configured address.
// An empty address disables the listener (the server can still be embedded).
func (s *Server) Start() error {
	if s.cfg.Addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	handler := AuthMiddleware(s.cfg.APIKey, mcpserver.NewStreamableHTTPServer(s.mcpServer))
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()

	slog.Info("mcp server listening", "addr", ln.Addr().String())
	return nil
}

// Stop gracefully shuts down the MCP HTTP listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

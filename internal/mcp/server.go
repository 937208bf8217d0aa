// ABOUTME: MCP server exposing the live workout session to assistants.
// ABOUTME: Every tool runs on the device's owner loop.
package mcp

import (
	"context"

	"github.com/harperreed/fitcore/internal/app"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with a running device.
type Server struct {
	mcpServer *mcp.Server
	dev       *app.Device
}

// NewServer creates a new MCP server for the given device.
func NewServer(dev *app.Device) (*Server, error) {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "fitcore",
			Version: "1.0.0",
		},
		nil,
	)

	s := &Server{
		mcpServer: mcpServer,
		dev:       dev,
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Serve starts the MCP server using stdio transport.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// do runs fn on the owner loop.
func (s *Server) do(ctx context.Context, fn func()) error {
	return s.dev.Do(ctx, fn)
}

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jonwraymond/erpgate/dispatch"
	"github.com/jonwraymond/erpgate/observe"
	"github.com/jonwraymond/erpgate/registry"
	"github.com/jonwraymond/erpgate/toolerr"
)

// Dispatcher runs one tool call. *dispatch.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, tool string, args map[string]any) (*dispatch.Result, error)
}

// Server is the MCP protocol boundary.
type Server struct {
	mcp        *mcpserver.MCPServer
	registry   *registry.Registry
	dispatcher Dispatcher
	logger     observe.Logger
	name       string
	version    string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for transport events.
func WithLogger(l observe.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithVersion sets the version reported to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

const instructions = "ERP tools. Look up ids first (search_customers, resolve_product_ref), " +
	"then use the customer-scoped list tools. Results default to a compact tabular format: " +
	"a [N]{fields}: header followed by one row per record. Pass format=json for nested data."

// New registers every descriptor of reg as an MCP tool served by d.
func New(reg *registry.Registry, d Dispatcher, opts ...Option) (*Server, error) {
	s := &Server{
		registry:   reg,
		dispatcher: d,
		logger:     observe.NopLogger(),
		name:       "erpgate",
		version:    "dev",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcpserver.NewMCPServer(s.name, s.version,
		mcpserver.WithRecovery(),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithInstructions(instructions),
	)
	for _, desc := range reg.Descriptors() {
		tool, err := toolFor(desc)
		if err != nil {
			return nil, err
		}
		s.mcp.AddTool(tool, s.handler(desc.Name))
	}
	return s, nil
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

func toolFor(desc *registry.Descriptor) (mcp.Tool, error) {
	schema, err := desc.RawInputSchema()
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("server: schema for %s: %w", desc.Name, err)
	}
	tool := mcp.NewToolWithRawSchema(desc.Name, desc.Description, schema)
	tool.Annotations = mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(desc.IsRead()),
		DestructiveHint: mcp.ToBoolPtr(desc.Kind == registry.KindDelete || desc.Raw),
		IdempotentHint:  mcp.ToBoolPtr(desc.IsRead()),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}
	return tool, nil
}

func (s *Server) handler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := s.dispatcher.Dispatch(ctx, name, req.GetArguments())
		if err != nil {
			return errorResult(err), nil
		}
		return successResult(res), nil
	}
}

func successResult(res *dispatch.Result) *mcp.CallToolResult {
	out := mcp.NewToolResultText(res.Response.Payload)
	if res.Response.Truncated {
		out.Content = append(out.Content, mcp.NewTextContent(fmt.Sprintf(
			"truncated: %d rows returned and more may exist; raise limit or request the next page",
			res.Response.Rows)))
	}
	return out
}

// errorResult renders err as a NormalizedError JSON document.
func errorResult(err error) *mcp.CallToolResult {
	te := toolerr.From(err)
	data, mErr := json.Marshal(te)
	if mErr != nil {
		data = []byte(`{"kind":"internal","message":"internal error","retriable":false}`)
	}
	return mcp.NewToolResultError(string(data))
}

// ServeStdio serves newline-delimited JSON-RPC on in and out until ctx is
// done or in is closed. Protocol diagnostics go to errLog, never to out.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer, errLog io.Writer) error {
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(errLog, "erpgate: ", log.LstdFlags))
	s.logger.Info(ctx, "serving mcp over stdio", observe.Field{Key: "tools", Value: s.registry.Len()})
	return stdio.Listen(ctx, in, out)
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golovatskygroup/mcp-jenkins/internal/tools"
	"github.com/golovatskygroup/mcp-jenkins/pkg/mcp"
	"github.com/rs/zerolog"
)

const ProtocolVersion = "2024-11-05"

// Info identifies the server in initialize responses.
type Info struct {
	Name    string
	Version string
}

// Server is the transport-agnostic JSON-RPC front of the tool dispatcher.
// Every transport hands it decoded requests through Handle.
type Server struct {
	dispatcher *tools.Dispatcher
	info       Info
	log        zerolog.Logger
}

var _ mcp.Handler = (*Server)(nil)

// New creates a new MCP server around d.
func New(d *tools.Dispatcher, info Info, logger zerolog.Logger) *Server {
	return &Server{dispatcher: d, info: info, log: logger}
}

// Handle routes one request. It returns nil for notifications.
func (s *Server) Handle(ctx context.Context, req *mcp.Request) *mcp.Response {
	s.log.Debug().Str("method", req.Method).Interface("id", req.ID).Msg("request")

	if strings.HasPrefix(req.Method, "notifications/") {
		s.log.Debug().Str("method", req.Method).Msg("notification received")
		return nil
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "tools/list":
		return s.handleListTools(req)
	case "tools/call":
		return s.handleCallTool(ctx, req)
	case "ping":
		return s.handlePing(req)
	default:
		if req.IsNotification() {
			return nil
		}
		s.log.Warn().Str("method", req.Method).Msg("unknown method")
		return mcp.NewErrorResponse(req.ID, mcp.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// ServeStdio reads requests from t until EOF or ctx is done, one at a time.
func (s *Server) ServeStdio(ctx context.Context, t *mcp.Transport) error {
	s.log.Info().Int("tools", len(s.dispatcher.Tools())).Msg("serving MCP over stdio")

	type message struct {
		req *mcp.Request
		err error
	}
	msgs := make(chan message)
	go func() {
		defer close(msgs)
		for {
			req, err := t.ReadMessage()
			select {
			case msgs <- message{req: req, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !errors.Is(err, mcp.ErrInvalidMessage) {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if m.err != nil {
				if errors.Is(m.err, io.EOF) {
					return nil
				}
				if errors.Is(m.err, mcp.ErrInvalidMessage) {
					s.log.Warn().Err(m.err).Msg("invalid message")
					if err := t.WriteResponse(mcp.NewErrorResponse(nil, mcp.ParseError, "Parse error: "+m.err.Error())); err != nil {
						return fmt.Errorf("write response: %w", err)
					}
					continue
				}
				return fmt.Errorf("read message: %w", m.err)
			}

			resp := s.Handle(ctx, m.req)
			if resp == nil {
				continue
			}
			if err := t.WriteResponse(resp); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}

func (s *Server) handleInitialize(req *mcp.Request) *mcp.Response {
	var params mcp.InitializeParams
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params, &params)
	}
	s.log.Info().
		Str("client", params.ClientInfo.Name).
		Str("client_version", params.ClientInfo.Version).
		Str("protocol", params.ProtocolVersion).
		Msg("client initializing")

	result := mcp.InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools:        &mcp.ToolsCapability{ListChanged: false},
			Experimental: map[string]any{},
		},
		ServerInfo: mcp.ServerInfo{
			Name:    s.info.Name,
			Version: s.info.Version,
		},
		Instructions: s.buildInstructions(),
	}

	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleListTools(req *mcp.Request) *mcp.Response {
	resp, err := mcp.NewResponse(req.ID, mcp.ListToolsResult{Tools: s.dispatcher.Tools()})
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handleCallTool(ctx context.Context, req *mcp.Request) *mcp.Response {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: "+err.Error())
	}

	s.log.Debug().Str("tool", params.Name).RawJSON("arguments", redactArgs(params.Arguments)).Msg("calling tool")
	result, err := s.dispatcher.Invoke(ctx, params.Name, params.Arguments)
	if err != nil {
		resp := mcp.NewErrorResponse(req.ID, tools.ErrorCode(err), err.Error())
		if data := tools.ErrorData(err); data != nil {
			resp.Error.Data = data
		}
		return resp
	}

	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}

func (s *Server) handlePing(req *mcp.Request) *mcp.Response {
	resp, _ := mcp.NewResponse(req.ID, map[string]any{})
	return resp
}

func (s *Server) buildInstructions() string {
	var sb strings.Builder
	sb.WriteString("Jenkins MCP server. Manage jobs and builds on the configured Jenkins instance.\n\n")
	sb.WriteString("Available tools:\n")
	for _, t := range s.dispatcher.Tools() {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}
	sb.WriteString("\nWrite operations (create/update/delete jobs, trigger/stop builds) take effect immediately and are not retried.\n")
	return sb.String()
}

// redactArgs replaces config_xml with its size for debug logging.
func redactArgs(args json.RawMessage) []byte {
	if len(args) == 0 {
		return []byte("{}")
	}
	var m map[string]any
	if err := json.Unmarshal(args, &m); err != nil {
		return []byte(`"<unparsable>"`)
	}
	if v, ok := m["config_xml"].(string); ok {
		m["config_xml"] = fmt.Sprintf("<%d bytes>", len(v))
	}
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

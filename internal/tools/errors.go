package tools

import (
	"errors"
	"fmt"

	"github.com/golovatskygroup/mcp-jenkins/internal/jenkins"
	"github.com/golovatskygroup/mcp-jenkins/pkg/mcp"
)

// UnknownToolError is returned for names absent from the catalog.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// MissingArgumentError names the first required argument that was not supplied.
type MissingArgumentError struct {
	Tool     string
	Argument string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("%s: missing required argument %q", e.Tool, e.Argument)
}

// InvalidArgumentError is an argument set that does not match the tool schema.
type InvalidArgumentError struct {
	Tool   string
	Detail string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid arguments: %s", e.Tool, e.Detail)
}

// RemoteFailureError is a Jenkins call that failed or was refused.
// Status is 0 when Jenkins was never reached.
type RemoteFailureError struct {
	Tool   string
	Status int
	Err    *jenkins.RemoteError
}

func (e *RemoteFailureError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s failed: Jenkins returned HTTP %d: %s", e.Tool, e.Status, e.Err.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Tool, e.Err.Message)
}

func (e *RemoteFailureError) Unwrap() error { return e.Err }

// ErrorCode maps a dispatcher error onto its JSON-RPC error code.
func ErrorCode(err error) int {
	var unknown *UnknownToolError
	var missing *MissingArgumentError
	var invalid *InvalidArgumentError
	switch {
	case errors.As(err, &unknown):
		return mcp.MethodNotFound
	case errors.As(err, &missing), errors.As(err, &invalid):
		return mcp.InvalidParams
	default:
		return mcp.InternalError
	}
}

// ErrorData returns the structured context of a dispatcher error, or nil.
func ErrorData(err error) map[string]any {
	var (
		unknown *UnknownToolError
		missing *MissingArgumentError
		invalid *InvalidArgumentError
		remote  *RemoteFailureError
	)
	switch {
	case errors.As(err, &unknown):
		return map[string]any{"tool": unknown.Name}
	case errors.As(err, &missing):
		return map[string]any{"tool": missing.Tool, "argument": missing.Argument}
	case errors.As(err, &invalid):
		return map[string]any{"tool": invalid.Tool}
	case errors.As(err, &remote):
		data := map[string]any{"tool": remote.Tool}
		if remote.Status > 0 {
			data["status"] = remote.Status
		}
		return data
	default:
		return nil
	}
}

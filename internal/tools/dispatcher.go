// Package tools holds the Jenkins tool catalog and the dispatcher that
// validates tool arguments, calls Jenkins and renders the answer as text.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/golovatskygroup/mcp-jenkins/internal/jenkins"
	"github.com/golovatskygroup/mcp-jenkins/pkg/mcp"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Jenkins is the remote API the dispatcher drives. *jenkins.Client implements it.
type Jenkins interface {
	ListJobs(ctx context.Context) ([]jenkins.Job, error)
	CreateJob(ctx context.Context, name, configXML string) error
	UpdateJob(ctx context.Context, name, configXML string) error
	DeleteJob(ctx context.Context, name string) error
	TriggerBuild(ctx context.Context, name string, params map[string]string) (*jenkins.QueueRef, error)
	GetBuildStatus(ctx context.Context, name string, number int) (*jenkins.Build, error)
	GetLastBuild(ctx context.Context, name string) (*jenkins.Build, error)
	GetBuildConsole(ctx context.Context, name string, number int) (*jenkins.Console, error)
	StopBuild(ctx context.Context, name string, number int) error
}

// toolInput is the union of all tool arguments. Each handler reads only its own fields.
type toolInput struct {
	JobName     string         `json:"job_name"`
	ConfigXML   string         `json:"config_xml"`
	BuildNumber buildNumber    `json:"build_number"`
	Parameters  map[string]any `json:"parameters"`
}

// buildNumber accepts any whole JSON number, so 5 and 5.0 both decode
// the way the schema's integer check already allowed them.
type buildNumber int

func (n *buildNumber) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("build_number must be a number")
	}
	if f != math.Trunc(f) || f > math.MaxInt32 {
		return fmt.Errorf("build_number must be a whole number up to %d", math.MaxInt32)
	}
	*n = buildNumber(f)
	return nil
}

type handlerFunc func(ctx context.Context, in toolInput) (string, error)

type entry struct {
	tool     mcp.Tool
	required []string
	schema   *jsonschema.Schema
	run      handlerFunc
}

// Dispatcher routes tool calls by name through a lookup table built once
// from the catalog. It keeps no per-call state.
type Dispatcher struct {
	client  Jenkins
	log     zerolog.Logger
	entries map[string]*entry
}

// NewDispatcher compiles every catalog schema and binds each tool to its handler.
func NewDispatcher(client Jenkins, logger zerolog.Logger) (*Dispatcher, error) {
	d := &Dispatcher{client: client, log: logger, entries: map[string]*entry{}}

	handlers := map[string]handlerFunc{
		"list_jobs":         d.listJobs,
		"create_job":        d.createJob,
		"update_job":        d.updateJob,
		"delete_job":        d.deleteJob,
		"trigger_build":     d.triggerBuild,
		"get_build_status":  d.getBuildStatus,
		"get_last_build":    d.getLastBuild,
		"get_build_console": d.getBuildConsole,
		"stop_build":        d.stopBuild,
	}

	for _, tool := range catalog {
		run, ok := handlers[tool.Name]
		if !ok {
			return nil, fmt.Errorf("tool %s has no handler", tool.Name)
		}
		schema, err := jsonschema.CompileString(tool.Name+".json", string(tool.InputSchema))
		if err != nil {
			return nil, fmt.Errorf("invalid inputSchema for %s: %w", tool.Name, err)
		}
		var shape struct {
			Required []string `json:"required"`
		}
		if err := json.Unmarshal(tool.InputSchema, &shape); err != nil {
			return nil, fmt.Errorf("invalid inputSchema for %s: %w", tool.Name, err)
		}
		d.entries[tool.Name] = &entry{tool: tool, required: shape.Required, schema: schema, run: run}
	}
	if len(d.entries) != len(handlers) {
		return nil, fmt.Errorf("%d handlers registered for %d catalog tools", len(handlers), len(d.entries))
	}
	return d, nil
}

// Tools returns the catalog served by this dispatcher.
func (d *Dispatcher) Tools() []mcp.Tool {
	return Catalog()
}

// Invoke runs one tool. Unknown names and bad arguments are rejected before
// any call to Jenkins. Jenkins failures come back as *RemoteFailureError.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
	e, ok := d.entries[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}

	in, err := e.decode(args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	text, err := e.run(ctx, in)
	elapsed := time.Since(start)
	if err != nil {
		var re *jenkins.RemoteError
		if errors.As(err, &re) {
			err = &RemoteFailureError{Tool: name, Status: re.Status, Err: re}
		}
		d.log.Warn().Err(err).Str("tool", name).Dur("duration", elapsed).Msg("tool call failed")
		return nil, err
	}

	d.log.Info().Str("tool", name).Dur("duration", elapsed).Msg("tool call succeeded")
	return mcp.TextContent(text), nil
}

func (e *entry) decode(args json.RawMessage) (toolInput, error) {
	var in toolInput
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return in, &InvalidArgumentError{Tool: e.tool.Name, Detail: "arguments must be a JSON object"}
	}
	for _, key := range e.required {
		v, ok := raw[key]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return in, &MissingArgumentError{Tool: e.tool.Name, Argument: key}
		}
	}

	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return in, &InvalidArgumentError{Tool: e.tool.Name, Detail: err.Error()}
	}
	if err := e.schema.Validate(doc); err != nil {
		return in, &InvalidArgumentError{Tool: e.tool.Name, Detail: validationDetail(err)}
	}

	if err := json.Unmarshal(trimmed, &in); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return in, &InvalidArgumentError{Tool: e.tool.Name, Detail: fmt.Sprintf("%s has the wrong type", ute.Field)}
		}
		return in, &InvalidArgumentError{Tool: e.tool.Name, Detail: strings.TrimPrefix(err.Error(), "json: ")}
	}
	return in, nil
}

func validationDetail(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaf := firstLeafValidationError(ve)
	loc := leaf.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	msg := leaf.Message
	if msg == "" {
		msg = leaf.Error()
	}
	return fmt.Sprintf("at %s: %s", loc, msg)
}

func firstLeafValidationError(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(err.Causes) == 0 {
		return err
	}
	for _, c := range err.Causes {
		if leaf := firstLeafValidationError(c); leaf != nil {
			return leaf
		}
	}
	return err
}

// --- handlers ---

func (d *Dispatcher) listJobs(ctx context.Context, _ toolInput) (string, error) {
	jobs, err := d.client.ListJobs(ctx)
	if err != nil {
		return "", err
	}
	return renderJobs(jobs), nil
}

func (d *Dispatcher) createJob(ctx context.Context, in toolInput) (string, error) {
	if err := d.client.CreateJob(ctx, in.JobName, in.ConfigXML); err != nil {
		return "", err
	}
	return fmt.Sprintf("Job '%s' created successfully.", in.JobName), nil
}

func (d *Dispatcher) updateJob(ctx context.Context, in toolInput) (string, error) {
	if err := d.client.UpdateJob(ctx, in.JobName, in.ConfigXML); err != nil {
		return "", err
	}
	return fmt.Sprintf("Job '%s' updated successfully.", in.JobName), nil
}

func (d *Dispatcher) deleteJob(ctx context.Context, in toolInput) (string, error) {
	if err := d.client.DeleteJob(ctx, in.JobName); err != nil {
		return "", err
	}
	return fmt.Sprintf("Job '%s' deleted successfully.", in.JobName), nil
}

func (d *Dispatcher) triggerBuild(ctx context.Context, in toolInput) (string, error) {
	params := formParams(in.Parameters)
	ref, err := d.client.TriggerBuild(ctx, in.JobName, params)
	if err != nil {
		return "", err
	}
	return renderTrigger(in.JobName, params, ref), nil
}

func (d *Dispatcher) getBuildStatus(ctx context.Context, in toolInput) (string, error) {
	b, err := d.client.GetBuildStatus(ctx, in.JobName, int(in.BuildNumber))
	if err != nil {
		return "", err
	}
	return renderBuild(b), nil
}

func (d *Dispatcher) getLastBuild(ctx context.Context, in toolInput) (string, error) {
	b, err := d.client.GetLastBuild(ctx, in.JobName)
	if err != nil {
		return "", err
	}
	return renderBuild(b), nil
}

func (d *Dispatcher) getBuildConsole(ctx context.Context, in toolInput) (string, error) {
	c, err := d.client.GetBuildConsole(ctx, in.JobName, int(in.BuildNumber))
	if err != nil {
		return "", err
	}
	return renderConsole(in.JobName, int(in.BuildNumber), c), nil
}

func (d *Dispatcher) stopBuild(ctx context.Context, in toolInput) (string, error) {
	if err := d.client.StopBuild(ctx, in.JobName, int(in.BuildNumber)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Build #%d of job '%s' stopped.", int(in.BuildNumber), in.JobName), nil
}

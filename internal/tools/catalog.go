package tools

import (
	"encoding/json"

	"github.com/golovatskygroup/mcp-jenkins/pkg/mcp"
)

// catalog is the fixed, ordered set of tools the server exposes. The
// "required" list of each schema is what the dispatcher enforces.
var catalog = []mcp.Tool{
	{
		Name:        "list_jobs",
		Description: "List all Jenkins jobs",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {},
			"required": []
		}`),
	},
	{
		Name:        "create_job",
		Description: "Create a new Jenkins job with XML configuration",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"job_name": {"type": "string", "minLength": 1, "description": "Name of the new Jenkins job (use folder/name for jobs inside folders)"},
				"config_xml": {"type": "string", "minLength": 1, "description": "XML configuration for the job"}
			},
			"required": ["job_name", "config_xml"]
		}`),
	},
	{
		Name:        "update_job",
		Description: "Update/edit a Jenkins job's XML configuration",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"job_name": {"type": "string", "minLength": 1, "description": "Name of the Jenkins job to update"},
				"config_xml": {"type": "string", "minLength": 1, "description": "New XML configuration for the job"}
			},
			"required": ["job_name", "config_xml"]
		}`),
	},
	{
		Name:        "delete_job",
		Description: "Delete a Jenkins job",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"job_name": {"type": "string", "minLength": 1, "description": "Name of the Jenkins job to delete"}
			},
			"required": ["job_name"]
		}`),
	},
	{
		Name:        "trigger_build",
		Description: "Trigger a build for a Jenkins job with optional parameters",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"job_name": {"type": "string", "minLength": 1, "description": "Name of the Jenkins job"},
				"parameters": {"type": "object", "description": "Build parameters (optional)", "additionalProperties": true}
			},
			"required": ["job_name"]
		}`),
	},
	{
		Name:        "get_build_status",
		Description: "Get the status of a specific build",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"job_name": {"type": "string", "minLength": 1, "description": "Name of the Jenkins job"},
				"build_number": {"type": "integer", "minimum": 1, "description": "Build number"}
			},
			"required": ["job_name", "build_number"]
		}`),
	},
	{
		Name:        "get_last_build",
		Description: "Get information about the last build of a job",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"job_name": {"type": "string", "minLength": 1, "description": "Name of the Jenkins job"}
			},
			"required": ["job_name"]
		}`),
	},
	{
		Name:        "get_build_console",
		Description: "Get console output of a specific build (last 100 lines for long logs)",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"job_name": {"type": "string", "minLength": 1, "description": "Name of the Jenkins job"},
				"build_number": {"type": "integer", "minimum": 1, "description": "Build number"}
			},
			"required": ["job_name", "build_number"]
		}`),
	},
	{
		Name:        "stop_build",
		Description: "Stop a running build",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"job_name": {"type": "string", "minLength": 1, "description": "Name of the Jenkins job"},
				"build_number": {"type": "integer", "minimum": 1, "description": "Build number"}
			},
			"required": ["job_name", "build_number"]
		}`),
	},
}

// Catalog returns the tool descriptors in their fixed order.
// The returned slice and its schemas are copies.
func Catalog() []mcp.Tool {
	out := make([]mcp.Tool, len(catalog))
	for i, t := range catalog {
		t.InputSchema = append(json.RawMessage(nil), t.InputSchema...)
		out[i] = t
	}
	return out
}

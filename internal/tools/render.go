package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/golovatskygroup/mcp-jenkins/internal/jenkins"
)

const startedLayout = "2006-01-02 15:04:05 UTC"

func renderJobs(jobs []jenkins.Job) string {
	if len(jobs) == 0 {
		return "No jobs found."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d job(s):\n", len(jobs))
	for _, j := range jobs {
		fmt.Fprintf(&sb, "\n- %s (%s)\n  URL: %s", j.Name, j.Color, j.URL)
	}
	return sb.String()
}

func renderBuild(b *jenkins.Build) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Build #%d\n", b.Number)
	fmt.Fprintf(&sb, "Job: %s\n", b.FullDisplayName)
	fmt.Fprintf(&sb, "Status: %s\n", b.Status())
	if b.Running() {
		sb.WriteString("Duration: Running...\n")
	} else {
		fmt.Fprintf(&sb, "Duration: %.1fs\n", float64(*b.Duration)/1000)
	}
	fmt.Fprintf(&sb, "URL: %s", b.URL)
	if started, ok := b.StartedAt(); ok {
		fmt.Fprintf(&sb, "\nStarted: %s", started.Format(startedLayout))
	}
	return sb.String()
}

func renderConsole(job string, number int, c *jenkins.Console) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Console output for '%s' #%d:\n", job, number)
	if c.Truncated {
		fmt.Fprintf(&sb, "(showing last %d of %d lines)\n", len(c.Lines), c.TotalLines)
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Join(c.Lines, "\n"))
	return sb.String()
}

func renderTrigger(job string, params map[string]string, ref *jenkins.QueueRef) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Build triggered for job '%s'.", job)
	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+params[k])
		}
		fmt.Fprintf(&sb, "\nParameters: %s", strings.Join(pairs, ", "))
	}
	if ref != nil && ref.Location != "" {
		fmt.Fprintf(&sb, "\nQueue item: %s", ref.Location)
	}
	return sb.String()
}

// formParams flattens tool parameters into Jenkins form values. Strings
// are sent verbatim, everything else as its JSON text.
func formParams(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case nil:
			out[k] = ""
		default:
			b, err := json.Marshal(tv)
			if err != nil {
				out[k] = fmt.Sprint(tv)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}

package storage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/michaelbrown/decipher/internal/trace"
)

// ExportMarkdown renders an entry and its trace as a markdown document.
func ExportMarkdown(e *Entry, tr *trace.Trace) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# Submission %s\n\n", e.ID))
	b.WriteString(fmt.Sprintf("- **User:** %s\n", e.UserID))
	b.WriteString(fmt.Sprintf("- **Language:** %s\n", e.Language))
	b.WriteString(fmt.Sprintf("- **Created:** %s\n", e.CreatedAt.Format("2006-01-02 15:04:05")))
	if e.Outcome != "" {
		b.WriteString(fmt.Sprintf("- **Outcome:** %s\n", e.Outcome))
		b.WriteString(fmt.Sprintf("- **Steps:** %d\n", e.StepCount))
	}
	b.WriteString("\n---\n\n")

	b.WriteString(fmt.Sprintf("## Code\n\n```%s\n%s\n```\n\n", e.Language, strings.TrimRight(e.Code, "\n")))
	if len(e.Inputs) > 0 {
		b.WriteString("## Inputs\n\n")
		for _, in := range e.Inputs {
			b.WriteString(fmt.Sprintf("- `%s`\n", in))
		}
		b.WriteString("\n")
	}

	if tr == nil {
		return b.String()
	}
	if tr.FinalOutput != "" {
		b.WriteString(fmt.Sprintf("## Output\n\n```\n%s\n```\n\n", strings.TrimRight(tr.FinalOutput, "\n")))
	}
	if tr.Error != nil {
		b.WriteString(fmt.Sprintf("## Error\n\n%s\n\n", *tr.Error))
	}
	if tr.Truncated {
		b.WriteString("_Trace truncated at the step limit._\n\n")
	}
	if last := tr.Last(); last != nil && len(last.Variables) > 0 {
		vars, _ := json.MarshalIndent(last.Variables, "", "  ")
		b.WriteString(fmt.Sprintf("<details>\n<summary>Final variables</summary>\n\n```json\n%s\n```\n</details>\n\n", vars))
	}

	return b.String()
}

// ExportJSON renders an entry and its trace as formatted JSON.
func ExportJSON(e *Entry, tr *trace.Trace) ([]byte, error) {
	export := struct {
		Entry *Entry       `json:"entry"`
		Trace *trace.Trace `json:"trace,omitempty"`
	}{
		Entry: e,
		Trace: tr,
	}
	return json.MarshalIndent(export, "", "  ")
}

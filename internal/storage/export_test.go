package storage

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/michaelbrown/decipher/internal/serialize"
	"github.com/michaelbrown/decipher/internal/trace"
)

func sampleEntry() (*Entry, *trace.Trace) {
	e := &Entry{
		ID:        "e1",
		UserID:    "u1",
		Code:      "x = 1\nprint(x)\n",
		Language:  "python",
		Inputs:    []string{"7"},
		Outcome:   "completed",
		StepCount: 3,
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	tr := trace.New()
	tr.Append(trace.Step{Line: trace.LineAt(2), Event: trace.EventLine, Variables: map[string]serialize.Value{"x": serialize.Scalar(int64(1))}})
	tr.Append(trace.Step{Event: trace.EventFinished, Variables: map[string]serialize.Value{"x": serialize.Scalar(int64(1))}, Output: "1\n"})
	tr.FinalOutput = "1\n"
	return e, tr
}

func TestExportMarkdown(t *testing.T) {
	e, tr := sampleEntry()
	md := ExportMarkdown(e, tr)
	for _, want := range []string{
		"# Submission e1",
		"- **Outcome:** completed",
		"```python\nx = 1\nprint(x)\n```",
		"- `7`",
		"## Output\n\n```\n1\n```",
		`"x": 1`,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## Error") {
		t.Error("successful run rendered an error section")
	}
}

func TestExportMarkdownWithoutTrace(t *testing.T) {
	e, _ := sampleEntry()
	md := ExportMarkdown(e, nil)
	if strings.Contains(md, "## Output") {
		t.Errorf("entry without trace rendered output:\n%s", md)
	}
}

func TestExportJSON(t *testing.T) {
	e, tr := sampleEntry()
	data, err := ExportJSON(e, tr)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	var got struct {
		Entry Entry       `json:"entry"`
		Trace trace.Trace `json:"trace"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Entry.ID != "e1" || len(got.Trace.Steps) != 2 {
		t.Errorf("round trip = %+v", got)
	}
}

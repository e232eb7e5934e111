package report

import (
	"encoding/json"
	"strings"
	"testing"

	"synx/internal/model"
	"synx/internal/scheduler"
)

func sampleReport() scheduler.ScanReport {
	return scheduler.ScanReport{
		ScanID: "test-scan",
		Files: []scheduler.FileReport{
			{
				Path: "a.json",
				Tag:  "json",
				Outcomes: []model.ValidationOutcome{
					model.Success("builtin.json-syntax", 0),
				},
			},
			{
				Path: "b.json",
				Tag:  "json",
				Outcomes: []model.ValidationOutcome{
					model.Failure("builtin.json-syntax", []model.Issue{
						{Severity: model.SeverityHigh, Message: "unexpected token", Location: &model.Location{Path: "b.json", StartLine: 3}},
					}, 0),
				},
			},
		},
		FilesScanned: 2,
		FilesValid:   1,
		FilesInvalid: 1,
	}
}

func TestFormatTextIncludesFileAndIssue(t *testing.T) {
	out := FormatText(sampleReport())

	if !strings.Contains(out, "a.json") || !strings.Contains(out, "b.json") {
		t.Fatalf("expected both file paths in output, got:\n%s", out)
	}
	if !strings.Contains(out, "unexpected token") {
		t.Errorf("expected issue message in output, got:\n%s", out)
	}
	if !strings.Contains(out, "line 3") {
		t.Errorf("expected line number in output, got:\n%s", out)
	}
	if !strings.Contains(out, "1 valid") || !strings.Contains(out, "1 invalid") {
		t.Errorf("expected totals line, got:\n%s", out)
	}
}

func TestFormatTextSkipsFilesWithNoOutcomes(t *testing.T) {
	r := sampleReport()
	r.Files = append(r.Files, scheduler.FileReport{Path: "skipped.bin", Tag: "unknown(bin)"})

	out := FormatText(r)
	if strings.Contains(out, "skipped.bin") {
		t.Errorf("file with no outcomes should not appear in text report, got:\n%s", out)
	}
}

func TestFormatJSONRoundTrips(t *testing.T) {
	data, err := FormatJSON(sampleReport())
	if err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}

	var decoded scheduler.ScanReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.ScanID != "test-scan" {
		t.Errorf("ScanID = %q, want test-scan", decoded.ScanID)
	}
	if len(decoded.Files) != 2 {
		t.Errorf("Files = %d, want 2", len(decoded.Files))
	}
	if decoded.Files[1].Outcomes[0].Issues[0].Message != "unexpected token" {
		t.Errorf("issue message lost in round trip")
	}
}

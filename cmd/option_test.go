package cmd

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/inspector"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/model"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/util"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    QueryOptions
		wantErr bool
	}{
		{"ok", QueryOptions{Limit: 50, Output: OutputText}, false},
		{"max limit", QueryOptions{Limit: 5000, Output: OutputJSON}, false},
		{"limit too large", QueryOptions{Limit: 5001, Output: OutputText}, true},
		{"limit zero", QueryOptions{Limit: 0, Output: OutputText}, true},
		{"bad output", QueryOptions{Limit: 1, Output: "xml"}, true},
		{"negative width", QueryOptions{Limit: 1, Output: OutputYAML, Width: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate(5000)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequest(t *testing.T) {
	now := time.Date(2025, 8, 31, 12, 0, 0, 0, time.UTC)
	o := QueryOptions{
		Start:         "2025-08-30 10:00:00",
		Limit:         10,
		RegionsCSV:    "us-east-1, eu-west-1",
		GroupsCSV:     "",
		ServicesCSV:   "lambda,,ecs",
		GroupPatterns: []string{"/aws/*"},
		Search:        "timeout",
		Filter:        "level == 'ERROR'",
	}
	req, err := o.Request(now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !req.Start.Equal(time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)) || !req.End.Equal(now) {
		t.Fatalf("window = %v..%v", req.Start, req.End)
	}
	req.Start, req.End = time.Time{}, time.Time{}
	want := inspector.Request{
		LimitPerGroup: 10,
		Regions:       []string{"us-east-1", "eu-west-1"},
		Services:      []string{"lambda", "ecs"},
		GroupPatterns: []string{"/aws/*"},
		Search:        "timeout",
		Filter:        "level == 'ERROR'",
	}
	if !reflect.DeepEqual(req, want) {
		t.Fatalf("Request() = %+v, want %+v", req, want)
	}

	bad := QueryOptions{Start: "2025-09-01T00:00:00Z", End: "2025-08-01T00:00:00Z"}
	if _, err := bad.Request(now); !errors.Is(err, util.ErrStartAfterEnd) {
		t.Fatalf("err = %v, want ErrStartAfterEnd", err)
	}
}

func sampleEvents() []model.LogEvent {
	return []model.LogEvent{
		{Timestamp: "2024-01-01 12:00:00.000", Message: "line one\nline two", LogGroup: "/aws/lambda/fn", LogStream: "s1", Region: "us-east-1", Service: "lambda"},
	}
}

func TestWriteEvents(t *testing.T) {
	tests := []struct {
		format string
		width  int
		want   []string
	}{
		{OutputText, 0, []string{"2024-01-01 12:00:00.000 us-east-1 /aws/lambda/fn/s1 line one line two\n"}},
		{OutputText, 8, []string{"/aws/lambda/fn/s1 line ...\n"}},
		{OutputJSON, 0, []string{`"logGroup": "/aws/lambda/fn"`, `"service": "lambda"`, "\n  {\n"}},
		{OutputYAML, 0, []string{"- timestamp: ", "  logGroup: /aws/lambda/fn\n", "  region: us-east-1\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteEvents(&buf, sampleEvents(), tt.format, tt.width); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Fatalf("output %q does not contain %q", buf.String(), w)
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{"no limit", "a  b\tc", 0, "a b c"},
		{"fits", "short", 10, "short"},
		{"cut", "abcdefghij", 6, "abc..."},
		{"wide runes", "日本語のログ", 7, "日本..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.width); got != tt.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestWriteExtracted(t *testing.T) {
	events := []model.LogEvent{{Message: "plain"}, {Message: `{"requestId":"abc-123"}`}}

	var buf bytes.Buffer
	if err := WriteExtracted(&buf, events, "requestId"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "{\"value\":\"abc-123\"}\n" {
		t.Fatalf("output = %q", buf.String())
	}
	if err := WriteExtracted(&buf, events, "missing"); !errors.Is(err, ErrNoValue) {
		t.Fatalf("err = %v, want ErrNoValue", err)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, &inspector.Report{Units: []inspector.UnitResult{{Region: "us-east-1", LogGroup: "ok"}}})
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
	WriteSummary(&buf, &inspector.Report{Units: []inspector.UnitResult{
		{Region: "us-east-1", LogGroup: "ok"},
		{Region: "eu-west-1", LogGroup: "bad", Err: errors.New("denied")},
	}})
	if !strings.Contains(buf.String(), "1 of 2 queries failed") || !strings.Contains(buf.String(), "eu-west-1 bad: denied") {
		t.Fatalf("summary = %q", buf.String())
	}
}

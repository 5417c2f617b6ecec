package util_test

import (
	"testing"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/model"
	util "github.com/Nao-Mk2/aws-logs-auditor/internal/util"
)

func TestMatchMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		expr    string
		want    bool
		wantErr bool
	}{
		{"JSON field present", `{"level":"ERROR","user":{"id":"123"}}`, "user.id", true, false},
		{"JSON comparison true", `{"level":"ERROR"}`, "level == 'ERROR'", true, false},
		{"JSON comparison false", `{"level":"INFO"}`, "level == 'ERROR'", false, false},
		{"missing field", `{"user":{}}`, "user.id", false, false},
		{"empty array", `{"ids":[]}`, "ids", false, false},
		{"non-JSON wraps as message", "WARN: disk full", "contains(message, 'disk')", true, false},
		{"non-JSON no match", "INFO: ok", "contains(message, 'disk')", false, false},
		{"invalid expression", `{"a":1}`, "user.[", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := util.MatchMessage(tt.message, tt.expr)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("MatchMessage(%q, %q) = %v, want %v", tt.message, tt.expr, got, tt.want)
			}
		})
	}
}

func TestExtractFirstValue(t *testing.T) {
	tests := []struct {
		name     string
		messages []string
		jmes     string
		want     string
		wantOK   bool
		wantErr  bool
	}{
		{
			name:     "JSON field extraction",
			messages: []string{`{"user":{"id":"123"}}`},
			jmes:     "user.id",
			want:     "123",
			wantOK:   true,
		},
		{
			name:     "Non-JSON wraps as message",
			messages: []string{"WARN: something"},
			jmes:     "message",
			want:     "WARN: something",
			wantOK:   true,
		},
		{
			name:     "Array result takes first element",
			messages: []string{`{"ids":["a","b"]}`},
			jmes:     "ids",
			want:     "a",
			wantOK:   true,
		},
		{
			name:     "Empty result returns not found",
			messages: []string{`{"user":{}}`},
			jmes:     "user.id",
		},
		{
			name:     "Invalid JMESPath returns error",
			messages: []string{`{"a":1}`},
			jmes:     "user.[",
			wantErr:  true,
		},
		{
			name:     "Non-string value marshaled to JSON",
			messages: []string{`{"n":42}`},
			jmes:     "n",
			want:     "42",
			wantOK:   true,
		},
		{
			name:     "Empty first element then next event",
			messages: []string{`{"names":[""]}`, `{"names":["ok"]}`},
			jmes:     "names",
			want:     "ok",
			wantOK:   true,
		},
		{
			name:     "Empty message skipped",
			messages: []string{"", `{"v":"x"}`},
			jmes:     "v",
			want:     "x",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evs := make([]model.LogEvent, 0, len(tt.messages))
			for _, m := range tt.messages {
				evs = append(evs, model.LogEvent{Message: m})
			}
			got, ok, err := util.ExtractFirstValue(evs, tt.jmes)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok mismatch: got %v want %v (value=%q)", ok, tt.wantOK, got)
			}
			if got != tt.want {
				t.Fatalf("value mismatch: got %q want %q", got, tt.want)
			}
		})
	}
}

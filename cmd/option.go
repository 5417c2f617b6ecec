package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/inspector"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/model"
	"github.com/Nao-Mk2/aws-logs-auditor/internal/util"
)

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// ErrNoValue is returned when --extract finds nothing in the results.
var ErrNoValue = errors.New("no extractable value found")

// QueryOptions holds the flags of the query command.
type QueryOptions struct {
	Start         string
	End           string
	Limit         int
	RegionsCSV    string
	GroupsCSV     string
	ServicesCSV   string
	GroupPatterns []string
	Search        string
	Filter        string
	Extract       string
	Output        string
	Width         int
	Progress      bool
}

// Validate checks flag values against the configured limits.
func (o *QueryOptions) Validate(maxLimit int) error {
	if o.Limit < 1 || o.Limit > maxLimit {
		return fmt.Errorf("--limit must be between 1 and %d", maxLimit)
	}
	switch o.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("--output must be one of %s, %s, %s", OutputText, OutputJSON, OutputYAML)
	}
	if o.Width < 0 {
		return errors.New("--width must not be negative")
	}
	return nil
}

// Request converts the options into an aggregation request. The window
// defaults to the last 24 hours ending at now.
func (o *QueryOptions) Request(now time.Time) (inspector.Request, error) {
	start, end, err := util.ResolveTimeWindow(o.Start, o.End, now)
	if err != nil {
		return inspector.Request{}, fmt.Errorf("invalid time window: %w", err)
	}
	return inspector.Request{
		Start:         start,
		End:           end,
		LimitPerGroup: o.Limit,
		Regions:       util.SplitCSV(o.RegionsCSV),
		LogGroups:     util.SplitCSV(o.GroupsCSV),
		Services:      util.SplitCSV(o.ServicesCSV),
		GroupPatterns: o.GroupPatterns,
		Search:        o.Search,
		Filter:        o.Filter,
	}, nil
}

// WriteEvents renders events in the selected format.
func WriteEvents(w io.Writer, events []model.LogEvent, format string, width int) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(events); err != nil {
			return err
		}
		return enc.Close()
	default:
		for _, e := range events {
			prefix := fmt.Sprintf("%s %s %s/%s", e.Timestamp, e.Region, e.LogGroup, e.LogStream)
			if _, err := fmt.Fprintf(w, "%s %s\n", prefix, Truncate(e.Message, width)); err != nil {
				return err
			}
		}
		return nil
	}
}

// WriteExtracted prints the first value selected by expr as {"value": ...}.
func WriteExtracted(w io.Writer, events []model.LogEvent, expr string) error {
	value, ok, err := util.ExtractFirstValue(events, expr)
	if err != nil {
		return fmt.Errorf("extract error: %w", err)
	}
	if !ok {
		return ErrNoValue
	}
	return json.NewEncoder(w).Encode(map[string]string{"value": value})
}

// Truncate flattens message onto one line and cuts it to width terminal
// cells. Width 0 disables truncation.
func Truncate(message string, width int) string {
	s := strings.Join(strings.Fields(message), " ")
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// WriteSummary reports failed units on w, one line each.
func WriteSummary(w io.Writer, report *inspector.Report) {
	if report.Failed() == 0 {
		return
	}
	fmt.Fprintf(w, "%d of %d queries failed:\n", report.Failed(), len(report.Units))
	for _, u := range report.Units {
		if u.Err != nil {
			fmt.Fprintf(w, "  %s %s: %v\n", u.Region, u.LogGroup, u.Err)
		}
	}
}

package model

import "sort"

// LogEvent is a single CloudWatch Logs Insights row tagged with where it came from.
type LogEvent struct {
	Timestamp     string `json:"timestamp" yaml:"timestamp"`
	Message       string `json:"message" yaml:"message"`
	LogGroup      string `json:"logGroup" yaml:"logGroup"`
	LogStream     string `json:"logStream" yaml:"logStream"`
	IngestionTime string `json:"ingestionTime" yaml:"ingestionTime"`
	Region        string `json:"region" yaml:"region"`
	Service       string `json:"service" yaml:"service"`
}

// SortEvents orders events newest first by plain string comparison of the
// timestamp. An empty timestamp sorts last. Equal timestamps keep their
// input order.
func SortEvents(events []LogEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp > events[j].Timestamp
	})
}

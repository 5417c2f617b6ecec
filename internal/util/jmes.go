package util

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/jmespath/go-jmespath"

	"github.com/Nao-Mk2/aws-logs-auditor/internal/model"
)

// Matcher is a compiled JMESPath expression evaluated against log messages.
type Matcher struct {
	expr string
	jp   *jmespath.JMESPath
}

// CompileMatcher compiles expr once for use on many messages.
func CompileMatcher(expr string) (*Matcher, error) {
	jp, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jmespath %q: %w", expr, err)
	}
	return &Matcher{expr: expr, jp: jp}, nil
}

// String returns the source expression.
func (m *Matcher) String() string { return m.expr }

// Match evaluates the expression against message (decoded as JSON if possible;
// otherwise wrapped as {"message": raw}) and reports whether the result is
// truthy: not null, false, or an empty string, array or object.
func (m *Matcher) Match(message string) (bool, error) {
	res, err := m.jp.Search(messageInput(message))
	if err != nil {
		return false, fmt.Errorf("jmespath search failed: %w", err)
	}
	if b, ok := res.(bool); ok {
		return b, nil
	}
	return !isEmpty(res), nil
}

// MatchMessage compiles expr and evaluates it against a single message.
func MatchMessage(message, expr string) (bool, error) {
	m, err := CompileMatcher(expr)
	if err != nil {
		return false, err
	}
	return m.Match(message)
}

// ExtractFirstValue evaluates expr against each event's message in order and
// returns the first non-empty string representation found. Array results use
// the first element only. Returns ("", false, nil) if nothing matched.
func ExtractFirstValue(events []model.LogEvent, expr string) (string, bool, error) {
	m, err := CompileMatcher(expr)
	if err != nil {
		return "", false, err
	}
	for _, e := range events {
		if e.Message == "" {
			continue
		}
		res, err := m.jp.Search(messageInput(e.Message))
		if err != nil {
			return "", false, fmt.Errorf("jmespath search failed: %w", err)
		}
		if isEmpty(res) {
			continue
		}
		rv := reflect.ValueOf(res)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			res = rv.Index(0).Interface()
			if isEmpty(res) {
				continue
			}
		}
		if s, ok := res.(string); ok {
			return s, true, nil
		}
		b, err := json.Marshal(res)
		if err != nil {
			return "", false, fmt.Errorf("marshal result failed: %w", err)
		}
		return string(b), true, nil
	}
	return "", false, nil
}

func messageInput(raw string) any {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
		return decoded
	}
	return map[string]any{"message": raw}
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	}
	return false
}

package subscription

import (
	"fmt"
	"path"
	"strings"
)

// TopicFilter matches notification topics against a glob pattern.
type TopicFilter struct {
	pattern string
}

// ParseTopicFilter parses an expression of the form "topic=<glob>".
func ParseTopicFilter(expr string) (TopicFilter, error) {
	expr = strings.TrimSpace(expr)
	key, value, ok := strings.Cut(expr, "=")
	if !ok || strings.TrimSpace(key) != "topic" {
		return TopicFilter{}, fmt.Errorf("subscription filter %q: expected topic=<pattern>", expr)
	}
	pattern := strings.TrimSpace(value)
	if pattern == "" {
		return TopicFilter{}, fmt.Errorf("subscription filter %q: empty topic pattern", expr)
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return TopicFilter{}, fmt.Errorf("subscription filter %q: %w", expr, err)
	}
	return TopicFilter{pattern: pattern}, nil
}

// Match reports whether topic satisfies the filter.
func (f TopicFilter) Match(topic string) bool {
	ok, _ := path.Match(f.pattern, topic)
	return ok
}

func (f TopicFilter) String() string {
	return "topic=" + f.pattern
}

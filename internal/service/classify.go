// Package service derives a service tag from a log group name.
package service

import (
	"sort"
	"strings"
)

const (
	awsPrefix        = "/aws/"
	cloudTrailPrefix = "CloudTrail/"

	// Other is the tag for names outside every known convention.
	Other = "other"
	// AWS is the tag for /aws/ names without a usable service segment.
	AWS = "aws"
	// CloudTrail is the tag for CloudTrail delivery groups.
	CloudTrail = "cloudtrail"
)

// known prefixes are checked before the generic /aws/ rule, in this order.
var known = []struct {
	prefix string
	tag    string
}{
	{"/aws/lambda/", "lambda"},
	{"/aws/apigateway/", "apigateway"},
	{"/aws/ecs/", "ecs"},
	{"/aws/eks/", "eks"},
	{"/aws/rds/", "rds"},
	{"/aws/codebuild/", "codebuild"},
}

// Classify maps a log group name to its service tag.
func Classify(logGroup string) string {
	for _, k := range known {
		if strings.HasPrefix(logGroup, k.prefix) {
			return k.tag
		}
	}
	if strings.HasPrefix(logGroup, cloudTrailPrefix) {
		return CloudTrail
	}
	if strings.HasPrefix(logGroup, awsPrefix) {
		parts := strings.Split(logGroup, "/")
		if len(parts) > 2 && parts[2] != "" {
			return parts[2]
		}
		return AWS
	}
	return Other
}

// Set returns the sorted, unique service tags of the given group names.
func Set(logGroups []string) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0)
	for _, g := range logGroups {
		tag := Classify(g)
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Filter reports whether service tags pass a filter list. An empty filter
// passes everything.
type Filter map[string]struct{}

// NewFilter builds a Filter from tags, ignoring blanks.
func NewFilter(tags []string) Filter {
	f := make(Filter, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			f[t] = struct{}{}
		}
	}
	return f
}

// Allows reports whether the group's tag is in the filter.
func (f Filter) Allows(logGroup string) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[Classify(logGroup)]
	return ok
}

// Package scope decides which discovered resources a collection run keeps.
//
// Collectors call Accept exactly once per candidate primary resource, at
// discovery time. Anything rejected there never reaches a dependent pass.
package scope

import "strings"

// Filter reports whether identifier is selected by resources.
// Implementations are only consulted when resources is non-empty.
type Filter interface {
	Match(identifier string, resources []string) bool
}

// FilterFunc adapts a plain function to Filter.
type FilterFunc func(identifier string, resources []string) bool

// Match calls f.
func (f FilterFunc) Match(identifier string, resources []string) bool {
	return f(identifier, resources)
}

// Accept is the single entry point used by collectors. An empty resources
// scope accepts everything; a nil filter with a non-empty scope accepts
// nothing.
func Accept(f Filter, identifier string, resources []string) bool {
	if len(resources) == 0 {
		return true
	}
	if f == nil {
		return false
	}
	return f.Match(identifier, resources)
}

// ARNMatcher is the default Filter used by the CLI.
//
// An entry matches an identifier when the two are equal, or when either one
// is an ARN whose resource part ends in "/<other>" (so "vpc-0abc" selects
// "arn:aws:ec2:us-east-1:111122223333:vpc/vpc-0abc" and vice versa).
type ARNMatcher struct{}

// Match implements Filter.
func (ARNMatcher) Match(identifier string, resources []string) bool {
	for _, r := range resources {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if r == identifier || arnEndsWith(r, identifier) || arnEndsWith(identifier, r) {
			return true
		}
	}
	return false
}

func arnEndsWith(arn, id string) bool {
	if !strings.HasPrefix(arn, "arn:") {
		return false
	}
	return strings.HasSuffix(arn, "/"+id)
}

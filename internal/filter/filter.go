// Package filter provides purely functional predicates over the
// aggregated event sequence. Filters run upstream of the sink chain and
// never touch monitor state.
package filter

import (
	"fmt"
	"regexp"

	"github.com/snarehq/snare/internal/model"
)

// Filter decides whether an aggregated item passes downstream.
type Filter func(item model.Tagged) bool

// ByExceptionTypes passes only events whose type name is in the
// allow-list.
func ByExceptionTypes(types ...string) Filter {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return func(item model.Tagged) bool {
		return allowed[item.Event.Kind()]
	}
}

// BySourcePattern passes only events whose source identifier (or, for
// poll events, source URL) matches the regexp.
func BySourcePattern(pattern string) (Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("source filter: invalid pattern: %w", err)
	}
	return func(item model.Tagged) bool {
		if re.MatchString(item.Source) {
			return true
		}
		if ev, ok := item.Event.(*model.ExceptionEvent); ok {
			return re.MatchString(ev.SourceURL)
		}
		return false
	}, nil
}

// ByMinSeverity passes events at or above the given severity. HTTP poll
// events derive their severity from status-code bucketing (5xx is
// critical, everything else on the failure path is an error).
func ByMinSeverity(min model.Severity) Filter {
	return func(item model.Tagged) bool {
		return item.Event.Level().AtLeast(min)
	}
}

// Wrap applies filters to a sequence, producing a filtered sequence.
// All filters must pass for an item to be forwarded.
func Wrap(in <-chan model.Tagged, filters ...Filter) <-chan model.Tagged {
	out := make(chan model.Tagged)
	go func() {
		defer close(out)
		for item := range in {
			if passes(item, filters) {
				out <- item
			}
		}
	}()
	return out
}

func passes(item model.Tagged, filters []Filter) bool {
	for _, f := range filters {
		if !f(item) {
			return false
		}
	}
	return true
}

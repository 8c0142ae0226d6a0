// Package core provides filtering for notification listings.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/nudge/internal/model"
)

// FilterOptions specifies criteria for filtering notifications.
type FilterOptions struct {
	Since    time.Duration  // Only notifications created after now-since (0=all)
	Types    []model.Type   // Allowed types (empty=any)
	Priority model.Priority // Exact priority match (empty=any)
	Limit    int            // Maximum results (0=unlimited)
	Now      time.Time      // Reference time for Since (zero=time.Now)
}

// Filter returns the notifications matching opts, preserving order.
func Filter(notifications []model.Notification, opts FilterOptions) []model.Notification {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	result := make([]model.Notification, 0, len(notifications))

	for _, n := range notifications {
		if opts.Since > 0 && n.CreatedAt.Before(now.Add(-opts.Since)) {
			continue
		}
		if len(opts.Types) > 0 && !hasType(opts.Types, n.Type) {
			continue
		}
		if opts.Priority != "" && n.Priority != opts.Priority {
			continue
		}
		result = append(result, n)
	}

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

func hasType(types []model.Type, t model.Type) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// ParseDuration parses a duration string with extended formats.
// Supports: 48h, 7d, 1w, 0 (all time)
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "0" || s == "" {
		return 0, nil
	}

	if daysStr, found := strings.CutSuffix(s, "d"); found {
		days, err := strconv.Atoi(daysStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	if weeksStr, found := strings.CutSuffix(s, "w"); found {
		weeks, err := strconv.Atoi(weeksStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		return time.Duration(weeks) * 7 * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

// ParseTypes parses a comma separated type list. Unknown types are rejected.
func ParseTypes(s string) ([]model.Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var types []model.Type
	for _, part := range strings.Split(s, ",") {
		t := model.Type(strings.ToLower(strings.TrimSpace(part)))
		if t == "" {
			continue
		}
		if !t.Known() {
			return nil, fmt.Errorf("invalid type: %s", t)
		}
		types = append(types, t)
	}
	return types, nil
}

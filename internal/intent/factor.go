// File path: internal/intent/factor.go
package intent

import (
	"regexp"
	"strconv"
	"strings"
)

var mappingPattern = regexp.MustCompile(`(?i)(?:code\s+)?([A-Za-z0-9_.]+)\s*(?:-{1,3}>|=>|:|=)\s*(-?\d+(?:\.\d+)?)`)

// LooksLikeFactorMapping is the cheap heuristic that decides whether a
// turn should be read as a code-to-value table instead of a fresh query.
func LooksLikeFactorMapping(text string) bool {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return false
	}
	if strings.HasPrefix(lowered, "code ") || strings.HasPrefix(lowered, "factor") {
		return true
	}
	if strings.Contains(lowered, "-->") || strings.Contains(lowered, "=>") {
		return true
	}
	return strings.Contains(lowered, "code") && strings.ContainsAny(lowered, ":=")
}

// ParseFactorMapping reads a code-to-value table from free text, e.g.
// "Code 1 --> 23, Code 2 --> 28". It reports false when no pair parses.
func ParseFactorMapping(text string) (map[string]float64, bool) {
	matches := mappingPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, false
	}
	mapping := make(map[string]float64, len(matches))
	for _, match := range matches {
		value, err := strconv.ParseFloat(match[2], 64)
		if err != nil {
			continue
		}
		mapping[match[1]] = value
	}
	if len(mapping) == 0 {
		return nil, false
	}
	return mapping, true
}

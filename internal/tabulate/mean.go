// File path: internal/tabulate/mean.go
package tabulate

import (
	"fmt"
	"strconv"
	"strings"
)

// WeightedMean augments a rendered count table with a weighted-mean
// computation over a code-to-value factor mapping. Rows whose label is
// absent from the mapping are dropped from the computation; Base and
// Total rows are carried through unchanged, Base first and Total last.
func WeightedMean(table string, factors map[string]float64) string {
	var baseLine, totalLine string
	type weightedRow struct {
		label    string
		count    int
		value    float64
		weighted float64
	}
	var rows []weightedRow
	var weightedSum float64
	denominator := 0

	for _, line := range strings.Split(table, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			continue
		}
		label := strings.TrimSpace(fields[0])
		switch label {
		case "Base":
			baseLine = line
		case "Total":
			totalLine = line
		default:
			value, ok := factors[label]
			if !ok {
				continue
			}
			weighted := float64(count) * value
			rows = append(rows, weightedRow{label: label, count: count, value: value, weighted: weighted})
			weightedSum += weighted
			denominator += count
		}
	}

	mean := 0.0
	if denominator > 0 {
		mean = weightedSum / float64(denominator)
	}

	out := make([]string, 0, len(rows)+3)
	if baseLine != "" {
		out = append(out, baseLine)
	}
	for _, row := range rows {
		out = append(out, fmt.Sprintf("%s\t%d\t%s\t%s",
			row.label, row.count, formatNumber(row.value), formatNumber(row.weighted)))
	}
	out = append(out, fmt.Sprintf("Mean\t-\t-\t%.2f", mean))
	if totalLine != "" {
		out = append(out, totalLine)
	}
	return strings.Join(out, "\n")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

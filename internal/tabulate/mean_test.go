package tabulate

import (
	"strings"
	"testing"
)

func TestWeightedMean(t *testing.T) {
	table := "Base\t100\n\n1\t30\n2\t70\n\nTotal\t100"
	got := WeightedMean(table, map[string]float64{"1": 10, "2": 20})
	lines := strings.Split(got, "\n")
	if lines[0] != "Base\t100" {
		t.Fatalf("expected base row first, got %q", lines[0])
	}
	if lines[1] != "1\t30\t10\t300" {
		t.Fatalf("unexpected weighted row: %q", lines[1])
	}
	if lines[2] != "2\t70\t20\t1400" {
		t.Fatalf("unexpected weighted row: %q", lines[2])
	}
	if lines[3] != "Mean\t-\t-\t17.00" {
		t.Fatalf("unexpected mean row: %q", lines[3])
	}
	if lines[4] != "Total\t100" {
		t.Fatalf("expected total row last, got %q", lines[4])
	}
}

func TestWeightedMeanDropsUnmappedLabels(t *testing.T) {
	table := "Base\t100\n\n1\t30\n2\t70\n\nTotal\t100"
	got := WeightedMean(table, map[string]float64{"1": 10})
	if strings.Contains(got, "2\t70") {
		t.Fatalf("unmapped label must be dropped: %q", got)
	}
	// 30*10 / 30
	if !strings.Contains(got, "Mean\t-\t-\t10.00") {
		t.Fatalf("unexpected mean: %q", got)
	}
}

func TestWeightedMeanZeroDenominator(t *testing.T) {
	table := "Base\t0\n\n\nTotal\t0"
	got := WeightedMean(table, map[string]float64{"1": 10})
	if !strings.Contains(got, "Mean\t-\t-\t0.00") {
		t.Fatalf("zero denominator must yield mean 0.00: %q", got)
	}
}

func TestWeightedMeanCarriesMultiAnswerTotalLabel(t *testing.T) {
	table := "Base\t50\n\n1\t20\n2\t40\n\nTotal \t60"
	got := WeightedMean(table, map[string]float64{"1": 1, "2": 2})
	if !strings.HasSuffix(got, "Total \t60") {
		t.Fatalf("total label must be carried through unchanged: %q", got)
	}
}

func TestWeightedMeanFractionalValues(t *testing.T) {
	table := "Base\t4\n\n1\t2\n2\t2\n\nTotal\t4"
	got := WeightedMean(table, map[string]float64{"1": 0.5, "2": 1.5})
	if !strings.Contains(got, "1\t2\t0.5\t1") {
		t.Fatalf("unexpected fractional rendering: %q", got)
	}
	if !strings.Contains(got, "Mean\t-\t-\t1.00") {
		t.Fatalf("unexpected mean: %q", got)
	}
}

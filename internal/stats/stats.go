// Package stats summarizes datasets and game results.
package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
)

const sparkChars = " .:-=+*#%@"

// GameMetrics returns the accuracy of a finished game as a fraction.
func GameMetrics(score, total int) (accuracy float64) {
	if total <= 0 {
		return 0
	}
	return float64(score) / float64(total)
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// RenderSummary prints the dataset summary followed by the subject table.
func RenderSummary(w io.Writer, report Report) error {
	if report.Cards == 0 {
		_, err := fmt.Fprintln(w, "No vocabulary cached.")
		return err
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Cards: %d", report.Cards),
		fmt.Sprintf("Subjects: %d", len(report.Subjects)),
		fmt.Sprintf("Without subject: %d", report.Unlabeled),
		fmt.Sprintf("With pronunciation: %d", report.WithPronunciation),
		fmt.Sprintf("ETag: %s", orNone(report.Freshness.ETag)),
		fmt.Sprintf("Last-Modified: %s", orNone(report.Freshness.LastModified)),
	}
	if top := TopSubjects(report.Subjects, 3); len(top) > 0 {
		lines = append(lines, fmt.Sprintf("Top subjects: %s", strings.Join(top, ", ")))
	}
	if report.UpdatePending {
		lines = append(lines, "Update pending: yes")
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if len(report.Subjects) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return RenderSubjectTable(w, report.Subjects)
}

// RenderSubjectTable prints cards per subject with their share.
func RenderSubjectTable(w io.Writer, counts []SubjectCount) error {
	total := 0
	values := make([]float64, len(counts))
	for i, c := range counts {
		total += c.Cards
		values[i] = float64(c.Cards)
	}
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		share := 0.0
		if total > 0 {
			share = float64(c.Cards) / float64(total) * 100
		}
		rows = append(rows, []string{c.Subject, fmt.Sprintf("%d", c.Cards), fmt.Sprintf("%.1f%%", share)})
	}
	for _, line := range formatTable([]string{"Subject", "Cards", "Share"}, rows, map[int]bool{1: true, 2: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if len(values) > 1 {
		if _, err := fmt.Fprintf(w, "Distribution: %s\n", Sparkline(values)); err != nil {
			return err
		}
	}
	return nil
}

func orNone(v string) string {
	if v == "" {
		return "none"
	}
	return v
}

package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Subject", "Cards", "Share"}
	rows := [][]string{
		{"Science", "12", "60.0%"},
		{"Math", "8", "40.0%"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Subject Cards Share" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Science    12 60.0%" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "Math        8 40.0%" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableWideRunes(t *testing.T) {
	lines := formatTable([]string{"Term", "Meaning"}, [][]string{{"你好", "hello"}, {"水", "water"}}, nil)
	if lines[1] != "你好 hello" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "水   water" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

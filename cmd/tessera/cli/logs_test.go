package cli

import (
	"strings"
	"testing"
)

func TestFormatLogEntry(t *testing.T) {
	line := `{"time":"2026-08-21T10:30:00.5Z","level":"INFO","msg":"generation starting","id":"gen_abc12345","tiles":4}`

	got := formatLogEntry(line)

	if !strings.Contains(got, "10:30:00.500") {
		t.Errorf("missing timestamp: %q", got)
	}
	if !strings.Contains(got, "INFO") {
		t.Errorf("missing level: %q", got)
	}
	if !strings.Contains(got, "generation starting") {
		t.Errorf("missing message: %q", got)
	}
	if !strings.Contains(got, "id=gen_abc12345") {
		t.Errorf("missing attribute: %q", got)
	}
}

func TestFormatLogEntryAttrsSorted(t *testing.T) {
	line := `{"time":"2026-08-21T10:30:00Z","level":"DEBUG","msg":"m","zebra":1,"apple":2}`

	got := formatLogEntry(line)

	apple := strings.Index(got, "apple=")
	zebra := strings.Index(got, "zebra=")
	if apple < 0 || zebra < 0 || apple > zebra {
		t.Errorf("attributes not sorted: %q", got)
	}
}

func TestFormatLogEntryNotJSON(t *testing.T) {
	line := "plain text, not a log record"
	if got := formatLogEntry(line); got != line {
		t.Errorf("non-JSON line should pass through: %q", got)
	}
}

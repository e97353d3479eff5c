package styles

import (
	"strings"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{512 << 20, "512.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMessages(t *testing.T) {
	if got := FormatSuccess("saved"); !strings.Contains(got, "saved") {
		t.Errorf("FormatSuccess() = %q", got)
	}
	if got := FormatWarning("stale"); !strings.Contains(got, "! stale") {
		t.Errorf("FormatWarning() = %q", got)
	}
	if got := FormatRef("main", "1.0.0"); !strings.Contains(got, "main") || !strings.Contains(got, "1.0.0") {
		t.Errorf("FormatRef() = %q", got)
	}
	if got := FormatCurrent("budget", false); got != "  budget" {
		t.Errorf("FormatCurrent() = %q", got)
	}
}

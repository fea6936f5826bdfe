package cli

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q; want %q", tt.d, got, tt.want)
		}
	}
}

func TestLogWriter_SplitsLines(t *testing.T) {
	w := NewLogWriter(10)

	w.Write([]byte("one\ntwo\n"))
	w.Write([]byte("three"))

	lines := w.Lines()
	want := []string{"one", "two", "three"}
	if len(lines) != len(want) {
		t.Fatalf("Lines() = %v; want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Lines()[%d] = %q; want %q", i, lines[i], want[i])
		}
	}
}

func TestLineRing_Evicts(t *testing.T) {
	r := NewLineRing(3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		r.Add(s)
	}

	lines := r.Lines()
	want := []string{"c", "d", "e"}
	if len(lines) != len(want) {
		t.Fatalf("Lines() = %v; want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("Lines()[%d] = %q; want %q", i, lines[i], want[i])
		}
	}
}

package model

import (
	"testing"
	"time"
)

func TestIsTerminalStatus(t *testing.T) {
	for _, s := range Statuses {
		want := s == StatusResolved || s == StatusClosed
		if got := IsTerminalStatus(s); got != want {
			t.Errorf("IsTerminalStatus(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-09")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if FormatDate(d) != "2024-03-09" {
		t.Errorf("FormatDate() = %s", FormatDate(d))
	}
	if _, err := ParseDate("09/03/2024"); err == nil {
		t.Error("ParseDate() expected error for non ISO date")
	}
}

func TestDateOf(t *testing.T) {
	ts := time.Date(2024, 5, 17, 13, 45, 12, 99, time.UTC)
	got := DateOf(ts)
	if !got.Equal(time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DateOf() = %v", got)
	}
}

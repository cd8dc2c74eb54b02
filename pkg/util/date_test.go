package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDate(t *testing.T) {
	got, ok := ParseTime("2020-01-02")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Year() != 2020 || got.Month() != time.January || got.Day() != 2 {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestSameCalendarDay(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Tokyo")
	a := time.Date(2024, 10, 10, 0, 0, 0, 0, loc)
	b := time.Date(2024, 10, 10, 23, 59, 0, 0, loc)
	if !SameCalendarDay(a, b) {
		t.Fatalf("expected same day")
	}
	if SameCalendarDay(a, b.Add(time.Minute)) {
		t.Fatalf("expected different day")
	}
}

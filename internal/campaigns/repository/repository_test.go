package repository

import (
	"testing"
	"time"
)

func TestDayKeyUsesLocalCalendarDay(t *testing.T) {
	amsterdam := time.FixedZone("CEST", 2*60*60)

	// Shortly after local midnight the UTC clock still reads the previous
	// day. The counter keys on the tenant clock's calendar day, matching the
	// window agent daily limits use.
	early := time.Date(2025, 6, 2, 0, 30, 0, 0, amsterdam)
	got := dayKey(early)
	want := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("dayKey(%v) = %v, want %v", early, got, want)
	}

	late := time.Date(2025, 6, 2, 23, 45, 0, 0, amsterdam)
	if !dayKey(late).Equal(want) {
		t.Errorf("dayKey(%v) = %v, want %v", late, dayKey(late), want)
	}
}

package month

import (
	"testing"
	"time"
)

func TestAdd_TableTests(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		n     int
		want  time.Time
	}{
		{
			name:  "regular month",
			start: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			n:     1,
			want:  time.Date(2024, 2, 15, 10, 30, 0, 0, time.UTC),
		},
		{
			name:  "end of january into leap february",
			start: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			n:     1,
			want:  time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "end of january into regular february",
			start: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			n:     1,
			want:  time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "year rollover",
			start: time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC),
			n:     3,
			want:  time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "twelve months",
			start: time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			n:     12,
			want:  time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "zero months",
			start: time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC),
			n:     0,
			want:  time.Date(2024, 5, 5, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Add(tt.start, tt.n); !got.Equal(tt.want) {
				t.Errorf("Add() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want int
	}{
		{name: "already ended", end: now.Add(-time.Hour), want: 0},
		{name: "ends right now", end: now, want: 0},
		{name: "a few days left", end: now.AddDate(0, 0, 3), want: 1},
		{name: "exactly three months", end: Add(now, 3), want: 3},
		{name: "three months and a day", end: Add(now, 3).AddDate(0, 0, 1), want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Remaining(tt.end, now); got != tt.want {
				t.Errorf("Remaining() = %d, want %d", got, tt.want)
			}
		})
	}
}

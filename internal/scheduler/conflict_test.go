package scheduler

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2024, time.January, 8, hour, minute, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"identical", at(9, 0), at(10, 0), at(9, 0), at(10, 0), true},
		{"partial", at(9, 0), at(10, 0), at(9, 30), at(10, 30), true},
		{"contained", at(9, 0), at(12, 0), at(10, 0), at(11, 0), true},
		{"back to back", at(9, 0), at(10, 0), at(10, 0), at(11, 0), false},
		{"disjoint", at(9, 0), at(10, 0), at(11, 0), at(12, 0), false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			if got := Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd); got != tc.want {
				t.Fatalf("Overlaps is not symmetric")
			}
		})
	}
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	existing := []Session{
		{ID: "s-1", TeacherID: "t-1", LocationID: "l-1", Start: at(9, 0), End: at(10, 0)},
		{ID: "s-2", TeacherID: "t-2", LocationID: "l-2", Start: at(9, 30), End: at(10, 30)},
		{ID: "s-3", TeacherID: "t-1", LocationID: "l-3", Start: at(12, 0), End: at(13, 0)},
	}

	t.Run("teacher overlap produces conflict", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Session{TeacherID: "t-1", LocationID: "l-9", Start: at(9, 15), End: at(9, 45)})
		if len(got) != 1 || got[0].Type != ConflictTypeTeacher || got[0].WithSessionID != "s-1" {
			t.Fatalf("unexpected conflicts: %+v", got)
		}
	})

	t.Run("location overlap produces conflict", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Session{TeacherID: "t-9", LocationID: "l-2", Start: at(10, 0), End: at(11, 0)})
		if len(got) != 1 || got[0].Type != ConflictTypeLocation || got[0].WithSessionID != "s-2" {
			t.Fatalf("unexpected conflicts: %+v", got)
		}
	})

	t.Run("teacher and location overlap produce two conflicts", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Session{TeacherID: "t-1", LocationID: "l-1", Start: at(9, 0), End: at(10, 0)})
		if len(got) != 2 {
			t.Fatalf("expected two conflicts, got %+v", got)
		}
	})

	t.Run("non-overlapping sessions yield no conflicts", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Session{TeacherID: "t-1", LocationID: "l-1", Start: at(10, 0), End: at(11, 0)})
		if len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})

	t.Run("candidate does not conflict with itself", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Session{ID: "s-1", TeacherID: "t-1", LocationID: "l-1", Start: at(9, 0), End: at(10, 0)})
		if len(got) != 0 {
			t.Fatalf("expected no conflicts, got %+v", got)
		}
	})
}

func TestDetectBlockedTime(t *testing.T) {
	t.Parallel()

	blocks := []BlockedTime{
		{ID: "b-1", TeacherID: "t-1", Start: at(8, 0), End: at(12, 0), Reason: "dentist"},
		{ID: "b-2", TeacherID: "t-2", Start: at(8, 0), End: at(12, 0)},
	}

	got := DetectBlockedTime(blocks, Session{TeacherID: "t-1", LocationID: "l-1", Start: at(11, 0), End: at(12, 30)})
	if len(got) != 1 {
		t.Fatalf("expected one blocked time conflict, got %+v", got)
	}
	if got[0].Type != ConflictTypeBlockedTime || got[0].BlockedTimeID != "b-1" || got[0].Reason != "dentist" {
		t.Fatalf("unexpected conflict: %+v", got[0])
	}

	if got := DetectBlockedTime(blocks, Session{TeacherID: "t-1", Start: at(12, 0), End: at(13, 0)}); len(got) != 0 {
		t.Fatalf("expected no conflicts after the block ends, got %+v", got)
	}
}

func TestDetectBatchOverlap(t *testing.T) {
	t.Parallel()

	t.Run("daily cadence with short duration is clean", func(t *testing.T) {
		t.Parallel()
		batch := []Session{
			{TeacherID: "t-1", LocationID: "l-1", Start: at(9, 0), End: at(10, 0)},
			{TeacherID: "t-1", LocationID: "l-1", Start: at(9, 0).AddDate(0, 0, 1), End: at(10, 0).AddDate(0, 0, 1)},
		}
		if got := DetectBatchOverlap(batch); len(got) != 0 {
			t.Fatalf("expected no overlap, got %+v", got)
		}
	})

	t.Run("duration longer than cadence overlaps", func(t *testing.T) {
		t.Parallel()
		start := at(9, 0)
		batch := []Session{
			{ID: "a", TeacherID: "t-1", LocationID: "l-1", Start: start, End: start.Add(30 * time.Hour)},
			{ID: "b", TeacherID: "t-1", LocationID: "l-1", Start: start.AddDate(0, 0, 1), End: start.AddDate(0, 0, 1).Add(30 * time.Hour)},
		}
		if got := DetectBatchOverlap(batch); len(got) != 2 {
			t.Fatalf("expected teacher and location overlap, got %+v", got)
		}
	})
}

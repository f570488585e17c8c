package recurrence

import (
	"errors"
	"testing"
	"time"
)

func TestEngine_Expand(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2024, time.January, 1, 7, 30, 0, 0, time.UTC)
	endDate := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)

	t.Run("respects weekday selections", func(t *testing.T) {
		t.Parallel()

		occurrences, err := NewEngine(nil).Expand(anchor, Pattern{
			Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
			EndDate:   endDate,
			TimeOfDay: "09:00",
			Duration:  60 * time.Minute,
		})
		if err != nil {
			t.Fatalf("Expand returned error: %v", err)
		}

		want := []string{"2024-01-01", "2024-01-03", "2024-01-08", "2024-01-10"}
		if len(occurrences) != len(want) {
			t.Fatalf("expected %d occurrences, got %d", len(want), len(occurrences))
		}
		for i, occ := range occurrences {
			if got := occ.Start.Format("2006-01-02"); got != want[i] {
				t.Fatalf("occurrence %d on %s, want %s", i, got, want[i])
			}
			if occ.Start.Hour() != 9 || occ.Start.Minute() != 0 {
				t.Fatalf("occurrence %d starts at %s", i, occ.Start.Format("15:04"))
			}
			if occ.End.Sub(occ.Start) != time.Hour {
				t.Fatalf("occurrence %d lasts %s", i, occ.End.Sub(occ.Start))
			}
		}
	})

	t.Run("skip first starts on the following day", func(t *testing.T) {
		t.Parallel()

		occurrences, err := NewEngine(nil).Expand(anchor, Pattern{
			Weekdays:  []time.Weekday{time.Monday, time.Wednesday},
			EndDate:   endDate,
			TimeOfDay: "09:00",
			Duration:  time.Hour,
			SkipFirst: true,
		})
		if err != nil {
			t.Fatalf("Expand returned error: %v", err)
		}
		if len(occurrences) != 3 {
			t.Fatalf("expected 3 occurrences, got %d", len(occurrences))
		}
		if got := occurrences[0].Start.Format("2006-01-02"); got != "2024-01-03" {
			t.Fatalf("first occurrence on %s", got)
		}
	})

	t.Run("evaluates dates in the engine location", func(t *testing.T) {
		t.Parallel()

		ny, err := time.LoadLocation("America/New_York")
		if err != nil {
			t.Skipf("tzdata unavailable: %v", err)
		}
		// 2024-03-10 is the US spring-forward date.
		start := time.Date(2024, time.March, 9, 12, 0, 0, 0, ny)
		occurrences, err := NewEngine(ny).Expand(start, Pattern{
			Weekdays:  []time.Weekday{time.Saturday, time.Sunday, time.Monday},
			EndDate:   time.Date(2024, time.March, 11, 0, 0, 0, 0, ny),
			TimeOfDay: "08:15",
			Duration:  45 * time.Minute,
		})
		if err != nil {
			t.Fatalf("Expand returned error: %v", err)
		}
		if len(occurrences) != 3 {
			t.Fatalf("expected 3 occurrences, got %d", len(occurrences))
		}
		for _, occ := range occurrences {
			local := occ.Start.In(ny)
			if local.Hour() != 8 || local.Minute() != 15 {
				t.Fatalf("expected wall clock 08:15, got %s", local.Format(time.RFC3339))
			}
		}
	})

	t.Run("end date before anchor produces nothing", func(t *testing.T) {
		t.Parallel()

		occurrences, err := NewEngine(nil).Expand(anchor, Pattern{
			Weekdays:  []time.Weekday{time.Monday},
			EndDate:   anchor.AddDate(0, 0, -1),
			TimeOfDay: "09:00",
			Duration:  time.Hour,
		})
		if err != nil {
			t.Fatalf("Expand returned error: %v", err)
		}
		if len(occurrences) != 0 {
			t.Fatalf("expected no occurrences, got %d", len(occurrences))
		}
	})

	t.Run("rejects invalid patterns", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			pattern Pattern
			want    error
		}{
			{"bad time", Pattern{Weekdays: []time.Weekday{time.Monday}, EndDate: endDate, TimeOfDay: "9am", Duration: time.Hour}, ErrInvalidTimeOfDay},
			{"hour out of range", Pattern{Weekdays: []time.Weekday{time.Monday}, EndDate: endDate, TimeOfDay: "24:00", Duration: time.Hour}, ErrInvalidTimeOfDay},
			{"single digit hour", Pattern{Weekdays: []time.Weekday{time.Monday}, EndDate: endDate, TimeOfDay: "9:00", Duration: time.Hour}, ErrInvalidTimeOfDay},
			{"signed hour", Pattern{Weekdays: []time.Weekday{time.Monday}, EndDate: endDate, TimeOfDay: "+9:00", Duration: time.Hour}, ErrInvalidTimeOfDay},
			{"signed minute", Pattern{Weekdays: []time.Weekday{time.Monday}, EndDate: endDate, TimeOfDay: "09:+5", Duration: time.Hour}, ErrInvalidTimeOfDay},
			{"zero duration", Pattern{Weekdays: []time.Weekday{time.Monday}, EndDate: endDate, TimeOfDay: "09:00"}, ErrInvalidDuration},
			{"no weekdays", Pattern{EndDate: endDate, TimeOfDay: "09:00", Duration: time.Hour}, ErrNoWeekdays},
			{"missing end", Pattern{Weekdays: []time.Weekday{time.Monday}, TimeOfDay: "09:00", Duration: time.Hour}, ErrInvalidWindow},
			{"bad weekday", Pattern{Weekdays: []time.Weekday{7}, EndDate: endDate, TimeOfDay: "09:00", Duration: time.Hour}, ErrInvalidWeekday},
		}
		for _, tc := range tests {
			if _, err := NewEngine(nil).Expand(anchor, tc.pattern); !errors.Is(err, tc.want) {
				t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
			}
		}
	})

	t.Run("caps series length", func(t *testing.T) {
		t.Parallel()

		_, err := NewEngine(nil).Expand(anchor, Pattern{
			Weekdays:  []time.Weekday{0, 1, 2, 3, 4, 5, 6},
			EndDate:   anchor.AddDate(5, 0, 0),
			TimeOfDay: "06:00",
			Duration:  time.Hour,
		})
		if !errors.Is(err, ErrTooManyOccurrences) {
			t.Fatalf("expected ErrTooManyOccurrences, got %v", err)
		}
	})
}

func TestWeekdaysFromInts(t *testing.T) {
	t.Parallel()

	days, err := WeekdaysFromInts([]int{0, 3, 6})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if days[0] != time.Sunday || days[1] != time.Wednesday || days[2] != time.Saturday {
		t.Fatalf("unexpected weekdays: %v", days)
	}
	if _, err := WeekdaysFromInts([]int{-1}); !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("expected ErrInvalidWeekday, got %v", err)
	}
}

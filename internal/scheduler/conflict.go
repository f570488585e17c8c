package scheduler

import (
	"sort"
	"time"
)

// Session is the scheduling view of a class session: who teaches it, where, and when.
type Session struct {
	ID         string
	TeacherID  string
	LocationID string
	Start      time.Time
	End        time.Time
}

// BlockedTime is a teacher-declared unavailability window.
type BlockedTime struct {
	ID        string
	TeacherID string
	Start     time.Time
	End       time.Time
	Reason    string
}

// ConflictType describes the type of conflict detected for a candidate session.
type ConflictType string

const (
	// ConflictTypeTeacher indicates the teacher is already teaching another session.
	ConflictTypeTeacher ConflictType = "teacher"
	// ConflictTypeLocation indicates the location is already holding another session.
	ConflictTypeLocation ConflictType = "location"
	// ConflictTypeBlockedTime indicates the teacher declared the slot unavailable.
	ConflictTypeBlockedTime ConflictType = "blocked_time"
)

// Conflict details an overlapping relation that callers can present to users.
type Conflict struct {
	Type          ConflictType
	WithSessionID string
	BlockedTimeID string
	TeacherID     string
	LocationID    string
	Reason        string
	Start         time.Time
	End           time.Time
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Intervals that merely touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// DetectConflicts identifies sessions in existing that double-book the
// candidate's teacher or location. A session matching on both yields two
// conflicts. Sessions sharing the candidate's ID are ignored.
func DetectConflicts(existing []Session, candidate Session) []Conflict {
	var conflicts []Conflict
	for _, other := range existing {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if !Overlaps(other.Start, other.End, candidate.Start, candidate.End) {
			continue
		}
		if candidate.TeacherID != "" && other.TeacherID == candidate.TeacherID {
			conflicts = append(conflicts, Conflict{
				Type:          ConflictTypeTeacher,
				WithSessionID: other.ID,
				TeacherID:     other.TeacherID,
				Start:         other.Start,
				End:           other.End,
			})
		}
		if candidate.LocationID != "" && other.LocationID == candidate.LocationID {
			conflicts = append(conflicts, Conflict{
				Type:          ConflictTypeLocation,
				WithSessionID: other.ID,
				LocationID:    other.LocationID,
				Start:         other.Start,
				End:           other.End,
			})
		}
	}
	return conflicts
}

// DetectBlockedTime returns a conflict for every block of the candidate's
// teacher that overlaps the candidate interval.
func DetectBlockedTime(blocks []BlockedTime, candidate Session) []Conflict {
	var conflicts []Conflict
	for _, block := range blocks {
		if block.TeacherID != candidate.TeacherID {
			continue
		}
		if !Overlaps(block.Start, block.End, candidate.Start, candidate.End) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Type:          ConflictTypeBlockedTime,
			BlockedTimeID: block.ID,
			TeacherID:     block.TeacherID,
			Reason:        block.Reason,
			Start:         block.Start,
			End:           block.End,
		})
	}
	return conflicts
}

// DetectBatchOverlap checks the members of a batch against each other and
// returns the conflicts found. Batches are expected to be small (a recurring
// series or a reassignment target set), so the sweep sorts by start and only
// compares neighbours whose intervals can still intersect.
func DetectBatchOverlap(batch []Session) []Conflict {
	if len(batch) < 2 {
		return nil
	}
	ordered := make([]Session, len(batch))
	copy(ordered, batch)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})

	var conflicts []Conflict
	for i := range ordered {
		for j := i + 1; j < len(ordered); j++ {
			if !ordered[j].Start.Before(ordered[i].End) {
				break
			}
			conflicts = append(conflicts, DetectConflicts(ordered[i:i+1], ordered[j])...)
		}
	}
	return conflicts
}

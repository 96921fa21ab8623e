package planner

import (
	"strconv"
	"strings"

	"github.com/unitrack/unitrack/core/catalog"
)

// Conflict is one time collision between a candidate course's session and an
// already-selected course. Day/Time come from the candidate's session.
type Conflict struct {
	Course *catalog.Course `json:"course"`
	Day    catalog.Day     `json:"day"`
	Time   string          `json:"time"` // "HH:MM - HH:MM"
}

// timeValue reads "HH:MM" as the decimal number HH.MM. Campus schedules
// round to :00/:30, for which this ordering matches true elapsed time.
func timeValue(t string) float64 {
	v, err := strconv.ParseFloat(strings.Replace(t, ":", ".", 1), 64)
	if err != nil {
		return 0
	}
	return v
}

// Overlaps reports whether two sessions collide. Sessions on different days
// never overlap; touching boundaries (end1 == start2) do not count.
func Overlaps(s1, s2 catalog.Session) bool {
	if s1.Day != s2.Day {
		return false
	}
	start1, end1 := timeValue(s1.Start), timeValue(s1.End)
	start2, end2 := timeValue(s2.Start), timeValue(s2.End)
	return start1 < end2 && start2 < end1
}

// FindConflicts tests the candidate's selected section against the selected
// section of every course in selected. Each overlapping session pair yields
// one Conflict; pairs against the same course are not deduplicated.
func FindConflicts(candidate *catalog.Course, selected []*catalog.Course) []Conflict {
	candSec := candidate.CurrentSection()
	if candSec == nil {
		return nil
	}

	var conflicts []Conflict
	for _, existing := range selected {
		sec := existing.CurrentSection()
		if sec == nil {
			continue
		}
		for _, cs := range candSec.Sessions {
			for _, es := range sec.Sessions {
				if Overlaps(cs, es) {
					conflicts = append(conflicts, Conflict{
						Course: existing,
						Day:    cs.Day,
						Time:   cs.Start + " - " + cs.End,
					})
				}
			}
		}
	}
	return conflicts
}

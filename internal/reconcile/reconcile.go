// Package reconcile matches raw recognition detections to enrolled students
// and produces the per-cycle roster update.
package reconcile

import (
	"strings"
	"time"

	"github.com/classwatch/classwatch-go/internal/model"
	"github.com/classwatch/classwatch-go/internal/timeline"
)

// NotVisibleLabel is recorded for students with no matching detection in a cycle.
const NotVisibleLabel = "Student not visible this cycle"

// normalize prepares a name for comparison: trimmed and lowercased.
func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// matches reports whether a detection name refers to a student name.
// Exact equality is checked first, then containment where the detection name
// contains the student name. The reverse direction (student name containing
// the detection name) is NOT a match: a detection "Karimov" must not claim
// student "Aziz Karimov".
func matches(detectionName, studentName string) bool {
	d := normalize(detectionName)
	s := normalize(studentName)
	if d == s {
		return true
	}
	return strings.Contains(d, s)
}

// Reconcile matches detections to students and appends one timeline step per
// student for this cycle. It returns a new roster slice; the input is not
// mutated.
//
// Students are visited in roster order and claim the first unclaimed
// detection (in service-provided order) whose name matches. Each detection
// is applied to at most one student, so duplicate detections of the same
// name resolve deterministically to the first-enrolled student.
func Reconcile(students []model.Student, detections []model.Detection, now time.Time) []model.Student {
	out := make([]model.Student, 0, len(students))
	claimed := make([]bool, len(detections))
	stamp := now.Format("15:04:05")

	for i := range students {
		student := students[i]

		found := -1
		for j := range detections {
			if claimed[j] {
				continue
			}
			if matches(detections[j].FullName, student.FullName) {
				found = j
				break
			}
		}

		if found >= 0 {
			claimed[found] = true
			d := detections[found]
			updated := timeline.Append(student, d.Tone, d.Explanation, d.Confidence, stamp)
			updated.CurrentStatus = d.Tone
			updated.LastSeen = stamp
			out = append(out, updated)
			continue
		}

		updated := timeline.Append(student, model.ToneNotPresent, NotVisibleLabel, 0, stamp)
		updated.CurrentStatus = model.ToneNotPresent
		// lastSeen deliberately untouched for unmatched students
		out = append(out, updated)
	}

	return out
}

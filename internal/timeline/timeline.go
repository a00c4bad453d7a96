// Package timeline maintains each student's bounded classification history
// and derives the percentage statistics shown on the dashboard.
package timeline

import (
	"math"

	"github.com/classwatch/classwatch-go/internal/model"
)

// WindowSize is the maximum number of steps kept in a student's rolling window.
const WindowSize = 20

// Append records one classification step for a student and returns the
// updated student value. The input student is not mutated.
//
// The step index is the lifetime step count, so indices keep increasing even
// after old entries are evicted from the window. The window is truncated to
// the most recent WindowSize entries, oldest dropped silently.
func Append(s model.Student, tone model.Tone, label string, confidence float64, timestamp string) model.Student {
	out := s.Clone()

	out.TotalSteps++
	step := model.TimelineStep{
		Index:      out.TotalSteps,
		Tone:       tone,
		Label:      label,
		Confidence: confidence,
		Timestamp:  timestamp,
	}

	out.Timeline = append(out.Timeline, step)
	if len(out.Timeline) > WindowSize {
		evicted := len(out.Timeline) - WindowSize
		out.Timeline = append(out.Timeline[:0:0], out.Timeline[evicted:]...)
	}

	recomputePercentages(&out)
	return out
}

// recomputePercentages rederives all tone percentages from the current
// window. Each percentage is rounded independently with math.Round (half away
// from zero), so the values are not normalized to sum to 100.
func recomputePercentages(s *model.Student) {
	total := len(s.Timeline)
	if total == 0 {
		total = 1
	}

	counts := map[model.Tone]int{}
	for i := range s.Timeline {
		counts[s.Timeline[i].Tone]++
	}

	pct := func(tone model.Tone) int {
		return int(math.Round(float64(counts[tone]) / float64(total) * 100))
	}

	s.ActivePct = pct(model.ToneActive)
	s.AttentivePct = pct(model.ToneAttentive)
	s.InactivePct = pct(model.ToneInactive)
	s.NotPresentPct = pct(model.ToneNotPresent)
	s.UnknownPct = pct(model.ToneUnknown)
}

package model

import "math"

// LessonQuality buckets the classroom's average attention into a grade.
type LessonQuality string

const (
	QualityExcellent LessonQuality = "Excellent"
	QualityGood      LessonQuality = "Good"
	QualityFair      LessonQuality = "Fair"
	QualityPoor      LessonQuality = "Poor"
)

// ClassroomStats is derived on demand from the roster and never persisted.
type ClassroomStats struct {
	AverageAttention int           `json:"averageAttention"`
	PresentCount     int           `json:"presentCount"`
	TotalStudents    int           `json:"totalStudents"`
	LessonQuality    LessonQuality `json:"lessonQuality"`
}

// ComputeClassroomStats aggregates per-student attention percentages into
// classroom-level statistics. Attention is the sum of the active and
// attentive percentages.
func ComputeClassroomStats(students []Student) ClassroomStats {
	if len(students) == 0 {
		return ClassroomStats{LessonQuality: QualityFair}
	}

	sum := 0
	present := 0
	for i := range students {
		sum += students[i].ActivePct + students[i].AttentivePct
		if students[i].CurrentStatus != ToneNotPresent {
			present++
		}
	}

	avg := float64(sum) / float64(len(students))

	quality := QualityFair
	switch {
	case avg > 75:
		quality = QualityExcellent
	case avg > 50:
		quality = QualityGood
	case avg < 30:
		quality = QualityPoor
	}

	return ClassroomStats{
		AverageAttention: int(math.Round(avg)),
		PresentCount:     present,
		TotalStudents:    len(students),
		LessonQuality:    quality,
	}
}

// Package model defines the core domain types shared across the application.
package model

import (
	"github.com/google/uuid"
)

// Tone is the classification label assigned to a student for one analysis cycle.
type Tone string

const (
	ToneActive     Tone = "active"
	ToneAttentive  Tone = "attentive"
	ToneInactive   Tone = "inactive"
	ToneNotPresent Tone = "not_present"
	// ToneUnknown only occurs before the first analysis cycle.
	ToneUnknown Tone = "unknown"
)

// Valid reports whether t is one of the closed set of tone values.
func (t Tone) Valid() bool {
	switch t {
	case ToneActive, ToneAttentive, ToneInactive, ToneNotPresent, ToneUnknown:
		return true
	}
	return false
}

// DetectionTones are the tone values the recognition service may return.
// The service never reports unknown.
var DetectionTones = []Tone{ToneActive, ToneAttentive, ToneInactive, ToneNotPresent}

// ValidDetectionTone reports whether t may appear in a service detection.
func ValidDetectionTone(t Tone) bool {
	for _, dt := range DetectionTones {
		if t == dt {
			return true
		}
	}
	return false
}

// BoundingBox holds face coordinates normalized to a 0-1000 scale.
type BoundingBox struct {
	YMin float64 `json:"ymin"`
	XMin float64 `json:"xmin"`
	YMax float64 `json:"ymax"`
	XMax float64 `json:"xmax"`
}

// Detection is one raw recognition result for a single cycle. Ephemeral,
// produced by the recognition service and consumed by the reconciler.
type Detection struct {
	FullName    string       `json:"fullName"`
	Tone        Tone         `json:"tone"`
	Explanation string       `json:"explanation"`
	Confidence  float64      `json:"confidence"`
	Box         *BoundingBox `json:"box,omitempty"`
}

// TimelineStep is one classification event in a student's rolling history.
type TimelineStep struct {
	// Index is the 1-based position within the student's lifetime history.
	// It keeps increasing even after old entries are evicted from the window.
	Index      int     `json:"index"`
	Tone       Tone    `json:"tone"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Timestamp  string  `json:"timestamp"`
}

// Student holds identity and rolling classification state for one enrolled student.
type Student struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`

	// ReferenceImages are encoded JPEG blobs used to help the recognition
	// service identify the student. Enrollment enforces 1-5 entries.
	ReferenceImages [][]byte `json:"-"`

	ClassName   string `json:"className,omitempty"`
	LessonName  string `json:"lessonName,omitempty"`
	TeacherName string `json:"teacherName,omitempty"`
	Notes       string `json:"notes,omitempty"`

	CurrentStatus Tone           `json:"currentStatus"`
	Timeline      []TimelineStep `json:"timeline"`

	// TotalSteps counts every step ever appended, across window eviction.
	TotalSteps int `json:"totalSteps"`

	ActivePct     int `json:"activePct"`
	AttentivePct  int `json:"attentivePct"`
	InactivePct   int `json:"inactivePct"`
	NotPresentPct int `json:"notPresentPct"`
	UnknownPct    int `json:"unknownPct"`

	LastSeen string `json:"lastSeen"`
}

// NewStudent creates a freshly enrolled student. Until the first analysis
// cycle the student is fully unknown.
func NewStudent(fullName string, referenceImages [][]byte) Student {
	return Student{
		ID:              uuid.New().String(),
		FullName:        fullName,
		ReferenceImages: referenceImages,
		CurrentStatus:   ToneUnknown,
		Timeline:        []TimelineStep{},
		UnknownPct:      100,
		LastSeen:        "-",
	}
}

// Clone returns a deep copy of the student. Reference images are shared since
// they are immutable after enrollment.
func (s Student) Clone() Student {
	c := s
	c.Timeline = make([]TimelineStep, len(s.Timeline))
	copy(c.Timeline, s.Timeline)
	return c
}

// CloneRoster deep-copies a roster so a caller can hand it out without
// aliasing the internal timeline slices.
func CloneRoster(students []Student) []Student {
	out := make([]Student, len(students))
	for i := range students {
		out[i] = students[i].Clone()
	}
	return out
}

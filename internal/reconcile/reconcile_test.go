package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classwatch/classwatch-go/internal/model"
)

var testNow = time.Date(2026, 3, 10, 10, 15, 0, 0, time.UTC)

func TestReconcile_CaseInsensitiveExactMatch(t *testing.T) {
	roster := []model.Student{model.NewStudent("Aziz Karimov", nil)}
	detections := []model.Detection{
		{FullName: "aziz karimov", Tone: model.ToneActive, Explanation: "answering a question", Confidence: 0.9},
	}

	updated := Reconcile(roster, detections, testNow)

	require.Len(t, updated, 1)
	s := updated[0]
	require.Len(t, s.Timeline, 1)
	assert.Equal(t, model.ToneActive, s.Timeline[0].Tone)
	assert.Equal(t, model.ToneActive, s.CurrentStatus)
	assert.InDelta(t, 0.9, s.Timeline[0].Confidence, 1e-9)
	assert.Equal(t, "10:15:00", s.LastSeen)

	// Percentages after a single matched cycle
	assert.Equal(t, 100, s.ActivePct)
	assert.Equal(t, 0, s.AttentivePct)
	assert.Equal(t, 0, s.InactivePct)
	assert.Equal(t, 0, s.NotPresentPct)
}

func TestReconcile_NoDetections_SynthesizesAbsence(t *testing.T) {
	student := model.NewStudent("Aziz Karimov", nil)
	lastSeenBefore := student.LastSeen

	updated := Reconcile([]model.Student{student}, nil, testNow)

	require.Len(t, updated, 1)
	s := updated[0]
	require.Len(t, s.Timeline, 1)
	assert.Equal(t, model.ToneNotPresent, s.Timeline[0].Tone)
	assert.Equal(t, NotVisibleLabel, s.Timeline[0].Label)
	assert.Zero(t, s.Timeline[0].Confidence)
	assert.Equal(t, model.ToneNotPresent, s.CurrentStatus)
	assert.Equal(t, lastSeenBefore, s.LastSeen)
}

func TestReconcile_ContainmentDirection(t *testing.T) {
	// Detection name containing the student name is a valid fallback match.
	roster := []model.Student{model.NewStudent("Aziz Karimov", nil)}
	detections := []model.Detection{
		{FullName: "Aziz Karimov (front row)", Tone: model.ToneAttentive, Confidence: 0.7},
	}

	updated := Reconcile(roster, detections, testNow)
	assert.Equal(t, model.ToneAttentive, updated[0].CurrentStatus)

	// The reverse direction must be rejected: detection "Karimov" is a
	// substring of the student name, not a superstring.
	reversed := []model.Detection{
		{FullName: "Karimov", Tone: model.ToneActive, Confidence: 0.9},
	}

	updated = Reconcile([]model.Student{model.NewStudent("Aziz Karimov", nil)}, reversed, testNow)
	assert.Equal(t, model.ToneNotPresent, updated[0].CurrentStatus)
}

func TestReconcile_DuplicateDetections_FirstInListWins(t *testing.T) {
	roster := []model.Student{model.NewStudent("Aziz Karimov", nil)}
	detections := []model.Detection{
		{FullName: "Aziz Karimov", Tone: model.ToneInactive, Explanation: "first", Confidence: 0.4},
		{FullName: "Aziz Karimov", Tone: model.ToneActive, Explanation: "second", Confidence: 0.9},
	}

	updated := Reconcile(roster, detections, testNow)

	require.Len(t, updated[0].Timeline, 1)
	assert.Equal(t, model.ToneInactive, updated[0].CurrentStatus)
	assert.Equal(t, "first", updated[0].Timeline[0].Label)
}

func TestReconcile_DetectionClaimedByAtMostOneStudent(t *testing.T) {
	// Both students match the same detection via containment; the
	// first-enrolled student claims it.
	first := model.NewStudent("Ali", nil)
	second := model.NewStudent("Alim", nil)
	detections := []model.Detection{
		{FullName: "Alim Usmonov", Tone: model.ToneActive, Confidence: 0.8},
	}

	updated := Reconcile([]model.Student{first, second}, detections, testNow)

	assert.Equal(t, model.ToneActive, updated[0].CurrentStatus)
	assert.Equal(t, model.ToneNotPresent, updated[1].CurrentStatus)
}

func TestReconcile_MultipleStudents(t *testing.T) {
	roster := []model.Student{
		model.NewStudent("Aziz Karimov", nil),
		model.NewStudent("Malika Yusupova", nil),
		model.NewStudent("Bobur Toshev", nil),
	}
	detections := []model.Detection{
		{FullName: "Malika Yusupova", Tone: model.ToneAttentive, Confidence: 0.85},
		{FullName: "aziz karimov", Tone: model.ToneInactive, Confidence: 0.6},
	}

	updated := Reconcile(roster, detections, testNow)

	assert.Equal(t, model.ToneInactive, updated[0].CurrentStatus)
	assert.Equal(t, model.ToneAttentive, updated[1].CurrentStatus)
	assert.Equal(t, model.ToneNotPresent, updated[2].CurrentStatus)
}

func TestReconcile_DoesNotMutateInput(t *testing.T) {
	roster := []model.Student{model.NewStudent("Aziz Karimov", nil)}

	_ = Reconcile(roster, nil, testNow)

	assert.Empty(t, roster[0].Timeline)
	assert.Equal(t, model.ToneUnknown, roster[0].CurrentStatus)
}

package timeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classwatch/classwatch-go/internal/model"
)

func TestAppend_SingleStep(t *testing.T) {
	s := model.NewStudent("Aziz Karimov", nil)

	s = Append(s, model.ToneActive, "looking at the board", 0.9, "10:15:00")

	require.Len(t, s.Timeline, 1)
	assert.Equal(t, 1, s.Timeline[0].Index)
	assert.Equal(t, model.ToneActive, s.Timeline[0].Tone)
	assert.Equal(t, 100, s.ActivePct)
	assert.Equal(t, 0, s.AttentivePct)
	assert.Equal(t, 0, s.InactivePct)
	assert.Equal(t, 0, s.NotPresentPct)
	assert.Equal(t, 0, s.UnknownPct)
}

func TestAppend_DoesNotMutateInput(t *testing.T) {
	s := model.NewStudent("Aziz Karimov", nil)

	updated := Append(s, model.ToneActive, "x", 0.5, "10:15:00")

	assert.Empty(t, s.Timeline)
	assert.Equal(t, 0, s.TotalSteps)
	assert.Len(t, updated.Timeline, 1)
}

func TestAppend_WindowBoundAndMonotonicIndex(t *testing.T) {
	s := model.NewStudent("Aziz Karimov", nil)

	const cycles = 35
	for i := 0; i < cycles; i++ {
		s = Append(s, model.ToneAttentive, fmt.Sprintf("step %d", i+1), 0.5, "10:15:00")
	}

	require.Len(t, s.Timeline, WindowSize)
	assert.Equal(t, cycles, s.TotalSteps)

	// The window holds the most recent steps in chronological order with
	// consecutive lifetime indices ending at the cycle count.
	for i, step := range s.Timeline {
		assert.Equal(t, cycles-WindowSize+i+1, step.Index)
	}
	assert.Equal(t, cycles, s.Timeline[WindowSize-1].Index)
}

func TestAppend_PercentagesOverWindowOnly(t *testing.T) {
	s := model.NewStudent("Aziz Karimov", nil)

	// Fill the window completely with inactive, then push 20 active steps so
	// every inactive entry is evicted.
	for i := 0; i < WindowSize; i++ {
		s = Append(s, model.ToneInactive, "distracted", 0.5, "10:00:00")
	}
	for i := 0; i < WindowSize; i++ {
		s = Append(s, model.ToneActive, "active", 0.5, "10:05:00")
	}

	assert.Equal(t, 100, s.ActivePct)
	assert.Equal(t, 0, s.InactivePct)
}

func TestAppend_IndependentRounding(t *testing.T) {
	s := model.NewStudent("Aziz Karimov", nil)

	// 3 steps: one of each tone. 1/3 rounds to 33 for each category, so the
	// sum is 99. Independent per-category rounding is intentional.
	s = Append(s, model.ToneActive, "a", 0.5, "t")
	s = Append(s, model.ToneAttentive, "b", 0.5, "t")
	s = Append(s, model.ToneInactive, "c", 0.5, "t")

	assert.Equal(t, 33, s.ActivePct)
	assert.Equal(t, 33, s.AttentivePct)
	assert.Equal(t, 33, s.InactivePct)
	assert.Equal(t, 0, s.NotPresentPct)
	assert.Equal(t, 99, s.ActivePct+s.AttentivePct+s.InactivePct+s.NotPresentPct)
}

func TestAppend_HalfRoundsUp(t *testing.T) {
	s := model.NewStudent("Aziz Karimov", nil)

	// 1 of 8 = 12.5%, math.Round rounds half away from zero -> 13.
	s = Append(s, model.ToneActive, "a", 0.5, "t")
	for i := 0; i < 7; i++ {
		s = Append(s, model.ToneAttentive, "b", 0.5, "t")
	}

	assert.Equal(t, 13, s.ActivePct)
	assert.Equal(t, 88, s.AttentivePct)
}

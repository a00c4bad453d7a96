package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder_Build(t *testing.T) {
	base := fmt.Errorf("credential rejected")

	err := New(base).
		Component("recognizer").
		Category(CategoryAuth).
		Context("status_code", 401).
		Build()

	require.Error(t, err)
	assert.Equal(t, "credential rejected", err.Error())
	assert.Equal(t, "recognizer", err.GetComponent())
	assert.Equal(t, string(CategoryAuth), err.GetCategory())
	assert.Equal(t, 401, err.GetContext()["status_code"])
	assert.False(t, err.GetTimestamp().IsZero())
}

func TestErrorBuilder_DefaultsToGeneric(t *testing.T) {
	err := Newf("something went wrong: %d", 42).Build()

	assert.Equal(t, string(CategoryGeneric), err.GetCategory())
	assert.Equal(t, ComponentUnknown, err.GetComponent())
}

func TestEnhancedError_Unwrap(t *testing.T) {
	base := fmt.Errorf("boom")
	err := New(base).Category(CategoryNetwork).Build()

	assert.True(t, Is(err, base))
	assert.Equal(t, base, Unwrap(err))
}

func TestIsCategory(t *testing.T) {
	err := New(fmt.Errorf("no frame")).
		Component("capture").
		Category(CategoryImageCapture).
		Build()

	assert.True(t, IsCategory(err, CategoryImageCapture))
	assert.False(t, IsCategory(err, CategoryAuth))

	// Wrapped further up the chain
	wrapped := fmt.Errorf("cycle failed: %w", err)
	assert.True(t, IsCategory(wrapped, CategoryImageCapture))
}

type testCategorized struct{ msg string }

func (e *testCategorized) Error() string                { return e.msg }
func (e *testCategorized) ErrorCategory() ErrorCategory { return CategoryAuth }

func TestBuild_HonorsCategorizedError(t *testing.T) {
	err := New(&testCategorized{msg: "unauthorized"}).Build()
	assert.Equal(t, string(CategoryAuth), err.GetCategory())

	// Explicit category wins over the error's own declaration
	overridden := New(&testCategorized{msg: "unauthorized"}).Category(CategoryNetwork).Build()
	assert.Equal(t, string(CategoryNetwork), overridden.GetCategory())
}

func TestGetContext_ReturnsCopy(t *testing.T) {
	err := New(fmt.Errorf("x")).Context("k", "v").Build()

	ctx := err.GetContext()
	ctx["k"] = "mutated"

	assert.Equal(t, "v", err.GetContext()["k"])
}

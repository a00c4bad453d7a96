// Package recognizer wraps the external multimodal recognition service that
// identifies students in classroom frames and classifies their attention.
package recognizer

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/classwatch/classwatch-go/internal/conf"
	"github.com/classwatch/classwatch-go/internal/errors"
	"github.com/classwatch/classwatch-go/internal/logging"
	"github.com/classwatch/classwatch-go/internal/model"
)

// Sentinel errors for the failure conditions the scheduler must tell apart.
var (
	// ErrNoCredential is returned before any network call when no API key is configured.
	ErrNoCredential = stderrors.New("recognition service credential not configured")

	// ErrAuthRejected is returned when the service rejects the configured credential.
	ErrAuthRejected = stderrors.New("recognition service rejected credential")

	// ErrMalformedResponse is returned when the service response fails schema validation.
	ErrMalformedResponse = stderrors.New("recognition service returned malformed response")
)

// IsAuthError reports whether err means the credential is invalid, either
// missing (configuration) or rejected by the service (authentication).
func IsAuthError(err error) bool {
	return stderrors.Is(err, ErrAuthRejected)
}

// Provider analyzes a single classroom frame against the enrolled roster.
//
// Implementations must not mutate the student records; matching results to
// students is the reconciler's job. A nil error with zero detections is a
// legitimate outcome: the service may detect nobody in a frame.
type Provider interface {
	Analyze(ctx context.Context, settings *conf.Settings, frame []byte, students []model.Student) ([]model.Detection, error)
}

// NewProvider selects a recognition provider based on configuration.
func NewProvider(settings *conf.Settings) (Provider, error) {
	switch settings.Recognizer.Provider {
	case "gemini":
		return NewGeminiProvider(), nil
	default:
		return nil, errors.New(fmt.Errorf("invalid recognition provider: %s", settings.Recognizer.Provider)).
			Component("recognizer").
			Category(errors.CategoryConfiguration).
			Context("provider", settings.Recognizer.Provider).
			Build()
	}
}

// serviceLogger returns the package logger, falling back to the default
// logger when logging.Init has not run (tests).
func serviceLogger() *slog.Logger {
	if l := logging.ForService("recognizer"); l != nil {
		return l
	}
	return slog.Default().With("service", "recognizer")
}

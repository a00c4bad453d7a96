// Package capture provides frame acquisition from the classroom camera.
// Sources return one encoded JPEG still per call; streaming is out of scope.
package capture

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/classwatch/classwatch-go/internal/conf"
	"github.com/classwatch/classwatch-go/internal/errors"
)

// ErrPermissionDenied is returned when the camera refuses access. It is a
// device-level condition, independent of the analysis error state.
var ErrPermissionDenied = stderrors.New("camera access denied")

// maxFrameSize bounds how large a single still frame may be.
const maxFrameSize = 16 * 1024 * 1024

// Source supplies still frames on demand.
type Source interface {
	Capture(ctx context.Context) ([]byte, error)
}

// NewSource selects a frame source based on configuration.
func NewSource(settings *conf.Settings) (Source, error) {
	switch settings.Camera.Source {
	case "http":
		return &HTTPSource{
			url:     settings.Camera.SnapshotURL,
			timeout: time.Duration(settings.Camera.Timeout) * time.Second,
			client:  &http.Client{},
		}, nil
	case "file":
		return &FileSource{path: settings.Camera.FilePath}, nil
	default:
		return nil, errors.New(fmt.Errorf("invalid camera source: %s", settings.Camera.Source)).
			Component("capture").
			Category(errors.CategoryConfiguration).
			Context("source", settings.Camera.Source).
			Build()
	}
}

// HTTPSource fetches still frames from an IP-camera style snapshot URL.
type HTTPSource struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

// Capture implements the Source interface for HTTPSource.
func (s *HTTPSource) Capture(ctx context.Context) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, errors.New(fmt.Errorf("error creating snapshot request: %w", err)).
			Component("capture").
			Category(errors.CategoryImageCapture).
			Build()
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.New(fmt.Errorf("error fetching camera snapshot: %w", err)).
			Component("capture").
			Category(errors.CategoryImageCapture).
			NetworkContext(s.url, s.timeout).
			Build()
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.New(fmt.Errorf("%w: status %d", ErrPermissionDenied, resp.StatusCode)).
			Component("capture").
			Category(errors.CategoryImageCapture).
			Context("status_code", resp.StatusCode).
			Build()
	case resp.StatusCode != http.StatusOK:
		return nil, errors.New(fmt.Errorf("camera snapshot returned status %d", resp.StatusCode)).
			Component("capture").
			Category(errors.CategoryImageCapture).
			Context("status_code", resp.StatusCode).
			Build()
	}

	frame, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameSize))
	if err != nil {
		return nil, errors.New(fmt.Errorf("error reading camera snapshot: %w", err)).
			Component("capture").
			Category(errors.CategoryImageCapture).
			Build()
	}
	if len(frame) == 0 {
		return nil, errors.New(fmt.Errorf("camera returned empty frame")).
			Component("capture").
			Category(errors.CategoryImageCapture).
			Build()
	}

	return frame, nil
}

// FileSource reads a frame from a local file. Intended for development and
// testing without a camera.
type FileSource struct {
	path string
}

// Capture implements the Source interface for FileSource.
func (s *FileSource) Capture(_ context.Context) ([]byte, error) {
	frame, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsPermission(err) {
			err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
		}
		return nil, errors.New(fmt.Errorf("error reading frame file: %w", err)).
			Component("capture").
			Category(errors.CategoryImageCapture).
			Context("path", s.path).
			Build()
	}
	if len(frame) == 0 {
		return nil, errors.New(fmt.Errorf("frame file is empty")).
			Component("capture").
			Category(errors.CategoryImageCapture).
			Context("path", s.path).
			Build()
	}
	return frame, nil
}

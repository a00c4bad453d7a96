package api

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classwatch/classwatch-go/internal/conf"
	"github.com/classwatch/classwatch-go/internal/model"
	"github.com/classwatch/classwatch-go/internal/monitor"
)

type fakeSource struct {
	frame []byte
	err   error
}

func (f *fakeSource) Capture(_ context.Context) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.frame, nil
}

type fakeProvider struct {
	detections []model.Detection
	err        error
}

func (f *fakeProvider) Analyze(_ context.Context, _ *conf.Settings, _ []byte, _ []model.Student) ([]model.Detection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.detections, nil
}

func testSettings() *conf.Settings {
	s := &conf.Settings{}
	s.Monitor.Interval = 12
	s.Recognizer.Provider = "gemini"
	s.Recognizer.Timeout = 10
	s.Recognizer.Gemini.APIKey = "test-key"
	return s
}

// newTestController wires a controller against an idle monitor with fakes.
func newTestController(t *testing.T) (*Controller, *monitor.Monitor) {
	t.Helper()
	settings := testSettings()
	mon := monitor.New(settings, &fakeSource{frame: []byte{0xff, 0xd8}}, &fakeProvider{}, nil)
	t.Cleanup(func() { _ = mon.Close() })

	e := echo.New()
	c := New(e, settings, mon, nil)
	return c, mon
}

func doRequest(c *Controller, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func encodedImage() string {
	return base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))
}

func TestEnrollStudent(t *testing.T) {
	c, mon := newTestController(t)

	body := `{"fullName":"Aziz Karimov","className":"7-B","referenceImages":["` + encodedImage() + `"]}`
	rec := doRequest(c, http.MethodPost, "/api/v2/students", body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Aziz Karimov")
	assert.Contains(t, rec.Body.String(), `"unknownPct":100`)
	assert.Contains(t, rec.Body.String(), `"referenceImageCount":1`)
	assert.Len(t, mon.Students(), 1)
}

func TestEnrollStudentValidation(t *testing.T) {
	img := encodedImage()

	tests := []struct {
		name string
		body string
	}{
		{"empty name", `{"fullName":"  ","referenceImages":["` + img + `"]}`},
		{"no images", `{"fullName":"Aziz Karimov","referenceImages":[]}`},
		{"too many images", `{"fullName":"Aziz Karimov","referenceImages":["` + img + `","` + img + `","` + img + `","` + img + `","` + img + `","` + img + `"]}`},
		{"invalid base64", `{"fullName":"Aziz Karimov","referenceImages":["not-base64!!!"]}`},
		{"malformed json", `{"fullName":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mon := newTestController(t)
			rec := doRequest(c, http.MethodPost, "/api/v2/students", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "correlation_id")
			assert.Empty(t, mon.Students())
		})
	}
}

func TestEnrollStudentDataURLPrefix(t *testing.T) {
	c, _ := newTestController(t)

	body := `{"fullName":"Malika Yusupova","referenceImages":["data:image/jpeg;base64,` + encodedImage() + `"]}`
	rec := doRequest(c, http.MethodPost, "/api/v2/students", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestListAndGetStudents(t *testing.T) {
	c, mon := newTestController(t)

	student := model.NewStudent("Aziz Karimov", [][]byte{[]byte("img")})
	mon.AddStudent(student)

	rec := doRequest(c, http.MethodGet, "/api/v2/students", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), student.ID)

	rec = doRequest(c, http.MethodGet, "/api/v2/students/"+student.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Aziz Karimov")

	rec = doRequest(c, http.MethodGet, "/api/v2/students/no-such-id", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteStudent(t *testing.T) {
	c, mon := newTestController(t)

	student := model.NewStudent("Aziz Karimov", [][]byte{[]byte("img")})
	mon.AddStudent(student)

	rec := doRequest(c, http.MethodDelete, "/api/v2/students/"+student.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, mon.Students())

	rec = doRequest(c, http.MethodDelete, "/api/v2/students/"+student.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClassroomStatsEmptyRoster(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v2/classroom/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"lessonQuality":"Fair"`)
	assert.Contains(t, rec.Body.String(), `"totalStudents":0`)
}

func TestClassroomStatsCacheInvalidatedOnEnroll(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v2/classroom/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalStudents":0`)

	body := `{"fullName":"Aziz Karimov","referenceImages":["` + encodedImage() + `"]}`
	rec = doRequest(c, http.MethodPost, "/api/v2/students", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v2/classroom/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalStudents":1`)
}

func TestMonitorStatusIdle(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v2/monitor/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"idle"`)
	assert.Contains(t, rec.Body.String(), `"analyzing":false`)
	assert.Contains(t, rec.Body.String(), `"intervalSeconds":12`)
}

func TestStartMonitorEmptyRoster(t *testing.T) {
	c, mon := newTestController(t)

	rec := doRequest(c, http.MethodPost, "/api/v2/monitor/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, monitor.StateIdle, mon.State())
}

func TestStartAndStopMonitor(t *testing.T) {
	c, mon := newTestController(t)
	mon.AddStudent(model.NewStudent("Aziz Karimov", [][]byte{[]byte("img")}))

	rec := doRequest(c, http.MethodPost, "/api/v2/monitor/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"live"`)
	assert.Equal(t, monitor.StateLive, mon.State())

	// Starting twice is reported as success without a second session.
	rec = doRequest(c, http.MethodPost, "/api/v2/monitor/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already running")

	rec = doRequest(c, http.MethodPost, "/api/v2/monitor/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"idle"`)
	assert.Equal(t, monitor.StateIdle, mon.State())
}

func TestStopMonitorWhenIdle(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodPost, "/api/v2/monitor/stop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRetryCycleWhenIdle(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodPost, "/api/v2/monitor/retry", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRetryCycleWhenLive(t *testing.T) {
	c, mon := newTestController(t)
	mon.AddStudent(model.NewStudent("Aziz Karimov", [][]byte{[]byte("img")}))
	require.NoError(t, mon.Start(context.Background()))
	defer mon.Stop()

	rec := doRequest(c, http.MethodPost, "/api/v2/monitor/retry", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Nil(t, mon.LastError())
}

func TestMonitorFacesAndEvents(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v2/monitor/faces", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = doRequest(c, http.MethodGet, "/api/v2/monitor/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHealthz(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

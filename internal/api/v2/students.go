package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/classwatch/classwatch-go/internal/model"
)

// Enrollment bounds for reference photos per student.
const (
	minReferenceImages = 1
	maxReferenceImages = 5
)

// EnrollStudentRequest is the payload for enrolling a new student.
type EnrollStudentRequest struct {
	FullName    string `json:"fullName"`
	ClassName   string `json:"className"`
	LessonName  string `json:"lessonName"`
	TeacherName string `json:"teacherName"`
	Notes       string `json:"notes"`

	// ReferenceImages are base64-encoded JPEG photos, optionally prefixed
	// with a data URL header as produced by browser file readers.
	ReferenceImages []string `json:"referenceImages"`
}

// StudentResponse augments the student record with its photo count, since
// reference image bytes are never serialized.
type StudentResponse struct {
	model.Student
	ReferenceImageCount int `json:"referenceImageCount"`
}

// initStudentRoutes registers the enrollment and roster endpoints
func (c *Controller) initStudentRoutes() {
	c.Group.GET("/students", c.ListStudents)
	c.Group.GET("/students/:id", c.GetStudent)
	c.Group.POST("/students", c.EnrollStudent)
	c.Group.DELETE("/students/:id", c.DeleteStudent)
}

// ListStudents returns the full roster with rolling timelines and percentages.
func (c *Controller) ListStudents(ctx echo.Context) error {
	students := c.Monitor.Students()
	out := make([]StudentResponse, len(students))
	for i := range students {
		out[i] = toStudentResponse(students[i])
	}
	return ctx.JSON(http.StatusOK, out)
}

// GetStudent returns a single student by id.
func (c *Controller) GetStudent(ctx echo.Context) error {
	id := ctx.Param("id")
	student, ok := c.Monitor.Student(id)
	if !ok {
		return c.HandleError(ctx, nil, fmt.Sprintf("student not found: %s", id), http.StatusNotFound)
	}
	return ctx.JSON(http.StatusOK, toStudentResponse(student))
}

// EnrollStudent validates and enrolls a new student into the roster.
func (c *Controller) EnrollStudent(ctx echo.Context) error {
	var req EnrollStudentRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}

	req.FullName = strings.TrimSpace(req.FullName)
	if req.FullName == "" {
		return c.HandleError(ctx, nil, "fullName must not be empty", http.StatusBadRequest)
	}
	if len(req.ReferenceImages) < minReferenceImages || len(req.ReferenceImages) > maxReferenceImages {
		return c.HandleError(ctx, nil,
			fmt.Sprintf("between %d and %d reference images required, got %d",
				minReferenceImages, maxReferenceImages, len(req.ReferenceImages)),
			http.StatusBadRequest)
	}

	images := make([][]byte, 0, len(req.ReferenceImages))
	for i, img := range req.ReferenceImages {
		data, err := decodeReferenceImage(img)
		if err != nil {
			return c.HandleError(ctx, err,
				fmt.Sprintf("reference image %d is not valid base64 JPEG data", i+1),
				http.StatusBadRequest)
		}
		images = append(images, data)
	}

	student := model.NewStudent(req.FullName, images)
	student.ClassName = req.ClassName
	student.LessonName = req.LessonName
	student.TeacherName = req.TeacherName
	student.Notes = req.Notes

	c.Monitor.AddStudent(student)
	c.invalidateStatsCache()

	if c.apiLogger != nil {
		c.apiLogger.Info("Student enrolled",
			"id", student.ID,
			"reference_images", len(images),
			"ip", ctx.RealIP(),
		)
	}

	return ctx.JSON(http.StatusCreated, toStudentResponse(student))
}

// DeleteStudent removes a student from the roster.
func (c *Controller) DeleteStudent(ctx echo.Context) error {
	id := ctx.Param("id")
	if !c.Monitor.RemoveStudent(id) {
		return c.HandleError(ctx, nil, fmt.Sprintf("student not found: %s", id), http.StatusNotFound)
	}
	c.invalidateStatsCache()

	if c.apiLogger != nil {
		c.apiLogger.Info("Student removed", "id", id, "ip", ctx.RealIP())
	}

	return ctx.NoContent(http.StatusNoContent)
}

// decodeReferenceImage decodes a base64 photo, tolerating a data URL prefix.
func decodeReferenceImage(s string) ([]byte, error) {
	if idx := strings.Index(s, ","); idx != -1 && strings.HasPrefix(s, "data:") {
		s = s[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image payload")
	}
	return data, nil
}

func toStudentResponse(s model.Student) StudentResponse {
	return StudentResponse{
		Student:             s,
		ReferenceImageCount: len(s.ReferenceImages),
	}
}

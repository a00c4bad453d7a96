// gemini.go: Gemini generateContent implementation of the recognition provider.
package recognizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/classwatch/classwatch-go/internal/conf"
	"github.com/classwatch/classwatch-go/internal/errors"
	"github.com/classwatch/classwatch-go/internal/model"
)

const (
	// maxResponseSize bounds how much of the service response is read.
	maxResponseSize = 4 * 1024 * 1024

	frameMimeType = "image/jpeg"
)

// analysisInstruction describes the labeling task for the recognition model.
const analysisInstruction = `You are the high-accuracy face analyst of a classroom monitoring system.
Task: identify the students in the lesson frame and classify the state of each, with bounding box coordinates.

RULES:
1. Recognize students using the labeled reference images only.
2. For each student found, report coordinates as [ymin, xmin, ymax, xmax] normalized to a 0-1000 scale.
3. States: 'active', 'attentive', 'inactive'. If a student is not visible, 'not_present'.
4. Confidence: 0.0 to 1.0.
5. Only return students present in the reference base.

RESPONSE FORMAT: JSON { results: [{ fullName, tone, explanation, confidence, box: { ymin, xmin, ymax, xmax } }] }`

// GeminiProvider calls the generative language REST API for frame analysis.
type GeminiProvider struct {
	client *http.Client
}

// NewGeminiProvider creates a Gemini-backed recognition provider.
func NewGeminiProvider() *GeminiProvider {
	return &GeminiProvider{
		client: &http.Client{},
	}
}

// --- request payload types ---

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string          `json:"response_mime_type"`
	ResponseSchema   json.RawMessage `json:"response_schema"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

// responseSchema constrains the model output to the detection record shape.
var responseSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "results": {
      "type": "ARRAY",
      "items": {
        "type": "OBJECT",
        "properties": {
          "fullName": {"type": "STRING"},
          "tone": {"type": "STRING"},
          "explanation": {"type": "STRING"},
          "confidence": {"type": "NUMBER"},
          "box": {
            "type": "OBJECT",
            "properties": {
              "ymin": {"type": "NUMBER"},
              "xmin": {"type": "NUMBER"},
              "ymax": {"type": "NUMBER"},
              "xmax": {"type": "NUMBER"}
            },
            "required": ["ymin", "xmin", "ymax", "xmax"]
          }
        },
        "required": ["fullName", "tone", "explanation", "confidence"]
      }
    }
  },
  "required": ["results"]
}`)

// --- response payload types ---

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type analysisResult struct {
	Results []struct {
		FullName    string             `json:"fullName"`
		Tone        string             `json:"tone"`
		Explanation string             `json:"explanation"`
		Confidence  float64            `json:"confidence"`
		Box         *model.BoundingBox `json:"box"`
	} `json:"results"`
}

// Analyze implements the Provider interface for GeminiProvider.
//
// It bundles the frame, the task instruction, and one labeled block of
// reference images per student into a single generateContent request and
// parses the schema-constrained JSON response into detection records.
func (p *GeminiProvider) Analyze(ctx context.Context, settings *conf.Settings, frame []byte, students []model.Student) ([]model.Detection, error) {
	logger := serviceLogger()

	apiKey := settings.Recognizer.Gemini.APIKey
	if apiKey == "" {
		return nil, errors.New(ErrNoCredential).
			Component("recognizer").
			Category(errors.CategoryConfiguration).
			Build()
	}

	body, err := json.Marshal(buildRequest(frame, students))
	if err != nil {
		return nil, errors.New(fmt.Errorf("error marshaling analysis request: %w", err)).
			Component("recognizer").
			Category(errors.CategoryGeneric).
			Build()
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(settings.Recognizer.Gemini.Endpoint, "/"),
		settings.Recognizer.Gemini.Model,
	)

	timeout := time.Duration(settings.Recognizer.Timeout) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(fmt.Errorf("error creating analysis request: %w", err)).
			Component("recognizer").
			Category(errors.CategoryGeneric).
			Build()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		logger.Error("Analysis request failed", "model", settings.Recognizer.Gemini.Model, "error", err)
		return nil, errors.New(fmt.Errorf("error calling recognition service: %w", err)).
			Component("recognizer").
			Category(errors.CategoryNetwork).
			NetworkContext(url, timeout).
			Build()
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.New(fmt.Errorf("error reading analysis response: %w", err)).
			Component("recognizer").
			Category(errors.CategoryNetwork).
			Build()
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		logger.Error("Recognition service rejected credential", "status", resp.StatusCode)
		return nil, errors.New(fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode)).
			Component("recognizer").
			Category(errors.CategoryAuth).
			Context("status_code", resp.StatusCode).
			Build()
	case resp.StatusCode != http.StatusOK:
		return nil, errors.New(fmt.Errorf("recognition service returned status %d", resp.StatusCode)).
			Component("recognizer").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Build()
	}

	detections, err := parseAnalysisResponse(raw)
	if err != nil {
		return nil, err
	}

	logger.Debug("Analysis completed",
		"model", settings.Recognizer.Gemini.Model,
		"students", len(students),
		"detections", len(detections),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return detections, nil
}

// buildRequest assembles the generateContent payload: the frame, the task
// instruction, then one labeled reference block per enrolled student.
func buildRequest(frame []byte, students []model.Student) *geminiRequest {
	parts := []geminiPart{
		{InlineData: &geminiInlineData{
			MimeType: frameMimeType,
			Data:     base64.StdEncoding.EncodeToString(frame),
		}},
		{Text: analysisInstruction},
	}

	for i := range students {
		if len(students[i].ReferenceImages) == 0 {
			continue
		}
		parts = append(parts, geminiPart{
			Text: fmt.Sprintf("REFERENCE BASE - Student: %s.", students[i].FullName),
		})
		for _, img := range students[i].ReferenceImages {
			parts = append(parts, geminiPart{
				InlineData: &geminiInlineData{
					MimeType: frameMimeType,
					Data:     base64.StdEncoding.EncodeToString(img),
				},
			})
		}
	}

	return &geminiRequest{
		Contents: []geminiContent{{Parts: parts}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	}
}

// parseAnalysisResponse validates the service response shape and converts it
// into detection records. Any structural problem maps to ErrMalformedResponse.
func parseAnalysisResponse(raw []byte) ([]model.Detection, error) {
	malformed := func(cause string) error {
		return errors.New(fmt.Errorf("%w: %s", ErrMalformedResponse, cause)).
			Component("recognizer").
			Category(errors.CategoryValidation).
			Build()
	}

	var envelope geminiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, malformed("invalid JSON envelope")
	}
	if len(envelope.Candidates) == 0 || len(envelope.Candidates[0].Content.Parts) == 0 {
		return nil, malformed("no candidates in response")
	}

	text := strings.TrimSpace(envelope.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return nil, malformed("empty response text")
	}

	var result analysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, malformed("result is not valid JSON")
	}
	if result.Results == nil {
		return nil, malformed("missing results field")
	}

	detections := make([]model.Detection, 0, len(result.Results))
	for i := range result.Results {
		r := &result.Results[i]

		tone := model.Tone(r.Tone)
		if !model.ValidDetectionTone(tone) {
			return nil, malformed(fmt.Sprintf("invalid tone %q", r.Tone))
		}

		confidence := r.Confidence
		if confidence < 0 {
			confidence = 0
		} else if confidence > 1 {
			confidence = 1
		}

		detections = append(detections, model.Detection{
			FullName:    r.FullName,
			Tone:        tone,
			Explanation: r.Explanation,
			Confidence:  confidence,
			Box:         r.Box,
		})
	}

	return detections, nil
}

package api

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer handles HTML template rendering.
type Renderer struct {
	calibrationTmpl *template.Template
	feedbackTmpl    *template.Template
	errorTmpl       *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	calibrationTmpl, err := template.New("calibration.html").
		ParseFS(templateFS, "templates/calibration.html")
	if err != nil {
		return nil, fmt.Errorf("parse calibration template: %w", err)
	}

	feedbackTmpl, err := template.New("feedback.html").
		ParseFS(templateFS, "templates/feedback.html")
	if err != nil {
		return nil, fmt.Errorf("parse feedback template: %w", err)
	}

	errorTmpl, err := template.New("error.html").
		ParseFS(templateFS, "templates/error.html")
	if err != nil {
		return nil, fmt.Errorf("parse error template: %w", err)
	}

	return &Renderer{
		calibrationTmpl: calibrationTmpl,
		feedbackTmpl:    feedbackTmpl,
		errorTmpl:       errorTmpl,
	}, nil
}

// CalibrationData configures the rating page.
type CalibrationData struct {
	Strategy string
}

// FeedbackData is the confirmation shown after a vote.
type FeedbackData struct {
	Vote          string
	PublicationID string
	WeekStart     string
	WeekEnd       string
}

// ErrorData contains data for rendering error pages.
type ErrorData struct {
	Code    int
	Title   string
	Message string
}

// RenderCalibration renders the rating tool.
func (r *Renderer) RenderCalibration(w io.Writer, data *CalibrationData) error {
	if err := r.calibrationTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute calibration template: %w", err)
	}

	return nil
}

// RenderFeedback renders the vote confirmation.
func (r *Renderer) RenderFeedback(w io.Writer, data *FeedbackData) error {
	if err := r.feedbackTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute feedback template: %w", err)
	}

	return nil
}

// RenderError renders an error page.
func (r *Renderer) RenderError(w io.Writer, data *ErrorData) error {
	if err := r.errorTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute error template: %w", err)
	}

	return nil
}

func setPageHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Robots-Tag", "noindex, nofollow")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "private, no-store")
	w.Header().Set(headerContentType, contentTypeHTML)
}

func (s *Server) renderError(w http.ResponseWriter, code int, title, message string) {
	w.WriteHeader(code)

	if err := s.renderer.RenderError(w, &ErrorData{Code: code, Title: title, Message: message}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to render error page")
	}
}

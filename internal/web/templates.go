// Package web renders the participant-facing pages. Templates are embedded
// so the binary carries everything it needs; the study content (videos)
// stays on disk under the static root.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/preflab/pairwise/internal/study"
)

//go:embed templates/*.html
var templateFS embed.FS

type Templates struct {
	t *template.Template
}

func NewTemplates() (*Templates, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Templates{t: t}, nil
}

// StartData drives the landing page.
type StartData struct {
	NTrials      int
	Metrics      []study.Metric
	Demographics []string
}

// TrialData drives one A/B comparison page.
type TrialData struct {
	TrialIndex  int
	TrialNumber int // 1-based, for display
	NTrials     int
	Left        study.SideSpec
	Right       study.SideSpec
	Metrics     []study.Metric
	ScoreMin    int
	ScoreMax    int
}

// ErrorData drives the generic failure page.
type ErrorData struct {
	Message string
}

func (ts *Templates) RenderStart(w io.Writer, data StartData) error {
	return ts.t.ExecuteTemplate(w, "start.html", data)
}

func (ts *Templates) RenderTrial(w io.Writer, data TrialData) error {
	return ts.t.ExecuteTemplate(w, "trial.html", data)
}

func (ts *Templates) RenderDone(w io.Writer) error {
	return ts.t.ExecuteTemplate(w, "done.html", nil)
}

func (ts *Templates) RenderError(w io.Writer, data ErrorData) error {
	return ts.t.ExecuteTemplate(w, "error.html", data)
}

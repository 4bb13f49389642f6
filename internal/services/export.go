// Package services holds logic shared between the HTTP layer and the CLI
// tooling: CSV export rendering and export authorization.
package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/preflab/pairwise/internal/study"
)

// Format selects the CSV shape of an export.
type Format string

const (
	// FormatWide emits one row per trial with left/right columns per
	// metric. This matches the raw ratings table.
	FormatWide Format = "wide"
	// FormatLong unpivots each trial into two rows, one per side, which is
	// the shape most analysis tooling wants.
	FormatLong Format = "long"
)

// ParseFormat maps a query value to a Format; empty means wide.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", string(FormatWide):
		return FormatWide, nil
	case string(FormatLong):
		return FormatLong, nil
	default:
		return "", study.NewInvalidError(fmt.Sprintf("unsupported export format %q", s))
	}
}

// Exporter streams rating rows as CSV. It writes directly to the supplied
// writer so a full-table export never has to sit in memory.
type Exporter struct {
	w       *csv.Writer
	format  Format
	metrics []study.Metric
	demos   []string
}

func NewExporter(w io.Writer, format Format, metrics []study.Metric, demographics []string) *Exporter {
	return &Exporter{w: csv.NewWriter(w), format: format, metrics: metrics, demos: demographics}
}

// WriteHeader emits the fixed column header. Call once, before any rows.
func (e *Exporter) WriteHeader() error {
	var header []string
	switch e.format {
	case FormatLong:
		header = []string{"participant_id", "created_at_utc", "trial_index", "set_name", "side", "method", "video"}
		for _, m := range e.metrics {
			header = append(header, m.Key)
		}
	default:
		header = []string{"participant_id", "created_at_utc", "trial_index", "set_name", "method_left", "video_left", "method_right", "video_right"}
		for _, m := range e.metrics {
			header = append(header, m.Key+"_left")
		}
		for _, m := range e.metrics {
			header = append(header, m.Key+"_right")
		}
	}
	for _, d := range e.demos {
		header = append(header, "demo_"+d)
	}
	return e.w.Write(header)
}

// WriteRating appends one rating. demo holds the participant's demographic
// answers (may be nil) and is duplicated onto each of their rows.
func (e *Exporter) WriteRating(r *study.Rating, demo map[string]string) error {
	if e.format == FormatLong {
		if err := e.writeSide(r, "left", r.MethodLeft, r.VideoLeft, demo, func(p study.ScorePair) int { return p.Left }); err != nil {
			return err
		}
		return e.writeSide(r, "right", r.MethodRight, r.VideoRight, demo, func(p study.ScorePair) int { return p.Right })
	}

	rec := []string{
		r.ParticipantID,
		r.CreatedAtUTC,
		strconv.Itoa(r.TrialIndex),
		r.SetName,
		r.MethodLeft,
		r.VideoLeft,
		r.MethodRight,
		r.VideoRight,
	}
	for _, m := range e.metrics {
		rec = append(rec, strconv.Itoa(r.Scores[m.Key].Left))
	}
	for _, m := range e.metrics {
		rec = append(rec, strconv.Itoa(r.Scores[m.Key].Right))
	}
	rec = e.appendDemo(rec, demo)
	return e.w.Write(rec)
}

func (e *Exporter) writeSide(r *study.Rating, side, method, video string, demo map[string]string, score func(study.ScorePair) int) error {
	rec := []string{
		r.ParticipantID,
		r.CreatedAtUTC,
		strconv.Itoa(r.TrialIndex),
		r.SetName,
		side,
		method,
		video,
	}
	for _, m := range e.metrics {
		rec = append(rec, strconv.Itoa(score(r.Scores[m.Key])))
	}
	rec = e.appendDemo(rec, demo)
	return e.w.Write(rec)
}

func (e *Exporter) appendDemo(rec []string, demo map[string]string) []string {
	for _, d := range e.demos {
		rec = append(rec, demo[d])
	}
	return rec
}

// Flush drains buffered rows and reports any deferred write error.
func (e *Exporter) Flush() error {
	e.w.Flush()
	return e.w.Error()
}

// ExportFilename names the attachment for a given format and time.
func ExportFilename(format Format, now time.Time) string {
	return fmt.Sprintf("results_%s_%s.csv", format, now.UTC().Format("20060102T150405Z"))
}

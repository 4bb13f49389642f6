package services

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/preflab/pairwise/internal/study"
)

var testMetrics = []study.Metric{
	{Key: "metric_a", Name: "Quality"},
	{Key: "metric_b", Name: "Consistency"},
}

func sampleRating() *study.Rating {
	return &study.Rating{
		ParticipantID: "p1",
		CreatedAtUTC:  "2026-02-01T10:00:00Z",
		TrialIndex:    0,
		SetName:       "seaside",
		MethodLeft:    "method_x",
		MethodRight:   "method_y",
		VideoLeft:     "videos/seaside/method_x/a.mp4",
		VideoRight:    "videos/seaside/method_y/a.mp4",
		Scores: map[string]study.ScorePair{
			"metric_a": {Left: 7, Right: 3},
			"metric_b": {Left: 5, Right: 9},
		},
		SubmittedAt: time.Date(2026, 2, 1, 10, 5, 0, 0, time.UTC),
	}
}

func export(t *testing.T, format Format, demos []string, demo map[string]string) [][]string {
	t.Helper()
	buf := &bytes.Buffer{}
	e := NewExporter(buf, format, testMetrics, demos)
	if err := e.WriteHeader(); err != nil {
		t.Fatalf("header: %v", err)
	}
	if err := e.WriteRating(sampleRating(), demo); err != nil {
		t.Fatalf("rating: %v", err)
	}
	if err := e.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	recs, err := csv.NewReader(buf).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return recs
}

func TestExportWide(t *testing.T) {
	recs := export(t, FormatWide, []string{"age"}, map[string]string{"age": "31"})
	if len(recs) != 2 {
		t.Fatalf("want header + 1 row, got %d records", len(recs))
	}
	wantHeader := "participant_id,created_at_utc,trial_index,set_name,method_left,video_left,method_right,video_right,metric_a_left,metric_b_left,metric_a_right,metric_b_right,demo_age"
	if got := strings.Join(recs[0], ","); got != wantHeader {
		t.Fatalf("header:\n got %s\nwant %s", got, wantHeader)
	}
	row := recs[1]
	if row[0] != "p1" || row[2] != "0" || row[3] != "seaside" {
		t.Fatalf("identity columns wrong: %v", row)
	}
	if row[8] != "7" || row[9] != "5" || row[10] != "3" || row[11] != "9" {
		t.Fatalf("score columns wrong: %v", row)
	}
	if row[12] != "31" {
		t.Fatalf("demographic column wrong: %v", row)
	}
}

func TestExportLong(t *testing.T) {
	recs := export(t, FormatLong, nil, nil)
	if len(recs) != 3 {
		t.Fatalf("want header + 2 side rows, got %d records", len(recs))
	}
	if got := strings.Join(recs[0], ","); got != "participant_id,created_at_utc,trial_index,set_name,side,method,video,metric_a,metric_b" {
		t.Fatalf("header wrong: %s", got)
	}
	left, right := recs[1], recs[2]
	if left[4] != "left" || left[5] != "method_x" || left[7] != "7" || left[8] != "5" {
		t.Fatalf("left row wrong: %v", left)
	}
	if right[4] != "right" || right[5] != "method_y" || right[7] != "3" || right[8] != "9" {
		t.Fatalf("right row wrong: %v", right)
	}
}

func TestExportMissingDemographics(t *testing.T) {
	recs := export(t, FormatWide, []string{"age", "vision"}, nil)
	row := recs[1]
	if row[len(row)-1] != "" || row[len(row)-2] != "" {
		t.Fatalf("missing demographics must render empty, got %v", row)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatWide {
		t.Fatalf("empty: %v %v", f, err)
	}
	if f, err := ParseFormat("long"); err != nil || f != FormatLong {
		t.Fatalf("long: %v %v", f, err)
	}
	if _, err := ParseFormat("pivot"); !study.IsCode(err, study.ErrorInvalid) {
		t.Fatalf("bad format: %v", err)
	}
}

// Package study holds the core of the preference study: trial planning,
// per-participant session state, and the record types the result store
// persists.
package study

import "time"

// Metric is one named rating dimension collected per trial.
type Metric struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Desc string `json:"desc,omitempty"`
}

// SideSpec names the method and the concrete video file rendered on one
// side of a trial.
type SideSpec struct {
	Method string `json:"method"`
	Video  string `json:"video"`
}

// TrialSpec is one planned A/B comparison: a set plus the two sides.
// Left/right assignment is decided at planning time and never recomputed,
// so reloading a trial shows the same layout.
type TrialSpec struct {
	Set   string   `json:"set"`
	Left  SideSpec `json:"left"`
	Right SideSpec `json:"right"`
}

// ScorePair carries the scores a participant gave the two sides for one
// metric. Valid scores are 0..10 inclusive.
type ScorePair struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

const (
	ScoreMin = 0
	ScoreMax = 10
)

// Rating is one persisted trial response. Rows are immutable once written.
// (ParticipantID, CreatedAtUTC, TrialIndex) identifies a row in practice;
// CreatedAtUTC is the session's creation time and disambiguates a
// participant id that shows up again after a reset.
type Rating struct {
	ParticipantID string
	CreatedAtUTC  string
	TrialIndex    int
	SetName       string
	MethodLeft    string
	MethodRight   string
	VideoLeft     string
	VideoRight    string
	Scores        map[string]ScorePair
	SubmittedAt   time.Time
}

// Participant holds the once-per-session demographic answers. Stored
// separately from ratings and joined back in at export time.
type Participant struct {
	ID           string
	CreatedAtUTC string
	Demographics map[string]string
}

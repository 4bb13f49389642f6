package study

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session tracks one participant's progress through their trial plan. The
// plan is generated once at session creation and frozen; only TrialIndex
// and Demographics change afterwards. The web layer persists sessions in
// the store and hands the browser a signed session id.
type Session struct {
	ID            string
	ParticipantID string
	CreatedAt     time.Time
	TrialIndex    int
	Plan          []TrialSpec
	Demographics  map[string]string
}

// NewSession creates a fresh session with a new participant id and a plan
// derived from it. The planning seed comes from the participant id, so a
// given participant's plan is reproducible.
func NewSession(sets map[string]map[string][]string, nTrials int) (*Session, error) {
	pid := strings.ReplaceAll(uuid.NewString(), "-", "")
	plan, err := Plan(sets, nTrials, SeedFor(pid))
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:            uuid.NewString(),
		ParticipantID: pid,
		CreatedAt:     time.Now().UTC(),
		Plan:          plan,
	}, nil
}

// SeedFor derives a stable planning seed from a participant id by reading
// its leading hex digits.
func SeedFor(participantID string) int64 {
	s := participantID
	if len(s) > 8 {
		s = s[:8]
	}
	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		// Non-hex ids still get a stable seed.
		var h int64 = 1469598103934665603
		for i := 0; i < len(participantID); i++ {
			h ^= int64(participantID[i])
			h *= 1099511628211
		}
		return h
	}
	return v
}

// Done reports whether the participant has completed every trial.
func (s *Session) Done() bool { return s.TrialIndex >= len(s.Plan) }

// Current returns the trial to show next. ok is false once the session is
// done.
func (s *Session) Current() (TrialSpec, bool) {
	if s.Done() {
		return TrialSpec{}, false
	}
	return s.Plan[s.TrialIndex], true
}

// Advance moves the session past trial submittedIndex. A submission whose
// index does not match the session's current trial is rejected with a
// stale-submission error and leaves the session untouched; the session is
// the single source of truth for "current trial", so back-navigation and
// double submits cannot append duplicate rows.
func (s *Session) Advance(submittedIndex int) error {
	if s.Done() {
		return NewStaleSubmissionError("study already complete")
	}
	if submittedIndex != s.TrialIndex {
		return NewStaleSubmissionError(fmt.Sprintf("submitted trial %d but current trial is %d", submittedIndex, s.TrialIndex))
	}
	s.TrialIndex++
	return nil
}

// CreatedAtUTC renders the session creation time the way rating rows store
// it.
func (s *Session) CreatedAtUTC() string {
	return s.CreatedAt.UTC().Format(time.RFC3339Nano)
}

// RatingFor builds the persisted row for the given trial spec and scores.
func (s *Session) RatingFor(spec TrialSpec, scores map[string]ScorePair, now time.Time) *Rating {
	return &Rating{
		ParticipantID: s.ParticipantID,
		CreatedAtUTC:  s.CreatedAtUTC(),
		TrialIndex:    s.TrialIndex,
		SetName:       spec.Set,
		MethodLeft:    spec.Left.Method,
		MethodRight:   spec.Right.Method,
		VideoLeft:     spec.Left.Video,
		VideoRight:    spec.Right.Video,
		Scores:        scores,
		SubmittedAt:   now.UTC(),
	}
}

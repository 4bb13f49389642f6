// Package api wires the HTTP surface: session resolution, trial rendering,
// submission handling, and the token-gated CSV export.
package api

import "github.com/preflab/pairwise/internal/study"

// Store persists sessions, participants, and the append-only rating log.
// Ratings are immutable once appended; there is deliberately no update or
// delete. Implementations: the SQLite store in internal/db and the
// in-memory store below used by tests.
type Store interface {
	// PutSession inserts or replaces a session row.
	PutSession(s *study.Session) error
	// GetSession returns nil, nil when the id is unknown.
	GetSession(id string) (*study.Session, error)
	// AdvanceSession bumps the trial index by one, but only if the stored
	// index still equals fromIndex. Returns false when the guard fails,
	// which means the submission raced an earlier one and must be treated
	// as stale.
	AdvanceSession(id string, fromIndex int) (bool, error)

	PutParticipant(p *study.Participant) error
	ListParticipants() ([]*study.Participant, error)

	// AppendRating must be durable before it returns; the HTTP response
	// that confirms a submission is only sent afterwards.
	AppendRating(r *study.Rating) error
	// ForEachRating streams every rating in insertion order.
	ForEachRating(fn func(*study.Rating) error) error
	CountRatings() (int, error)
}

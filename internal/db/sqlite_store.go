// Package db provides the SQLite-backed result store. One logical writer
// appends rating rows; exports read concurrently under WAL without blocking
// writes.
package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/preflab/pairwise/internal/api"
	"github.com/preflab/pairwise/internal/study"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ api.Store = (*SQLiteStore)(nil)

// NewSQLiteStore applies the connection pragmas and runs migrations.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStringMap(ns sql.NullString) map[string]string {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		log.Printf("sqlite store: decode string map: %v", err)
		return nil
	}
	return out
}

func (s *SQLiteStore) PutSession(sess *study.Session) error {
	plan, err := encodeJSON(sess.Plan)
	if err != nil {
		return study.WrapStorageError("encode plan", err)
	}
	var demo sql.NullString
	if len(sess.Demographics) > 0 {
		d, err := encodeJSON(sess.Demographics)
		if err != nil {
			return study.WrapStorageError("encode demographics", err)
		}
		demo = sql.NullString{String: d, Valid: true}
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO sessions
		(id, participant_id, created_at_utc, trial_index, plan_json, demographics_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ParticipantID, sess.CreatedAtUTC(), sess.TrialIndex, plan, demo)
	if err != nil {
		return study.WrapStorageError("insert session", err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(id string) (*study.Session, error) {
	row := s.db.QueryRow(`SELECT id, participant_id, created_at_utc, trial_index, plan_json, demographics_json
		FROM sessions WHERE id = ?`, id)

	var sess study.Session
	var createdAt, planJSON string
	var demo sql.NullString
	err := row.Scan(&sess.ID, &sess.ParticipantID, &createdAt, &sess.TrialIndex, &planJSON, &demo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, study.WrapStorageError("load session", err)
	}
	sess.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, study.WrapStorageError("parse session created_at", err)
	}
	if err := json.Unmarshal([]byte(planJSON), &sess.Plan); err != nil {
		return nil, study.WrapStorageError("decode plan", err)
	}
	sess.Demographics = decodeStringMap(demo)
	return &sess, nil
}

func (s *SQLiteStore) AdvanceSession(id string, fromIndex int) (bool, error) {
	// The WHERE guard makes the advance conditional on the expected index,
	// so a raced duplicate submit cannot move the counter twice.
	res, err := s.db.Exec(`UPDATE sessions SET trial_index = trial_index + 1
		WHERE id = ? AND trial_index = ?`, id, fromIndex)
	if err != nil {
		return false, study.WrapStorageError("advance session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, study.WrapStorageError("advance session", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) PutParticipant(p *study.Participant) error {
	var demo sql.NullString
	if len(p.Demographics) > 0 {
		d, err := encodeJSON(p.Demographics)
		if err != nil {
			return study.WrapStorageError("encode demographics", err)
		}
		demo = sql.NullString{String: d, Valid: true}
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO participants
		(participant_id, created_at_utc, demographics_json) VALUES (?, ?, ?)`,
		p.ID, p.CreatedAtUTC, demo)
	if err != nil {
		return study.WrapStorageError("insert participant", err)
	}
	return nil
}

func (s *SQLiteStore) ListParticipants() ([]*study.Participant, error) {
	rows, err := s.db.Query(`SELECT participant_id, created_at_utc, demographics_json
		FROM participants ORDER BY created_at_utc`)
	if err != nil {
		return nil, study.WrapStorageError("list participants", err)
	}
	defer rows.Close()

	var out []*study.Participant
	for rows.Next() {
		var p study.Participant
		var demo sql.NullString
		if err := rows.Scan(&p.ID, &p.CreatedAtUTC, &demo); err != nil {
			return nil, study.WrapStorageError("scan participant", err)
		}
		p.Demographics = decodeStringMap(demo)
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, study.WrapStorageError("list participants", err)
	}
	return out, nil
}

func (s *SQLiteStore) AppendRating(r *study.Rating) error {
	scores, err := encodeJSON(r.Scores)
	if err != nil {
		return study.WrapStorageError("encode scores", err)
	}
	_, err = s.db.Exec(`INSERT INTO ratings
		(participant_id, created_at_utc, trial_index, set_name,
		 method_left, method_right, video_left, video_right,
		 scores_json, submitted_at_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ParticipantID, r.CreatedAtUTC, r.TrialIndex, r.SetName,
		r.MethodLeft, r.MethodRight, r.VideoLeft, r.VideoRight,
		scores, r.SubmittedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return study.WrapStorageError("insert rating", err)
	}
	return nil
}

func (s *SQLiteStore) ForEachRating(fn func(*study.Rating) error) error {
	// Insertion order via the autoincrement key; the cursor streams rows
	// so a full export never materializes the table in memory.
	rows, err := s.db.Query(`SELECT participant_id, created_at_utc, trial_index, set_name,
		method_left, method_right, video_left, video_right, scores_json, submitted_at_utc
		FROM ratings ORDER BY id`)
	if err != nil {
		return study.WrapStorageError("query ratings", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r study.Rating
		var scoresJSON, submittedAt string
		if err := rows.Scan(&r.ParticipantID, &r.CreatedAtUTC, &r.TrialIndex, &r.SetName,
			&r.MethodLeft, &r.MethodRight, &r.VideoLeft, &r.VideoRight, &scoresJSON, &submittedAt); err != nil {
			return study.WrapStorageError("scan rating", err)
		}
		if err := json.Unmarshal([]byte(scoresJSON), &r.Scores); err != nil {
			return study.WrapStorageError("decode scores", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, submittedAt); err == nil {
			r.SubmittedAt = t
		}
		if err := fn(&r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return study.WrapStorageError("iterate ratings", err)
	}
	return nil
}

func (s *SQLiteStore) CountRatings() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ratings`).Scan(&n); err != nil {
		return 0, study.WrapStorageError("count ratings", err)
	}
	return n, nil
}

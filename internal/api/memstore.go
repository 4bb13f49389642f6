package api

import (
	"sync"

	"github.com/preflab/pairwise/internal/study"
)

// memoryStore is the in-memory Store used by handler and flow tests.
type memoryStore struct {
	mu           sync.RWMutex
	sessions     map[string]*study.Session
	participants []*study.Participant
	ratings      []*study.Rating
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: map[string]*study.Session{}}
}

var _ Store = (*memoryStore)(nil)

func cloneSession(s *study.Session) *study.Session {
	cp := *s
	cp.Plan = append([]study.TrialSpec(nil), s.Plan...)
	if s.Demographics != nil {
		cp.Demographics = make(map[string]string, len(s.Demographics))
		for k, v := range s.Demographics {
			cp.Demographics[k] = v
		}
	}
	return &cp
}

func (s *memoryStore) PutSession(sess *study.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *memoryStore) GetSession(id string) (*study.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := s.sessions[id]
	if sess == nil {
		return nil, nil
	}
	return cloneSession(sess), nil
}

func (s *memoryStore) AdvanceSession(id string, fromIndex int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	if sess == nil || sess.TrialIndex != fromIndex {
		return false, nil
	}
	sess.TrialIndex++
	return true, nil
}

func (s *memoryStore) PutParticipant(p *study.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	if p.Demographics != nil {
		cp.Demographics = make(map[string]string, len(p.Demographics))
		for k, v := range p.Demographics {
			cp.Demographics[k] = v
		}
	}
	s.participants = append(s.participants, &cp)
	return nil
}

func (s *memoryStore) ListParticipants() ([]*study.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*study.Participant(nil), s.participants...), nil
}

func (s *memoryStore) AppendRating(r *study.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	cp.Scores = make(map[string]study.ScorePair, len(r.Scores))
	for k, v := range r.Scores {
		cp.Scores[k] = v
	}
	s.ratings = append(s.ratings, &cp)
	return nil
}

func (s *memoryStore) ForEachRating(fn func(*study.Rating) error) error {
	s.mu.RLock()
	ratings := append([]*study.Rating(nil), s.ratings...)
	s.mu.RUnlock()
	for _, r := range ratings {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryStore) CountRatings() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ratings), nil
}

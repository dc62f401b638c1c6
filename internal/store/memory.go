package store

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/saferoute/internal/model"
)

// MemoryStore is a process-local Store. Feedback is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	feedback []model.Feedback
	cache    map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	exp       model.Explanation
	expiresAt time.Time
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		cache: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

func (s *MemoryStore) Migrate(_ context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) AppendFeedback(_ context.Context, fb model.Feedback) (string, error) {
	fb = stamp(fb)
	fb.Issues = append([]string(nil), fb.Issues...)

	s.mu.Lock()
	s.feedback = append(s.feedback, fb)
	s.mu.Unlock()
	return fb.ID, nil
}

func (s *MemoryStore) ListFeedback(_ context.Context) ([]model.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Feedback, len(s.feedback))
	copy(out, s.feedback)
	return out, nil
}

func (s *MemoryStore) ListFeedbackByRoute(_ context.Context, routeID string) ([]model.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []model.Feedback{}
	for _, fb := range s.feedback {
		if fb.RouteID == routeID {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetCachedExplanation(_ context.Context, key string) (*model.Explanation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.cache[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, nil
	}
	exp := e.exp
	return &exp, nil
}

func (s *MemoryStore) SetCachedExplanation(_ context.Context, key string, exp model.Explanation, ttl time.Duration) error {
	s.mu.Lock()
	s.cache[key] = memoryEntry{exp: exp, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

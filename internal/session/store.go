package session

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"tree-census/internal/metrics"
)

// Store keeps live sessions in memory with a sliding idle expiry.
type Store struct {
	cache *cache.Cache
	log   zerolog.Logger
}

// NewStore expires sessions idle for ttl. onEvict runs for every session that
// leaves the store, whether it expired or was deleted.
func NewStore(ttl time.Duration, log zerolog.Logger, onEvict func(id string)) *Store {
	c := cache.New(ttl, ttl/2)
	s := &Store{cache: c, log: log}
	c.OnEvicted(func(id string, _ interface{}) {
		metrics.SessionsActive.Dec()
		s.log.Debug().Str("session_id", id).Msg("session evicted")
		if onEvict != nil {
			onEvict(id)
		}
	})
	return s
}

// Add registers a new session. It returns false when the id is already taken.
func (s *Store) Add(sess *Session) bool {
	if err := s.cache.Add(sess.ID, sess, cache.DefaultExpiration); err != nil {
		return false
	}
	metrics.SessionsActive.Inc()
	return true
}

// Get returns the session and pushes its expiry forward.
func (s *Store) Get(id string) (*Session, bool) {
	value, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	sess, ok := value.(*Session)
	if !ok {
		return nil, false
	}
	s.cache.Set(id, sess, cache.DefaultExpiration)
	return sess, true
}

func (s *Store) Delete(id string) {
	s.cache.Delete(id)
}

func (s *Store) Count() int {
	return s.cache.ItemCount()
}

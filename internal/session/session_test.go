package session

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tree-census/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	token, err := issuer.Issue("abc", time.Now())
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", claims.SessionID)
}

func TestTokenRejected(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	expired, err := issuer.Issue("abc", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = issuer.Parse(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewTokenIssuer("other", time.Hour).Issue("abc", time.Now())
	require.NoError(t, err)
	_, err = issuer.Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestStoreEviction(t *testing.T) {
	var mu sync.Mutex
	var evicted []string
	store := NewStore(time.Minute, zerolog.Nop(), func(id string) {
		mu.Lock()
		defer mu.Unlock()
		evicted = append(evicted, id)
	})

	sess := New("s1", nil, model.DefaultViewState(model.Viewport{Zoom: 12}), time.Now())
	require.True(t, store.Add(sess))
	assert.False(t, store.Add(sess), "ids are unique")
	assert.Equal(t, 1, store.Count())

	got, ok := store.Get("s1")
	require.True(t, ok)
	assert.Same(t, sess, got)

	store.Delete("s1")
	store.Delete("s1")
	_, ok = store.Get("s1")
	assert.False(t, ok)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"s1"}, evicted)
}

func TestSessionDoSerializes(t *testing.T) {
	sess := New("s1", nil, model.ViewState{}, time.Now())
	assert.NotNil(t, sess.Dataset)
	assert.Empty(t, sess.Records())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Do(func(s *Session) error {
				s.View.Viewport.Zoom++
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, sess.View.Viewport.Zoom)
}

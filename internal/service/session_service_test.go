package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"campuschat/internal/models"
	"campuschat/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionService(store SessionStore) *SessionService {
	return NewSessionService(store, &config.SessionConfig{ContextTurns: 3, TTL: time.Hour}, testLogger())
}

func TestSessionResolve(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	t.Run("empty id starts new session", func(t *testing.T) {
		session, created, err := svc.Resolve(ctx, "", "user-1", "uz")
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, uuid.Nil, session.ID)
		assert.True(t, session.IsActive)
	})

	t.Run("existing id resolves to the same session", func(t *testing.T) {
		session, _, err := svc.Resolve(ctx, "", "user-1", "uz")
		require.NoError(t, err)

		resolved, created, err := svc.Resolve(ctx, session.ID.String(), "", "")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, session.ID, resolved.ID)
	})

	t.Run("unknown id starts fresh", func(t *testing.T) {
		stale := uuid.New()
		session, created, err := svc.Resolve(ctx, stale.String(), "user-1", "ru")
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, stale, session.ID)
		assert.True(t, session.IsActive)
	})

	t.Run("malformed id starts fresh", func(t *testing.T) {
		session, created, err := svc.Resolve(ctx, "not-a-uuid", "user-1", "uz")
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, session.IsActive)
	})

	t.Run("closed session id starts fresh", func(t *testing.T) {
		old, _, err := svc.Resolve(ctx, "", "user-1", "uz")
		require.NoError(t, err)
		require.NoError(t, svc.Close(ctx, old.ID.String()))

		session, created, err := svc.Resolve(ctx, old.ID.String(), "user-1", "uz")
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, old.ID, session.ID)
		assert.True(t, session.IsActive)
	})
}

func TestSessionTurnNumbering(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	session, _, err := svc.Resolve(ctx, "", "user-1", "ru")
	require.NoError(t, err)

	t.Run("sequential turns increment", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			turn, err := svc.AppendTurn(ctx, session, "q", "a", models.TurnMetadata{})
			require.NoError(t, err)
			assert.Equal(t, i, turn.TurnNumber)
		}
	})

	t.Run("concurrent appends never collide", func(t *testing.T) {
		const workers = 10
		var wg sync.WaitGroup
		numbers := make(chan int, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				turn, err := svc.AppendTurn(ctx, session, "q", "a", models.TurnMetadata{})
				if assert.NoError(t, err) {
					numbers <- turn.TurnNumber
				}
			}()
		}
		wg.Wait()
		close(numbers)

		seen := make(map[int]bool)
		for n := range numbers {
			assert.False(t, seen[n], "turn number %d assigned twice", n)
			seen[n] = true
		}
		assert.Len(t, seen, workers)
	})

	t.Run("append to closed session fails", func(t *testing.T) {
		require.NoError(t, svc.Close(ctx, session.ID.String()))
		_, err := svc.AppendTurn(ctx, session, "q", "a", models.TurnMetadata{})
		assert.ErrorIs(t, err, ErrSessionClosed)
	})
}

func TestSessionBuildContext(t *testing.T) {
	store := newFakeSessionStore()
	svc := newSessionService(store)
	ctx := context.Background()

	session, _, err := svc.Resolve(ctx, "", "user-1", "en")
	require.NoError(t, err)

	t.Run("empty for fresh session", func(t *testing.T) {
		history, err := svc.BuildContext(ctx, session)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("keeps only the last turns", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_, err := svc.AppendTurn(ctx, session, "question", "answer", models.TurnMetadata{})
			require.NoError(t, err)
		}

		history, err := svc.BuildContext(ctx, session)
		require.NoError(t, err)
		assert.Contains(t, history, "User: question")
		assert.Contains(t, history, "Assistant: answer")
		// ContextTurns is 3, so at most 3 exchanges appear.
		assert.Equal(t, 3, strings.Count(history, "User:"))
	})
}

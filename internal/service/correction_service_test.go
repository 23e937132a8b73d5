package service

import (
	"context"
	"testing"
	"time"

	"campuschat/internal/index"
	"campuschat/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCorrectionFixture() (*CorrectionService, *fakeCorrectionStore, *fakeCacheStore, *fakeIndex) {
	store := newFakeCorrectionStore()
	cacheStore := newFakeCacheStore()
	cache := NewCacheService(cacheStore, time.Hour, testLogger())
	idx := newFakeIndex()
	return NewCorrectionService(store, cache, idx, testLogger()), store, cacheStore, idx
}

func TestCorrectionCreate(t *testing.T) {
	t.Run("defaults applied", func(t *testing.T) {
		svc, store, _, _ := newCorrectionFixture()

		correction := &models.ManualCorrection{Question: "Qabul qachon?", Answer: "20-iyundan.", Language: "uz", IsActive: true}
		require.NoError(t, svc.Create(context.Background(), correction))

		saved, err := store.GetByID(context.Background(), correction.ID)
		require.NoError(t, err)
		assert.Equal(t, models.MatchExact, saved.MatchRule)
	})

	t.Run("semantic correction gets threshold and vector", func(t *testing.T) {
		svc, _, _, idx := newCorrectionFixture()

		correction := &models.ManualCorrection{
			Question:  "Сколько стоит контракт?",
			Answer:    "Зависит от направления.",
			Language:  "ru",
			MatchRule: models.MatchSemantic,
			IsActive:  true,
		}
		require.NoError(t, svc.Create(context.Background(), correction))

		assert.InDelta(t, DefaultSemanticThreshold, correction.Threshold, 0.01)
		require.Len(t, idx.upserted[index.CollectionCorrections], 1)
		assert.Equal(t, correction.ID.String(), idx.upserted[index.CollectionCorrections][0].ID)
	})

	t.Run("create invalidates language cache", func(t *testing.T) {
		svc, _, cacheStore, _ := newCorrectionFixture()
		cacheStore.entries["ru-answer"] = &models.CachedResponse{
			Fingerprint: "ru-answer",
			Language:    "ru",
			ExpiresAt:   time.Now().Add(time.Hour),
		}

		correction := &models.ManualCorrection{Question: "q", Answer: "a", Language: "ru", IsActive: true}
		require.NoError(t, svc.Create(context.Background(), correction))

		assert.Empty(t, cacheStore.entries)
	})
}

func TestCorrectionMatch(t *testing.T) {
	ctx := context.Background()

	t.Run("exact match wins", func(t *testing.T) {
		svc, _, _, _ := newCorrectionFixture()
		correction := &models.ManualCorrection{Question: "Qabul qachon boshlanadi?", Answer: "20-iyundan.", Language: "uz", IsActive: true}
		require.NoError(t, svc.Create(ctx, correction))

		matched, err := svc.Match(ctx, "qabul qachon boshlanadi?", "uz")
		require.NoError(t, err)
		require.NotNil(t, matched)
		assert.Equal(t, correction.ID, matched.ID)
	})

	t.Run("semantic match above threshold", func(t *testing.T) {
		svc, _, _, idx := newCorrectionFixture()
		correction := &models.ManualCorrection{
			Question:  "Kontrakt narxi qancha?",
			Answer:    "Yo'nalishga bog'liq.",
			Language:  "uz",
			MatchRule: models.MatchSemantic,
			IsActive:  true,
		}
		require.NoError(t, svc.Create(ctx, correction))

		idx.results[index.CollectionCorrections] = []index.Result{{
			ID:         correction.ID.String(),
			Similarity: 0.85,
			Metadata:   map[string]string{"correction_id": correction.ID.String()},
		}}

		matched, err := svc.Match(ctx, "kontrakt qancha turadi", "uz")
		require.NoError(t, err)
		require.NotNil(t, matched)
		assert.Equal(t, correction.Answer, matched.Answer)
	})

	t.Run("semantic match below threshold is ignored", func(t *testing.T) {
		svc, _, _, idx := newCorrectionFixture()
		correction := &models.ManualCorrection{
			Question:  "Kontrakt narxi qancha?",
			Answer:    "Yo'nalishga bog'liq.",
			Language:  "uz",
			MatchRule: models.MatchSemantic,
			IsActive:  true,
		}
		require.NoError(t, svc.Create(ctx, correction))

		idx.results[index.CollectionCorrections] = []index.Result{{
			ID:         correction.ID.String(),
			Similarity: 0.70,
			Metadata:   map[string]string{"correction_id": correction.ID.String()},
		}}

		matched, err := svc.Match(ctx, "stipendiya qancha", "uz")
		require.NoError(t, err)
		assert.Nil(t, matched)
	})

	t.Run("inactive corrections never match", func(t *testing.T) {
		svc, _, _, _ := newCorrectionFixture()
		correction := &models.ManualCorrection{Question: "Savol?", Answer: "Javob.", Language: "uz", IsActive: false}
		require.NoError(t, svc.Create(ctx, correction))

		matched, err := svc.Match(ctx, "savol?", "uz")
		require.NoError(t, err)
		assert.Nil(t, matched)
	})

	t.Run("no corrections at all", func(t *testing.T) {
		svc, _, _, _ := newCorrectionFixture()
		matched, err := svc.Match(ctx, "anything", "en")
		require.NoError(t, err)
		assert.Nil(t, matched)
	})
}

func TestCorrectionUpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("update unknown id", func(t *testing.T) {
		svc, _, _, _ := newCorrectionFixture()
		err := svc.Update(ctx, &models.ManualCorrection{ID: uuid.New(), Question: "q", Answer: "a", Language: "uz"})
		assert.ErrorIs(t, err, ErrCorrectionNotFound)
	})

	t.Run("delete removes vector and flushes cache", func(t *testing.T) {
		svc, _, cacheStore, idx := newCorrectionFixture()
		correction := &models.ManualCorrection{
			Question: "q", Answer: "a", Language: "en",
			MatchRule: models.MatchSemantic, IsActive: true,
		}
		require.NoError(t, svc.Create(ctx, correction))

		cacheStore.entries["en-x"] = &models.CachedResponse{Fingerprint: "en-x", Language: "en", ExpiresAt: time.Now().Add(time.Hour)}

		require.NoError(t, svc.Delete(ctx, correction.ID))
		assert.NotEmpty(t, idx.deleted[index.CollectionCorrections])
		assert.Empty(t, cacheStore.entries)

		err := svc.Delete(ctx, correction.ID)
		assert.ErrorIs(t, err, ErrCorrectionNotFound)
	})
}

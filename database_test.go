package oneiro

import (
	"context"
	"strings"
	"testing"

	"github.com/somnolabs/oneiro/ai/mock"
	"github.com/somnolabs/oneiro/core"
	"github.com/somnolabs/oneiro/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := NewDatabase("",
		WithInMemoryStorage(),
		WithEmbedder(mock.NewMockEmbedder()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabaseSubmit(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	text := strings.Repeat("I dreamed the house kept growing new rooms. ", 5)
	dream, err := db.Submit(ctx, text, 0)
	require.NoError(t, err)
	assert.NotZero(t, dream.Id)
	assert.Equal(t, core.DreamStatusPending, dream.Status)

	job, err := db.JobStore().GetJob(ctx, dream.Id)
	require.NoError(t, err)
	assert.Equal(t, core.JobStatusPending, job.Status)

	// Identical text maps to the same dream; its job is still active.
	_, err = db.Submit(ctx, text, 0)
	assert.ErrorIs(t, err, storage.ErrJobExists)
}

func TestDatabaseEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	text := strings.Repeat("I was falling from a great height into dark water. ", 5)
	require.NoError(t, db.ThemeStore().PutThemes(ctx, core.Theme{
		Code:   "falling",
		Label:  "Falling",
		Vector: mock.DeterministicVector(text, 384),
	}))

	dream, err := db.Submit(ctx, text, 0)
	require.NoError(t, err)

	processor, err := db.NewProcessor(nil)
	require.NoError(t, err)
	require.NoError(t, processor.Process(ctx, dream.Id))

	embeddings, err := db.DreamStore().GetEmbeddings(ctx, dream.Id)
	require.NoError(t, err)
	assert.NotEmpty(t, embeddings)

	matches, err := db.DreamStore().GetThemeMatches(ctx, dream.Id)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "falling", matches[0].Code)
}

func TestDatabaseNewScheduler(t *testing.T) {
	db := newTestDatabase(t)

	scheduler, err := db.NewScheduler(nil)
	require.NoError(t, err)
	scheduler.Release()
}

func TestDatabaseNewRetriever(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)

	require.NoError(t, db.FragmentStore().PutFragments(ctx, &core.Fragment{
		Text:   "Falling dreams often follow a loss of control.",
		Scope:  "symbolism",
		Vector: mock.DeterministicVector("falling", 384),
	}))

	retriever, err := db.NewRetriever(nil)
	require.NoError(t, err)

	result, err := retriever.Retrieve(ctx, "falling and losing control", nil, "symbolism")
	require.NoError(t, err)
	assert.NotEqual(t, "", string(result.Method))
}

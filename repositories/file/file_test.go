package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/site-control-plane/models"
)

func TestStateRepositoryRoundTrip(t *testing.T) {
	repo := NewStateRepository(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	state := models.NewSessionState()
	state.Overrides.Set("theme/color", "red")
	state.Task = models.NewTask(map[string]interface{}{"action": "plan"})
	state.Idempotency["alice:k1"] = models.IdempotencyRecord{
		Key:       "alice:k1",
		Result:    models.PatchResult{Success: true},
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, repo.Save(ctx, "global", state))

	loaded, err := repo.Load(ctx, "global")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	color, ok := loaded.Overrides.Get("theme/color")
	require.True(t, ok)
	assert.Equal(t, "red", color)
	assert.Equal(t, state.Task.ID, loaded.Task.ID)
	assert.Contains(t, loaded.Idempotency, "alice:k1")
}

func TestStateRepositoryAbsentFile(t *testing.T) {
	repo := NewStateRepository(t.TempDir(), zap.NewNop())

	state, err := repo.Load(context.Background(), "global")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateRepositoryKeysAreIsolated(t *testing.T) {
	repo := NewStateRepository(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	a := models.NewSessionState()
	a.Overrides.Set("theme/color", "red")
	require.NoError(t, repo.Save(ctx, "a", a))

	b, err := repo.Load(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestAuditRepositoryAppendLoadTrim(t *testing.T) {
	repo := NewAuditRepository(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		event := models.AuditEvent{Actor: "admin", Action: "patch_apply"}.Normalize()
		require.NoError(t, repo.Append(ctx, event))
	}

	events, err := repo.Load(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	require.NoError(t, repo.Trim(ctx, 2))
	events, err = repo.Load(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestAuditRepositoryEmpty(t *testing.T) {
	repo := NewAuditRepository(t.TempDir(), zap.NewNop())

	events, err := repo.Load(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, repo.Trim(context.Background(), 10))
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/site-control-plane/models"
	"github.com/upb/site-control-plane/services"
	"github.com/upb/site-control-plane/services/audit"
)

// MockStateRepository is a mock implementation of repositories.StateRepository
type MockStateRepository struct {
	mock.Mock
}

func (m *MockStateRepository) Load(ctx context.Context, key string) (*models.SessionState, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionState), args.Error(1)
}

func (m *MockStateRepository) Save(ctx context.Context, key string, state *models.SessionState) error {
	args := m.Called(ctx, key, state)
	return args.Error(0)
}

func testConfig() Config {
	return Config{
		Allowlist:          []string{"theme", "layout", "content"},
		RateLimitThreshold: 30,
		RateLimitWindow:    time.Minute,
	}
}

func newTestActor(t *testing.T, cfg Config) (*Actor, *MockStateRepository) {
	t.Helper()
	states := new(MockStateRepository)
	states.On("Load", mock.Anything, GlobalKey).Return(nil, nil).Once()
	states.On("Save", mock.Anything, GlobalKey, mock.Anything).Return(nil).Maybe()

	sink := audit.NewSink(100, nil, zap.NewNop())
	actor, err := NewActor(context.Background(), GlobalKey, cfg, states, sink, zap.NewNop())
	require.NoError(t, err)
	return actor, states
}

func patchReq(actor, key string, ops ...models.PatchOp) models.PatchRequest {
	return models.PatchRequest{
		Actor:          actor,
		IdempotencyKey: key,
		Route:          "/pages/home",
		Ops:            ops,
	}
}

func TestPatchApplySetsNestedOverride(t *testing.T) {
	actor, _ := newTestActor(t, testConfig())

	result, err := actor.PatchApply(context.Background(),
		patchReq("alice", "k1", models.PatchOp{Op: "set", Path: "theme/color", Value: "red"}))
	require.NoError(t, err)
	assert.True(t, result.Success)

	theme, ok := result.Overrides["theme"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "red", theme["color"])
}

func TestPatchApplyRequiresActorAndKey(t *testing.T) {
	actor, _ := newTestActor(t, testConfig())
	ctx := context.Background()

	_, err := actor.PatchApply(ctx, models.PatchRequest{IdempotencyKey: "k1"})
	assert.True(t, services.IsValidationError(err))

	_, err = actor.PatchApply(ctx, models.PatchRequest{Actor: "alice"})
	assert.True(t, services.IsValidationError(err))
}

func TestPatchApplyIdempotentReplay(t *testing.T) {
	actor, _ := newTestActor(t, testConfig())
	ctx := context.Background()

	first, err := actor.PatchApply(ctx,
		patchReq("alice", "k1", models.PatchOp{Op: "set", Path: "theme/color", Value: "red"}))
	require.NoError(t, err)

	// Same key with different ops must return the cached result, not
	// apply the new value.
	replay, err := actor.PatchApply(ctx,
		patchReq("alice", "k1", models.PatchOp{Op: "set", Path: "theme/color", Value: "blue"}))
	require.NoError(t, err)
	assert.Equal(t, first.Overrides, replay.Overrides)

	color, ok := actor.Snapshot().Get("theme/color")
	require.True(t, ok)
	assert.Equal(t, "red", color)
}

func TestPatchApplyDifferentActorsDoNotShareCache(t *testing.T) {
	actor, _ := newTestActor(t, testConfig())
	ctx := context.Background()

	_, err := actor.PatchApply(ctx,
		patchReq("alice", "k1", models.PatchOp{Op: "set", Path: "theme/color", Value: "red"}))
	require.NoError(t, err)

	_, err = actor.PatchApply(ctx,
		patchReq("bob", "k1", models.PatchOp{Op: "set", Path: "theme/color", Value: "blue"}))
	require.NoError(t, err)

	color, _ := actor.Snapshot().Get("theme/color")
	assert.Equal(t, "blue", color)
}

func TestPatchApplyDisallowedPathMutatesNothing(t *testing.T) {
	actor, states := newTestActor(t, testConfig())

	_, err := actor.PatchApply(context.Background(),
		patchReq("alice", "k1",
			models.PatchOp{Op: "set", Path: "theme/color", Value: "red"},
			models.PatchOp{Op: "set", Path: "../secrets", Value: "x"}))
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	assert.Equal(t, "../secrets", services.GetErrorDetails(err)["path"])

	_, ok := actor.Snapshot().Get("theme/color")
	assert.False(t, ok, "no op from a rejected batch may be applied")
	states.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

func TestPatchApplyRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitThreshold = 2
	actor, _ := newTestActor(t, cfg)
	ctx := context.Background()

	_, err := actor.PatchApply(ctx, patchReq("alice", "k1",
		models.PatchOp{Op: "set", Path: "theme/a", Value: 1}))
	require.NoError(t, err)

	_, err = actor.PatchApply(ctx, patchReq("alice", "k2",
		models.PatchOp{Op: "set", Path: "theme/b", Value: 2}))
	require.NoError(t, err)

	_, err = actor.PatchApply(ctx, patchReq("alice", "k3",
		models.PatchOp{Op: "set", Path: "theme/c", Value: 3}))
	require.Error(t, err)
	assert.True(t, services.IsRateLimitError(err))

	// A different actor has its own window.
	_, err = actor.PatchApply(ctx, patchReq("bob", "k1",
		models.PatchOp{Op: "set", Path: "theme/d", Value: 4}))
	assert.NoError(t, err)
}

func TestPatchApplyPersistenceFailure(t *testing.T) {
	states := new(MockStateRepository)
	states.On("Load", mock.Anything, GlobalKey).Return(nil, nil).Once()
	states.On("Save", mock.Anything, GlobalKey, mock.Anything).Return(errors.New("disk full"))

	sink := audit.NewSink(100, nil, zap.NewNop())
	actor, err := NewActor(context.Background(), GlobalKey, testConfig(), states, sink, zap.NewNop())
	require.NoError(t, err)

	_, err = actor.PatchApply(context.Background(),
		patchReq("alice", "k1", models.PatchOp{Op: "set", Path: "theme/color", Value: "red"}))
	require.Error(t, err)
	assert.True(t, services.IsInternalError(err))

	// Failed persist must not leave the override or a cached result behind.
	_, ok := actor.Snapshot().Get("theme/color")
	assert.False(t, ok)
	assert.Equal(t, 0, sink.Len())
}

func TestPatchApplyIdempotencyEviction(t *testing.T) {
	cfg := testConfig()
	cfg.IdempotencyMaxEntries = 2
	actor, _ := newTestActor(t, cfg)
	ctx := context.Background()

	for _, key := range []string{"k1", "k2", "k3"} {
		_, err := actor.PatchApply(ctx, patchReq("alice", key,
			models.PatchOp{Op: "set", Path: "theme/color", Value: key}))
		require.NoError(t, err)
	}

	// k1 was evicted, so its replay applies afresh.
	result, err := actor.PatchApply(ctx, patchReq("alice", "k1",
		models.PatchOp{Op: "set", Path: "theme/color", Value: "fresh"}))
	require.NoError(t, err)

	theme := result.Overrides["theme"].(map[string]interface{})
	assert.Equal(t, "fresh", theme["color"])
}

func TestNewActorBlocksOnLoadFailure(t *testing.T) {
	states := new(MockStateRepository)
	states.On("Load", mock.Anything, GlobalKey).Return(nil, errors.New("backend down"))

	sink := audit.NewSink(100, nil, zap.NewNop())
	_, err := NewActor(context.Background(), GlobalKey, testConfig(), states, sink, zap.NewNop())
	require.Error(t, err)
	assert.True(t, services.IsInternalError(err))
}

func TestNewActorRestoresExistingState(t *testing.T) {
	existing := models.NewSessionState()
	existing.Overrides.Set("theme/color", "green")

	states := new(MockStateRepository)
	states.On("Load", mock.Anything, GlobalKey).Return(existing, nil).Once()

	sink := audit.NewSink(100, nil, zap.NewNop())
	actor, err := NewActor(context.Background(), GlobalKey, testConfig(), states, sink, zap.NewNop())
	require.NoError(t, err)

	color, ok := actor.Snapshot().Get("theme/color")
	require.True(t, ok)
	assert.Equal(t, "green", color)
}

func TestExecuteStoresTaskAndStatusReads(t *testing.T) {
	actor, _ := newTestActor(t, testConfig())
	ctx := context.Background()

	response, err := actor.Execute(ctx, ActionPlan, map[string]interface{}{"page": "home"})
	require.NoError(t, err)
	assert.Equal(t, true, response["ok"])

	task, ok := response["task"].(*models.Task)
	require.True(t, ok)
	assert.Equal(t, ActionPlan, task.Payload["action"])

	status, err := actor.Execute(ctx, ActionStatus, nil)
	require.NoError(t, err)
	statusTask, ok := status["task"].(*models.Task)
	require.True(t, ok)
	assert.Equal(t, task.ID, statusTask.ID)
}

func TestExecuteRejectsUnknownAction(t *testing.T) {
	actor, states := newTestActor(t, testConfig())

	_, err := actor.Execute(context.Background(), "format_disk", nil)
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	states.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
}

package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/site-control-plane/models"
)

func TestStateRepositoryLoad(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns nil when no row exists", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT snapshot FROM control_plane_state").
			WithArgs("global").
			WillReturnRows(sqlmock.NewRows([]string{"snapshot"}))

		repo := NewStateRepository(db, logger)
		state, err := repo.Load(context.Background(), "global")
		require.NoError(t, err)
		assert.Nil(t, state)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("decodes snapshot", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		snapshot := models.NewSessionState()
		snapshot.Overrides.Set("theme/color", "red")
		raw, err := json.Marshal(snapshot)
		require.NoError(t, err)

		mock.ExpectQuery("SELECT snapshot FROM control_plane_state").
			WithArgs("global").
			WillReturnRows(sqlmock.NewRows([]string{"snapshot"}).AddRow(raw))

		repo := NewStateRepository(db, logger)
		state, err := repo.Load(context.Background(), "global")
		require.NoError(t, err)
		require.NotNil(t, state)

		color, ok := state.Overrides.Get("theme/color")
		require.True(t, ok)
		assert.Equal(t, "red", color)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStateRepositorySave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO control_plane_state").
		WithArgs("global", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewStateRepository(db, zap.NewNop())
	state := models.NewSessionState()
	state.Overrides.Set("theme/color", "blue")

	require.NoError(t, repo.Save(context.Background(), "global", state))
	assert.NoError(t, mock.ExpectationsWereMet())
}

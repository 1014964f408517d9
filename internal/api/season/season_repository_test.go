package season

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimind/farm-assist/internal/types"
)

func newMockRepo(t *testing.T) (*PostgresSeasonRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)
	return NewPostgresSeasonRepo(mockPool, slog.Default()), mockPool
}

func seasonRows(s *types.CropSeason) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "crop_type", "start_date", "expected_harvest_date", "actual_harvest_date",
		"current_phase", "phase_updated_at", "health_score", "notes", "created_at", "updated_at",
	}).AddRow(
		s.ID, s.UserID, s.CropType, s.StartDate, s.ExpectedHarvestDate, s.ActualHarvestDate,
		s.CurrentPhase, s.PhaseUpdatedAt, s.HealthScore, s.Notes, s.CreatedAt, s.UpdatedAt,
	)
}

func TestPostgresSeasonRepo_Get(t *testing.T) {
	t.Run("returns season", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		want := &types.CropSeason{
			ID:        uuid.New(),
			UserID:    uuid.New(),
			CropType:  "rice",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		mockPool.ExpectQuery(`(?s)SELECT .+ FROM crop_seasons WHERE id = \$1`).
			WithArgs(want.ID).
			WillReturnRows(seasonRows(want))

		got, err := repo.Get(context.Background(), want.ID)

		require.NoError(t, err)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, "rice", got.CropType)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("maps missing row to ErrNotFound", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		seasonID := uuid.New()
		mockPool.ExpectQuery(`(?s)SELECT .+ FROM crop_seasons WHERE id = \$1`).
			WithArgs(seasonID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.Get(context.Background(), seasonID)

		assert.ErrorIs(t, err, types.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPostgresSeasonRepo_Create(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	userID := uuid.New()
	params := types.CreateSeasonParams{CropType: "wheat", Notes: "north field"}
	created := &types.CropSeason{
		ID:       uuid.New(),
		UserID:   userID,
		CropType: "wheat",
		Notes:    "north field",
	}

	mockPool.ExpectQuery(`INSERT INTO crop_seasons`).
		WithArgs(userID, params.CropType, params.StartDate, params.ExpectedHarvestDate, params.Notes).
		WillReturnRows(seasonRows(created))

	got, err := repo.Create(context.Background(), userID, params)

	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresSeasonRepo_SetPhase(t *testing.T) {
	repo, mockPool := newMockRepo(t)

	seasonID := uuid.New()
	at := time.Now()
	mockPool.ExpectExec(`UPDATE crop_seasons SET current_phase = \$1, phase_updated_at = \$2, updated_at = \$2 WHERE id = \$3`).
		WithArgs(types.PhaseHarvest, at, seasonID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.SetPhase(context.Background(), seasonID, types.PhaseHarvest, at)

	require.NoError(t, err)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresSeasonRepo_Update(t *testing.T) {
	t.Run("builds SET clause from provided fields only", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		seasonID := uuid.New()
		health := 85
		mockPool.ExpectExec(`UPDATE crop_seasons SET health_score = \$1, updated_at = \$2 WHERE id = \$3`).
			WithArgs(health, pgxmock.AnyArg(), seasonID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.Update(context.Background(), seasonID, types.UpdateSeasonParams{HealthScore: &health})

		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("no fields is a no-op", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		err := repo.Update(context.Background(), uuid.New(), types.UpdateSeasonParams{})

		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("zero rows affected means not found", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		seasonID := uuid.New()
		notes := "gone"
		mockPool.ExpectExec(`UPDATE crop_seasons SET notes = \$1, updated_at = \$2 WHERE id = \$3`).
			WithArgs(notes, pgxmock.AnyArg(), seasonID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(context.Background(), seasonID, types.UpdateSeasonParams{Notes: &notes})

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestPostgresSeasonRepo_Delete(t *testing.T) {
	t.Run("deletes season", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		seasonID := uuid.New()
		mockPool.ExpectExec(`DELETE FROM crop_seasons WHERE id = \$1`).
			WithArgs(seasonID).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		err := repo.Delete(context.Background(), seasonID)

		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("missing season is ErrNotFound", func(t *testing.T) {
		repo, mockPool := newMockRepo(t)

		seasonID := uuid.New()
		mockPool.ExpectExec(`DELETE FROM crop_seasons WHERE id = \$1`).
			WithArgs(seasonID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := repo.Delete(context.Background(), seasonID)

		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

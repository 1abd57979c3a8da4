package repository

import (
	"context"
	"testing"

	"anoa.com/forumkarma/internal/entity"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&entity.Vote{}))
	return db
}

func castVote(t *testing.T, db *gorm.DB, repo VoteRepository, targetID uuid.UUID, targetKind string, voterID uuid.UUID, value int) VoteOutcome {
	t.Helper()

	var outcome VoteOutcome
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		outcome, txErr = repo.CastVote(context.Background(), tx, targetID, targetKind, voterID, value)
		return txErr
	})
	require.NoError(t, err)
	return outcome
}

func TestCastVote_TransitionTable(t *testing.T) {
	tests := []struct {
		name      string
		first     int // 0 means no prior vote
		requested int
		wantState int
		wantDelta int
	}{
		{"empty to up", 0, entity.VoteUp, entity.VoteUp, 1},
		{"empty to down", 0, entity.VoteDown, entity.VoteDown, -1},
		{"up toggles off", entity.VoteUp, entity.VoteUp, 0, -1},
		{"up flips down", entity.VoteUp, entity.VoteDown, entity.VoteDown, -2},
		{"down toggles off", entity.VoteDown, entity.VoteDown, 0, 1},
		{"down flips up", entity.VoteDown, entity.VoteUp, entity.VoteUp, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			repo := NewVoteRepository(db)
			targetID, voterID := uuid.New(), uuid.New()

			if tt.first != 0 {
				castVote(t, db, repo, targetID, entity.TargetPost, voterID, tt.first)
			}

			outcome := castVote(t, db, repo, targetID, entity.TargetPost, voterID, tt.requested)

			assert.Equal(t, tt.wantState, outcome.State)
			assert.Equal(t, tt.wantDelta, outcome.Delta)
		})
	}
}

func TestCastVote_ToggleOffDeletesRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepository(db)
	targetID, voterID := uuid.New(), uuid.New()

	castVote(t, db, repo, targetID, entity.TargetPost, voterID, entity.VoteUp)
	castVote(t, db, repo, targetID, entity.TargetPost, voterID, entity.VoteUp)

	var count int64
	require.NoError(t, db.Model(&entity.Vote{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "removed vote must leave no row behind")
}

func TestCastVote_OneSlotPerTargetKind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepository(db)
	targetID, voterID := uuid.New(), uuid.New()

	// The same id under different kinds is two independent slots.
	castVote(t, db, repo, targetID, entity.TargetPost, voterID, entity.VoteUp)
	outcome := castVote(t, db, repo, targetID, entity.TargetComment, voterID, entity.VoteDown)

	assert.Equal(t, entity.VoteDown, outcome.State)

	var count int64
	require.NoError(t, db.Model(&entity.Vote{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestCastVote_RepeatedFlipsNeverDuplicateRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepository(db)
	targetID, voterID := uuid.New(), uuid.New()

	castVote(t, db, repo, targetID, entity.TargetPost, voterID, entity.VoteUp)
	castVote(t, db, repo, targetID, entity.TargetPost, voterID, entity.VoteDown)
	castVote(t, db, repo, targetID, entity.TargetPost, voterID, entity.VoteUp)

	var count int64
	require.NoError(t, db.Model(&entity.Vote{}).
		Where("target_id = ? AND voter_id = ?", targetID, voterID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestVoterState(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepository(db)
	targetID, voterID := uuid.New(), uuid.New()

	state, err := repo.VoterState(context.Background(), targetID, entity.TargetPost, voterID)
	require.NoError(t, err)
	assert.Equal(t, 0, state)

	castVote(t, db, repo, targetID, entity.TargetPost, voterID, entity.VoteDown)

	state, err = repo.VoterState(context.Background(), targetID, entity.TargetPost, voterID)
	require.NoError(t, err)
	assert.Equal(t, entity.VoteDown, state)
}

func TestTallies(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVoteRepository(db)
	targetID := uuid.New()

	for i := 0; i < 3; i++ {
		castVote(t, db, repo, targetID, entity.TargetPost, uuid.New(), entity.VoteUp)
	}
	castVote(t, db, repo, targetID, entity.TargetPost, uuid.New(), entity.VoteDown)

	up, down, err := repo.Tallies(context.Background(), targetID, entity.TargetPost)
	require.NoError(t, err)
	assert.Equal(t, int64(3), up)
	assert.Equal(t, int64(1), down)
}

package repository

import (
	"context"
	"sync"
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

	// A single connection serializes concurrent access the way a row
	// lock would on postgres, while still exercising the atomic SQL.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&entity.User{},
		&entity.Post{},
		&entity.Comment{},
		&entity.Vote{},
		&entity.KarmaLedger{},
	))
	return db
}

func applyDelta(t *testing.T, db *gorm.DB, repo KarmaRepository, userID uuid.UUID, category string, delta int) *entity.KarmaLedger {
	t.Helper()

	var ledger *entity.KarmaLedger
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		ledger, txErr = repo.ApplyDelta(context.Background(), tx, userID, category, delta)
		return txErr
	})
	require.NoError(t, err)
	return ledger
}

func assertLedgerEquation(t *testing.T, ledger *entity.KarmaLedger) {
	t.Helper()
	assert.Equal(t, ledger.PostKarma+ledger.CommentKarma+ledger.AwardKarma, ledger.TotalKarma,
		"total karma must equal the sum of its categories")
}

func TestApplyDelta_CreatesLedgerOnFirstTouch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)
	userID := uuid.New()

	ledger := applyDelta(t, db, repo, userID, entity.CategoryPost, 1)

	assert.Equal(t, 1, ledger.PostKarma)
	assert.Equal(t, 0, ledger.CommentKarma)
	assert.Equal(t, 0, ledger.AwardKarma)
	assert.Equal(t, 1, ledger.TotalKarma)
	assertLedgerEquation(t, ledger)
}

func TestApplyDelta_AccumulatesAcrossCategories(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)
	userID := uuid.New()

	applyDelta(t, db, repo, userID, entity.CategoryPost, 3)
	applyDelta(t, db, repo, userID, entity.CategoryComment, -1)
	ledger := applyDelta(t, db, repo, userID, entity.CategoryAward, 5)

	assert.Equal(t, 3, ledger.PostKarma)
	assert.Equal(t, -1, ledger.CommentKarma)
	assert.Equal(t, 5, ledger.AwardKarma)
	assert.Equal(t, 7, ledger.TotalKarma)
	assertLedgerEquation(t, ledger)
}

func TestApplyDelta_ClampsTotalAtFloor(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)
	userID := uuid.New()

	ledger := applyDelta(t, db, repo, userID, entity.CategoryPost, -150)

	assert.Equal(t, entity.KarmaFloor, ledger.TotalKarma)
	// The breach is absorbed by the category that caused it.
	assert.Equal(t, entity.KarmaFloor, ledger.PostKarma)
	assertLedgerEquation(t, ledger)
}

func TestApplyDelta_ClampAdjustsTouchedCategoryOnly(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)
	userID := uuid.New()

	applyDelta(t, db, repo, userID, entity.CategoryPost, 10)
	ledger := applyDelta(t, db, repo, userID, entity.CategoryComment, -120)

	assert.Equal(t, entity.KarmaFloor, ledger.TotalKarma)
	assert.Equal(t, 10, ledger.PostKarma, "untouched category must keep its value")
	assert.Equal(t, entity.KarmaFloor-10, ledger.CommentKarma)
	assertLedgerEquation(t, ledger)
}

func TestApplyDelta_AtFloorFurtherDownvotesAreAbsorbed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)
	userID := uuid.New()

	applyDelta(t, db, repo, userID, entity.CategoryPost, -99)
	ledger := applyDelta(t, db, repo, userID, entity.CategoryPost, -1)

	assert.Equal(t, entity.KarmaFloor, ledger.TotalKarma)
	assert.Equal(t, entity.KarmaFloor, ledger.PostKarma)

	// An upvote still lifts the total off the floor.
	ledger = applyDelta(t, db, repo, userID, entity.CategoryPost, 1)
	assert.Equal(t, entity.KarmaFloor+1, ledger.TotalKarma)
	assertLedgerEquation(t, ledger)
}

func TestApplyDelta_RejectsUnknownCategory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, txErr := repo.ApplyDelta(context.Background(), tx, uuid.New(), "shadow", 1)
		return txErr
	})
	require.Error(t, err)
}

func TestApplyDelta_ConcurrentDeltasAllLand(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)
	userID := uuid.New()

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			err := db.Transaction(func(tx *gorm.DB) error {
				_, txErr := repo.ApplyDelta(context.Background(), tx, userID, entity.CategoryPost, 1)
				return txErr
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ledger, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, workers, ledger.PostKarma, "every concurrent delta must be reflected exactly once")
	assert.Equal(t, workers, ledger.TotalKarma)
	assertLedgerEquation(t, ledger)
}

func TestGet_ReturnsZeroSnapshotForUntouchedUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)
	userID := uuid.New()

	ledger, err := repo.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, ledger.UserID)
	assert.Equal(t, 0, ledger.TotalKarma)
}

func TestOverwrite_PreservesAwardKarma(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)
	userID := uuid.New()

	applyDelta(t, db, repo, userID, entity.CategoryAward, 7)
	applyDelta(t, db, repo, userID, entity.CategoryPost, 3)

	var ledger *entity.KarmaLedger
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		ledger, txErr = repo.Overwrite(context.Background(), tx, userID, 5, -2)
		return txErr
	})
	require.NoError(t, err)

	assert.Equal(t, 5, ledger.PostKarma)
	assert.Equal(t, -2, ledger.CommentKarma)
	assert.Equal(t, 7, ledger.AwardKarma)
	assert.Equal(t, 10, ledger.TotalKarma)
	assertLedgerEquation(t, ledger)
}

func TestOverwrite_ClampsAtFloor(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)
	userID := uuid.New()

	var ledger *entity.KarmaLedger
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		ledger, txErr = repo.Overwrite(context.Background(), tx, userID, -200, -10)
		return txErr
	})
	require.NoError(t, err)

	assert.Equal(t, entity.KarmaFloor, ledger.TotalKarma)
	// The more negative category absorbs the excess.
	assert.Equal(t, -10, ledger.CommentKarma)
	assert.Equal(t, entity.KarmaFloor+10, ledger.PostKarma)
	assertLedgerEquation(t, ledger)
}

func TestSumVotesForAuthor_SplitsByTargetKind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewKarmaRepository(db)

	author := entity.User{Username: "author"}
	require.NoError(t, db.Create(&author).Error)

	post := entity.Post{AuthorID: author.ID}
	require.NoError(t, db.Create(&post).Error)
	comment := entity.Comment{PostID: post.ID, AuthorID: author.ID}
	require.NoError(t, db.Create(&comment).Error)

	votes := []entity.Vote{
		{TargetID: post.ID, TargetKind: entity.TargetPost, VoterID: uuid.New(), Value: entity.VoteUp},
		{TargetID: post.ID, TargetKind: entity.TargetPost, VoterID: uuid.New(), Value: entity.VoteUp},
		{TargetID: post.ID, TargetKind: entity.TargetPost, VoterID: uuid.New(), Value: entity.VoteDown},
		{TargetID: comment.ID, TargetKind: entity.TargetComment, VoterID: uuid.New(), Value: entity.VoteDown},
	}
	for i := range votes {
		require.NoError(t, db.Create(&votes[i]).Error)
	}

	var postSum, commentSum int
	err := db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		postSum, commentSum, txErr = repo.SumVotesForAuthor(context.Background(), tx, author.ID)
		return txErr
	})
	require.NoError(t, err)

	assert.Equal(t, 1, postSum)
	assert.Equal(t, -1, commentSum)
}

package repository

import (
	"context"
	"fmt"

	"anoa.com/forumkarma/internal/entity"
	"anoa.com/forumkarma/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KarmaRepository owns every write to the karma_ledgers table. Deltas
// and overwrites are single UPDATE statements so concurrent calls for
// the same user serialize on the row inside the database instead of
// racing in application code.
type KarmaRepository interface {
	// ApplyDelta adds delta to one category and the total in a single
	// atomic statement, clamping the total at entity.KarmaFloor by
	// absorbing the excess into the touched category. The ledger row is
	// created on first touch.
	ApplyDelta(ctx context.Context, tx *gorm.DB, userID uuid.UUID, category string, delta int) (*entity.KarmaLedger, error)
	// Get returns the user's ledger, or a zero snapshot when no vote
	// has ever touched them.
	Get(ctx context.Context, userID uuid.UUID) (*entity.KarmaLedger, error)
	// LockLedger creates the ledger row if needed and locks it for the
	// rest of the transaction. A recompute must take this lock before
	// scanning the vote rows: an in-flight delta for the same user then
	// either commits before the scan and is counted, or blocks until
	// the overwrite commits and lands on top of it.
	LockLedger(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
	// SumVotesForAuthor aggregates the authoritative vote rows for
	// everything the user authored, split by target kind.
	SumVotesForAuthor(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (postSum int, commentSum int, err error)
	// Overwrite replaces post and comment karma with freshly computed
	// sums in one statement, preserving the stored award karma and
	// re-deriving the clamped total from it.
	Overwrite(ctx context.Context, tx *gorm.DB, userID uuid.UUID, postSum, commentSum int) (*entity.KarmaLedger, error)
	// LedgerUserIDs lists every user with a ledger row.
	LedgerUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

type karmaRepository struct {
	db *gorm.DB
}

func NewKarmaRepository(db *gorm.DB) KarmaRepository {
	return &karmaRepository{db: db}
}

func categoryColumn(category string) (string, error) {
	switch category {
	case entity.CategoryPost:
		return "post_karma", nil
	case entity.CategoryComment:
		return "comment_karma", nil
	case entity.CategoryAward:
		return "award_karma", nil
	default:
		return "", fmt.Errorf("%w: unknown karma category %q", apperror.ErrInvalidInput, category)
	}
}

// ensureRow lazily creates the zero ledger row. ON CONFLICT DO NOTHING
// keeps concurrent first touches from erroring out.
func (r *karmaRepository) ensureRow(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&entity.KarmaLedger{UserID: userID}).Error
}

func (r *karmaRepository) ApplyDelta(ctx context.Context, tx *gorm.DB, userID uuid.UUID, category string, delta int) (*entity.KarmaLedger, error) {
	column, err := categoryColumn(category)
	if err != nil {
		return nil, err
	}

	if err := r.ensureRow(ctx, tx, userID); err != nil {
		return nil, err
	}

	// Both columns move in one statement evaluated against the same
	// row version, so no interleaving can observe total != sum of
	// categories or drop a concurrent delta. When the new total would
	// sink below the floor, the excess is taken back out of the
	// category being touched, keeping the ledger equation exact at the
	// boundary.
	res := tx.WithContext(ctx).
		Model(&entity.KarmaLedger{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			column: gorm.Expr(
				column+" + ? - (CASE WHEN total_karma + ? < ? THEN total_karma + ? - ? ELSE 0 END)",
				delta, delta, entity.KarmaFloor, delta, entity.KarmaFloor,
			),
			"total_karma": gorm.Expr(
				"CASE WHEN total_karma + ? < ? THEN ? ELSE total_karma + ? END",
				delta, entity.KarmaFloor, entity.KarmaFloor, delta,
			),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperror.ErrConflict
	}

	var ledger entity.KarmaLedger
	if err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&ledger).Error; err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (r *karmaRepository) Get(ctx context.Context, userID uuid.UUID) (*entity.KarmaLedger, error) {
	var ledgers []entity.KarmaLedger
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&ledgers).Error
	if err != nil {
		return nil, err
	}
	if len(ledgers) == 0 {
		return &entity.KarmaLedger{UserID: userID}, nil
	}
	return &ledgers[0], nil
}

func (r *karmaRepository) LockLedger(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	if err := r.ensureRow(ctx, tx, userID); err != nil {
		return err
	}

	q := tx.WithContext(ctx).Model(&entity.KarmaLedger{})
	// sqlite has no FOR UPDATE; its single-writer transaction lock
	// already serializes the scan-and-overwrite window.
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var ledger entity.KarmaLedger
	return q.Where("user_id = ?", userID).First(&ledger).Error
}

func (r *karmaRepository) SumVotesForAuthor(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, int, error) {
	var postSum, commentSum int

	err := tx.WithContext(ctx).
		Model(&entity.Vote{}).
		Select("COALESCE(SUM(votes.value), 0)").
		Joins("JOIN posts ON posts.id = votes.target_id AND votes.target_kind = ?", entity.TargetPost).
		Where("posts.author_id = ?", userID).
		Scan(&postSum).Error
	if err != nil {
		return 0, 0, err
	}

	err = tx.WithContext(ctx).
		Model(&entity.Vote{}).
		Select("COALESCE(SUM(votes.value), 0)").
		Joins("JOIN comments ON comments.id = votes.target_id AND votes.target_kind = ?", entity.TargetComment).
		Where("comments.author_id = ?", userID).
		Scan(&commentSum).Error
	if err != nil {
		return 0, 0, err
	}

	return postSum, commentSum, nil
}

func (r *karmaRepository) Overwrite(ctx context.Context, tx *gorm.DB, userID uuid.UUID, postSum, commentSum int) (*entity.KarmaLedger, error) {
	if err := r.ensureRow(ctx, tx, userID); err != nil {
		return nil, err
	}

	floor := entity.KarmaFloor

	// Award karma has no producer in the vote path, so it is read from
	// the row inside the statement rather than fetched beforehand: a
	// concurrent award delta cannot be clobbered by a stale read. When
	// the recomputed total breaches the floor, the excess is absorbed
	// by the more negative of the two recomputed categories (post wins
	// ties).
	absorbPost := "? + ? + award_karma < ? AND ? <= ?"
	absorbComment := "? + ? + award_karma < ? AND ? > ?"

	res := tx.WithContext(ctx).
		Model(&entity.KarmaLedger{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"post_karma": gorm.Expr(
				"? - (CASE WHEN "+absorbPost+" THEN ? + ? + award_karma - ? ELSE 0 END)",
				postSum, postSum, commentSum, floor, postSum, commentSum, postSum, commentSum, floor,
			),
			"comment_karma": gorm.Expr(
				"? - (CASE WHEN "+absorbComment+" THEN ? + ? + award_karma - ? ELSE 0 END)",
				commentSum, postSum, commentSum, floor, postSum, commentSum, postSum, commentSum, floor,
			),
			"total_karma": gorm.Expr(
				"CASE WHEN ? + ? + award_karma < ? THEN ? ELSE ? + ? + award_karma END",
				postSum, commentSum, floor, floor, postSum, commentSum,
			),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	var ledger entity.KarmaLedger
	if err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&ledger).Error; err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (r *karmaRepository) LedgerUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&entity.KarmaLedger{}).
		Pluck("user_id", &ids).Error
	return ids, err
}

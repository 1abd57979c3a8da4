package repository

import (
	"context"

	"anoa.com/forumkarma/internal/entity"
	"anoa.com/forumkarma/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteOutcome is the result of one cast: the state the slot ended up in
// and the signed karma delta owed to the target's author.
type VoteOutcome struct {
	// State is entity.VoteUp, entity.VoteDown, or 0 when the vote was
	// removed.
	State int
	Delta int
}

type VoteRepository interface {
	// CastVote applies one vote intent inside the given transaction.
	// The slot's unique index is the arbiter for concurrent casts; a
	// concurrent modification of an existing slot surfaces as
	// apperror.ErrConflict and is retried by the service.
	CastVote(ctx context.Context, tx *gorm.DB, targetID uuid.UUID, targetKind string, voterID uuid.UUID, value int) (VoteOutcome, error)
	// VoterState returns the voter's current slot value for a target
	// (0 when no vote exists).
	VoterState(ctx context.Context, targetID uuid.UUID, targetKind string, voterID uuid.UUID) (int, error)
	// Tallies returns the up and down vote counts for a target.
	Tallies(ctx context.Context, targetID uuid.UUID, targetKind string) (up int64, down int64, err error)
}

type voteRepository struct {
	db *gorm.DB
}

func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db}
}

func (r *voteRepository) CastVote(ctx context.Context, tx *gorm.DB, targetID uuid.UUID, targetKind string, voterID uuid.UUID, value int) (VoteOutcome, error) {
	vote := entity.Vote{
		TargetID:   targetID,
		TargetKind: targetKind,
		VoterID:    voterID,
		Value:      value,
	}

	// First try to claim the empty slot. ON CONFLICT DO NOTHING makes
	// the unique index decide the duplicate-cast race: exactly one of
	// two concurrent first votes inserts, the other falls through to
	// the transition path below.
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "target_id"}, {Name: "target_kind"}, {Name: "voter_id"},
			},
			DoNothing: true,
		}).
		Create(&vote)
	if res.Error != nil {
		return VoteOutcome{}, res.Error
	}
	if res.RowsAffected == 1 {
		// empty -> up (+1) or empty -> down (-1)
		return VoteOutcome{State: value, Delta: value}, nil
	}

	// Slot occupied: read the current value, then transition with a
	// conditional write. The WHERE value = old guard turns a lost race
	// into zero rows affected instead of a double-applied delta.
	var existing []entity.Vote
	err := tx.WithContext(ctx).
		Where("target_id = ? AND target_kind = ? AND voter_id = ?", targetID, targetKind, voterID).
		Limit(1).
		Find(&existing).Error
	if err != nil {
		return VoteOutcome{}, err
	}
	if len(existing) == 0 {
		// Row vanished between insert attempt and read (concurrent
		// toggle-off committed in between). Retryable.
		return VoteOutcome{}, apperror.ErrConflict
	}

	old := existing[0]
	if old.Value == value {
		// Same direction again: toggle off, refund the old vote.
		res = tx.WithContext(ctx).
			Where("id = ? AND value = ?", old.ID, old.Value).
			Delete(&entity.Vote{})
		if res.Error != nil {
			return VoteOutcome{}, res.Error
		}
		if res.RowsAffected == 0 {
			return VoteOutcome{}, apperror.ErrConflict
		}
		return VoteOutcome{State: 0, Delta: -old.Value}, nil
	}

	// Opposite direction: flip. The author loses the old vote and
	// gains the new one, hence the doubled delta.
	res = tx.WithContext(ctx).
		Model(&entity.Vote{}).
		Where("id = ? AND value = ?", old.ID, old.Value).
		Update("value", value)
	if res.Error != nil {
		return VoteOutcome{}, res.Error
	}
	if res.RowsAffected == 0 {
		return VoteOutcome{}, apperror.ErrConflict
	}
	return VoteOutcome{State: value, Delta: 2 * value}, nil
}

func (r *voteRepository) VoterState(ctx context.Context, targetID uuid.UUID, targetKind string, voterID uuid.UUID) (int, error) {
	var votes []entity.Vote
	err := r.db.WithContext(ctx).
		Where("target_id = ? AND target_kind = ? AND voter_id = ?", targetID, targetKind, voterID).
		Limit(1).
		Find(&votes).Error
	if err != nil {
		return 0, err
	}
	if len(votes) == 0 {
		return 0, nil
	}
	return votes[0].Value, nil
}

func (r *voteRepository) Tallies(ctx context.Context, targetID uuid.UUID, targetKind string) (int64, int64, error) {
	type result struct {
		Value int
		Count int64
	}
	var results []result

	err := r.db.WithContext(ctx).
		Model(&entity.Vote{}).
		Select("value, count(*) as count").
		Where("target_id = ? AND target_kind = ?", targetID, targetKind).
		Group("value").
		Scan(&results).Error
	if err != nil {
		return 0, 0, err
	}

	var up, down int64
	for _, res := range results {
		switch res.Value {
		case entity.VoteUp:
			up = res.Count
		case entity.VoteDown:
			down = res.Count
		}
	}
	return up, down, nil
}

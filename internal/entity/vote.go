package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vote values. The stored integer doubles as the per-vote karma
// contribution, so summing the column reproduces a user's score.
const (
	VoteUp   = 1
	VoteDown = -1
)

// Target kinds a vote can attach to.
const (
	TargetPost    = "post"
	TargetComment = "comment"
)

// Vote is one voter's current opinion on one target. The composite
// unique index is the arbiter for duplicate casts: at most one row per
// (target, kind, voter) slot, and absence of a row means "no vote".
// Toggling a vote off deletes the row outright, never soft-deletes it.
type Vote struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TargetID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_slot,priority:1;index:idx_votes_target,priority:1" json:"target_id"`
	TargetKind string    `gorm:"size:20;not null;uniqueIndex:idx_votes_slot,priority:2;index:idx_votes_target,priority:2" json:"target_kind"` // 'post', 'comment'
	VoterID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_slot,priority:3" json:"voter_id"`
	Value      int       `gorm:"not null" json:"value"` // VoteUp or VoteDown
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (v *Vote) TableName() string {
	return "votes"
}

func (v *Vote) BeforeCreate(tx *gorm.DB) (err error) {
	if v.ID == uuid.Nil {
		v.ID, err = uuid.NewV7()
	}
	return
}

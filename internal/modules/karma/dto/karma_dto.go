package dto

import (
	"anoa.com/forumkarma/internal/entity"
	"github.com/google/uuid"
)

type KarmaSnapshot struct {
	UserID       uuid.UUID `json:"user_id"`
	PostKarma    int       `json:"post_karma"`
	CommentKarma int       `json:"comment_karma"`
	AwardKarma   int       `json:"award_karma"`
	TotalKarma   int       `json:"total_karma"`
}

func SnapshotFromLedger(ledger *entity.KarmaLedger) *KarmaSnapshot {
	return &KarmaSnapshot{
		UserID:       ledger.UserID,
		PostKarma:    ledger.PostKarma,
		CommentKarma: ledger.CommentKarma,
		AwardKarma:   ledger.AwardKarma,
		TotalKarma:   ledger.TotalKarma,
	}
}

package entity

import (
	"time"

	"github.com/google/uuid"
)

// Karma categories.
const (
	CategoryPost    = "post"
	CategoryComment = "comment"
	CategoryAward   = "award"
)

// KarmaFloor is the lowest total karma a user can be driven to by
// downvotes. Individual categories may sit below it on paper.
const KarmaFloor = -99

// KarmaLedger is the per-user karma aggregate. Rows are created lazily
// on the first delta touching a user and never deleted. All writes go
// through the karma repository; TotalKarma always equals the sum of the
// three categories after a committed operation.
type KarmaLedger struct {
	UserID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	PostKarma    int       `gorm:"not null;default:0" json:"post_karma"`
	CommentKarma int       `gorm:"not null;default:0" json:"comment_karma"`
	AwardKarma   int       `gorm:"not null;default:0" json:"award_karma"`
	TotalKarma   int       `gorm:"not null;default:0" json:"total_karma"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (k *KarmaLedger) TableName() string {
	return "karma_ledgers"
}

// CategoryForTarget maps a vote target kind to the karma category the
// target's author earns in.
func CategoryForTarget(targetKind string) string {
	if targetKind == TargetComment {
		return CategoryComment
	}
	return CategoryPost
}

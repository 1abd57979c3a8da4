package dto

import "github.com/google/uuid"

type VoteRequest struct {
	TargetID   uuid.UUID `json:"target_id" binding:"required"`
	TargetKind string    `json:"target_kind" binding:"required,oneof=post comment"`
	Direction  string    `json:"direction" binding:"required,oneof=up down"`
}

// VoteResult reports where the voter's slot landed. State is "up",
// "down", or null when the vote was toggled off.
type VoteResult struct {
	State    *string   `json:"state"`
	AuthorID uuid.UUID `json:"author_id"`
}

type VoteStatusResponse struct {
	State     *string `json:"state"`
	Upvotes   int64   `json:"upvotes"`
	Downvotes int64   `json:"downvotes"`
}

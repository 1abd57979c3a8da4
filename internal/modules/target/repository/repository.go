package repository

import (
	"context"
	"fmt"

	"anoa.com/forumkarma/internal/entity"
	"anoa.com/forumkarma/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TargetRepository resolves the voteable entities (posts and comments)
// for the vote service. It is read-only context: vote and karma writes
// never touch these tables.
type TargetRepository interface {
	Exists(ctx context.Context, targetID uuid.UUID, targetKind string) (bool, error)
	// AuthorOf returns the author of the target, or
	// apperror.ErrNotFound when the target does not exist.
	AuthorOf(ctx context.Context, targetID uuid.UUID, targetKind string) (uuid.UUID, error)
}

type targetRepository struct {
	db *gorm.DB
}

func NewTargetRepository(db *gorm.DB) TargetRepository {
	return &targetRepository{db: db}
}

func modelFor(targetKind string) (interface{}, error) {
	switch targetKind {
	case entity.TargetPost:
		return &entity.Post{}, nil
	case entity.TargetComment:
		return &entity.Comment{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown target kind %q", apperror.ErrInvalidInput, targetKind)
	}
}

func (r *targetRepository) Exists(ctx context.Context, targetID uuid.UUID, targetKind string) (bool, error) {
	model, err := modelFor(targetKind)
	if err != nil {
		return false, err
	}

	var count int64
	err = r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", targetID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *targetRepository) AuthorOf(ctx context.Context, targetID uuid.UUID, targetKind string) (uuid.UUID, error) {
	model, err := modelFor(targetKind)
	if err != nil {
		return uuid.Nil, err
	}

	var authorIDs []uuid.UUID
	err = r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", targetID).
		Limit(1).
		Pluck("author_id", &authorIDs).Error
	if err != nil {
		return uuid.Nil, err
	}
	if len(authorIDs) == 0 {
		return uuid.Nil, apperror.ErrNotFound
	}
	return authorIDs[0], nil
}

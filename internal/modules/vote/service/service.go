package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/forumkarma/internal/entity"
	auditService "anoa.com/forumkarma/internal/modules/audit/service"
	karmaRepo "anoa.com/forumkarma/internal/modules/karma/repository"
	targetRepo "anoa.com/forumkarma/internal/modules/target/repository"
	voteDto "anoa.com/forumkarma/internal/modules/vote/dto"
	voteRepo "anoa.com/forumkarma/internal/modules/vote/repository"
	"anoa.com/forumkarma/pkg/apperror"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// How many times the vote transaction is retried in-process before the
// failure is reported as storage trouble.
const maxVoteAttempts = 3

type VoteService interface {
	Vote(ctx context.Context, voterID uuid.UUID, req voteDto.VoteRequest) (*voteDto.VoteResult, error)
	Status(ctx context.Context, voterID *uuid.UUID, targetID uuid.UUID, targetKind string) (*voteDto.VoteStatusResponse, error)
}

type voteService struct {
	db          *gorm.DB
	votes       voteRepo.VoteRepository
	karma       karmaRepo.KarmaRepository
	targets     targetRepo.TargetRepository
	audit       auditService.AuditService
	rateLimiter *RateLimiter
}

func NewVoteService(db *gorm.DB, votes voteRepo.VoteRepository, karma karmaRepo.KarmaRepository, targets targetRepo.TargetRepository, audit auditService.AuditService, rateLimiter *RateLimiter) VoteService {
	return &voteService{
		db:          db,
		votes:       votes,
		karma:       karma,
		targets:     targets,
		audit:       audit,
		rateLimiter: rateLimiter,
	}
}

func directionValue(direction string) int {
	if direction == "down" {
		return entity.VoteDown
	}
	return entity.VoteUp
}

func stateString(state int) *string {
	var s string
	switch state {
	case entity.VoteUp:
		s = "up"
	case entity.VoteDown:
		s = "down"
	default:
		return nil
	}
	return &s
}

func (s *voteService) Vote(ctx context.Context, voterID uuid.UUID, req voteDto.VoteRequest) (*voteDto.VoteResult, error) {
	if s.rateLimiter != nil {
		allowed, err := s.rateLimiter.Allow(ctx, voterID, "vote")
		if err != nil {
			// Limiter trouble should not take voting down with it.
			log.WithError(err).Warn("vote rate limit check failed, allowing")
		} else if !allowed {
			return nil, apperror.ErrRateLimitExceeded
		}
	}

	// Self-voting is intentionally permitted.
	authorID, err := s.targets.AuthorOf(ctx, req.TargetID, req.TargetKind)
	if err != nil {
		return nil, err
	}

	value := directionValue(req.Direction)
	category := entity.CategoryForTarget(req.TargetKind)

	// The slot transition and the author's karma delta commit or roll
	// back together; a request that dies mid-flight leaves no partial
	// delta behind. Conflicts from concurrent casts on the same slot
	// re-run the whole transaction.
	var outcome voteRepo.VoteOutcome
	var lastErr error
	for attempt := 1; attempt <= maxVoteAttempts; attempt++ {
		lastErr = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var txErr error
			outcome, txErr = s.votes.CastVote(ctx, tx, req.TargetID, req.TargetKind, voterID, value)
			if txErr != nil {
				return txErr
			}
			if outcome.Delta == 0 {
				return nil
			}
			_, txErr = s.karma.ApplyDelta(ctx, tx, authorID, category, outcome.Delta)
			return txErr
		})
		if lastErr == nil {
			break
		}
		if errors.Is(lastErr, apperror.ErrNotFound) || errors.Is(lastErr, apperror.ErrInvalidInput) {
			return nil, lastErr
		}
		if attempt < maxVoteAttempts {
			// A caller that gave up must not wait out the backoff.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 25 * time.Millisecond):
			}
		}
	}
	if lastErr != nil {
		log.WithError(lastErr).WithFields(log.Fields{
			"target_id":   req.TargetID,
			"target_kind": req.TargetKind,
			"voter_id":    voterID,
		}).Error("vote transaction failed after retries")
		return nil, fmt.Errorf("%w: %v", apperror.ErrStorageUnavailable, lastErr)
	}

	if s.audit != nil {
		s.audit.Record(voterID, "vote.cast", req.TargetID.String(),
			fmt.Sprintf("kind=%s direction=%s delta=%+d", req.TargetKind, req.Direction, outcome.Delta))
	}

	return &voteDto.VoteResult{
		State:    stateString(outcome.State),
		AuthorID: authorID,
	}, nil
}

func (s *voteService) Status(ctx context.Context, voterID *uuid.UUID, targetID uuid.UUID, targetKind string) (*voteDto.VoteStatusResponse, error) {
	exists, err := s.targets.Exists(ctx, targetID, targetKind)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.ErrNotFound
	}

	up, down, err := s.votes.Tallies(ctx, targetID, targetKind)
	if err != nil {
		return nil, err
	}

	resp := &voteDto.VoteStatusResponse{Upvotes: up, Downvotes: down}
	if voterID != nil {
		state, err := s.votes.VoterState(ctx, targetID, targetKind, *voterID)
		if err != nil {
			return nil, err
		}
		resp.State = stateString(state)
	}
	return resp, nil
}

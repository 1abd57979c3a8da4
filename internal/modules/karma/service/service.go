package service

import (
	"context"
	"fmt"

	auditService "anoa.com/forumkarma/internal/modules/audit/service"
	karmaDto "anoa.com/forumkarma/internal/modules/karma/dto"
	karmaRepo "anoa.com/forumkarma/internal/modules/karma/repository"
	userRepo "anoa.com/forumkarma/internal/modules/user/repository"
	"anoa.com/forumkarma/pkg/apperror"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type KarmaService interface {
	GetKarma(ctx context.Context, userID uuid.UUID) (*karmaDto.KarmaSnapshot, error)
	// Recompute rebuilds the user's ledger from the authoritative vote
	// rows. actorID is who asked for it (uuid.Nil for the background
	// sweep) and is only used for the audit trail.
	Recompute(ctx context.Context, actorID, userID uuid.UUID) (*karmaDto.KarmaSnapshot, error)
	// ReconcileAll recomputes every ledger in turn. Drift repair, run
	// out of band.
	ReconcileAll(ctx context.Context) error
}

type karmaService struct {
	db    *gorm.DB
	karma karmaRepo.KarmaRepository
	users userRepo.UserRepository
	audit auditService.AuditService
}

func NewKarmaService(db *gorm.DB, karma karmaRepo.KarmaRepository, users userRepo.UserRepository, audit auditService.AuditService) KarmaService {
	return &karmaService{db: db, karma: karma, users: users, audit: audit}
}

func (s *karmaService) GetKarma(ctx context.Context, userID uuid.UUID) (*karmaDto.KarmaSnapshot, error) {
	exists, err := s.users.Exists(ctx, userID.String())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.ErrNotFound
	}

	ledger, err := s.karma.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return karmaDto.SnapshotFromLedger(ledger), nil
}

func (s *karmaService) Recompute(ctx context.Context, actorID, userID uuid.UUID) (*karmaDto.KarmaSnapshot, error) {
	exists, err := s.users.Exists(ctx, userID.String())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.ErrNotFound
	}

	// The ledger row is locked before the vote scan. Without the lock a
	// vote committing between scan and overwrite would have its delta
	// erased by sums taken from the pre-vote snapshot; holding the row
	// forces such a delta to either commit first (and be counted by the
	// scan) or wait out the overwrite (and land on top of it).
	var snapshot *karmaDto.KarmaSnapshot
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if txErr := s.karma.LockLedger(ctx, tx, userID); txErr != nil {
			return txErr
		}
		postSum, commentSum, txErr := s.karma.SumVotesForAuthor(ctx, tx, userID)
		if txErr != nil {
			return txErr
		}
		ledger, txErr := s.karma.Overwrite(ctx, tx, userID, postSum, commentSum)
		if txErr != nil {
			return txErr
		}
		snapshot = karmaDto.SnapshotFromLedger(ledger)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.audit != nil && actorID != uuid.Nil {
		s.audit.Record(actorID, "karma.recalculate", userID.String(),
			fmt.Sprintf("total=%d post=%d comment=%d", snapshot.TotalKarma, snapshot.PostKarma, snapshot.CommentKarma))
	}

	return snapshot, nil
}

func (s *karmaService) ReconcileAll(ctx context.Context) error {
	ids, err := s.karma.LedgerUserIDs(ctx)
	if err != nil {
		return err
	}

	var failed int
	for _, id := range ids {
		if _, err := s.Recompute(ctx, uuid.Nil, id); err != nil {
			failed++
			log.WithError(err).WithField("user_id", id).Warn("karma reconcile failed")
		}
	}
	if failed > 0 {
		return fmt.Errorf("karma reconcile: %d of %d users failed", failed, len(ids))
	}

	log.WithField("users", len(ids)).Info("karma reconcile sweep completed")
	return nil
}

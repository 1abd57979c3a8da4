package service

import (
	"context"
	"encoding/json"
	"time"

	"anoa.com/forumkarma/internal/entity"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const AuditQueueKey = "audit_queue"

// AuditEvent is the wire form queued between Record and the worker.
type AuditEvent struct {
	ActorID    string `json:"actor_id"`
	Action     string `json:"action"`
	ResourceID string `json:"resource_id"`
	Details    string `json:"details"`
}

// AuditService is a fire-and-forget sink: Record never blocks the
// request path on the audit write. With redis available the event goes
// through a queue drained by StartWorker; without it the row is written
// directly in the background.
type AuditService interface {
	Record(actorID uuid.UUID, action, resourceID, details string)
	StartWorker(ctx context.Context)
}

type auditService struct {
	db          *gorm.DB
	redisClient *redis.Client
}

func NewAuditService(db *gorm.DB, redisClient *redis.Client) AuditService {
	return &auditService{db: db, redisClient: redisClient}
}

func (s *auditService) Record(actorID uuid.UUID, action, resourceID, details string) {
	event := AuditEvent{
		ActorID:    actorID.String(),
		Action:     action,
		ResourceID: resourceID,
		Details:    details,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if s.redisClient != nil {
			payload, err := json.Marshal(event)
			if err != nil {
				log.WithError(err).Warn("audit event marshal failed")
				return
			}
			if err := s.redisClient.RPush(ctx, AuditQueueKey, payload).Err(); err == nil {
				return
			}
			// Queue unreachable: fall back to a direct write so the
			// event is not dropped silently.
		}

		if err := s.persist(ctx, event); err != nil {
			log.WithError(err).WithField("action", action).Warn("audit write failed")
		}
	}()
}

func (s *auditService) StartWorker(ctx context.Context) {
	if s.redisClient == nil {
		return
	}
	log.Info("audit worker started")

	for {
		res, err := s.redisClient.BLPop(ctx, 0, AuditQueueKey).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("audit queue pop failed, retrying in 1s")
			time.Sleep(1 * time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}

		var event AuditEvent
		if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
			log.WithError(err).Warn("invalid audit event json")
			continue
		}

		if err := s.persist(ctx, event); err != nil {
			log.WithError(err).WithField("action", event.Action).Warn("audit write failed")
		}
	}
}

func (s *auditService) persist(ctx context.Context, event AuditEvent) error {
	actorID, err := uuid.Parse(event.ActorID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&entity.AuditLog{
		ActorID:    actorID,
		Action:     event.Action,
		ResourceID: event.ResourceID,
		Details:    event.Details,
	}).Error
}

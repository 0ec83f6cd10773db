package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kasirledger/backend/internal/domain"
	"kasirledger/backend/internal/lock"
	"kasirledger/backend/internal/store"
	"kasirledger/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	// Allocator overrides the repository's own number counter, e.g. with Redis.
	Allocator       store.NumberAllocator
	Locker          lock.Locker
	Logger          *zap.Logger
	DefaultTenantID string
	DefaultStoreID  string
	LockTTL         time.Duration
}

type Service struct {
	repo            store.Repository
	allocator       store.NumberAllocator
	locker          lock.Locker
	logger          *zap.Logger
	defaultTenantID string
	defaultStoreID  string
	lockTTL         time.Duration
	now             func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.DefaultStoreID == "" {
		opts.DefaultStoreID = "main-store"
	}
	if opts.Allocator == nil {
		opts.Allocator = repo
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLocker()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Second
	}

	return &Service{
		repo:            repo,
		allocator:       opts.Allocator,
		locker:          opts.Locker,
		logger:          opts.Logger,
		defaultTenantID: opts.DefaultTenantID,
		defaultStoreID:  opts.DefaultStoreID,
		lockTTL:         opts.LockTTL,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// actor returns the caller with tenant and store defaults applied.
func (s *Service) actor(ctx context.Context) domain.Actor {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{OperatorID: "system"}
	}
	if strings.TrimSpace(actor.TenantID) == "" {
		actor.TenantID = s.defaultTenantID
	}
	if strings.TrimSpace(actor.StoreID) == "" {
		actor.StoreID = s.defaultStoreID
	}
	return actor
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = s.now().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, invalidField("date", "datetime=2006-01-02")
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, s.actor(ctx).StoreID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor := s.actor(ctx)

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		TenantID:   actor.TenantID,
		StoreID:    actor.StoreID,
		OperatorID: actor.OperatorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func (s *Service) allocateNumber(ctx context.Context, prefix string, actor domain.Actor) (string, error) {
	number, err := s.allocator.AllocateTransactionNumber(ctx, prefix, actor.TenantID, actor.StoreID, s.now())
	if err != nil {
		s.logger.Error("number allocation failed", zap.String("prefix", prefix), zap.String("store_id", actor.StoreID), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrNumberAllocationFailed, err)
	}
	return number, nil
}

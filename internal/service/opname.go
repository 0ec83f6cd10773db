package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kasirledger/backend/internal/domain"
	"kasirledger/backend/internal/ledger"
	"kasirledger/backend/internal/store"
	"kasirledger/backend/internal/xid"
)

func (s *Service) CreateOpnameSession(ctx context.Context, req domain.CreateOpnameRequest) (*domain.OpnameSession, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := s.now()
	date, err := opnameDate(req.Date, now)
	if err != nil {
		return nil, err
	}

	actor := s.actor(ctx)
	number, err := s.allocateNumber(ctx, domain.NumberPrefixOpname, actor)
	if err != nil {
		return nil, err
	}

	session := domain.OpnameSession{
		ID:         xid.New("opn"),
		Number:     number,
		TenantID:   actor.TenantID,
		StoreID:    actor.StoreID,
		OperatorID: actor.OperatorID,
		Date:       date,
		Note:       req.Note,
		Status:     domain.OpnameStatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
		Items:      []domain.OpnameItem{},
	}
	id, err := s.repo.InsertOpnameHeader(ctx, session)
	if err != nil {
		return nil, err
	}
	session.ID = id

	s.logAudit(ctx, "opname_create", "opname", id, number)
	return &session, nil
}

// opnameDate reads "2006-01-02" or an RFC 3339 timestamp and keeps only the
// UTC day. An empty value means today.
func opnameDate(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.UTC().Truncate(24 * time.Hour), nil
	}
	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		if parsed, err = time.Parse(time.RFC3339, raw); err != nil {
			return time.Time{}, invalidField("date", "datetime=2006-01-02")
		}
	}
	d := parsed.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
}

func (s *Service) GetOpnameSession(ctx context.Context, sessionID string) (*domain.OpnameSession, error) {
	session, err := s.repo.FindOpnameByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	session.Items = ledger.WithVariance(session.Items)
	session.Aggregates = ledger.Aggregate(session.Items)
	return session, nil
}

// OpnameAggregates totals the session's items. Nothing is cached; every call
// reads the current items.
func (s *Service) OpnameAggregates(ctx context.Context, sessionID string) (domain.OpnameAggregates, error) {
	session, err := s.repo.FindOpnameByID(ctx, sessionID)
	if err != nil {
		return domain.OpnameAggregates{}, err
	}
	return ledger.Aggregate(session.Items), nil
}

// AddOpnameItem records a physical count. The system stock is captured once
// here and kept for the life of the entry.
func (s *Service) AddOpnameItem(ctx context.Context, sessionID string, req domain.AddOpnameItemRequest) (*domain.OpnameItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	session, err := s.draftOpname(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, existing := range session.Items {
		if existing.ProductID == req.ProductID {
			return nil, &DuplicateProductError{SessionID: session.Number, ProductID: req.ProductID}
		}
	}

	systemStock, err := s.repo.CurrentSystemStock(ctx, session.StoreID, req.ProductID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, invalidField("product_id", "exists")
		}
		return nil, err
	}

	item := domain.OpnameItem{
		ID:            xid.New("oi"),
		SessionID:     session.ID,
		ProductID:     req.ProductID,
		SystemStock:   systemStock,
		PhysicalStock: req.PhysicalStock,
		Note:          req.Note,
	}
	id, err := s.repo.InsertOpnameItem(ctx, item)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			return nil, &DuplicateProductError{SessionID: session.Number, ProductID: req.ProductID}
		case errors.Is(err, store.ErrNotDraft):
			return nil, s.opnameStateError(ctx, session.ID)
		default:
			return nil, err
		}
	}
	item.ID = id
	item.Variance = ledger.Variance(item.SystemStock, item.PhysicalStock)

	s.logAudit(ctx, "opname_item_add", "opname", session.ID, fmt.Sprintf("product=%s,system=%d,physical=%d", item.ProductID, item.SystemStock, item.PhysicalStock))
	return &item, nil
}

func (s *Service) UpdateOpnameItem(ctx context.Context, itemID string, req domain.UpdateOpnameItemRequest) (*domain.OpnameItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	item, err := s.repo.FindOpnameItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.draftOpname(ctx, item.SessionID); err != nil {
		return nil, err
	}

	if req.PhysicalStock != nil {
		item.PhysicalStock = *req.PhysicalStock
	}
	if req.Note != nil {
		item.Note = *req.Note
	}
	if err := s.repo.UpdateOpnameItem(ctx, *item); err != nil {
		if errors.Is(err, store.ErrNotDraft) {
			return nil, s.opnameStateError(ctx, item.SessionID)
		}
		return nil, err
	}
	item.Variance = ledger.Variance(item.SystemStock, item.PhysicalStock)

	s.logAudit(ctx, "opname_item_update", "opname", item.SessionID, fmt.Sprintf("item=%s,physical=%d", item.ID, item.PhysicalStock))
	return item, nil
}

func (s *Service) DeleteOpnameItem(ctx context.Context, itemID string) error {
	item, err := s.repo.FindOpnameItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	if _, err := s.draftOpname(ctx, item.SessionID); err != nil {
		return err
	}
	if err := s.repo.DeleteOpnameItem(ctx, item.ID); err != nil {
		if errors.Is(err, store.ErrNotDraft) {
			return s.opnameStateError(ctx, item.SessionID)
		}
		return err
	}
	s.logAudit(ctx, "opname_item_delete", "opname", item.SessionID, item.ProductID)
	return nil
}

// SetOpnameStatus closes a draft session. Closing as selesai posts every
// item's variance to the store's stock so the book quantity follows the count.
func (s *Service) SetOpnameStatus(ctx context.Context, sessionID string, req domain.SetStatusRequest) (*domain.OpnameSession, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	status := domain.OpnameStatus(req.Status)
	if !status.Terminal() {
		return nil, invalidField("status", "oneof=selesai batal")
	}

	session, err := s.draftOpname(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if status == domain.OpnameStatusDone && len(session.Items) == 0 {
		return nil, fmt.Errorf("%w: opname %s", ErrEmptyDocument, session.Number)
	}

	if err := s.repo.CloseOpnameSession(ctx, session.ID, status); err != nil {
		if errors.Is(err, store.ErrNotDraft) {
			return nil, s.opnameStateError(ctx, session.ID)
		}
		s.logger.Error("opname close failed, nothing posted",
			zap.String("session_id", session.ID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return nil, err
	}

	closed, err := s.repo.FindOpnameByID(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	closed.Items = ledger.WithVariance(closed.Items)
	closed.Aggregates = ledger.Aggregate(closed.Items)
	session = closed

	s.logAudit(ctx, "opname_status", "opname", session.ID, fmt.Sprintf("status=%s,net=%d", status, session.Aggregates.TotalNet))
	s.logger.Info("opname closed",
		zap.String("session_id", session.ID),
		zap.String("number", session.Number),
		zap.String("status", string(status)),
		zap.Int("total_net", session.Aggregates.TotalNet),
	)
	return session, nil
}

func (s *Service) DeleteOpnameSession(ctx context.Context, sessionID string) error {
	session, err := s.draftOpname(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteOpnameHeader(ctx, session.ID); err != nil {
		if errors.Is(err, store.ErrNotDraft) {
			return s.opnameStateError(ctx, session.ID)
		}
		return err
	}
	s.logAudit(ctx, "opname_delete", "opname", session.ID, session.Number)
	return nil
}

func (s *Service) draftOpname(ctx context.Context, sessionID string) (*domain.OpnameSession, error) {
	session, err := s.repo.FindOpnameByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.OpnameStatusDraft {
		return nil, &StateError{Entity: "opname", ID: session.Number, Status: string(session.Status)}
	}
	return session, nil
}

func (s *Service) opnameStateError(ctx context.Context, sessionID string) error {
	session, err := s.repo.FindOpnameByID(ctx, sessionID)
	if err != nil {
		return &StateError{Entity: "opname", ID: sessionID, Status: "unknown"}
	}
	return &StateError{Entity: "opname", ID: session.Number, Status: string(session.Status)}
}

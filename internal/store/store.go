package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"kasirledger/backend/internal/domain"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrQuotaExceeded      = errors.New("return quota exceeded")
	ErrNotDraft           = errors.New("document is not in draft")
	ErrDuplicate          = errors.New("duplicate entry")
)

// NumberAllocator hands out the human-readable document number. Numbers are
// unique per (prefix, tenant, store, day).
type NumberAllocator interface {
	AllocateTransactionNumber(ctx context.Context, prefix string, tenantID string, storeID string, asOf time.Time) (string, error)
}

type ProductStore interface {
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
}

type SaleStore interface {
	InsertSaleHeader(ctx context.Context, sale domain.Sale) (string, error)
	InsertSaleItems(ctx context.Context, saleID string, items []domain.SaleItem) error
	DeleteSaleHeader(ctx context.Context, saleID string) error
	FindSaleByID(ctx context.Context, saleID string) (*domain.Sale, error)
}

type PurchaseStore interface {
	InsertPurchaseHeader(ctx context.Context, purchase domain.Purchase) (string, error)
	InsertPurchaseItems(ctx context.Context, purchaseID string, items []domain.PurchaseItem) error
	DeletePurchaseHeader(ctx context.Context, purchaseID string) error
	FindPurchaseByID(ctx context.Context, purchaseID string) (*domain.Purchase, error)
}

// ReturnStore persists return documents. InsertReturnItem and
// UpdateReturnItemQty re-check the source-line quota and the draft status in
// the same atomic unit as the write and fail with ErrQuotaExceeded or
// ErrNotDraft. RefreshReturnTotal sums the items and writes the header total
// in one unit, so concurrent refreshes cannot leave a stale total behind.
type ReturnStore interface {
	InsertReturnHeader(ctx context.Context, doc domain.ReturnDocument) (string, error)
	FindReturnByID(ctx context.Context, returnID string) (*domain.ReturnDocument, error)
	UpdateReturnHeader(ctx context.Context, returnID string, update domain.ReturnHeaderUpdate) error
	RefreshReturnTotal(ctx context.Context, returnID string) (decimal.Decimal, error)
	DeleteReturnHeader(ctx context.Context, returnID string) error
	InsertReturnItem(ctx context.Context, kind domain.ReturnKind, item domain.ReturnItem) (string, error)
	FindReturnItemByID(ctx context.Context, itemID string) (*domain.ReturnItem, error)
	UpdateReturnItemQty(ctx context.Context, kind domain.ReturnKind, itemID string, qty int) error
	DeleteReturnItem(ctx context.Context, itemID string) error
	QuerySourceItems(ctx context.Context, kind domain.ReturnKind, sourceID string) ([]domain.SourceItem, error)
	FindSourceItem(ctx context.Context, kind domain.ReturnKind, sourceItemID string) (*domain.SourceItem, error)
	ListIssuedReturnItems(ctx context.Context, kind domain.ReturnKind, sourceItemIDs []string) ([]domain.IssuedReturnItem, error)
}

// OpnameStore persists stock-count sessions. InsertOpnameItem fails with
// ErrDuplicate when the session already holds the product. CloseOpnameSession
// sets a terminal status and, for selesai, posts every item's variance to
// stock, all or nothing.
type OpnameStore interface {
	InsertOpnameHeader(ctx context.Context, session domain.OpnameSession) (string, error)
	FindOpnameByID(ctx context.Context, sessionID string) (*domain.OpnameSession, error)
	CloseOpnameSession(ctx context.Context, sessionID string, status domain.OpnameStatus) error
	DeleteOpnameHeader(ctx context.Context, sessionID string) error
	InsertOpnameItem(ctx context.Context, item domain.OpnameItem) (string, error)
	FindOpnameItemByID(ctx context.Context, itemID string) (*domain.OpnameItem, error)
	UpdateOpnameItem(ctx context.Context, item domain.OpnameItem) error
	DeleteOpnameItem(ctx context.Context, itemID string) error
}

type StockStore interface {
	CurrentSystemStock(ctx context.Context, storeID string, productID string) (int, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}

type Repository interface {
	NumberAllocator
	ProductStore
	SaleStore
	PurchaseStore
	ReturnStore
	OpnameStore
	StockStore
	AuditStore
}

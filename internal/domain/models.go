package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	NumberPrefixSale           = "TRX"
	NumberPrefixPurchase       = "PB"
	NumberPrefixSaleReturn     = "RJ"
	NumberPrefixPurchaseReturn = "RB"
	NumberPrefixOpname         = "SO"
)

type Actor struct {
	OperatorID string
	TenantID   string
	StoreID    string
}

type Product struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// LineItem is the common shape the monetary aggregator consumes.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

type CartLine struct {
	ProductID string          `json:"product_id" validate:"required"`
	Qty       int             `json:"qty" validate:"gte=1"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Discount  decimal.Decimal `json:"discount" validate:"gte=0"`
}

func (c CartLine) LineItem() LineItem {
	return LineItem{ProductID: c.ProductID, Qty: c.Qty, UnitPrice: c.UnitPrice, Discount: c.Discount}
}

type Sale struct {
	ID            string          `json:"id" db:"id"`
	Number        string          `json:"number" db:"number"`
	TenantID      string          `json:"tenant_id" db:"tenant_id"`
	StoreID       string          `json:"store_id" db:"store_id"`
	OperatorID    string          `json:"operator_id" db:"operator_id"`
	CustomerID    string          `json:"customer_id,omitempty" db:"customer_id"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	Discount      decimal.Decimal `json:"discount" db:"discount"`
	Total         decimal.Decimal `json:"total" db:"total"`
	Paid          decimal.Decimal `json:"paid" db:"paid"`
	Change        decimal.Decimal `json:"change" db:"change_due"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	Items         []SaleItem      `json:"items" db:"-"`
}

type SaleItem struct {
	ID        string          `json:"id" db:"id"`
	SaleID    string          `json:"sale_id" db:"sale_id"`
	ProductID string          `json:"product_id" db:"product_id"`
	Qty       int             `json:"qty" db:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Discount  decimal.Decimal `json:"discount" db:"discount"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
}

type FinalizeSaleRequest struct {
	CustomerID    string          `json:"customer_id"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=cash card qris ewallet transfer"`
	Discount      decimal.Decimal `json:"discount" validate:"gte=0"`
	Paid          decimal.Decimal `json:"paid" validate:"gte=0"`
	Items         []CartLine      `json:"items" validate:"required,min=1,dive"`
}

type FinalizeSaleResponse struct {
	SaleID   string          `json:"sale_id"`
	Number   string          `json:"number"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Paid     decimal.Decimal `json:"paid"`
	Change   decimal.Decimal `json:"change"`
}

type Purchase struct {
	ID         string          `json:"id" db:"id"`
	Number     string          `json:"number" db:"number"`
	TenantID   string          `json:"tenant_id" db:"tenant_id"`
	StoreID    string          `json:"store_id" db:"store_id"`
	OperatorID string          `json:"operator_id" db:"operator_id"`
	SupplierID string          `json:"supplier_id" db:"supplier_id"`
	Subtotal   decimal.Decimal `json:"subtotal" db:"subtotal"`
	Discount   decimal.Decimal `json:"discount" db:"discount"`
	Total      decimal.Decimal `json:"total" db:"total"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	Items      []PurchaseItem  `json:"items" db:"-"`
}

type PurchaseItem struct {
	ID         string          `json:"id" db:"id"`
	PurchaseID string          `json:"purchase_id" db:"purchase_id"`
	ProductID  string          `json:"product_id" db:"product_id"`
	Qty        int             `json:"qty" db:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price" db:"unit_price"`
	Discount   decimal.Decimal `json:"discount" db:"discount"`
	Subtotal   decimal.Decimal `json:"subtotal" db:"subtotal"`
}

type RecordPurchaseRequest struct {
	SupplierID string          `json:"supplier_id" validate:"required"`
	Discount   decimal.Decimal `json:"discount" validate:"gte=0"`
	Items      []CartLine      `json:"items" validate:"required,min=1,dive"`
}

type RecordPurchaseResponse struct {
	PurchaseID string          `json:"purchase_id"`
	Number     string          `json:"number"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
}

type ReturnKind string

const (
	ReturnKindSale     ReturnKind = "sale"
	ReturnKindPurchase ReturnKind = "purchase"
)

func (k ReturnKind) Valid() bool {
	return k == ReturnKindSale || k == ReturnKindPurchase
}

func (k ReturnKind) NumberPrefix() string {
	if k == ReturnKindPurchase {
		return NumberPrefixPurchaseReturn
	}
	return NumberPrefixSaleReturn
}

type ReturnStatus string

const (
	ReturnStatusDraft    ReturnStatus = "draft"
	ReturnStatusAccepted ReturnStatus = "diterima"
	ReturnStatusPartial  ReturnStatus = "sebagian"
	ReturnStatusDone     ReturnStatus = "selesai"
	ReturnStatusVoid     ReturnStatus = "batal"
)

func (s ReturnStatus) Terminal() bool {
	switch s {
	case ReturnStatusAccepted, ReturnStatusPartial, ReturnStatusDone, ReturnStatusVoid:
		return true
	default:
		return false
	}
}

type ReturnDocument struct {
	ID             string          `json:"id" db:"id"`
	Number         string          `json:"number" db:"number"`
	Kind           ReturnKind      `json:"kind" db:"kind"`
	TenantID       string          `json:"tenant_id" db:"tenant_id"`
	StoreID        string          `json:"store_id" db:"store_id"`
	OperatorID     string          `json:"operator_id" db:"operator_id"`
	SourceID       string          `json:"source_id" db:"source_id"`
	CounterpartyID string          `json:"counterparty_id,omitempty" db:"counterparty_id"`
	Status         ReturnStatus    `json:"status" db:"status"`
	Reason         string          `json:"reason,omitempty" db:"reason"`
	Total          decimal.Decimal `json:"total" db:"total"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	Items          []ReturnItem    `json:"items" db:"-"`
}

type ReturnItem struct {
	ID           string          `json:"id" db:"id"`
	ReturnID     string          `json:"return_id" db:"return_id"`
	SourceItemID string          `json:"source_item_id" db:"source_item_id"`
	ProductID    string          `json:"product_id" db:"product_id"`
	Qty          int             `json:"qty" db:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal" db:"subtotal"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// SourceItem is a sale or purchase line as seen by the returns screen.
type SourceItem struct {
	SourceItemID string          `json:"source_item_id" db:"source_item_id"`
	ProductID    string          `json:"product_id" db:"product_id"`
	ProductName  string          `json:"product_name" db:"product_name"`
	Qty          int             `json:"qty" db:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal     decimal.Decimal `json:"subtotal" db:"subtotal"`
	Remaining    int             `json:"remaining" db:"-"`
}

// IssuedReturnItem is one return row already recorded against a source line.
type IssuedReturnItem struct {
	ReturnItemID string       `db:"return_item_id"`
	SourceItemID string       `db:"source_item_id"`
	Qty          int          `db:"qty"`
	Status       ReturnStatus `db:"status"`
}

type CreateReturnRequest struct {
	Kind           ReturnKind `json:"kind" validate:"required,oneof=sale purchase"`
	SourceID       string     `json:"source_id" validate:"required"`
	CounterpartyID string     `json:"counterparty_id"`
	Reason         string     `json:"reason" validate:"max=500"`
}

type AddReturnItemRequest struct {
	SourceItemID string           `json:"source_item_id" validate:"required"`
	Qty          int              `json:"qty" validate:"gte=1"`
	UnitPrice    *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
}

type UpdateReturnItemRequest struct {
	Qty int `json:"qty" validate:"gte=1"`
}

type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type ReturnHeaderUpdate struct {
	Status *ReturnStatus
}

type OpnameStatus string

const (
	OpnameStatusDraft OpnameStatus = "draft"
	OpnameStatusDone  OpnameStatus = "selesai"
	OpnameStatusVoid  OpnameStatus = "batal"
)

func (s OpnameStatus) Terminal() bool {
	return s == OpnameStatusDone || s == OpnameStatusVoid
}

type OpnameSession struct {
	ID         string           `json:"id" db:"id"`
	Number     string           `json:"number" db:"number"`
	TenantID   string           `json:"tenant_id" db:"tenant_id"`
	StoreID    string           `json:"store_id" db:"store_id"`
	OperatorID string           `json:"operator_id" db:"operator_id"`
	Date       time.Time        `json:"date" db:"opname_date"`
	Note       string           `json:"note,omitempty" db:"note"`
	Status     OpnameStatus     `json:"status" db:"status"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
	Items      []OpnameItem     `json:"items" db:"-"`
	Aggregates OpnameAggregates `json:"aggregates" db:"-"`
}

type OpnameItem struct {
	ID            string `json:"id" db:"id"`
	SessionID     string `json:"session_id" db:"session_id"`
	ProductID     string `json:"product_id" db:"product_id"`
	SystemStock   int    `json:"system_stock" db:"system_stock"`
	PhysicalStock int    `json:"physical_stock" db:"physical_stock"`
	Note          string `json:"note,omitempty" db:"note"`
	Variance      int    `json:"variance" db:"-"`
}

type OpnameAggregates struct {
	TotalItems    int `json:"total_items"`
	TotalSurplus  int `json:"total_surplus"`
	TotalShortage int `json:"total_shortage"`
	TotalNet      int `json:"total_net"`
}

type CreateOpnameRequest struct {
	// Date accepts "2006-01-02" or an RFC 3339 timestamp.
	Date string `json:"date,omitempty"`
	Note string `json:"note" validate:"max=500"`
}

type AddOpnameItemRequest struct {
	ProductID     string `json:"product_id" validate:"required"`
	PhysicalStock int    `json:"physical_stock" validate:"gte=0"`
	Note          string `json:"note" validate:"max=500"`
}

type UpdateOpnameItemRequest struct {
	PhysicalStock *int    `json:"physical_stock,omitempty" validate:"omitempty,gte=0"`
	Note          *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

type AuditLog struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	StoreID    string    `json:"store_id" db:"store_id"`
	OperatorID string    `json:"operator_id" db:"operator_id"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	Detail     string    `json:"detail" db:"detail"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

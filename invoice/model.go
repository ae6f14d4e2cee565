package invoice

import (
	"strings"
	"time"
)

// Type rodzaj dokumentu po stronie domeny.
type Type string

const (
	TypeSales      Type = "SALES"
	TypeCommission Type = "COMMISSION"
	TypeRefund     Type = "REFUND"
	TypeCreditNote Type = "CREDIT_NOTE"
	TypeDebitNote  Type = "DEBIT_NOTE"
)

// Status znormalizowany status faktury. Wartości zawsze wielkimi literami.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusSent      Status = "SENT"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

var allStatuses = []Status{
	StatusDraft, StatusPending, StatusApproved, StatusSent,
	StatusPaid, StatusOverdue, StatusCancelled, StatusRefunded,
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Lower returns the provider-side spelling of the status.
func (s Status) Lower() string {
	return strings.ToLower(string(s))
}

type DeliveryMethod string

const (
	DeliveryEmail    DeliveryMethod = "EMAIL"
	DeliverySMS      DeliveryMethod = "SMS"
	DeliveryEInvoice DeliveryMethod = "E_INVOICE"
)

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "CASH"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCreditCard   PaymentMethod = "CREDIT_CARD"
	PaymentCheck        PaymentMethod = "CHECK"
)

// Buyer identyfikuje nabywcę (kontakt po stronie dostawcy).
type Buyer struct {
	ID        string `validate:"required"`
	Name      string
	TaxNumber string
	TaxOffice string
	Email     string `validate:"omitempty,email"`
	Address   string
}

// LineItem pozycja faktury. Subtotal to wartość netto, Total brutto.
type LineItem struct {
	ProductID   string
	Description string  `validate:"required"`
	Quantity    float64 `validate:"gt=0"`
	UnitPrice   float64 `validate:"gte=0"`
	TaxRate     float64 `validate:"gte=0,lte=100"`
	Subtotal    float64 `validate:"gte=0"`
	Total       float64 `validate:"gte=0"`
}

// CreateRequest dane nowej faktury. Tylko do odczytu dla adaptera.
type CreateRequest struct {
	SellerID   string
	Buyer      Buyer
	Items      []LineItem `validate:"required,min=1,dive"`
	Type       Type       `validate:"required,oneof=SALES COMMISSION REFUND CREDIT_NOTE DEBIT_NOTE"`
	IssueDate  time.Time  `validate:"required"`
	DueDate    time.Time
	Series     string
	Number     string
	CategoryID string

	DiscountRate       float64 `validate:"gte=0,lte=100"`
	WithholdingRate    float64 `validate:"gte=0,lte=100"`
	VATWithholdingRate float64 `validate:"gte=0,lte=100"`

	Notes    string
	Metadata map[string]any
}

// UpdateRequest częściowa aktualizacja; nil oznacza "bez zmian".
type UpdateRequest struct {
	Status   *Status
	PaidDate *time.Time
	Notes    *string
}

func (r UpdateRequest) Empty() bool {
	return r.Status == nil && r.PaidDate == nil && r.Notes == nil
}

// SearchParams filtry listy faktur. Zerowe wartości są pomijane.
type SearchParams struct {
	Page          int
	Limit         int
	StartDate     *time.Time
	EndDate       *time.Time
	SellerID      string
	BuyerID       string
	Type          Type
	Status        Status
	InvoiceNumber string
}

// Result faktura odczytana od dostawcy. Każde wywołanie buduje nową wartość.
type Result struct {
	ID             string
	InvoiceNumber  string
	Type           Type
	Status         Status
	ExternalID     string
	ExternalStatus string
	SubtotalAmount float64
	TaxAmount      float64
	TotalAmount    float64
	Currency       string
	IssueDate      time.Time
	DueDate        time.Time
	PaidDate       *time.Time
	Notes          string
	Metadata       map[string]any
}

type ListResult struct {
	Invoices   []Result
	Total      int
	Page       int
	Limit      int
	TotalPages int
	HasMore    bool
}

// Stats agregaty liczone z listy faktur.
type Stats struct {
	TotalInvoices   int
	TotalAmount     float64
	PaidAmount      float64
	PendingAmount   float64
	OverdueAmount   float64
	CancelledAmount float64
	Currency        string
	ByStatus        map[Status]int
	ByType          map[Type]int
}

type Payment struct {
	PaidDate  time.Time `validate:"required"`
	Amount    float64   `validate:"gte=0"`
	Method    PaymentMethod
	AccountID string
	Reference string
}

type Template struct {
	ID          string
	Name        string
	Description string
	Type        Type
	Items       []LineItem
	Notes       string
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type TemplateRequest struct {
	Name        string `validate:"required"`
	Description string
	Type        Type       `validate:"omitempty,oneof=SALES COMMISSION REFUND CREDIT_NOTE DEBIT_NOTE"`
	Items       []LineItem `validate:"dive"`
	Notes       string
	IsDefault   bool
}

// OperationResult wynik operacji "best effort", które nie zwracają błędu.
type OperationResult struct {
	Success bool
	Message string
}

type SendResult struct {
	OperationResult
	Method DeliveryMethod
	SentAt *time.Time
}

type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
)

type HealthResult struct {
	Status  HealthStatus
	Message string
	Details map[string]any
}

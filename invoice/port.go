package invoice

import "context"

// Port is the contract the rest of the system uses to talk to an invoicing
// provider. Implementations translate to a concrete provider API.
//
// GetInvoice and GetInvoiceByNumber return (nil, nil) when the provider
// confirms the invoice does not exist. SendInvoice, DeleteTemplate and
// HealthCheck never fail hard; failures are reported in the returned value.
type Port interface {
	CreateInvoice(ctx context.Context, req CreateRequest) (*Result, error)
	UpdateInvoice(ctx context.Context, id string, req UpdateRequest) (*Result, error)
	GetInvoice(ctx context.Context, id string) (*Result, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*Result, error)
	ListInvoices(ctx context.Context, params SearchParams) (*ListResult, error)
	GetStats(ctx context.Context, params SearchParams) (*Stats, error)

	SendInvoice(ctx context.Context, id string, method DeliveryMethod) SendResult
	MarkAsPaid(ctx context.Context, id string, payment Payment) (*Result, error)
	CancelInvoice(ctx context.Context, id string, reason string) (*Result, error)
	GeneratePDF(ctx context.Context, id string) ([]byte, error)

	GetTemplates(ctx context.Context) ([]Template, error)
	CreateTemplate(ctx context.Context, req TemplateRequest) (*Template, error)
	UpdateTemplate(ctx context.Context, id string, req TemplateRequest) (*Template, error)
	DeleteTemplate(ctx context.Context, id string) OperationResult

	HealthCheck(ctx context.Context) HealthResult
	Capabilities() Capabilities
}

package parasut

import (
	"context"
	"fmt"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/alapierre/go-parasut-client/mutex"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

// Provider is the narrow seam between the Adapter and the HTTP client, one
// method per provider operation. *Client implements it.
type Provider interface {
	Create(ctx context.Context, req invoice.CreateRequest) (*invoice.Result, error)
	Update(ctx context.Context, id string, req invoice.UpdateRequest) (*invoice.Result, error)
	Get(ctx context.Context, id string) (*invoice.Result, error)
	GetByNumber(ctx context.Context, number string) (*invoice.Result, error)
	List(ctx context.Context, params invoice.SearchParams) (*invoice.ListResult, error)
	Stats(ctx context.Context, params invoice.SearchParams) (*invoice.Stats, error)
	Send(ctx context.Context, id string, method invoice.DeliveryMethod) invoice.SendResult
	MarkAsPaid(ctx context.Context, id string, payment invoice.Payment) (*invoice.Result, error)
	Cancel(ctx context.Context, id string, reason string) (*invoice.Result, error)
	GeneratePDF(ctx context.Context, id string) ([]byte, error)
	Templates(ctx context.Context) ([]invoice.Template, error)
	CreateTemplate(ctx context.Context, req invoice.TemplateRequest) (*invoice.Template, error)
	UpdateTemplate(ctx context.Context, id string, req invoice.TemplateRequest) (*invoice.Template, error)
	DeleteTemplate(ctx context.Context, id string) invoice.OperationResult
	HealthCheck(ctx context.Context) invoice.HealthResult
}

var _ Provider = (*Client)(nil)
var _ invoice.Port = (*Adapter)(nil)

// Statusy, z których dozwolone są przejścia.
var (
	payableFrom = map[invoice.Status]bool{
		invoice.StatusPending:  true,
		invoice.StatusApproved: true,
		invoice.StatusSent:     true,
		invoice.StatusOverdue:  true,
	}
	cancellableFrom = map[invoice.Status]bool{
		invoice.StatusDraft:    true,
		invoice.StatusPending:  true,
		invoice.StatusApproved: true,
		invoice.StatusSent:     true,
		invoice.StatusOverdue:  true,
	}
)

var capabilities = invoice.Capabilities{
	Provider: providerName,
	SupportedTypes: []invoice.Type{
		invoice.TypeSales, invoice.TypeRefund, invoice.TypeCreditNote,
		invoice.TypeDebitNote, invoice.TypeCommission,
	},
	SupportedFormats: []string{"PDF", "XML", "E_ARCHIVE"},
	PaymentMethods: []invoice.PaymentMethod{
		invoice.PaymentCash, invoice.PaymentBankTransfer,
		invoice.PaymentCreditCard, invoice.PaymentCheck,
	},
	DeliveryMethods:    []invoice.DeliveryMethod{invoice.DeliveryEmail, invoice.DeliveryEInvoice},
	Currencies:         []string{"TRY", "USD", "EUR", "GBP"},
	MaxItemsPerInvoice: 500,
	MaxInvoiceAmount:   1_000_000_000,
}

// Adapter implements invoice.Port on top of a Provider. It validates requests
// before any network call, enforces status transitions and logs upstream
// failures; callers receive the failure prefixed with the operation.
type Adapter struct {
	provider Provider
	locks    mutex.KeyedMutex[string]
}

func NewAdapter(p Provider) *Adapter {
	return &Adapter{provider: p}
}

// New buduje kompletny adapter: klient HTTP, TokenManager i translator.
func New(creds Credentials, opts ...Option) (*Adapter, error) {
	c, err := NewClient(creds, opts...)
	if err != nil {
		return nil, err
	}
	return NewAdapter(c), nil
}

// Komunikaty operacji; każdy błąd zwracany przez Adapter ma taki prefiks.
const (
	msgCreate         = "Paraşüt invoice creation failed"
	msgUpdate         = "Paraşüt invoice update failed"
	msgGet            = "Paraşüt invoice fetch failed"
	msgGetByNumber    = "Paraşüt invoice fetch by number failed"
	msgList           = "Paraşüt invoice list failed"
	msgStats          = "Paraşüt invoice stats failed"
	msgSend           = "Paraşüt invoice send failed"
	msgMarkAsPaid     = "Paraşüt invoice payment failed"
	msgCancel         = "Paraşüt invoice cancellation failed"
	msgPDF            = "Paraşüt PDF generation failed"
	msgTemplates      = "Paraşüt template list failed"
	msgCreateTemplate = "Paraşüt template creation failed"
	msgUpdateTemplate = "Paraşüt template update failed"
	msgDeleteTemplate = "Paraşüt template deletion failed"
)

// fail logs an upstream failure and prefixes it with the operation message.
func (a *Adapter) fail(msg string, err error, fields logrus.Fields) error {
	logger.WithFields(fields).WithError(err).Error(msg)
	return errors.Wrap(err, msg)
}

// lock waits for the per-invoice lock; an abandoned wait returns ctx.Err().
func (a *Adapter) lock(ctx context.Context, msg, id string) error {
	if err := a.locks.LockContext(ctx, id); err != nil {
		return errors.Wrap(err, msg)
	}
	return nil
}

func (a *Adapter) CreateInvoice(ctx context.Context, req invoice.CreateRequest) (*invoice.Result, error) {
	if err := invoice.ValidateCreate(req); err != nil {
		return nil, errors.Wrap(err, msgCreate)
	}
	if err := capabilities.Check(req); err != nil {
		return nil, errors.Wrap(err, msgCreate)
	}
	res, err := a.provider.Create(ctx, req)
	if err != nil {
		return nil, a.fail(msgCreate, err, logrus.Fields{"buyer_id": req.Buyer.ID, "type": req.Type})
	}
	return res, nil
}

func (a *Adapter) UpdateInvoice(ctx context.Context, id string, req invoice.UpdateRequest) (*invoice.Result, error) {
	if err := invoice.ValidateID("id", id); err != nil {
		return nil, errors.Wrap(err, msgUpdate)
	}
	if err := invoice.ValidateUpdate(req); err != nil {
		return nil, errors.Wrap(err, msgUpdate)
	}
	if err := a.lock(ctx, msgUpdate, id); err != nil {
		return nil, err
	}
	defer a.locks.Unlock(id)

	res, err := a.provider.Update(ctx, id, req)
	if err != nil {
		return nil, a.fail(msgUpdate, err, logrus.Fields{"invoice_id": id})
	}
	return res, nil
}

// GetInvoice returns nil, nil when the invoice does not exist.
func (a *Adapter) GetInvoice(ctx context.Context, id string) (*invoice.Result, error) {
	if err := invoice.ValidateID("id", id); err != nil {
		return nil, errors.Wrap(err, msgGet)
	}
	res, err := a.provider.Get(ctx, id)
	if err != nil {
		return nil, a.fail(msgGet, err, logrus.Fields{"invoice_id": id})
	}
	return res, nil
}

func (a *Adapter) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Result, error) {
	if err := invoice.ValidateID("number", number); err != nil {
		return nil, errors.Wrap(err, msgGetByNumber)
	}
	res, err := a.provider.GetByNumber(ctx, number)
	if err != nil {
		return nil, a.fail(msgGetByNumber, err, logrus.Fields{"invoice_number": number})
	}
	return res, nil
}

func (a *Adapter) ListInvoices(ctx context.Context, params invoice.SearchParams) (*invoice.ListResult, error) {
	if err := validateSearch(params); err != nil {
		return nil, errors.Wrap(err, msgList)
	}
	res, err := a.provider.List(ctx, params)
	if err != nil {
		return nil, a.fail(msgList, err, logrus.Fields{"page": params.Page, "limit": params.Limit})
	}
	return res, nil
}

func (a *Adapter) GetStats(ctx context.Context, params invoice.SearchParams) (*invoice.Stats, error) {
	if err := validateSearch(params); err != nil {
		return nil, errors.Wrap(err, msgStats)
	}
	res, err := a.provider.Stats(ctx, params)
	if err != nil {
		return nil, a.fail(msgStats, err, nil)
	}
	return res, nil
}

func validateSearch(p invoice.SearchParams) error {
	if p.Page < 0 {
		return &invoice.ValidationError{Field: "Page", Reason: "must not be negative"}
	}
	if p.Limit < 0 {
		return &invoice.ValidationError{Field: "Limit", Reason: "must not be negative"}
	}
	if p.StartDate != nil && p.EndDate != nil && p.EndDate.Before(*p.StartDate) {
		return &invoice.ValidationError{Field: "EndDate", Reason: "must not be before StartDate"}
	}
	if p.Status != "" && !p.Status.Valid() {
		return &invoice.ValidationError{Field: "Status", Reason: fmt.Sprintf("unknown status %q", p.Status)}
	}
	return nil
}

// SendInvoice never returns an error; failures are described in the result.
func (a *Adapter) SendInvoice(ctx context.Context, id string, method invoice.DeliveryMethod) invoice.SendResult {
	if err := invoice.ValidateID("id", id); err != nil {
		return invoice.SendResult{Method: method, OperationResult: invoice.OperationResult{Message: errors.Wrap(err, msgSend).Error()}}
	}
	if !capabilities.SupportsDelivery(method) {
		return invoice.SendResult{
			Method: method,
			OperationResult: invoice.OperationResult{
				Message: fmt.Sprintf("%s: delivery method %q is not supported by %s", msgSend, method, providerName),
			},
		}
	}
	return a.provider.Send(ctx, id, method)
}

func (a *Adapter) MarkAsPaid(ctx context.Context, id string, payment invoice.Payment) (*invoice.Result, error) {
	if err := invoice.ValidateID("id", id); err != nil {
		return nil, errors.Wrap(err, msgMarkAsPaid)
	}
	if err := invoice.ValidatePayment(payment); err != nil {
		return nil, errors.Wrap(err, msgMarkAsPaid)
	}
	if err := a.lock(ctx, msgMarkAsPaid, id); err != nil {
		return nil, err
	}
	defer a.locks.Unlock(id)

	if err := a.checkTransition(ctx, msgMarkAsPaid, id, invoice.StatusPaid, payableFrom); err != nil {
		return nil, err
	}
	res, err := a.provider.MarkAsPaid(ctx, id, payment)
	if err != nil {
		return nil, a.fail(msgMarkAsPaid, err, logrus.Fields{"invoice_id": id, "amount": payment.Amount})
	}
	return res, nil
}

func (a *Adapter) CancelInvoice(ctx context.Context, id string, reason string) (*invoice.Result, error) {
	if err := invoice.ValidateID("id", id); err != nil {
		return nil, errors.Wrap(err, msgCancel)
	}
	if err := a.lock(ctx, msgCancel, id); err != nil {
		return nil, err
	}
	defer a.locks.Unlock(id)

	if err := a.checkTransition(ctx, msgCancel, id, invoice.StatusCancelled, cancellableFrom); err != nil {
		return nil, err
	}
	res, err := a.provider.Cancel(ctx, id, reason)
	if err != nil {
		return nil, a.fail(msgCancel, err, logrus.Fields{"invoice_id": id})
	}
	return res, nil
}

// checkTransition odczytuje bieżący status i sprawdza, czy przejście do
// target jest dozwolone. Wywoływane pod blokadą id.
func (a *Adapter) checkTransition(ctx context.Context, msg, id string, target invoice.Status, allowed map[invoice.Status]bool) error {
	cur, err := a.provider.Get(ctx, id)
	if err != nil {
		return a.fail(msg, err, logrus.Fields{"invoice_id": id})
	}
	if cur == nil {
		return errors.Wrap(invoice.ErrNotFound, msg)
	}
	if !allowed[cur.Status] {
		logger.WithFields(logrus.Fields{"invoice_id": id, "from": cur.Status, "to": target}).Debug("transition rejected")
		return errors.Wrap(&invoice.ValidationError{
			Field:  "Status",
			Reason: fmt.Sprintf("cannot change status from %s to %s", cur.Status, target),
			Err:    invoice.ErrInvalidTransition,
		}, msg)
	}
	return nil
}

func (a *Adapter) GeneratePDF(ctx context.Context, id string) ([]byte, error) {
	if err := invoice.ValidateID("id", id); err != nil {
		return nil, errors.Wrap(err, msgPDF)
	}
	pdf, err := a.provider.GeneratePDF(ctx, id)
	if err != nil {
		return nil, a.fail(msgPDF, err, logrus.Fields{"invoice_id": id})
	}
	return pdf, nil
}

func (a *Adapter) GetTemplates(ctx context.Context) ([]invoice.Template, error) {
	res, err := a.provider.Templates(ctx)
	if err != nil {
		return nil, a.fail(msgTemplates, err, nil)
	}
	return res, nil
}

func (a *Adapter) CreateTemplate(ctx context.Context, req invoice.TemplateRequest) (*invoice.Template, error) {
	if err := invoice.ValidateTemplate(req); err != nil {
		return nil, errors.Wrap(err, msgCreateTemplate)
	}
	res, err := a.provider.CreateTemplate(ctx, req)
	if err != nil {
		return nil, a.fail(msgCreateTemplate, err, logrus.Fields{"name": req.Name})
	}
	return res, nil
}

func (a *Adapter) UpdateTemplate(ctx context.Context, id string, req invoice.TemplateRequest) (*invoice.Template, error) {
	if err := invoice.ValidateID("id", id); err != nil {
		return nil, errors.Wrap(err, msgUpdateTemplate)
	}
	if err := invoice.ValidateTemplate(req); err != nil {
		return nil, errors.Wrap(err, msgUpdateTemplate)
	}
	res, err := a.provider.UpdateTemplate(ctx, id, req)
	if err != nil {
		return nil, a.fail(msgUpdateTemplate, err, logrus.Fields{"template_id": id})
	}
	return res, nil
}

func (a *Adapter) DeleteTemplate(ctx context.Context, id string) invoice.OperationResult {
	if err := invoice.ValidateID("id", id); err != nil {
		return invoice.OperationResult{Message: errors.Wrap(err, msgDeleteTemplate).Error()}
	}
	return a.provider.DeleteTemplate(ctx, id)
}

func (a *Adapter) HealthCheck(ctx context.Context) invoice.HealthResult {
	return a.provider.HealthCheck(ctx)
}

// Capabilities is static and makes no network call.
func (a *Adapter) Capabilities() invoice.Capabilities {
	c := capabilities
	c.SupportedTypes = append([]invoice.Type(nil), capabilities.SupportedTypes...)
	c.SupportedFormats = append([]string(nil), capabilities.SupportedFormats...)
	c.PaymentMethods = append([]invoice.PaymentMethod(nil), capabilities.PaymentMethods...)
	c.DeliveryMethods = append([]invoice.DeliveryMethod(nil), capabilities.DeliveryMethods...)
	c.Currencies = append([]string(nil), capabilities.Currencies...)
	return c
}

package parasut

import (
	"strconv"
	"strings"
	"time"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const (
	defaultPage  = 1
	defaultLimit = 50

	// typ używany dla rodzajów faktur bez wpisu w invoiceTypes
	fallbackInvoiceType = "sales_invoice"

	FallbackKindType   = "invoice_type"
	FallbackKindStatus = "status"
)

var invoiceTypes = map[invoice.Type]string{
	invoice.TypeSales:      "sales_invoice",
	invoice.TypeRefund:     "refund_invoice",
	invoice.TypeCreditNote: "credit_note",
	invoice.TypeDebitNote:  "debit_note",
}

var providerTypes = map[string]invoice.Type{
	"sales_invoice":  invoice.TypeSales,
	"sales_invoices": invoice.TypeSales,
	"refund_invoice": invoice.TypeRefund,
	"credit_note":    invoice.TypeCreditNote,
	"debit_note":     invoice.TypeDebitNote,
}

var providerStatuses = map[string]invoice.Status{
	"draft":     invoice.StatusDraft,
	"pending":   invoice.StatusPending,
	"approved":  invoice.StatusApproved,
	"sent":      invoice.StatusSent,
	"paid":      invoice.StatusPaid,
	"overdue":   invoice.StatusOverdue,
	"cancelled": invoice.StatusCancelled,
	"refunded":  invoice.StatusRefunded,
}

// Translator maps between the internal invoice DTOs and the Paraşüt wire
// schema. It holds no state besides configuration; OnFallback is called
// whenever a lookup table has no entry and a default is used.
type Translator struct {
	Currency   string
	OnFallback func(kind, value string)
}

func NewTranslator(currency string) *Translator {
	if currency == "" {
		currency = "TRY"
	}
	return &Translator{Currency: currency}
}

func (t *Translator) fallback(kind, value string) {
	if t.OnFallback != nil {
		t.OnFallback(kind, value)
	}
}

// ProviderType returns the provider type for an invoice type. Types without a
// table entry map to "sales_invoice" and are reported through OnFallback.
func (t *Translator) ProviderType(it invoice.Type) string {
	if v, ok := invoiceTypes[it]; ok {
		return v
	}
	t.fallback(FallbackKindType, string(it))
	return fallbackInvoiceType
}

// ToProviderCreatePayload builds a complete create payload. Totals are summed
// from the line items, never taken from a precomputed value.
func (t *Translator) ToProviderCreatePayload(req invoice.CreateRequest) InvoicePayload {
	net, gross := decimal.Zero, decimal.Zero
	details := make([]DetailPayload, 0, len(req.Items))
	for _, it := range req.Items {
		net = net.Add(decimal.NewFromFloat(it.Subtotal))
		gross = gross.Add(decimal.NewFromFloat(it.Total))
		details = append(details, toDetail(it))
	}

	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = req.IssueDate
	}

	p := InvoicePayload{
		Type: t.ProviderType(req.Type),
		Attributes: InvoiceAttributes{
			Description:         req.Notes,
			IssueDate:           formatDate(req.IssueDate),
			DueDate:             formatDate(dueDate),
			InvoiceSeries:       req.Series,
			InvoiceID:           req.Number,
			Currency:            t.Currency,
			ExchangeRate:        1,
			WithholdingRate:     req.WithholdingRate,
			VATWithholdingRate:  req.VATWithholdingRate,
			InvoiceDiscountType: "percentage",
			InvoiceDiscount:     req.DiscountRate,
			NetTotal:            net.InexactFloat64(),
			GrossTotal:          gross.InexactFloat64(),
			TotalVAT:            gross.Sub(net).InexactFloat64(),
		},
		Relationships: InvoiceRelationships{
			Contact: ResourceRef{Type: resourceContacts, ID: req.Buyer.ID},
			Details: details,
		},
	}
	if req.CategoryID != "" {
		p.Relationships.Category = &ResourceRef{Type: resourceCategories, ID: req.CategoryID}
	}
	return p
}

func toDetail(it invoice.LineItem) DetailPayload {
	d := DetailPayload{
		Quantity:    it.Quantity,
		UnitPrice:   it.UnitPrice,
		VATRate:     it.TaxRate,
		Description: it.Description,
		NetTotal:    it.Subtotal,
		GrossTotal:  it.Total,
	}
	if it.ProductID != "" {
		d.Product = &ResourceRef{Type: resourceProducts, ID: it.ProductID}
	}
	return d
}

// ToProviderUpdatePayload maps only the fields present in req.
// Status goes out lower-case, dates as YYYY-MM-DD.
func (t *Translator) ToProviderUpdatePayload(id string, req invoice.UpdateRequest) UpdatePayload {
	p := UpdatePayload{ID: id}
	if req.Status != nil {
		s := req.Status.Lower()
		p.Status = &s
	}
	if req.PaidDate != nil {
		d := formatDate(*req.PaidDate)
		p.PaymentDate = &d
	}
	if req.Notes != nil {
		n := *req.Notes
		p.Description = &n
	}
	return p
}

// ToProviderSearchParams builds the list query. Enumerated values are
// lower-cased to match provider conventions.
func (t *Translator) ToProviderSearchParams(p invoice.SearchParams) map[string]string {
	page, limit := p.Page, p.Limit
	if page <= 0 {
		page = defaultPage
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	q := map[string]string{
		"page":     strconv.Itoa(page),
		"per_page": strconv.Itoa(limit),
	}
	if p.StartDate != nil {
		q["start_date"] = formatDate(*p.StartDate)
	}
	if p.EndDate != nil {
		q["end_date"] = formatDate(*p.EndDate)
	}
	if p.SellerID != "" {
		q["seller_id"] = p.SellerID
	}
	if p.BuyerID != "" {
		q["buyer_id"] = p.BuyerID
	}
	if p.Type != "" {
		q["type"] = strings.ToLower(string(p.Type))
	}
	if p.Status != "" {
		q["status"] = p.Status.Lower()
	}
	if p.InvoiceNumber != "" {
		q["invoice_number"] = p.InvoiceNumber
	}
	return q
}

// MapStatus maps a provider status to the internal one. Matching is
// case-insensitive; unknown or empty values give DRAFT.
func (t *Translator) MapStatus(s string) invoice.Status {
	key := strings.ToLower(strings.TrimSpace(s))
	if v, ok := providerStatuses[key]; ok {
		return v
	}
	if key != "" {
		t.fallback(FallbackKindStatus, s)
	}
	return invoice.StatusDraft
}

// FromProviderInvoice parses a single invoice from the nested
// {"data":{"attributes":..}} shape or from a flat object.
func (t *Translator) FromProviderInvoice(raw []byte) (*invoice.Result, error) {
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return nil, errors.New("invoice response is not a JSON object")
	}
	var r rawInvoice
	if err := r.decode(d); err != nil {
		return nil, errors.Wrap(err, "decode invoice")
	}
	if !r.seen {
		return nil, errors.New("invoice response has no invoice data")
	}
	return t.toResult(r), nil
}

func (t *Translator) toResult(r rawInvoice) *invoice.Result {
	res := &invoice.Result{
		ID:             r.ID,
		InvoiceNumber:  r.InvoiceNo,
		Type:           providerTypes[r.Type],
		Status:         t.MapStatus(r.Status),
		ExternalID:     r.ID,
		ExternalStatus: r.Status,
		SubtotalAmount: r.NetTotal,
		TotalAmount:    r.GrossTotal,
		Currency:       strings.ToUpper(r.Currency),
		IssueDate:      parseDate(r.IssueDate),
		DueDate:        parseDate(r.DueDate),
		Notes:          r.Description,
		Metadata:       map[string]any{"provider": providerName},
	}
	if res.InvoiceNumber == "" {
		res.InvoiceNumber = r.Series + r.SeqID
	}
	if r.hasVAT {
		res.TaxAmount = r.TotalVAT
	} else {
		res.TaxAmount = decimal.NewFromFloat(r.GrossTotal).Sub(decimal.NewFromFloat(r.NetTotal)).InexactFloat64()
	}
	if res.Currency == "" {
		res.Currency = t.Currency
	}
	if pd := parseDate(r.PaymentDate); !pd.IsZero() {
		res.PaidDate = &pd
		res.Metadata["payment_date"] = r.PaymentDate
	}
	if r.Type != "" {
		res.Metadata["external_type"] = r.Type
	}
	if r.Series != "" {
		res.Metadata["invoice_series"] = r.Series
	}
	if r.ContactID != "" {
		res.Metadata["contact_id"] = r.ContactID
	}
	if r.hasRemaining {
		res.Metadata["remaining"] = r.Remaining
	}
	return res
}

// FromProviderList parses a list response. Missing pagination metadata
// defaults to page 1 of 1. limit is the page size the caller asked for.
func (t *Translator) FromProviderList(raw []byte, limit int) (*invoice.ListResult, error) {
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return nil, errors.New("invoice list response is not a JSON object")
	}
	var l rawList
	if err := l.decode(d); err != nil {
		return nil, errors.Wrap(err, "decode invoice list")
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	page, pages := l.CurrentPage, l.TotalPages
	if page <= 0 {
		page = 1
	}
	if pages <= 0 {
		pages = 1
	}

	out := &invoice.ListResult{
		Invoices:   make([]invoice.Result, 0, len(l.Items)),
		Page:       page,
		Limit:      limit,
		TotalPages: pages,
		HasMore:    page < pages,
	}
	for _, r := range l.Items {
		out.Invoices = append(out.Invoices, *t.toResult(r))
	}
	out.Total = len(out.Invoices)
	if l.hasCount {
		out.Total = l.TotalCount
	}
	return out, nil
}

// ToProviderTemplatePayload buduje szablon w formacie dostawcy.
func (t *Translator) ToProviderTemplatePayload(id string, req invoice.TemplateRequest) TemplatePayload {
	p := TemplatePayload{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Notes:       req.Notes,
		IsDefault:   req.IsDefault,
		Details:     make([]DetailPayload, 0, len(req.Items)),
	}
	if req.Type != "" {
		p.ItemType = t.ProviderType(req.Type)
	}
	for _, it := range req.Items {
		p.Details = append(p.Details, toDetail(it))
	}
	return p
}

func (t *Translator) FromProviderTemplate(raw []byte) (*invoice.Template, error) {
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return nil, errors.New("template response is not a JSON object")
	}
	var r rawTemplate
	if err := r.decode(d); err != nil {
		return nil, errors.Wrap(err, "decode template")
	}
	tpl := toTemplate(r)
	return &tpl, nil
}

func (t *Translator) FromProviderTemplateList(raw []byte) ([]invoice.Template, error) {
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return nil, errors.New("template list response is not a JSON object")
	}
	var out []invoice.Template
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "data" || d.Next() != jx.Array {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			if d.Next() != jx.Object {
				return d.Skip()
			}
			var r rawTemplate
			if err := r.decode(d); err != nil {
				return err
			}
			out = append(out, toTemplate(r))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode template list")
	}
	return out, nil
}

func toTemplate(r rawTemplate) invoice.Template {
	tpl := invoice.Template{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Type:        providerTypes[r.ItemType],
		Notes:       r.Notes,
		IsDefault:   r.IsDefault,
		Items:       make([]invoice.LineItem, 0, len(r.Details)),
		CreatedAt:   parseDate(r.CreatedAt),
		UpdatedAt:   parseDate(r.UpdatedAt),
	}
	for _, det := range r.Details {
		tpl.Items = append(tpl.Items, det.toLineItem())
	}
	return tpl
}

func (r rawDetail) toLineItem() invoice.LineItem {
	it := invoice.LineItem{
		ProductID:   r.ProductID,
		Description: r.Description,
		Quantity:    r.Quantity,
		UnitPrice:   r.UnitPrice,
		TaxRate:     r.VATRate,
		Subtotal:    r.NetTotal,
		Total:       r.GrossTotal,
	}
	// brak sum w odpowiedzi: policz z ilości, ceny i stawki VAT
	net := decimal.NewFromFloat(r.Quantity).Mul(decimal.NewFromFloat(r.UnitPrice))
	if !r.hasNet {
		it.Subtotal = net.InexactFloat64()
	}
	if !r.hasGross {
		vat := net.Mul(decimal.NewFromFloat(r.VATRate)).Div(decimal.NewFromInt(100))
		it.Total = net.Add(vat).InexactFloat64()
	}
	return it
}

func (t *Translator) ToProviderPaymentPayload(p invoice.Payment) []byte {
	return encodeResource(resourcePayments, func(e *jx.Encoder) {
		strField(e, "date", formatDate(p.PaidDate))
		numField(e, "amount", p.Amount)
		strField(e, "method", strings.ToLower(string(p.Method)))
		strField(e, "account_id", p.AccountID)
		strField(e, "notes", p.Reference)
	})
}

func (t *Translator) ToProviderCancelPayload(reason string) []byte {
	return encodeResource(resourceCancellations, func(e *jx.Encoder) {
		strField(e, "reason", reason)
	})
}

func (t *Translator) ToProviderSendPayload(method invoice.DeliveryMethod) []byte {
	return encodeResource(resourceSharings, func(e *jx.Encoder) {
		strField(e, "method", strings.ToLower(string(method)))
	})
}

// FromProviderSendResponse reads the optional sent_at timestamp of a sharing.
func (t *Translator) FromProviderSendResponse(raw []byte) *time.Time {
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return nil
	}
	var sentAt string
	var walk func(d *jx.Decoder) error
	walk = func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "data", "attributes":
				if d.Next() != jx.Object {
					return d.Skip()
				}
				return walk(d)
			case "sent_at":
				var err error
				sentAt, err = readString(d)
				return err
			default:
				return d.Skip()
			}
		})
	}
	if err := walk(d); err != nil || sentAt == "" {
		return nil
	}
	ts := parseDate(sentAt)
	if ts.IsZero() {
		return nil
	}
	return &ts
}

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

// Typy zasobów JSON:API po stronie Paraşüt.
const (
	resourceSalesInvoices  = "sales_invoices"
	resourceInvoiceDetails = "sales_invoice_details"
	resourceContacts       = "contacts"
	resourceCategories     = "item_categories"
	resourceProducts       = "products"
	resourceTemplates      = "invoice_templates"
	resourcePayments       = "payments"
	resourceCancellations  = "cancellations"
	resourceSharings       = "sharings"
)

// ResourceRef points at a related JSON:API resource.
type ResourceRef struct {
	Type string
	ID   string
}

// InvoicePayload wire shape of a sales invoice sent on create.
type InvoicePayload struct {
	ID            string
	Type          string
	Attributes    InvoiceAttributes
	Relationships InvoiceRelationships
}

// InvoiceAttributes flat scalar fields. Every field is always emitted.
type InvoiceAttributes struct {
	Description         string
	IssueDate           string
	DueDate             string
	InvoiceSeries       string
	InvoiceID           string
	Currency            string
	ExchangeRate        float64
	WithholdingRate     float64
	VATWithholdingRate  float64
	InvoiceDiscountType string
	InvoiceDiscount     float64
	NetTotal            float64
	GrossTotal          float64
	TotalVAT            float64
}

type InvoiceRelationships struct {
	Category *ResourceRef
	Contact  ResourceRef
	Details  []DetailPayload
}

// DetailPayload pozycja faktury (sales_invoice_details).
type DetailPayload struct {
	Quantity    float64
	UnitPrice   float64
	VATRate     float64
	Description string
	NetTotal    float64
	GrossTotal  float64
	Product     *ResourceRef
}

func (p InvoicePayload) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("data")
	e.ObjStart()
	if p.ID != "" {
		e.FieldStart("id")
		e.Str(p.ID)
	}
	e.FieldStart("type")
	e.Str(p.Type)
	e.FieldStart("attributes")
	p.Attributes.encode(e)
	e.FieldStart("relationships")
	p.Relationships.encode(e)
	e.ObjEnd()
	e.ObjEnd()
}

func (p InvoicePayload) Bytes() []byte {
	var e jx.Encoder
	p.Encode(&e)
	return e.Bytes()
}

func (a InvoiceAttributes) encode(e *jx.Encoder) {
	e.ObjStart()
	strField(e, "description", a.Description)
	strField(e, "issue_date", a.IssueDate)
	strField(e, "due_date", a.DueDate)
	strField(e, "invoice_series", a.InvoiceSeries)
	strField(e, "invoice_id", a.InvoiceID)
	strField(e, "currency", a.Currency)
	numField(e, "exchange_rate", a.ExchangeRate)
	numField(e, "withholding_rate", a.WithholdingRate)
	numField(e, "vat_withholding_rate", a.VATWithholdingRate)
	strField(e, "invoice_discount_type", a.InvoiceDiscountType)
	numField(e, "invoice_discount", a.InvoiceDiscount)
	numField(e, "net_total", a.NetTotal)
	numField(e, "gross_total", a.GrossTotal)
	numField(e, "total_vat", a.TotalVAT)
	e.ObjEnd()
}

func (r InvoiceRelationships) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("category")
	encodeRelationship(e, r.Category)
	e.FieldStart("contact")
	encodeRelationship(e, &r.Contact)
	e.FieldStart("details")
	encodeDetails(e, r.Details)
	e.ObjEnd()
}

func encodeDetails(e *jx.Encoder, details []DetailPayload) {
	e.ObjStart()
	e.FieldStart("data")
	e.ArrStart()
	for _, d := range details {
		d.encode(e)
	}
	e.ArrEnd()
	e.ObjEnd()
}

func (d DetailPayload) encode(e *jx.Encoder) {
	e.ObjStart()
	strField(e, "type", resourceInvoiceDetails)
	e.FieldStart("attributes")
	e.ObjStart()
	numField(e, "quantity", d.Quantity)
	numField(e, "unit_price", d.UnitPrice)
	numField(e, "vat_rate", d.VATRate)
	strField(e, "description", d.Description)
	numField(e, "net_total", d.NetTotal)
	numField(e, "gross_total", d.GrossTotal)
	e.ObjEnd()
	e.FieldStart("relationships")
	e.ObjStart()
	e.FieldStart("product")
	encodeRelationship(e, d.Product)
	e.ObjEnd()
	e.ObjEnd()
}

// encodeRelationship pisze {"data": {...}} albo {"data": null}.
func encodeRelationship(e *jx.Encoder, r *ResourceRef) {
	e.ObjStart()
	e.FieldStart("data")
	if r == nil || r.ID == "" {
		e.Null()
	} else {
		e.ObjStart()
		strField(e, "type", r.Type)
		strField(e, "id", r.ID)
		e.ObjEnd()
	}
	e.ObjEnd()
}

// UpdatePayload partial update; nil fields are omitted from the wire.
type UpdatePayload struct {
	ID          string
	Status      *string
	PaymentDate *string
	Description *string
}

func (p UpdatePayload) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("data")
	e.ObjStart()
	strField(e, "id", p.ID)
	strField(e, "type", resourceSalesInvoices)
	e.FieldStart("attributes")
	e.ObjStart()
	if p.Status != nil {
		strField(e, "status", *p.Status)
	}
	if p.PaymentDate != nil {
		strField(e, "payment_date", *p.PaymentDate)
	}
	if p.Description != nil {
		strField(e, "description", *p.Description)
	}
	e.ObjEnd()
	e.ObjEnd()
	e.ObjEnd()
}

func (p UpdatePayload) Bytes() []byte {
	var e jx.Encoder
	p.Encode(&e)
	return e.Bytes()
}

// TemplatePayload szablon faktury po stronie dostawcy.
type TemplatePayload struct {
	ID          string
	Name        string
	Description string
	ItemType    string
	Notes       string
	IsDefault   bool
	Details     []DetailPayload
}

func (p TemplatePayload) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("data")
	e.ObjStart()
	if p.ID != "" {
		strField(e, "id", p.ID)
	}
	strField(e, "type", resourceTemplates)
	e.FieldStart("attributes")
	e.ObjStart()
	strField(e, "name", p.Name)
	strField(e, "description", p.Description)
	strField(e, "item_type", p.ItemType)
	strField(e, "notes", p.Notes)
	e.FieldStart("is_default")
	e.Bool(p.IsDefault)
	e.ObjEnd()
	e.FieldStart("relationships")
	e.ObjStart()
	e.FieldStart("details")
	encodeDetails(e, p.Details)
	e.ObjEnd()
	e.ObjEnd()
	e.ObjEnd()
}

func (p TemplatePayload) Bytes() []byte {
	var e jx.Encoder
	p.Encode(&e)
	return e.Bytes()
}

// encodeResource builds {"data":{"type":typ,"attributes":{...}}} for the
// small action payloads (payments, cancellations, sharings).
func encodeResource(typ string, attrs func(e *jx.Encoder)) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("data")
	e.ObjStart()
	strField(&e, "type", typ)
	e.FieldStart("attributes")
	e.ObjStart()
	attrs(&e)
	e.ObjEnd()
	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

func strField(e *jx.Encoder, name, v string) {
	e.FieldStart(name)
	e.Str(v)
}

func numField(e *jx.Encoder, name string, v float64) {
	e.FieldStart(name)
	e.Float64(v)
}

// ----- decoding -----

// rawInvoice collects invoice fields from either {"data":{"attributes":{..}}}
// or a flat object.
type rawInvoice struct {
	ID          string
	Type        string
	InvoiceNo   string
	Series      string
	SeqID       string
	Status      string
	Currency    string
	IssueDate   string
	DueDate     string
	PaymentDate string
	Description string
	ContactID   string
	NetTotal    float64
	GrossTotal  float64
	TotalVAT    float64
	Remaining   float64

	hasVAT       bool
	hasRemaining bool
	seen         bool
}

func (r *rawInvoice) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "data", "attributes":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return r.decode(d)
		case "relationships":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, rel string) error {
				if rel != "contact" {
					return d.Skip()
				}
				ref, err := readRelationship(d)
				r.ContactID = ref.ID
				return err
			})
		case "id":
			r.ID, err = readString(d)
		case "type":
			r.Type, err = readString(d)
		case "invoice_no", "invoice_number":
			r.InvoiceNo, err = readString(d)
		case "invoice_series":
			r.Series, err = readString(d)
		case "invoice_id":
			r.SeqID, err = readString(d)
		case "status":
			r.Status, err = readString(d)
		case "currency":
			r.Currency, err = readString(d)
		case "issue_date":
			r.IssueDate, err = readString(d)
		case "due_date":
			r.DueDate, err = readString(d)
		case "payment_date", "paid_date":
			r.PaymentDate, err = readString(d)
		case "description", "notes":
			r.Description, err = readString(d)
		case "net_total", "subtotal":
			r.NetTotal, err = readNumber(d)
		case "gross_total", "total":
			r.GrossTotal, err = readNumber(d)
		case "total_vat", "tax_total":
			r.TotalVAT, err = readNumber(d)
			r.hasVAT = true
		case "remaining":
			r.Remaining, err = readNumber(d)
			r.hasRemaining = true
		default:
			return d.Skip()
		}
		r.seen = true
		return err
	})
}

type rawList struct {
	Items       []rawInvoice
	TotalCount  int
	TotalPages  int
	CurrentPage int
	hasCount    bool
}

func (l *rawList) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "data":
			if d.Next() != jx.Array {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				if d.Next() != jx.Object {
					return d.Skip()
				}
				var r rawInvoice
				if err := r.decode(d); err != nil {
					return err
				}
				l.Items = append(l.Items, r)
				return nil
			})
		case "meta":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				var (
					v   float64
					err error
				)
				switch key {
				case "total_count", "total":
					v, err = readNumber(d)
					l.TotalCount = int(v)
					l.hasCount = true
				case "total_pages":
					v, err = readNumber(d)
					l.TotalPages = int(v)
				case "current_page":
					v, err = readNumber(d)
					l.CurrentPage = int(v)
				default:
					return d.Skip()
				}
				return err
			})
		default:
			return d.Skip()
		}
	})
}

type rawDetail struct {
	Quantity    float64
	UnitPrice   float64
	VATRate     float64
	NetTotal    float64
	GrossTotal  float64
	Description string
	ProductID   string

	hasNet   bool
	hasGross bool
}

func (r *rawDetail) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "attributes":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return r.decode(d)
		case "relationships":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, rel string) error {
				if rel != "product" {
					return d.Skip()
				}
				ref, err := readRelationship(d)
				r.ProductID = ref.ID
				return err
			})
		case "quantity":
			r.Quantity, err = readNumber(d)
		case "unit_price":
			r.UnitPrice, err = readNumber(d)
		case "vat_rate":
			r.VATRate, err = readNumber(d)
		case "net_total":
			r.NetTotal, err = readNumber(d)
			r.hasNet = true
		case "gross_total":
			r.GrossTotal, err = readNumber(d)
			r.hasGross = true
		case "description":
			r.Description, err = readString(d)
		default:
			return d.Skip()
		}
		return err
	})
}

type rawTemplate struct {
	ID          string
	Name        string
	Description string
	ItemType    string
	Notes       string
	CreatedAt   string
	UpdatedAt   string
	IsDefault   bool
	Details     []rawDetail
}

func (r *rawTemplate) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "data", "attributes":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return r.decode(d)
		case "relationships":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, rel string) error {
				if rel != "details" || d.Next() != jx.Object {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					if key != "data" || d.Next() != jx.Array {
						return d.Skip()
					}
					return d.Arr(func(d *jx.Decoder) error {
						if d.Next() != jx.Object {
							return d.Skip()
						}
						var det rawDetail
						if err := det.decode(d); err != nil {
							return err
						}
						r.Details = append(r.Details, det)
						return nil
					})
				})
			})
		case "id":
			r.ID, err = readString(d)
		case "name":
			r.Name, err = readString(d)
		case "description":
			r.Description, err = readString(d)
		case "item_type":
			r.ItemType, err = readString(d)
		case "notes":
			r.Notes, err = readString(d)
		case "created_at":
			r.CreatedAt, err = readString(d)
		case "updated_at":
			r.UpdatedAt, err = readString(d)
		case "is_default":
			r.IsDefault, err = readBool(d)
		default:
			return d.Skip()
		}
		return err
	})
}

func readRelationship(d *jx.Decoder) (ResourceRef, error) {
	var ref ResourceRef
	if d.Next() != jx.Object {
		return ref, d.Skip()
	}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "data" || d.Next() != jx.Object {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				ref.ID, err = readString(d)
			case "type":
				ref.Type, err = readString(d)
			default:
				return d.Skip()
			}
			return err
		})
	})
	return ref, err
}

// readString accepts strings, numbers and booleans; null gives "".
func readString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		f, err := d.Float64()
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case jx.Bool:
		b, err := d.Bool()
		return strconv.FormatBool(b), err
	case jx.Null:
		return "", d.Null()
	default:
		return "", d.Skip()
	}
}

// readNumber accepts JSON numbers and numeric strings ("118.00"); null and ""
// give 0.
func readNumber(d *jx.Decoder) (float64, error) {
	switch d.Next() {
	case jx.Number:
		return d.Float64()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return 0, errors.Wrapf(err, "parse number %q", s)
		}
		return v.InexactFloat64(), nil
	case jx.Null:
		return 0, d.Null()
	default:
		return 0, d.Skip()
	}
}

func readBool(d *jx.Decoder) (bool, error) {
	switch d.Next() {
	case jx.Bool:
		return d.Bool()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return false, err
		}
		b, _ := strconv.ParseBool(s)
		return b, nil
	case jx.Null:
		return false, d.Null()
	default:
		return false, d.Skip()
	}
}

// parseDate accepts YYYY-MM-DD and RFC 3339; anything else yields zero time.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// decodeErrorBody wyciąga komunikat z odpowiedzi błędu: JSON:API "errors",
// OAuth "error_description" albo "message".
func decodeErrorBody(body []byte) (string, []invoice.ErrorDetail) {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return strings.TrimSpace(string(truncate(body, 200))), nil
	}

	var (
		msg     string
		code    string
		details []invoice.ErrorDetail
	)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "errors":
			if d.Next() != jx.Array {
				return d.Skip()
			}
			return d.Arr(func(d *jx.Decoder) error {
				if d.Next() != jx.Object {
					return d.Skip()
				}
				var det invoice.ErrorDetail
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "title":
						det.Title, err = readString(d)
					case "detail":
						det.Detail, err = readString(d)
					case "source":
						var ref ResourceRef
						if d.Next() != jx.Object {
							return d.Skip()
						}
						err = d.Obj(func(d *jx.Decoder, key string) error {
							if key != "pointer" && key != "parameter" {
								return d.Skip()
							}
							var err error
							ref.ID, err = readString(d)
							return err
						})
						det.Source = ref.ID
					default:
						return d.Skip()
					}
					return err
				})
				details = append(details, det)
				return err
			})
		case "error":
			code, err = readString(d)
		case "error_description", "message":
			msg, err = readString(d)
		default:
			return d.Skip()
		}
		return err
	})

	if msg == "" {
		msg = code
	}
	if msg == "" && len(details) > 0 {
		msg = details[0].Title
	}
	return msg, details
}

package invoice

import "fmt"

// Capabilities static description of provider limits. Callers use it to
// reject requests before attempting a network call.
type Capabilities struct {
	Provider           string
	SupportedTypes     []Type
	SupportedFormats   []string
	PaymentMethods     []PaymentMethod
	DeliveryMethods    []DeliveryMethod
	Currencies         []string
	MaxItemsPerInvoice int
	MaxInvoiceAmount   float64
}

func (c Capabilities) SupportsType(t Type) bool {
	for _, v := range c.SupportedTypes {
		if v == t {
			return true
		}
	}
	return false
}

func (c Capabilities) SupportsDelivery(m DeliveryMethod) bool {
	for _, v := range c.DeliveryMethods {
		if v == m {
			return true
		}
	}
	return false
}

// Check validates provider limits for a create request.
func (c Capabilities) Check(req CreateRequest) error {
	if len(c.SupportedTypes) > 0 && !c.SupportsType(req.Type) {
		return &ValidationError{Field: "Type", Reason: fmt.Sprintf("%s invoices are not supported by %s", req.Type, c.Provider)}
	}
	if c.MaxItemsPerInvoice > 0 && len(req.Items) > c.MaxItemsPerInvoice {
		return &ValidationError{Field: "Items", Reason: fmt.Sprintf("%d items exceed the limit of %d", len(req.Items), c.MaxItemsPerInvoice)}
	}
	if c.MaxInvoiceAmount > 0 {
		var total float64
		for _, it := range req.Items {
			total += it.Total
		}
		if total > c.MaxInvoiceAmount {
			return &ValidationError{Field: "Items", Reason: fmt.Sprintf("invoice amount %.2f exceeds the limit of %.2f", total, c.MaxInvoiceAmount)}
		}
	}
	return nil
}

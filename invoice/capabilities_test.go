package invoice

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestCapabilities_Check(t *testing.T) {
	caps := Capabilities{
		Provider:           "test",
		SupportedTypes:     []Type{TypeSales},
		MaxItemsPerInvoice: 1,
		MaxInvoiceAmount:   1000,
	}

	assert.NoError(t, caps.Check(validRequest()))

	req := validRequest()
	req.Type = TypeRefund
	var ve *ValidationError
	assert.True(t, errors.As(caps.Check(req), &ve))
	assert.Equal(t, "Type", ve.Field)

	req = validRequest()
	req.Items = append(req.Items, req.Items[0])
	assert.Error(t, caps.Check(req))

	req = validRequest()
	req.Items[0].Total = 5000
	assert.Error(t, caps.Check(req))
}

func TestCapabilities_Supports(t *testing.T) {
	caps := Capabilities{DeliveryMethods: []DeliveryMethod{DeliveryEmail}}
	assert.True(t, caps.SupportsDelivery(DeliveryEmail))
	assert.False(t, caps.SupportsDelivery(DeliverySMS))
	assert.False(t, caps.SupportsType(TypeSales))
}

func TestIdempotencyKeyFromContext(t *testing.T) {
	_, ok := IdempotencyKeyFromContext(context.Background())
	assert.False(t, ok)

	_, ok = IdempotencyKeyFromContext(WithIdempotencyKey(context.Background(), ""))
	assert.False(t, ok)

	key, ok := IdempotencyKeyFromContext(WithIdempotencyKey(context.Background(), "k-1"))
	assert.True(t, ok)
	assert.Equal(t, "k-1", key)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "overdue", StatusOverdue.Lower())
	assert.True(t, StatusRefunded.Valid())
	assert.False(t, Status("paid").Valid())
	assert.Len(t, Statuses(), 8)
}

package parasut

import (
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeErrorBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		msg     string
		details int
	}{
		{"json api", `{"errors":[{"title":"Invalid","detail":"Contact can't be blank","source":{"pointer":"/data/relationships/contact"}}]}`, "Invalid", 1},
		{"oauth", `{"error":"invalid_grant","error_description":"The provided authorization grant is invalid"}`, "The provided authorization grant is invalid", 0},
		{"oauth code only", `{"error":"invalid_client"}`, "invalid_client", 0},
		{"message", `{"message":"Not Found"}`, "Not Found", 0},
		{"plain text", "Bad Gateway\n", "Bad Gateway", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, details := decodeErrorBody([]byte(tt.body))
			assert.Equal(t, tt.msg, msg)
			assert.Len(t, details, tt.details)
		})
	}

	_, details := decodeErrorBody([]byte(`{"errors":[{"title":"Invalid","detail":"blank","source":{"pointer":"/data/attributes/name"}}]}`))
	require.Len(t, details, 1)
	assert.Equal(t, "/data/attributes/name", details[0].Source)
	assert.Equal(t, "/data/attributes/name: blank", details[0].String())
}

func TestReadNumber(t *testing.T) {
	for in, want := range map[string]float64{
		`12.5`:     12.5,
		`"118.00"`: 118,
		`""`:       0,
		`null`:     0,
		`" 7 "`:    7,
	} {
		v, err := readNumber(jx.DecodeStr(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, v, in)
	}
	_, err := readNumber(jx.DecodeStr(`"1,5"`))
	assert.Error(t, err)
}

func TestReadString(t *testing.T) {
	for in, want := range map[string]string{
		`"a"`:   "a",
		`42`:    "42",
		`true`:  "true",
		`null`:  "",
		`[1,2]`: "",
	} {
		v, err := readString(jx.DecodeStr(in))
		require.NoError(t, err, in)
		assert.Equal(t, want, v, in)
	}
}

func TestParseAndFormatDate(t *testing.T) {
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), parseDate("2024-01-02"))
	assert.Equal(t, 13, parseDate("2024-01-02T13:00:00Z").Hour())
	assert.True(t, parseDate("02/01/2024").IsZero())
	assert.True(t, parseDate("").IsZero())

	assert.Equal(t, "", formatDate(time.Time{}))
	assert.Equal(t, "2024-01-02", formatDate(time.Date(2024, 1, 2, 23, 59, 0, 0, time.UTC)))
}

func TestUpdatePayload_OmitsNilFields(t *testing.T) {
	notes := "memo"
	raw := string(UpdatePayload{ID: "5", Description: &notes}.Bytes())
	assert.JSONEq(t, `{"data":{"id":"5","type":"sales_invoices","attributes":{"description":"memo"}}}`, raw)
}

func TestInvoicePayload_NullCategory(t *testing.T) {
	raw := string(InvoicePayload{
		Type: "sales_invoice",
		Relationships: InvoiceRelationships{
			Contact: ResourceRef{Type: resourceContacts, ID: "c1"},
		},
	}.Bytes())
	assert.Contains(t, raw, `"category":{"data":null}`)
	assert.Contains(t, raw, `"contact":{"data":{"type":"contacts","id":"c1"}}`)
	assert.Contains(t, raw, `"details":{"data":[]}`)
}

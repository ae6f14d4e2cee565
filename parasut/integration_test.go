package parasut

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLiveSandbox uruchamiany tylko z prawdziwymi danymi w PARASUT_*.
func TestLiveSandbox(t *testing.T) {
	if os.Getenv("PARASUT_CLIENT_ID") == "" {
		t.Skip("PARASUT_CLIENT_ID not set, skipping live test")
	}
	logrus.SetLevel(logrus.DebugLevel)

	creds, err := LoadCredentials()
	require.NoError(t, err)

	a, err := New(creds)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	health := a.HealthCheck(ctx)
	require.Equal(t, invoice.Healthy, health.Status, health.Message)

	list, err := a.ListInvoices(ctx, invoice.SearchParams{Limit: 5})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(list.Invoices), 5)

	if len(list.Invoices) > 0 {
		inv, err := a.GetInvoice(ctx, list.Invoices[0].ID)
		require.NoError(t, err)
		require.NotNil(t, inv)
		t.Logf("invoice %s status %s total %.2f %s", inv.InvoiceNumber, inv.Status, inv.TotalAmount, inv.Currency)
	}
}

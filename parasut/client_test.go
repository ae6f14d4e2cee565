package parasut

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCompany = "1"

// fakeServer symuluje API Paraşüt: endpoint tokena i zasoby firmy testCompany.
type fakeServer struct {
	*httptest.Server
	mux        *http.ServeMux
	tokenCalls atomic.Int32

	mu     sync.Mutex
	grants []string
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{mux: http.NewServeMux()}
	f.mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := f.tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.grants = append(f.grants, r.PostForm.Get("grant_type"))
		f.mu.Unlock()
		assert.Equal(t, "id", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"bearer","expires_in":3600,"refresh_token":"refresh-%d"}`, n, n)
	})
	f.Server = httptest.NewServer(f.mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeServer) handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

func (f *fakeServer) grantTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.grants...)
}

func path(p string) string {
	return "/v4/" + testCompany + p
}

func newTestClient(t *testing.T, f *fakeServer, mutate func(*Credentials), opts ...Option) *Client {
	t.Helper()
	creds := Credentials{
		APIURL:        f.URL,
		ClientID:      "id",
		ClientSecret:  "secret",
		Username:      "user",
		Password:      "pass",
		CompanyID:     testCompany,
		TimeoutMS:     2000,
		RetryAttempts: 3,
	}
	if mutate != nil {
		mutate(&creds)
	}
	base := []Option{WithHTTPClient(f.Client()), WithRetryBackoff(time.Millisecond)}
	c, err := NewClient(creds, append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func invoiceJSON(id, status string, net, gross float64) string {
	return fmt.Sprintf(`{"data":{"id":%q,"type":"sales_invoices","attributes":{"invoice_no":"INV-%s","status":%q,"net_total":%g,"gross_total":%g,"currency":"TRY","issue_date":"2024-01-15"}}}`,
		id, id, status, net, gross)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestClient_Get_ReusesToken(t *testing.T) {
	f := newFakeServer(t)
	f.handle("GET "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		writeJSON(w, http.StatusOK, invoiceJSON(r.PathValue("id"), "paid", 100, 118))
	})
	c := newTestClient(t, f, nil)

	res, err := c.Get(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "42", res.ID)
	assert.Equal(t, invoice.StatusPaid, res.Status)
	assert.Equal(t, 18.0, res.TaxAmount)

	_, err = c.Get(context.Background(), "43")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.tokenCalls.Load())
	assert.Equal(t, TokenAuthenticated, c.Tokens().State())
}

func TestClient_Get_NotFoundIsNil(t *testing.T) {
	f := newFakeServer(t)
	var calls atomic.Int32
	f.handle("GET "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, `{"errors":[{"title":"Not Found"}]}`)
	})
	c := newTestClient(t, f, nil)

	res, err := c.Get(context.Background(), "missing-id")
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.EqualValues(t, 1, calls.Load(), "not found is not retried")
}

func TestClient_GetByNumber(t *testing.T) {
	f := newFakeServer(t)
	f.handle("GET "+path("/sales_invoices"), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("invoice_number") == "INV-7" {
			writeJSON(w, http.StatusOK, `{"data":[`+strings.TrimSuffix(strings.TrimPrefix(invoiceJSON("7", "sent", 10, 10), `{"data":`), "}")+`],"meta":{"total_count":1}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"data":[],"meta":{"total_count":0}}`)
	})
	c := newTestClient(t, f, nil)

	res, err := c.GetByNumber(context.Background(), "INV-7")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "7", res.ID)

	res, err = c.GetByNumber(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestClient_Create_EchoScenario(t *testing.T) {
	f := newFakeServer(t)
	f.handle("POST "+path("/sales_invoices"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Idempotency-Key"))
		body, _ := io.ReadAll(r.Body)
		writeJSON(w, http.StatusCreated, string(body))
	})
	c := newTestClient(t, f, nil)

	res, err := c.Create(context.Background(), salesRequest())
	require.NoError(t, err)
	assert.Equal(t, 354.0, res.TotalAmount)
	assert.Equal(t, "TRY", res.Currency)
	assert.Equal(t, invoice.StatusDraft, res.Status)
}

func TestClient_Create_NotRetriedWithoutIdempotencyKey(t *testing.T) {
	f := newFakeServer(t)
	var calls atomic.Int32
	f.handle("POST "+path("/sales_invoices"), func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, `{"message":"maintenance"}`)
	})
	c := newTestClient(t, f, nil)

	_, err := c.Create(context.Background(), salesRequest())
	require.Error(t, err)
	var pe *invoice.ProviderRequestError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, opCreate, pe.Op)
	assert.Equal(t, "maintenance", pe.Message)
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_Create_RetriedWithIdempotencyKey(t *testing.T) {
	f := newFakeServer(t)
	var calls atomic.Int32
	f.handle("POST "+path("/sales_invoices"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, `{}`)
			return
		}
		writeJSON(w, http.StatusCreated, invoiceJSON("9", "draft", 300, 354))
	})
	c := newTestClient(t, f, nil)

	ctx := invoice.WithIdempotencyKey(context.Background(), "key-1")
	res, err := c.Create(ctx, salesRequest())
	require.NoError(t, err)
	assert.Equal(t, "9", res.ID)
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_ReadRetriesUpToAttempts(t *testing.T) {
	f := newFakeServer(t)
	var calls atomic.Int32
	f.handle("GET "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusInternalServerError, `{"errors":[{"title":"boom"}]}`)
	})
	c := newTestClient(t, f, nil)

	_, err := c.Get(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, invoice.IsRetryable(err))
	assert.EqualValues(t, 3, calls.Load())
}

func TestClient_ReauthenticatesOnceOn401(t *testing.T) {
	f := newFakeServer(t)
	var calls atomic.Int32
	f.handle("GET "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_token"}`)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, invoiceJSON("5", "sent", 1, 1))
	})
	c := newTestClient(t, f, nil)

	res, err := c.Get(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "5", res.ID)
	assert.Equal(t, []string{grantPassword, grantRefresh}, f.grantTypes())
}

func TestClient_Persistent401Fails(t *testing.T) {
	f := newFakeServer(t)
	var calls atomic.Int32
	f.handle("DELETE "+path("/invoice_templates/{id}"), func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_token"}`)
	})
	c := newTestClient(t, f, nil)

	res := c.DeleteTemplate(context.Background(), "t1")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "401")
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_TokenEndpointFailure(t *testing.T) {
	f := &fakeServer{mux: http.NewServeMux()}
	f.handle("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":"invalid_client","error_description":"Client authentication failed"}`)
	})
	f.Server = httptest.NewServer(f.mux)
	t.Cleanup(f.Close)
	c := newTestClient(t, f, nil)

	_, err := c.List(context.Background(), invoice.SearchParams{})
	var ae *invoice.AuthenticationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "Client authentication failed", ae.Reason)

	health := c.HealthCheck(context.Background())
	assert.Equal(t, invoice.Unhealthy, health.Status)
	assert.Equal(t, "init", health.Details["token_state"])
}

func TestClient_Send_SoftFailure(t *testing.T) {
	f := newFakeServer(t)
	f.handle("POST "+path("/sales_invoices/{id}/send"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"errors":[{"title":"Mail server down"}]}`)
	})
	c := newTestClient(t, f, nil)

	res := c.Send(context.Background(), "42", invoice.DeliveryEmail)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Mail server down")
	assert.Equal(t, invoice.DeliveryEmail, res.Method)
	assert.Nil(t, res.SentAt)
}

func TestClient_Send_Success(t *testing.T) {
	f := newFakeServer(t)
	f.handle("POST "+path("/sales_invoices/{id}/send"), func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"method":"email"`)
		writeJSON(w, http.StatusOK, `{"data":{"type":"sharings","attributes":{"sent_at":"2024-06-01T08:00:00Z"}}}`)
	})
	c := newTestClient(t, f, nil)

	res := c.Send(context.Background(), "42", invoice.DeliveryEmail)
	assert.True(t, res.Success)
	require.NotNil(t, res.SentAt)
	assert.Equal(t, 8, res.SentAt.Hour())
}

func TestClient_List_QueryAndLimitEcho(t *testing.T) {
	f := newFakeServer(t)
	f.handle("GET "+path("/sales_invoices"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		writeJSON(w, http.StatusOK, `{"data":[],"meta":{"current_page":2,"total_pages":3,"total_count":25}}`)
	})
	c := newTestClient(t, f, nil)

	res, err := c.List(context.Background(), invoice.SearchParams{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Limit)
	assert.Equal(t, 2, res.Page)
	assert.True(t, res.HasMore)
	assert.Equal(t, 25, res.Total)
}

func TestClient_Stats_PagesThroughList(t *testing.T) {
	f := newFakeServer(t)
	pages := map[string]string{
		"1": `{"data":[{"id":"1","attributes":{"status":"paid","gross_total":100,"net_total":100}},{"id":"2","type":"sales_invoices","attributes":{"status":"overdue","gross_total":50.5,"net_total":50.5}}],"meta":{"current_page":1,"total_pages":2}}`,
		"2": `{"data":[{"id":"3","attributes":{"status":"sent","gross_total":10,"net_total":10}},{"id":"4","attributes":{"status":"cancelled","gross_total":7,"net_total":7}}],"meta":{"current_page":2,"total_pages":2}}`,
	}
	f.handle("GET "+path("/sales_invoices"), func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		writeJSON(w, http.StatusOK, pages[r.URL.Query().Get("page")])
	})
	c := newTestClient(t, f, nil)

	s, err := c.Stats(context.Background(), invoice.SearchParams{})
	require.NoError(t, err)
	assert.Equal(t, 4, s.TotalInvoices)
	assert.Equal(t, 167.5, s.TotalAmount)
	assert.Equal(t, 100.0, s.PaidAmount)
	assert.Equal(t, 50.5, s.OverdueAmount)
	assert.Equal(t, 10.0, s.PendingAmount)
	assert.Equal(t, 7.0, s.CancelledAmount)
	assert.Equal(t, "TRY", s.Currency)
	assert.Equal(t, 1, s.ByStatus[invoice.StatusPaid])
	assert.Equal(t, 1, s.ByType[invoice.TypeSales])
}

func TestClient_MarkAsPaid_RefetchesInvoice(t *testing.T) {
	f := newFakeServer(t)
	f.handle("POST "+path("/sales_invoices/{id}/payments"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, `{"data":{"id":"pay-1","type":"payments","attributes":{"amount":"118.0"}}}`)
	})
	f.handle("GET "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, invoiceJSON(r.PathValue("id"), "paid", 100, 118))
	})
	c := newTestClient(t, f, nil)

	res, err := c.MarkAsPaid(context.Background(), "42", invoice.Payment{PaidDate: time.Now(), Amount: 118})
	require.NoError(t, err)
	assert.Equal(t, "42", res.ID)
	assert.Equal(t, invoice.StatusPaid, res.Status)
}

func TestClient_Cancel_UsesInvoiceFromResponse(t *testing.T) {
	f := newFakeServer(t)
	f.handle("POST "+path("/sales_invoices/{id}/cancel"), func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"reason":"duplicate"`)
		writeJSON(w, http.StatusOK, invoiceJSON(r.PathValue("id"), "cancelled", 1, 1))
	})
	c := newTestClient(t, f, nil)

	res, err := c.Cancel(context.Background(), "42", "duplicate")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusCancelled, res.Status)
}

func TestClient_GeneratePDF(t *testing.T) {
	f := newFakeServer(t)
	f.handle("GET "+path("/sales_invoices/1/pdf"), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-direct")
	})
	f.handle("GET "+path("/sales_invoices/2/pdf"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"data":{"type":"e_document_pdfs","attributes":{"url":"%s/files/2.pdf"}}}`, f.URL))
	})
	f.handle("GET /files/2.pdf", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = io.WriteString(w, "%PDF-linked")
	})
	c := newTestClient(t, f, nil)

	pdf, err := c.GeneratePDF(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-direct", string(pdf))

	pdf, err = c.GeneratePDF(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-linked", string(pdf))
}

func TestClient_Templates(t *testing.T) {
	f := newFakeServer(t)
	f.handle("GET "+path("/invoice_templates"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":[{"id":"t1","attributes":{"name":"monthly"}}]}`)
	})
	f.handle("POST "+path("/invoice_templates"), func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"name":"weekly"`)
		writeJSON(w, http.StatusCreated, `{"data":{"id":"t2","attributes":{"name":"weekly"}}}`)
	})
	f.handle("PUT "+path("/invoice_templates/{id}"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, fmt.Sprintf(`{"data":{"id":%q,"attributes":{"name":"renamed"}}}`, r.PathValue("id")))
	})
	f.handle("DELETE "+path("/invoice_templates/{id}"), func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, f, nil)
	ctx := context.Background()

	list, err := c.Templates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "monthly", list[0].Name)

	created, err := c.CreateTemplate(ctx, invoice.TemplateRequest{Name: "weekly"})
	require.NoError(t, err)
	assert.Equal(t, "t2", created.ID)

	updated, err := c.UpdateTemplate(ctx, "t2", invoice.TemplateRequest{Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	assert.True(t, c.DeleteTemplate(ctx, "t2").Success)
}

func TestClient_HealthCheck(t *testing.T) {
	f := newFakeServer(t)
	f.handle("GET "+path("/me"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":{"id":"u1","type":"users"}}`)
	})
	c := newTestClient(t, f, func(c *Credentials) { c.Env = Sandbox })

	res := c.HealthCheck(context.Background())
	assert.Equal(t, invoice.Healthy, res.Status)
	assert.Equal(t, "authenticated", res.Details["token_state"])
	assert.Equal(t, "sandbox", res.Details["environment"])
	assert.Contains(t, res.Details, "latency_ms")
}

func TestClient_HealthCheck_RecoversPanic(t *testing.T) {
	f := newFakeServer(t)
	f.handle("GET "+path("/me"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data":{"id":"u1","type":"users"}}`)
	})
	c := newTestClient(t, f, nil)
	c.creds.Env = Environment(7)

	var res invoice.HealthResult
	require.NotPanics(t, func() { res = c.HealthCheck(context.Background()) })
	assert.Equal(t, invoice.Unhealthy, res.Status)
	assert.Equal(t, "Invalid environment", res.Details["error"])
	assert.Equal(t, "parasut", res.Details["provider"])
}

func TestClient_Update_SendsOnlyGivenFields(t *testing.T) {
	f := newFakeServer(t)
	f.handle("PUT "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.JSONEq(t,
			`{"data":{"id":"9","type":"sales_invoices","attributes":{"status":"paid","payment_date":"2024-04-02"}}}`,
			string(body))
		assert.NotContains(t, string(body), "description")
		writeJSON(w, http.StatusOK, invoiceJSON(r.PathValue("id"), "paid", 100, 118))
	})
	c := newTestClient(t, f, nil)

	paid := invoice.StatusPaid
	paidOn := time.Date(2024, 4, 2, 15, 0, 0, 0, time.UTC)
	res, err := c.Update(context.Background(), "9", invoice.UpdateRequest{Status: &paid, PaidDate: &paidOn})
	require.NoError(t, err)
	assert.Equal(t, "9", res.ID)
	assert.Equal(t, invoice.StatusPaid, res.Status)
}

func TestClient_Update_NotFoundIsError(t *testing.T) {
	f := newFakeServer(t)
	var calls atomic.Int32
	f.handle("PUT "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, `{"errors":[{"title":"Not Found"}]}`)
	})
	c := newTestClient(t, f, nil)

	paid := invoice.StatusPaid
	res, err := c.Update(context.Background(), "missing-id", invoice.UpdateRequest{Status: &paid})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, invoice.ErrNotFound)
	var pe *invoice.ProviderRequestError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, opUpdate, pe.Op)
	assert.EqualValues(t, 1, calls.Load(), "updates are not retried")
}

func TestNewClient_DoesNotModifyInjectedHTTPClient(t *testing.T) {
	f := newFakeServer(t)
	hc := f.Client()
	hc.Timeout = 0
	newTestClient(t, f, func(c *Credentials) { c.TimeoutMS = 1234 }, WithHTTPClient(hc))
	assert.Zero(t, hc.Timeout)
}

func TestClient_TimeoutIsTransportError(t *testing.T) {
	f := newFakeServer(t)
	f.handle("GET "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	})
	c := newTestClient(t, f, func(c *Credentials) {
		c.TimeoutMS = 50
		c.RetryAttempts = 1
	})

	_, err := c.Get(context.Background(), "1")
	var te *invoice.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, opGet, te.Op)
}

func TestClient_CancellationPropagates(t *testing.T) {
	f := newFakeServer(t)
	started := make(chan struct{})
	f.handle("GET "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	})
	c := newTestClient(t, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	_, err := c.Get(ctx, "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, invoice.IsRetryable(err))
}

func TestClient_MetricsAndFallbacks(t *testing.T) {
	f := newFakeServer(t)
	f.handle("GET "+path("/sales_invoices/{id}"), func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, invoiceJSON("1", "archived", 1, 1))
	})
	metrics := NewMetrics(prometheus.NewRegistry())
	c := newTestClient(t, f, nil, WithMetrics(metrics))

	res, err := c.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusDraft, res.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.fallbacks.WithLabelValues(FallbackKindStatus)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues(opGet, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.tokenRefresh.WithLabelValues(grantPassword, "success")))
}

func TestNewClient_RejectsMissingCredentials(t *testing.T) {
	_, err := NewClient(Credentials{ClientID: "x"})
	var ve *invoice.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "ClientSecret,CompanyID,Password,Username", ve.Field)
}

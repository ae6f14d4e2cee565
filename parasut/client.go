package parasut

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Nazwy operacji używane w błędach i metrykach.
const (
	opCreate         = "create invoice"
	opUpdate         = "update invoice"
	opGet            = "get invoice"
	opGetByNumber    = "get invoice by number"
	opList           = "list invoices"
	opStats          = "invoice stats"
	opSend           = "send invoice"
	opMarkAsPaid     = "mark invoice as paid"
	opCancel         = "cancel invoice"
	opPDF            = "generate pdf"
	opTemplates      = "get templates"
	opCreateTemplate = "create template"
	opUpdateTemplate = "update template"
	opDeleteTemplate = "delete template"
	opHealth         = "health check"

	defaultRetryBackoff = 200 * time.Millisecond
	jsonContentType     = "application/json"
)

// Client performs the Paraşüt API calls for single invoice actions. It is
// safe for concurrent use; the token held by its TokenManager is the only
// shared mutable state.
type Client struct {
	creds      Credentials
	rest       *resty.Client
	tokens     *TokenManager
	translator *Translator
	limiter    *rate.Limiter
	metrics    *Metrics

	attempts int
	backoff  time.Duration
}

type clientOptions struct {
	httpClient *http.Client
	metrics    *Metrics
	auth       Authenticator
	tokenOpts  []TokenOption
	backoff    time.Duration
}

type Option func(*clientOptions)

// WithHTTPClient sets the transport used for all calls. The client is copied,
// the caller's value is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = c }
}

func WithMetrics(m *Metrics) Option {
	return func(o *clientOptions) { o.metrics = m }
}

// WithAuthenticator replaces the OAuth facade, e.g. with a pre-issued token source.
func WithAuthenticator(a Authenticator) Option {
	return func(o *clientOptions) { o.auth = a }
}

func WithTokenOptions(opts ...TokenOption) Option {
	return func(o *clientOptions) { o.tokenOpts = append(o.tokenOpts, opts...) }
}

// WithRetryBackoff sets the base delay between retries; it doubles on each attempt.
func WithRetryBackoff(d time.Duration) Option {
	return func(o *clientOptions) { o.backoff = d }
}

// NewClient creates a client. No network call is made until the first operation.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	o := clientOptions{backoff: defaultRetryBackoff}
	for _, opt := range opts {
		opt(&o)
	}

	rest := newRestClient(creds, o.httpClient)
	auth := o.auth
	if auth == nil {
		auth = NewAuthFacade(creds, rest)
	}

	tokenOpts := []TokenOption{
		WithRefreshSkew(creds.TokenSkew),
		WithRefreshTimeout(creds.Timeout()),
		WithTokenMetrics(o.metrics),
	}
	tokenOpts = append(tokenOpts, o.tokenOpts...)

	translator := NewTranslator(creds.DefaultCurrency())
	translator.OnFallback = func(kind, value string) {
		logger.WithFields(logrus.Fields{"kind": kind, "value": value}).Warn("unmapped value, using default")
		o.metrics.fallback(kind)
	}

	c := &Client{
		creds:      creds,
		rest:       rest,
		tokens:     NewTokenManager(auth, tokenOpts...),
		translator: translator,
		metrics:    o.metrics,
		attempts:   creds.Attempts(),
		backoff:    o.backoff,
	}
	if creds.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(creds.RateLimit), 1)
	}
	return c, nil
}

// Tokens exposes the token manager (logout, health details).
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

func (c *Client) Translator() *Translator {
	return c.translator
}

// call opis jednego logicznego wywołania API.
type call struct {
	op     string
	method string
	url    string
	query  map[string]string
	body   []byte
	accept string
	key    string // Idempotency-Key
	retry  bool
}

func (c *Client) invoicesURL(parts ...string) string {
	return joinURL(c.creds.CompanyURL(), append([]string{resourceSalesInvoices}, parts...)...)
}

func (c *Client) templatesURL(parts ...string) string {
	return joinURL(c.creds.CompanyURL(), append([]string{resourceTemplates}, parts...)...)
}

// do executes the call with a single re-authentication on 401 and, for
// retryable calls, exponential backoff on transient failures.
func (c *Client) do(ctx context.Context, cl call) (*resty.Response, error) {
	start := time.Now()
	attempts := 1
	if cl.retry {
		attempts = c.attempts
	}

	var (
		resp   *resty.Response
		err    error
		reauth bool
	)
	for attempt := 1; ; {
		var unauthorized bool
		resp, unauthorized, err = c.send(ctx, &cl)
		if err == nil {
			break
		}
		if unauthorized && !reauth {
			reauth = true
			logger.WithField("op", cl.op).Debug("access token rejected, re-authenticating")
			continue
		}
		if attempt >= attempts || !invoice.IsRetryable(err) {
			break
		}
		wait := c.backoff << (attempt - 1)
		logger.WithFields(logrus.Fields{"op": cl.op, "attempt": attempt, "wait": wait}).
			Debugf("retrying after: %v", err)
		attempt++
		if !sleep(ctx, wait) {
			break
		}
	}

	c.metrics.observeRequest(cl.op, outcome(err), time.Since(start))
	return resp, err
}

// send wykonuje jedno żądanie HTTP. Drugi wynik jest true, gdy dostawca
// odrzucił token (401).
func (c *Client) send(ctx context.Context, cl *call) (*resty.Response, bool, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false, &invoice.TransportError{Op: cl.op, Err: err}
		}
	}

	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return nil, false, err
	}

	r := c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("X-Request-Id", uuid.NewString())
	if cl.query != nil {
		r.SetQueryParams(cl.query)
	}
	if cl.body != nil {
		r.SetHeader("Content-Type", jsonContentType).SetBody(cl.body)
	}
	if cl.accept != "" {
		r.SetHeader("Accept", cl.accept)
	}
	if cl.key != "" {
		r.SetHeader("Idempotency-Key", cl.key)
	}

	resp, err := r.Execute(cl.method, cl.url)
	if err != nil {
		return nil, false, &invoice.TransportError{Op: cl.op, Err: err}
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		c.tokens.expire(token)
		return resp, true, providerError(cl.op, resp)
	}
	if !resp.IsSuccess() {
		return resp, false, providerError(cl.op, resp)
	}
	return resp, false, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var (
		ae *invoice.AuthenticationError
		te *invoice.TransportError
		pe *invoice.ProviderRequestError
	)
	switch {
	case errors.Is(err, invoice.ErrNotFound):
		return "not_found"
	case errors.As(err, &ae):
		return "auth_error"
	case errors.As(err, &te):
		return "transport_error"
	case errors.As(err, &pe):
		return "provider_error"
	}
	return "error"
}

func malformed(op string, resp *resty.Response, err error) error {
	return &invoice.ProviderRequestError{
		Op:         op,
		StatusCode: resp.StatusCode(),
		Message:    err.Error(),
		Body:       truncate(resp.Body(), maxErrorBody),
	}
}

func (c *Client) parseInvoice(op string, resp *resty.Response) (*invoice.Result, error) {
	res, err := c.translator.FromProviderInvoice(resp.Body())
	if err != nil {
		return nil, malformed(op, resp, err)
	}
	return res, nil
}

// Create wysyła nową fakturę. Ponawiana tylko z kluczem idempotencji w ctx.
func (c *Client) Create(ctx context.Context, req invoice.CreateRequest) (*invoice.Result, error) {
	cl := call{
		op:     opCreate,
		method: resty.MethodPost,
		url:    c.invoicesURL(),
		body:   c.translator.ToProviderCreatePayload(req).Bytes(),
	}
	if key, ok := invoice.IdempotencyKeyFromContext(ctx); ok {
		cl.key = key
		cl.retry = true
	}
	resp, err := c.do(ctx, cl)
	if err != nil {
		return nil, err
	}
	return c.parseInvoice(opCreate, resp)
}

func (c *Client) Update(ctx context.Context, id string, req invoice.UpdateRequest) (*invoice.Result, error) {
	resp, err := c.do(ctx, call{
		op:     opUpdate,
		method: resty.MethodPut,
		url:    c.invoicesURL(id),
		body:   c.translator.ToProviderUpdatePayload(id, req).Bytes(),
	})
	if err != nil {
		return nil, err
	}
	return c.parseInvoice(opUpdate, resp)
}

// Get returns nil without error when the provider reports 404.
func (c *Client) Get(ctx context.Context, id string) (*invoice.Result, error) {
	resp, err := c.do(ctx, call{
		op:     opGet,
		method: resty.MethodGet,
		url:    c.invoicesURL(id),
		retry:  true,
	})
	if errors.Is(err, invoice.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.parseInvoice(opGet, resp)
}

// GetByNumber wyszukuje fakturę po numerze; pierwsze trafienie albo nil.
func (c *Client) GetByNumber(ctx context.Context, number string) (*invoice.Result, error) {
	lst, err := c.list(ctx, opGetByNumber, invoice.SearchParams{InvoiceNumber: number, Page: 1, Limit: 1})
	if errors.Is(err, invoice.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(lst.Invoices) == 0 {
		return nil, nil
	}
	res := lst.Invoices[0]
	return &res, nil
}

func (c *Client) List(ctx context.Context, params invoice.SearchParams) (*invoice.ListResult, error) {
	return c.list(ctx, opList, params)
}

func (c *Client) list(ctx context.Context, op string, params invoice.SearchParams) (*invoice.ListResult, error) {
	resp, err := c.do(ctx, call{
		op:     op,
		method: resty.MethodGet,
		url:    c.invoicesURL(),
		query:  c.translator.ToProviderSearchParams(params),
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	lst, err := c.translator.FromProviderList(resp.Body(), params.Limit)
	if err != nil {
		return nil, malformed(op, resp, err)
	}
	return lst, nil
}

// Send shares the invoice with the buyer. Failures are reported in the result,
// never as an error.
func (c *Client) Send(ctx context.Context, id string, method invoice.DeliveryMethod) invoice.SendResult {
	out := invoice.SendResult{Method: method}
	resp, err := c.do(ctx, call{
		op:     opSend,
		method: resty.MethodPost,
		url:    c.invoicesURL(id, "send"),
		body:   c.translator.ToProviderSendPayload(method),
	})
	if err != nil {
		logger.WithField("invoice_id", id).Errorf("send failed: %v", err)
		out.Message = err.Error()
		return out
	}
	out.Success = true
	out.Message = "invoice sent"
	out.SentAt = c.translator.FromProviderSendResponse(resp.Body())
	if out.SentAt == nil {
		now := time.Now().UTC()
		out.SentAt = &now
	}
	return out
}

func (c *Client) MarkAsPaid(ctx context.Context, id string, payment invoice.Payment) (*invoice.Result, error) {
	resp, err := c.do(ctx, call{
		op:     opMarkAsPaid,
		method: resty.MethodPost,
		url:    c.invoicesURL(id, "payments"),
		body:   c.translator.ToProviderPaymentPayload(payment),
	})
	if err != nil {
		return nil, err
	}
	return c.invoiceOrFetch(ctx, opMarkAsPaid, id, resp)
}

func (c *Client) Cancel(ctx context.Context, id string, reason string) (*invoice.Result, error) {
	resp, err := c.do(ctx, call{
		op:     opCancel,
		method: resty.MethodPost,
		url:    c.invoicesURL(id, "cancel"),
		body:   c.translator.ToProviderCancelPayload(reason),
	})
	if err != nil {
		return nil, err
	}
	return c.invoiceOrFetch(ctx, opCancel, id, resp)
}

// invoiceOrFetch zwraca fakturę z odpowiedzi akcji, a gdy odpowiedź opisuje
// inny zasób (np. płatność), pobiera fakturę ponownie.
func (c *Client) invoiceOrFetch(ctx context.Context, op, id string, resp *resty.Response) (*invoice.Result, error) {
	if res, err := c.translator.FromProviderInvoice(resp.Body()); err == nil && res.ID == id {
		return res, nil
	}
	res, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, &invoice.ProviderRequestError{Op: op, StatusCode: http.StatusNotFound, Message: "invoice not found after " + op}
	}
	return res, nil
}

// GeneratePDF returns the rendered document. When the provider answers with a
// JSON document pointing at the file, the file is downloaded.
func (c *Client) GeneratePDF(ctx context.Context, id string) ([]byte, error) {
	resp, err := c.do(ctx, call{
		op:     opPDF,
		method: resty.MethodGet,
		url:    c.invoicesURL(id, "pdf"),
		accept: "application/pdf, application/json",
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	if !strings.Contains(resp.Header().Get("Content-Type"), "json") {
		return resp.Body(), nil
	}

	url, err := documentURL(resp.Body())
	if err != nil {
		return nil, malformed(opPDF, resp, err)
	}
	doc, err := c.rest.R().SetContext(ctx).SetHeader("Accept", "application/pdf").Get(url)
	if err != nil {
		return nil, &invoice.TransportError{Op: opPDF, Err: err}
	}
	if !doc.IsSuccess() {
		return nil, providerError(opPDF, doc)
	}
	return doc.Body(), nil
}

// documentURL reads data.attributes.url of a document response.
func documentURL(raw []byte) (string, error) {
	d := jx.DecodeBytes(raw)
	if d.Next() != jx.Object {
		return "", errors.New("document response is not a JSON object")
	}
	var url string
	var walk func(d *jx.Decoder) error
	walk = func(d *jx.Decoder) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "data", "attributes":
				if d.Next() != jx.Object {
					return d.Skip()
				}
				return walk(d)
			case "url":
				var err error
				url, err = readString(d)
				return err
			default:
				return d.Skip()
			}
		})
	}
	if err := walk(d); err != nil {
		return "", errors.Wrap(err, "decode document")
	}
	if url == "" {
		return "", errors.New("document response without url")
	}
	return url, nil
}

func (c *Client) Templates(ctx context.Context) ([]invoice.Template, error) {
	resp, err := c.do(ctx, call{
		op:     opTemplates,
		method: resty.MethodGet,
		url:    c.templatesURL(),
		retry:  true,
	})
	if err != nil {
		return nil, err
	}
	out, err := c.translator.FromProviderTemplateList(resp.Body())
	if err != nil {
		return nil, malformed(opTemplates, resp, err)
	}
	return out, nil
}

func (c *Client) CreateTemplate(ctx context.Context, req invoice.TemplateRequest) (*invoice.Template, error) {
	return c.saveTemplate(ctx, opCreateTemplate, resty.MethodPost, "", req)
}

func (c *Client) UpdateTemplate(ctx context.Context, id string, req invoice.TemplateRequest) (*invoice.Template, error) {
	return c.saveTemplate(ctx, opUpdateTemplate, resty.MethodPut, id, req)
}

func (c *Client) saveTemplate(ctx context.Context, op, method, id string, req invoice.TemplateRequest) (*invoice.Template, error) {
	url := c.templatesURL()
	if id != "" {
		url = c.templatesURL(id)
	}
	resp, err := c.do(ctx, call{
		op:     op,
		method: method,
		url:    url,
		body:   c.translator.ToProviderTemplatePayload(id, req).Bytes(),
	})
	if err != nil {
		return nil, err
	}
	tpl, err := c.translator.FromProviderTemplate(resp.Body())
	if err != nil {
		return nil, malformed(op, resp, err)
	}
	return tpl, nil
}

// DeleteTemplate reports failures in the result instead of returning an error.
func (c *Client) DeleteTemplate(ctx context.Context, id string) invoice.OperationResult {
	_, err := c.do(ctx, call{
		op:     opDeleteTemplate,
		method: resty.MethodDelete,
		url:    c.templatesURL(id),
	})
	if err != nil {
		logger.WithField("template_id", id).Errorf("delete template failed: %v", err)
		return invoice.OperationResult{Message: err.Error()}
	}
	return invoice.OperationResult{Success: true, Message: "template deleted"}
}

// HealthCheck never returns an error: every failure, a panic included, is
// reported as an unhealthy result.
func (c *Client) HealthCheck(ctx context.Context) (res invoice.HealthResult) {
	start := time.Now()
	details := map[string]any{
		"provider":   providerName,
		"company_id": c.creds.CompanyID,
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("health check panic: %v\n%s", r, debug.Stack())
			details["error"] = fmt.Sprint(r)
			details["token_state"] = string(c.tokens.State())
			res = invoice.HealthResult{Status: invoice.Unhealthy, Message: "health check failed", Details: details}
		}
	}()
	details["environment"] = c.creds.Env.Name()

	_, err := c.do(ctx, call{
		op:     opHealth,
		method: resty.MethodGet,
		url:    joinURL(c.creds.CompanyURL(), "me"),
		retry:  true,
	})
	details["latency_ms"] = time.Since(start).Milliseconds()
	details["token_state"] = string(c.tokens.State())
	if err != nil {
		details["error"] = err.Error()
		return invoice.HealthResult{Status: invoice.Unhealthy, Message: "Paraşüt API unreachable", Details: details}
	}
	return invoice.HealthResult{Status: invoice.Healthy, Message: "Paraşüt API reachable", Details: details}
}

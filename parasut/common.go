package parasut

import (
	"net/http"
	"strings"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/alapierre/go-parasut-client/util"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "parasut")

const (
	providerName = "parasut"
	userAgent    = "go-parasut-client"
	dateLayout   = "2006-01-02"
	maxErrorBody = 512
)

// newRestClient buduje klienta resty współdzielonego przez fasadę auth i klienta API.
// Wstrzyknięty httpClient jest kopiowany; SetTimeout nie zmienia obiektu wywołującego.
func newRestClient(creds Credentials, httpClient *http.Client) *resty.Client {
	var rest *resty.Client
	if httpClient != nil {
		hc := *httpClient
		rest = resty.NewWithClient(&hc)
	} else {
		rest = resty.New()
	}
	rest.SetTimeout(creds.Timeout()).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent)

	if util.HttpTraceEnabled() {
		rest.EnableTrace()
		rest.OnAfterResponse(printTraceInfo)
	}
	return rest
}

func printTraceInfo(_ *resty.Client, resp *resty.Response) error {
	ti := resp.Request.TraceInfo()
	logger.WithFields(logrus.Fields{
		"url":          resp.Request.URL,
		"method":       resp.Request.Method,
		"status":       resp.StatusCode(),
		"dns_lookup":   ti.DNSLookup,
		"conn_time":    ti.ConnTime,
		"tls":          ti.TLSHandshake,
		"server_time":  ti.ServerTime,
		"total_time":   ti.TotalTime,
		"conn_reused":  ti.IsConnReused,
		"request_try":  ti.RequestAttempt,
		"request_id":   resp.Request.Header.Get("X-Request-Id"),
		"content_type": resp.Header().Get("Content-Type"),
	}).Debug("HTTP trace")
	return nil
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	out := make([]byte, n)
	copy(out, b[:n])
	return out
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}

// providerError builds the typed error for a non-2xx response.
func providerError(op string, resp *resty.Response) error {
	msg, details := decodeErrorBody(resp.Body())
	return &invoice.ProviderRequestError{
		Op:         op,
		StatusCode: resp.StatusCode(),
		Message:    msg,
		Details:    details,
		Body:       truncate(resp.Body(), maxErrorBody),
	}
}

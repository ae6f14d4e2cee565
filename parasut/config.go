package parasut

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/kelseyhightower/envconfig"
)

// Credentials konfiguracja połączenia z Paraşüt. Niezmienna po utworzeniu,
// przekazywana przez wartość.
type Credentials struct {
	Env      Environment `envconfig:"PARASUT_ENV" default:"prod"`
	APIURL   string      `envconfig:"PARASUT_API_URL"`
	TokenURL string      `envconfig:"PARASUT_TOKEN_URL"`

	ClientID     string `envconfig:"PARASUT_CLIENT_ID" required:"true"`
	ClientSecret string `envconfig:"PARASUT_CLIENT_SECRET" required:"true"`
	Username     string `envconfig:"PARASUT_USERNAME" required:"true"`
	Password     string `envconfig:"PARASUT_PASSWORD" required:"true"`
	CompanyID    string `envconfig:"PARASUT_COMPANY_ID" required:"true"`

	TimeoutMS     int           `envconfig:"PARASUT_TIMEOUT" default:"30000"`
	RetryAttempts int           `envconfig:"PARASUT_RETRY_ATTEMPTS" default:"3"`
	Currency      string        `envconfig:"PARASUT_CURRENCY" default:"TRY"`
	RateLimit     float64       `envconfig:"PARASUT_RATE_LIMIT" default:"0"`
	TokenSkew     time.Duration `envconfig:"PARASUT_TOKEN_SKEW" default:"0s"`
}

// LoadCredentials reads the configuration from environment variables.
func LoadCredentials() (Credentials, error) {
	var c Credentials
	if err := envconfig.Process("", &c); err != nil {
		return Credentials{}, err
	}
	if err := c.Validate(); err != nil {
		return Credentials{}, err
	}
	return c, nil
}

// Validate rejects incomplete credentials before any network call is made.
func (c Credentials) Validate() error {
	missing := make([]string, 0, 5)
	for name, v := range map[string]string{
		"ClientID":     c.ClientID,
		"ClientSecret": c.ClientSecret,
		"Username":     c.Username,
		"Password":     c.Password,
		"CompanyID":    c.CompanyID,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &invoice.ValidationError{Field: strings.Join(missing, ","), Reason: "credentials must be provided"}
	}
	if !c.Env.Valid() {
		return &invoice.ValidationError{Field: "Env", Reason: fmt.Sprintf("unknown environment %d", int(c.Env))}
	}
	if c.RetryAttempts < 0 {
		return &invoice.ValidationError{Field: "RetryAttempts", Reason: "must not be negative"}
	}
	return nil
}

func (c Credentials) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c Credentials) Attempts() int {
	if c.RetryAttempts <= 0 {
		return 1
	}
	return c.RetryAttempts
}

func (c Credentials) DefaultCurrency() string {
	if c.Currency == "" {
		return "TRY"
	}
	return strings.ToUpper(c.Currency)
}

func (c Credentials) APIBase() string {
	if c.APIURL != "" {
		return strings.TrimRight(c.APIURL, "/")
	}
	return c.Env.BaseURL()
}

func (c Credentials) TokenEndpoint() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return joinURL(c.APIBase(), "oauth", "token")
}

// CompanyURL prefiks wszystkich operacji na zasobach firmy.
func (c Credentials) CompanyURL() string {
	return joinURL(c.APIBase(), "v4", c.CompanyID)
}

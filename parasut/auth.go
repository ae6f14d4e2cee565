package parasut

import (
	"context"
	"time"

	"github.com/alapierre/go-parasut-client/invoice"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-resty/resty/v2"
)

const (
	opToken = "oauth token"

	grantPassword = "password"
	grantRefresh  = "refresh_token"

	defaultTokenTTL = 3600 * time.Second
	oobRedirectURI  = "urn:ietf:wg:oauth:2.0:oob"
)

// TokenResponse odpowiedź endpointu /oauth/token.
type TokenResponse struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresIn    time.Duration
	CreatedAt    time.Time
}

// ExpiresAt liczy termin ważności względem momentu wystawienia (albo now,
// gdy dostawca nie podał created_at).
func (t *TokenResponse) ExpiresAt(now time.Time) time.Time {
	issued := t.CreatedAt
	if issued.IsZero() {
		issued = now
	}
	ttl := t.ExpiresIn
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return issued.Add(ttl).UTC()
}

func (t *TokenResponse) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "access_token":
			t.AccessToken, err = readString(d)
		case "token_type":
			t.TokenType, err = readString(d)
		case "refresh_token":
			t.RefreshToken, err = readString(d)
		case "expires_in":
			var v float64
			v, err = readNumber(d)
			t.ExpiresIn = time.Duration(v) * time.Second
		case "created_at":
			var v float64
			v, err = readNumber(d)
			if v > 0 {
				t.CreatedAt = time.Unix(int64(v), 0).UTC()
			}
		default:
			return d.Skip()
		}
		return err
	})
}

// AuthFacade wraps the OAuth token endpoint. It holds no token state; that is
// the TokenManager's job.
type AuthFacade struct {
	rest  *resty.Client
	creds Credentials
}

// NewAuthFacade Konstruktor fasady autoryzacyjnej.
func NewAuthFacade(creds Credentials, rest *resty.Client) *AuthFacade {
	if rest == nil {
		rest = newRestClient(creds, nil)
	}
	return &AuthFacade{rest: rest, creds: creds}
}

// PasswordGrant performs the resource-owner password flow.
func (a *AuthFacade) PasswordGrant(ctx context.Context) (*TokenResponse, error) {
	return a.grant(ctx, map[string]string{
		"grant_type":    grantPassword,
		"client_id":     a.creds.ClientID,
		"client_secret": a.creds.ClientSecret,
		"username":      a.creds.Username,
		"password":      a.creds.Password,
		"redirect_uri":  oobRedirectURI,
	})
}

// RefreshGrant exchanges a refresh token for a new access token.
func (a *AuthFacade) RefreshGrant(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	return a.grant(ctx, map[string]string{
		"grant_type":    grantRefresh,
		"client_id":     a.creds.ClientID,
		"client_secret": a.creds.ClientSecret,
		"refresh_token": refreshToken,
		"redirect_uri":  oobRedirectURI,
	})
}

func (a *AuthFacade) grant(ctx context.Context, form map[string]string) (*TokenResponse, error) {
	resp, err := a.rest.R().
		SetContext(ctx).
		SetFormData(form).
		Post(a.creds.TokenEndpoint())
	if err != nil {
		return nil, &invoice.TransportError{Op: opToken, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, providerError(opToken, resp)
	}

	d := jx.DecodeBytes(resp.Body())
	if d.Next() != jx.Object {
		return nil, &invoice.ProviderRequestError{Op: opToken, StatusCode: resp.StatusCode(), Message: "token response is not a JSON object"}
	}
	var tr TokenResponse
	if err := tr.decode(d); err != nil {
		return nil, &invoice.ProviderRequestError{Op: opToken, StatusCode: resp.StatusCode(), Message: errors.Wrap(err, "decode token response").Error()}
	}
	if tr.AccessToken == "" {
		return nil, &invoice.ProviderRequestError{Op: opToken, StatusCode: resp.StatusCode(), Message: "token response without access_token"}
	}
	return &tr, nil
}

// ErrNoRefreshToken sygnalizuje brak refresh tokena.
var ErrNoRefreshToken = errors.New("no refresh token available")

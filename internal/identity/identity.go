package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spotreel/backend/internal/apperr"
	"github.com/spotreel/backend/internal/config"
)

// ErrInvalidToken indicates the bearer token failed verification.
var ErrInvalidToken = errors.New("invalid bearer token")

// Verifier checks bearer tokens issued by the external identity provider
// and extracts the stable external user identifier.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a token verifier from explicit configuration.
func NewVerifier(cfg config.IdentityConfig) *Verifier {
	return &Verifier{secret: []byte(cfg.TokenSecret)}
}

// VerifyToken validates the token's signature and expiry and returns the
// subject claim, the provider's stable identifier for the user.
func (v *Verifier) VerifyToken(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing subject claim", ErrInvalidToken)
	}

	return subject, nil
}

// Client performs management calls against the identity provider.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

// NewClient constructs an identity provider client.
func NewClient(cfg config.IdentityConfig) *Client {
	return &Client{
		baseURL:      cfg.BaseURL,
		serviceToken: cfg.ServiceToken,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// DeleteAccount removes the user's record at the identity provider as part
// of the account-deletion cascade. Failures propagate as provider errors;
// no retry happens at this layer.
func (c *Client) DeleteAccount(ctx context.Context, externalID string) error {
	if c.baseURL == "" {
		// Identity deletion is disabled in local development.
		return nil
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s", c.baseURL, url.PathEscape(externalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return apperr.Provider("identity", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.Provider("identity", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return apperr.Provider("identity", fmt.Errorf("delete account: unexpected status %d", resp.StatusCode))
	}
	return nil
}

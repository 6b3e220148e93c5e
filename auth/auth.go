// auth/auth.go
// ------------
// Bearer-credential collaborators. The SDK consumes any oauth2.TokenSource;
// this package ships the two common ones: a static token (personal access
// tokens, API keys) and a client-credentials source that authenticates with
// a signed JWT assertion, caching the acquired token until shortly before
// expiry.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const assertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// StaticToken wraps a fixed bearer credential as a TokenSource.
func StaticToken(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

// AssertionConfig configures a JWT-assertion client-credentials source.
type AssertionConfig struct {
	TokenURL   string
	ClientID   string
	Audience   string // defaults to TokenURL
	Scopes     []string
	PrivateKey *rsa.PrivateKey
	KeyID      string        // optional kid header
	TTL        time.Duration // assertion lifetime, defaults to 1 minute
}

type assertionSource struct {
	cfg    AssertionConfig
	client *http.Client

	mu  sync.Mutex
	tok *oauth2.Token
}

// NewAssertionSource builds a TokenSource that posts a signed client
// assertion to the token endpoint and reuses the returned access token
// until it expires.
func NewAssertionSource(cfg AssertionConfig) (oauth2.TokenSource, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("auth: TokenURL must be set")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("auth: ClientID must be set")
	}
	if cfg.PrivateKey == nil {
		return nil, fmt.Errorf("auth: PrivateKey must be set")
	}
	if cfg.Audience == "" {
		cfg.Audience = cfg.TokenURL
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	return &assertionSource{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *assertionSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok != nil && s.tok.Valid() {
		return s.tok, nil
	}

	assertion, err := s.buildAssertion()
	if err != nil {
		return nil, fmt.Errorf("building client assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.cfg.ClientID)
	form.Set("client_assertion_type", assertionType)
	form.Set("client_assertion", assertion)
	if len(s.cfg.Scopes) > 0 {
		form.Set("scope", strings.Join(s.cfg.Scopes, " "))
	}

	tok, err := s.doTokenRequest(context.Background(), form)
	if err != nil {
		return nil, err
	}
	s.tok = tok
	return tok, nil
}

func (s *assertionSource) buildAssertion() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.ClientID,
		Subject:   s.cfg.ClientID,
		Audience:  jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.cfg.KeyID != "" {
		token.Header["kid"] = s.cfg.KeyID
	}
	return token.SignedString(s.cfg.PrivateKey)
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	AccessToken string `json:"access_token"`
}

func (s *assertionSource) doTokenRequest(ctx context.Context, form url.Values) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("token request failed: status %d, body: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response contained no access token")
	}

	return &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		Expiry:      time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// ParsePrivateKey reads a PEM-encoded RSA private key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	return jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
}

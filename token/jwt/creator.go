package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-obo-blueprints/token/keys"
)

// Creator issues access tokens shaped like Azure AD v2.0 tokens
type Creator struct {
	issuer   string
	tenantID string
	lifetime time.Duration
	signer   keys.Signer
	now      func() time.Time
}

type Option func(*Creator)

func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Creator) {
		c.now = nowFunc
	}
}

// WithTenantID fixes the tid claim, by default a random id per Creator
func WithTenantID(tenantID string) Option {
	return func(c *Creator) {
		c.tenantID = tenantID
	}
}

func NewCreator(issuer string, lifetime time.Duration, signer keys.Signer, opts ...Option) (*Creator, error) {
	if issuer == "" {
		return nil, errors.New("[NewCreator] issuer is required")
	}
	if lifetime <= 0 {
		return nil, fmt.Errorf("[NewCreator] token lifetime must be positive, got %s", lifetime)
	}
	if signer == nil {
		return nil, errors.New("[NewCreator] signer is required")
	}

	c := &Creator{
		issuer:   issuer,
		tenantID: uuid.NewString(),
		lifetime: lifetime,
		signer:   signer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issued is a signed access token and its lifetime in seconds
type Issued struct {
	AccessToken string
	ExpiresIn   int64
	Scope       string
}

// CreateClientCredentialsToken issues an application token: the subject is the client itself
func (c *Creator) CreateClientCredentialsToken(clientID string, scopes []string) (*Issued, error) {
	claims := c.baseClaims(clientID, scopes)
	subject := clientObjectID(clientID)
	claims["sub"] = subject
	claims["oid"] = subject
	claims["roles"] = []string{}
	return c.sign(claims, scopes)
}

// CreateOnBehalfOfToken issues a delegated token for the user of assertion, requested by clientID
func (c *Creator) CreateOnBehalfOfToken(clientID string, scopes []string, assertion jwtlib.MapClaims) (*Issued, error) {
	subject, err := assertion.GetSubject()
	if err != nil || subject == "" {
		return nil, errors.New("[Creator.CreateOnBehalfOfToken] assertion has no subject")
	}

	claims := c.baseClaims(clientID, scopes)
	claims["sub"] = subject
	claims["oid"] = subject
	if oid, ok := assertion["oid"].(string); ok && oid != "" {
		claims["oid"] = oid
	}
	for _, name := range []string{"name", "preferred_username"} {
		if v, ok := assertion[name]; ok {
			claims[name] = v
		}
	}
	claims["scp"] = strings.Join(delegatedScopes(scopes), " ")
	return c.sign(claims, scopes)
}

// CreateUserToken issues a token as if the user had signed in to clientID, for exercising
// the on-behalf-of flow without a login page
func (c *Creator) CreateUserToken(subject, name, clientID, audience string) (*Issued, error) {
	if subject == "" {
		subject = uuid.NewString()
	}
	claims := c.baseClaims(clientID, nil)
	claims["aud"] = audience
	claims["sub"] = subject
	claims["oid"] = subject
	claims["name"] = name
	claims["preferred_username"] = name
	claims["scp"] = "access_as_user"
	return c.sign(claims, nil)
}

func (c *Creator) baseClaims(clientID string, scopes []string) jwtlib.MapClaims {
	now := c.now()
	return jwtlib.MapClaims{
		"aud":    Audience(scopes),
		"iss":    c.issuer,
		"iat":    now.Unix(),
		"nbf":    now.Unix(),
		"exp":    now.Add(c.lifetime).Unix(),
		"aio":    uuid.NewString(),
		"azp":    clientID,
		"azpacr": "1",
		"tid":    c.tenantID,
		"uti":    uuid.NewString(),
		"jti":    uuid.NewString(),
		"ver":    "2.0",
	}
}

func (c *Creator) sign(claims jwtlib.MapClaims, scopes []string) (*Issued, error) {
	signed, err := c.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return &Issued{
		AccessToken: signed,
		ExpiresIn:   int64(c.lifetime / time.Second),
		Scope:       strings.Join(scopes, " "),
	}, nil
}

// Audience derives the token audience from the requested scopes the way Azure AD does:
// "api://downstream/.default" and "api://downstream/read" are both for "api://downstream"
func Audience(scopes []string) string {
	for _, scope := range scopes {
		scheme := strings.Index(scope, "://")
		if scheme < 0 {
			continue
		}
		if i := strings.LastIndex(scope, "/"); i > scheme+2 {
			return scope[:i]
		}
		return scope
	}
	if len(scopes) > 0 {
		return scopes[0]
	}
	return ""
}

// delegatedScopes strips the resource prefix: "api://downstream/read" becomes "read"
func delegatedScopes(scopes []string) []string {
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		if i := strings.LastIndex(scope, "/"); i >= 0 {
			scope = scope[i+1:]
		}
		out = append(out, scope)
	}
	return out
}

// clientObjectID is stable per client so repeated tokens name the same application
func clientObjectID(clientID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("client:"+clientID)).String()
}

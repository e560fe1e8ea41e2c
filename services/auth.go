package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleManager  = "manager"
	RoleCustomer = "customer"
)

const (
	AuthReasonInvalid   = "invalid credentials"
	AuthReasonThrottled = "too many attempts"
	AuthReasonDisabled  = "manager login is not configured"
	AuthReasonSession   = "invalid session"
)

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is an authenticated principal and the bearer token that proves it.
type Session struct {
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Authenticator checks manager credentials. Failures are *AuthError.
type Authenticator interface {
	Authenticate(ctx context.Context, c Credentials) (*Session, error)
}

// Claims are carried in every session token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens uses secret to sign tokens. An empty secret is replaced by a random one, so
// tokens do not survive a restart.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Tokens{secret: key, ttl: ttl, now: time.Now}, nil
}

func (t *Tokens) Issue(subject, role string) (*Session, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Subject: subject, Role: role, Token: signed, ExpiresAt: exp.UTC()}, nil
}

// Verify parses token and returns its claims when the signature and expiry are valid.
func (t *Tokens) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, &AuthError{Reason: AuthReasonSession}
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, &AuthError{Reason: AuthReasonSession}
	}
	return claims, nil
}

// ManagerAuthenticator accepts a single configured manager whose password is stored as a
// bcrypt hash. Failed attempts are throttled per username.
type ManagerAuthenticator struct {
	username     string
	passwordHash string
	tokens       *Tokens
	throttle     *LoginThrottle
}

func NewManagerAuthenticator(username, passwordHash string, tokens *Tokens, throttle *LoginThrottle) *ManagerAuthenticator {
	if throttle == nil {
		throttle = NewLoginThrottle()
	}
	return &ManagerAuthenticator{
		username:     username,
		passwordHash: passwordHash,
		tokens:       tokens,
		throttle:     throttle,
	}
}

func (a *ManagerAuthenticator) Authenticate(ctx context.Context, c Credentials) (*Session, error) {
	if a.passwordHash == "" {
		return nil, &AuthError{Reason: AuthReasonDisabled}
	}
	key := strings.ToLower(strings.TrimSpace(c.Username))
	if wait := a.throttle.WaitSeconds(key); wait > 0 {
		return nil, &AuthError{Reason: AuthReasonThrottled, RetryAfter: wait}
	}
	userOK := subtle.ConstantTimeCompare([]byte(key), []byte(strings.ToLower(a.username))) == 1
	passOK := CheckPassword(a.passwordHash, c.Password)
	if !userOK || !passOK {
		a.throttle.RecordFailed(key)
		return nil, &AuthError{Reason: AuthReasonInvalid}
	}
	a.throttle.RecordSuccess(key)
	return a.tokens.Issue(a.username, RoleManager)
}

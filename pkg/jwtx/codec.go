// Package jwtx signs and decodes the session tokens carried in the session
// cookie. Tokens are HS256 JWTs whose payload fields sit at the top level of
// the claim set next to the registered exp/iat/jti/iss claims.
package jwtx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL is used when Encode is called without a positive ttl.
const DefaultTTL = time.Hour

// MinSecretLength is the shortest HMAC key NewCodec accepts.
const MinSecretLength = 32

var (
	ErrSecretTooShort   = errors.New("jwtx: signing secret too short")
	ErrPayloadNotObject = errors.New("jwtx: payload must encode to a JSON object")
	ErrReservedClaim    = errors.New("jwtx: payload uses a reserved claim")
)

var reservedClaims = []string{"exp", "iat", "nbf", "jti", "iss"}

// Codec signs and verifies tokens with a single process-wide secret. It is
// immutable after construction and safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Codec)

// WithIssuer stamps tokens with iss and rejects tokens from other issuers.
func WithIssuer(issuer string) Option {
	return func(c *Codec) { c.issuer = issuer }
}

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) { c.logger = logger }
}

func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrSecretTooShort, MinSecretLength, len(secret))
	}

	c := &Codec{
		secret: bytes.Clone(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL reports the lifetime used when Encode receives ttl <= 0.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Encode signs payload with an expiry of now+ttl. Payloads that do not encode
// to a JSON object, or that set a reserved claim, are rejected.
func (c *Codec) Encode(payload any, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("jwtx: marshal payload: %w", err)
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return "", ErrPayloadNotObject
	}
	for _, name := range reservedClaims {
		if _, ok := fields[name]; ok {
			return "", fmt.Errorf("%w: %s", ErrReservedClaim, name)
		}
	}

	now := c.now()
	claims := jwt.MapClaims(fields)
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	claims["jti"] = uuid.NewString()
	if c.issuer != "" {
		claims["iss"] = c.issuer
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Kind tags the outcome of Decode.
type Kind int

const (
	// Invalid covers bad signatures, malformed tokens and payloads that fail
	// their schema.
	Invalid Kind = iota
	// Expired means the signature checked out and the payload still matches
	// its schema, but exp has passed. The payload is withheld.
	Expired
	Valid
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "invalid"
	}
}

// Result is the outcome of Decode. Payload is only populated for Valid;
// ExpiresAt is set for Valid and Expired.
type Result[T any] struct {
	Kind      Kind
	Payload   T
	ExpiresAt time.Time
}

// Decode verifies token and validates its payload against T's schema, the
// Validate method of *T. It never returns an error: every failure collapses
// into an Invalid result and is logged at debug level.
func Decode[T any, PT interface {
	*T
	validation.Validatable
}](c *Codec, token string) Result[T] {
	var zero Result[T]

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithJSONNumber(),
	)
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}); err != nil {
		c.logger.Debug("token rejected", "err", err)
		return zero
	}

	if c.issuer != "" {
		if iss, _ := claims.GetIssuer(); iss != c.issuer {
			c.logger.Debug("token rejected", "err", "issuer mismatch", "iss", iss)
			return zero
		}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		c.logger.Debug("token rejected", "err", "missing or malformed exp")
		return zero
	}

	payload, err := decodePayload[T, PT](claims)
	if err != nil {
		c.logger.Debug("token payload rejected", "err", err)
		return zero
	}

	if !c.now().Before(exp.Time) {
		return Result[T]{Kind: Expired, ExpiresAt: exp.Time}
	}
	return Result[T]{Kind: Valid, Payload: payload, ExpiresAt: exp.Time}
}

func decodePayload[T any, PT interface {
	*T
	validation.Validatable
}](claims jwt.MapClaims) (T, error) {
	var out T

	fields := make(map[string]any, len(claims))
	for k, v := range claims {
		fields[k] = v
	}
	for _, name := range reservedClaims {
		delete(fields, name)
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, PT(&out)); err != nil {
		return out, err
	}
	if err := PT(&out).Validate(); err != nil {
		return out, err
	}
	return out, nil
}

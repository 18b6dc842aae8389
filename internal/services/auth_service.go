package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	socialhub_errors "socialhub/pkg/errors"
	"socialhub/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator verifies bearer credentials issued by the identity service.
// It only verifies; issuance lives elsewhere.
type Authenticator struct {
	jwtSecret []byte
	leeway    time.Duration
}

func NewAuthenticator(secret string, leeway time.Duration) *Authenticator {
	return &Authenticator{jwtSecret: []byte(secret), leeway: leeway}
}

// AccessClaims carries the user id as "id", falling back to "sub".
type AccessClaims struct {
	UserID any `json:"id,omitempty"`
	jwt.RegisteredClaims
}

// Verify returns the user id bound to credential. Every failure is reported
// as ErrAuthRejected.
func (a *Authenticator) Verify(credential string) (int64, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return 0, fmt.Errorf("%w: missing token", socialhub_errors.ErrAuthRejected)
	}

	parsed, err := jwt.ParseWithClaims(credential, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, socialhub_errors.ErrAuthRejected
		}
		return a.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithJSONNumber(),
		jwt.WithLeeway(a.leeway),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", socialhub_errors.ErrAuthRejected, err)
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return 0, fmt.Errorf("%w: invalid claims", socialhub_errors.ErrAuthRejected)
	}

	userID, err := claims.userID()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", socialhub_errors.ErrAuthRejected, err)
	}
	return userID, nil
}

func (c *AccessClaims) userID() (int64, error) {
	if c.UserID != nil {
		return parseUserID(c.UserID)
	}
	if c.Subject != "" {
		return parseUserID(c.Subject)
	}
	return 0, errors.New("token carries no user id")
}

func parseUserID(v any) (int64, error) {
	var (
		id  int64
		err error
	)
	switch t := v.(type) {
	case json.Number:
		id, err = t.Int64()
	case string:
		id, err = strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	case float64:
		id = int64(t)
		if float64(id) != t {
			err = errors.New("user id is not an integer")
		}
	default:
		err = fmt.Errorf("unsupported user id type %T", v)
	}
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("user id must be positive")
	}
	return id, nil
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, socialhub_errors.ErrInvalidInput), errors.Is(err, socialhub_errors.ErrValidation):
		return 400
	case errors.Is(err, socialhub_errors.ErrUnauthorized), errors.Is(err, socialhub_errors.ErrAuthRejected):
		return 401
	case errors.Is(err, socialhub_errors.ErrForbidden):
		return 403
	case errors.Is(err, socialhub_errors.ErrNotFound):
		return 404
	case errors.Is(err, socialhub_errors.ErrAlreadyExists), errors.Is(err, socialhub_errors.ErrConflict):
		return 409
	case errors.Is(err, socialhub_errors.ErrRateLimited):
		return 429
	case errors.Is(err, socialhub_errors.ErrServiceUnavailable):
		return 503
	default:
		return 500
	}
}

// WithUserContext stores the authenticated user id under the key the logger
// reads, so request logs carry it.
func WithUserContext(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, logger.UserIdKey, userID)
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	value := ctx.Value(logger.UserIdKey)
	if value == nil {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok && userID > 0
}

package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/docgen/backend/internal/application/generation"
	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/infrastructure/logger"
	"github.com/docgen/backend/internal/interfaces/http/dto"
)

// Identity headers and context keys
const (
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
	UserIDHeader    = "X-User-ID"
	UserTierHeader  = "X-User-Tier"
	UserAdminHeader = "X-User-Admin"
	RequesterKey    = "requester"
)

// Claims are the identity claims the gateway signs. The subject is the
// user id.
type Claims struct {
	jwt.RegisteredClaims
	Tier  string `json:"tier,omitempty"`
	Admin bool   `json:"admin,omitempty"`
}

// RequesterConfig holds configuration for the requester middleware
type RequesterConfig struct {
	// Secret verifies HS256 bearer tokens. When empty the X-User-* headers
	// set by the gateway are trusted as is.
	Secret []byte
	// Issuer, when set, must match the token's iss claim
	Issuer string
	// Leeway tolerates clock skew on exp and nbf
	Leeway time.Duration
	Logger *zap.Logger
}

// Requester identifies the caller and stores a generation.Requester in the
// context. Requests without an identity are rejected with 401.
func Requester(cfg RequesterConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 30 * time.Second
	}
	var parser *jwt.Parser
	if len(cfg.Secret) > 0 {
		opts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(cfg.Leeway),
		}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}
		parser = jwt.NewParser(opts...)
	}

	return func(c *gin.Context) {
		var (
			who generation.Requester
			err error
		)
		if parser != nil {
			who, err = requesterFromToken(c, parser, cfg.Secret)
		} else {
			who, err = requesterFromHeaders(c)
		}
		if err != nil {
			cfg.Logger.Debug("Requester rejected",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
			)
			abortUnauthorized(c, err)
			return
		}

		c.Set(RequesterKey, who)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), who.UserID))
		c.Next()
	}
}

var (
	errMissingIdentity = errors.New("missing identity")
	errUnknownTier     = errors.New("unknown plan tier")
)

func requesterFromToken(c *gin.Context, parser *jwt.Parser, secret []byte) (generation.Requester, error) {
	header := c.GetHeader(AuthHeaderKey)
	if !strings.HasPrefix(header, BearerPrefix) {
		return generation.Requester{}, errMissingIdentity
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if raw == "" {
		return generation.Requester{}, errMissingIdentity
	}

	claims := &Claims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return generation.Requester{}, err
	}
	if claims.Subject == "" {
		return generation.Requester{}, errMissingIdentity
	}
	tier, err := parseTier(claims.Tier)
	if err != nil {
		return generation.Requester{}, err
	}
	return generation.Requester{UserID: claims.Subject, Tier: tier, Admin: claims.Admin}, nil
}

func requesterFromHeaders(c *gin.Context) (generation.Requester, error) {
	id := strings.TrimSpace(c.GetHeader(UserIDHeader))
	if id == "" {
		return generation.Requester{}, errMissingIdentity
	}
	tier, err := parseTier(c.GetHeader(UserTierHeader))
	if err != nil {
		return generation.Requester{}, err
	}
	admin, _ := strconv.ParseBool(c.GetHeader(UserAdminHeader))
	return generation.Requester{UserID: id, Tier: tier, Admin: admin}, nil
}

func parseTier(v string) (quota.Tier, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return quota.TierFree, nil
	}
	tier := quota.Tier(v)
	if !tier.IsValid() {
		return "", errUnknownTier
	}
	return tier, nil
}

func abortUnauthorized(c *gin.Context, err error) {
	code, message := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, errUnknownTier):
		code, message = dto.ErrCodeTokenInvalid, "Unknown plan tier"
	case !errors.Is(err, errMissingIdentity):
		code, message = dto.ErrCodeTokenInvalid, "Invalid token"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// GetRequester returns the requester stored by the Requester middleware
func GetRequester(c *gin.Context) (generation.Requester, bool) {
	v, ok := c.Get(RequesterKey)
	if !ok {
		return generation.Requester{}, false
	}
	who, ok := v.(generation.Requester)
	return who, ok
}

package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"roomies/backend/internal/config"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

var errMissingToken = errors.New("authorization token missing")

// Authenticator verifies the bearer tokens issued by the identity provider.
// GenerateToken exists for local development and the admin CLI.
type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	return &Authenticator{secret: []byte(cfg.JWTSecret), issuer: cfg.Issuer, ttl: cfg.TokenTTL}
}

// GenerateToken signs a token whose subject is identity.
func (a *Authenticator) GenerateToken(identity string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   identity,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify checks signature, expiry and issuer and returns the identity.
func (a *Authenticator) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// bearerToken reads the token from the Authorization header. Browsers cannot
// set headers on WebSocket handshakes, so access_token in the query is
// accepted as well.
func bearerToken(c *gin.Context) (string, error) {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", errors.New("malformed authorization header")
		}
		return parts[1], nil
	}
	if t := c.Query("access_token"); t != "" {
		return t, nil
	}
	return "", errMissingToken
}

// RequireIdentity rejects requests without a valid token with 401 and stores
// the verified identity in the context.
func (h *Handler) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "error": translated(c, "unauthorized", err.Error())})
			return
		}
		identity, err := h.Auth.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "unauthorized", "error": translated(c, "unauthorized", "invalid or expired token")})
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func identityOf(c *gin.Context) string {
	return c.GetString(identityKey)
}

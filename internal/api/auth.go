package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"signal-gateway/pkg/db"
	"signal-gateway/pkg/i18n"
)

const (
	operatorContextKey = "OperatorID"
	tokenTTL           = 72 * time.Hour
)

// OperatorClaims are the JWT claims of an admin API operator.
type OperatorClaims struct {
	OperatorID string `json:"uid"`
	jwt.RegisteredClaims
}

func hashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func issueToken(operatorID, secret string, expiresAt time.Time) (string, error) {
	claims := OperatorClaims{
		OperatorID: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operatorID,
			Issuer:    "signal-gateway",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(tokenStr, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &OperatorClaims{}, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token claims")
	}
	return claims.OperatorID, nil
}

// AuthMiddleware enforces JWT auth for the admin API.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, secret, false) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// StreamAuthMiddleware is AuthMiddleware that also takes the token from the "token" query
// parameter, since browsers cannot set headers on a websocket handshake.
func StreamAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c, secret, true) {
			c.Abort()
			return
		}
		c.Next()
	}
}

// authenticate stores the operator of a valid bearer token on c, or answers 401.
func authenticate(c *gin.Context, secret string, allowQuery bool) bool {
	var token string
	if allowQuery {
		token = c.Query("token")
	}
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, value, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			respondError(c, http.StatusUnauthorized, "INVALID_AUTH_HEADER", "invalid Authorization header")
			return false
		}
		token = strings.TrimSpace(value)
	}
	if token == "" {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", i18n.M().MissingToken)
		return false
	}
	operatorID, err := parseToken(token, secret)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "INVALID_TOKEN", i18n.M().InvalidToken)
		return false
	}
	c.Set(operatorContextKey, operatorID)
	return true
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) bindCredentials(c *gin.Context) (credentials, bool) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", i18n.M().InvalidPayload)
		return req, false
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		respondError(c, http.StatusBadRequest, "MISSING_CREDENTIALS", "email and password are required")
		return req, false
	}
	return req, true
}

// registerUser creates an admin operator. The first operator registers freely; after that
// only an authenticated operator may add another.
func (s *Server) registerUser(c *gin.Context) {
	ctx := c.Request.Context()
	operators, err := s.DB.CountUsers(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if operators > 0 && !authenticate(c, s.JWTSecret, false) {
		return
	}

	req, ok := s.bindCredentials(c)
	if !ok {
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_EMAIL", "invalid email format")
		return
	}

	existing, err := s.DB.GetUserByEmail(ctx, req.Email)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if existing != nil {
		respondError(c, http.StatusConflict, "EMAIL_ALREADY_REGISTERED", i18n.M().EmailTaken)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		s.internalError(c, err)
		return
	}
	user := db.User{ID: uuid.NewString(), Email: req.Email, PasswordHash: hash}
	if err := s.DB.CreateUser(ctx, user); err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID})
}

// loginUser exchanges credentials for a bearer token.
func (s *Server) loginUser(c *gin.Context) {
	req, ok := s.bindCredentials(c)
	if !ok {
		return
	}

	user, err := s.DB.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", i18n.M().InvalidCredential)
		return
	}

	expiresAt := time.Now().Add(tokenTTL)
	token, err := issueToken(user.ID, s.JWTSecret, expiresAt)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt.UTC().Format(time.RFC3339),
		"user_id":    user.ID,
	})
}

// internalError logs err and answers with the generic 500 body.
func (s *Server) internalError(c *gin.Context, err error) {
	s.Log.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Str("path", c.FullPath()).Msg("request failed")
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", i18n.M().InternalError)
}

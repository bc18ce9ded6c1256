// Package auth issues and validates JWT sessions and hashes passwords.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/billirae/billirae/model"
	"github.com/billirae/billirae/store"
)

// bcryptCost trades hashing time for brute-force resistance.
const bcryptCost = 12

// ErrInvalidCredentials is returned for an unknown e-mail or a wrong
// password. The two cases are deliberately indistinguishable.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Claims are the JWT payload of one session.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Service registers accounts and manages session tokens.
type Service struct {
	store  *store.Store
	secret []byte
	ttl    time.Duration
	log    zerolog.Logger
}

// NewService creates an auth service.
func NewService(st *store.Store, secret string, ttl time.Duration, log zerolog.Logger) (*Service, error) {
	if st == nil {
		return nil, errors.New("auth: store is required")
	}
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Service{store: st, secret: []byte(secret), ttl: ttl, log: log}, nil
}

// Register creates an account with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, errors.Wrap(err, "auth: hash password")
	}

	user := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: string(hash),
		FirstName:    firstName,
		LastName:     lastName,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", user.ID).Msg("account registered")
	return user, nil
}

// Login verifies the credentials and returns a signed session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: user.ID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "auth: sign token")
	}
	return token, user, nil
}

// ParseToken validates a session token and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Wrap(err, "auth: parse token")
	}
	if !token.Valid {
		return nil, errors.New("auth: invalid token")
	}
	return claims, nil
}

// UserID extracts the authenticated user id stored by Middleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}

// Middleware rejects requests without a valid bearer token and stores the
// user id in the request locals.
func (s *Service) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentifizierung erforderlich"})
		}
		claims, err := s.ParseToken(strings.TrimPrefix(header, prefix))
		if err != nil {
			s.log.Debug().Err(err).Msg("rejected token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Sitzung abgelaufen oder ungültig"})
		}
		c.Locals("user_id", claims.UserID)
		return c.Next()
	}
}

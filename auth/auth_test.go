package auth

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/billirae/billirae/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	svc, err := NewService(st, "test-secret", time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Anna@Example.com", "geheim123", "Anna", "Beispiel")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "anna@example.com" {
		t.Errorf("email not lowercased: %q", user.Email)
	}
	if user.PasswordHash == "geheim123" {
		t.Fatal("password stored in plain text")
	}

	token, logged, err := svc.Login(ctx, "anna@example.com", "geheim123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if logged.ID != user.ID {
		t.Fatal("wrong user")
	}

	claims, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("claims user = %q", claims.UserID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "anna@example.com", "geheim123", "", ""); err != nil {
		t.Fatal(err)
	}

	if _, _, err := svc.Login(ctx, "anna@example.com", "falsch"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, _, err := svc.Login(ctx, "unbekannt@example.com", "geheim123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	svc := newTestService(t)
	other := newTestService(t)
	ctx := context.Background()

	if _, err := other.Register(ctx, "anna@example.com", "geheim123", "", ""); err != nil {
		t.Fatal(err)
	}
	token, _, err := other.Login(ctx, "anna@example.com", "geheim123")
	if err != nil {
		t.Fatal(err)
	}

	other.secret = []byte("different-secret")
	forged, _, err := other.Login(ctx, "anna@example.com", "geheim123")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ParseToken(forged); err == nil {
		t.Fatal("token with wrong secret accepted")
	}
	_ = token
}

func TestMiddleware(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user, err := svc.Register(ctx, "anna@example.com", "geheim123", "", "")
	if err != nil {
		t.Fatal(err)
	}
	token, _, err := svc.Login(ctx, "anna@example.com", "geheim123")
	if err != nil {
		t.Fatal(err)
	}

	app := fiber.New()
	app.Get("/whoami", svc.Middleware(), func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})

	// No token.
	req := httptest.NewRequest("GET", "/whoami", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	// Garbage token.
	req = httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer kaputt")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	// Valid token.
	req = httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != user.ID {
		t.Fatalf("body = %q, want user id", body)
	}
}

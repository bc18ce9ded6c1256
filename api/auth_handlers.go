package api

import (
	"github.com/gofiber/fiber/v2"
)

type registerRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Bitte geben Sie eine gültige E-Mail-Adresse und ein Passwort mit mindestens 8 Zeichen an.")
	}

	user, err := s.auth.Register(c.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return s.respondError(c, err)
	}

	// Best effort; registration succeeds even when the mail cannot go out.
	if s.mail.Available() {
		u := *user
		go func() {
			if err := s.mail.SendVerification(u, s.cfg.BaseURL); err != nil {
				s.log.Warn().Err(err).Str("user_id", u.ID).Msg("verification mail failed")
			}
		}()
	}
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}
	if err := s.validate.Struct(req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Bitte geben Sie E-Mail-Adresse und Passwort an.")
	}

	token, user, err := s.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"token": token, "user": user})
}

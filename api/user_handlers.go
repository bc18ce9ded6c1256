package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/billirae/billirae/auth"
)

type profileRequest struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	CompanyName   string `json:"company_name"`
	Street        string `json:"street"`
	Zip           string `json:"zip"`
	City          string `json:"city"`
	Country       string `json:"country"`
	TaxID         string `json:"tax_id"`
	InvoicePrefix string `json:"invoice_prefix"`
}

func (s *Server) handleProfile(c *fiber.Ctx) error {
	user, err := s.store.UserByID(c.Context(), auth.UserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

func (s *Server) handleUpdateProfile(c *fiber.Ctx) error {
	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Ungültige Anfrage.")
	}

	user, err := s.store.UserByID(c.Context(), auth.UserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.CompanyName = req.CompanyName
	user.Street = req.Street
	user.Zip = req.Zip
	user.City = req.City
	user.Country = req.Country
	user.TaxID = req.TaxID
	user.Settings.InvoicePrefix = req.InvoicePrefix

	if err := s.store.UpdateProfile(c.Context(), user); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// handleExport delivers the full GDPR data export as a JSON download.
func (s *Server) handleExport(c *fiber.Ctx) error {
	export, err := s.store.ExportUserData(c.Context(), auth.UserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	filename := fmt.Sprintf("billirae_export_%s.json", time.Now().Format("2006-01-02"))
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, filename))
	return c.JSON(export)
}

// handleDeleteAccount irreversibly deletes the account and everything
// attached to it.
func (s *Server) handleDeleteAccount(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	if err := s.store.DeleteUserAccount(c.Context(), userID); err != nil {
		return s.respondError(c, err)
	}

	s.mu.Lock()
	delete(s.drafts, userID)
	s.mu.Unlock()

	s.log.Info().Str("user_id", userID).Msg("account deleted")
	return c.JSON(fiber.Map{"message": "Ihr Konto und alle zugehörigen Daten wurden gelöscht."})
}
